package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore is a simple local-first store for miner identity seeds.
//
// Features:
// - Supports Ed25519 seeds only
// - Stores keys on the local filesystem as hex-encoded seed files
// - Seed files are 0600, readable only by the submitting process's owner
//
// Loss or disclosure of a seed file compromises that miner's identity
// irrecoverably; there is no revocation mechanism in this protocol.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name      string
	PublicKey string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".claimwire", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) keyFilePath(name string) string {
	return filepath.Join(ks.Directory, name, "miner.key")
}

func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("key name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key name", char)
	}
	return nil
}

// ParseSeedHex decodes a hex-encoded ed25519 seed, tolerating surrounding
// whitespace and an optional 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func (ks *KeyStore) saveSeedToFile(filePath string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func (ks *KeyStore) loadSeedFromFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(strings.TrimSpace(string(data)))
}

// Initialize writes seed under name and returns the public key string plus
// the seed file path.
func (ks *KeyStore) Initialize(name string, seed []byte, overwrite bool) (publicKey string, filePath string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	filePath = ks.keyFilePath(name)
	if err := ks.saveSeedToFile(filePath, seed, overwrite); err != nil {
		return "", "", err
	}
	id, err := NewEd25519Identity(seed)
	if err != nil {
		return "", "", err
	}
	return id.PublicKeyString(), filePath, nil
}

// Load resolves a signing identity. Exactly one of seedHex, name, or
// keyFile selects the seed source; seedHex wins, then keyFile, then name.
func (ks *KeyStore) Load(seedHex, name, keyFile string) (Identity, error) {
	var seed []byte
	var err error
	switch {
	case seedHex != "":
		seed, err = ParseSeedHex(seedHex)
	case keyFile != "":
		seed, err = ks.loadSeedFromFile(keyFile)
	case name != "":
		if err := CheckKeyName(name); err != nil {
			return nil, err
		}
		seed, err = ks.loadSeedFromFile(ks.keyFilePath(name))
	default:
		return nil, errors.New("no signer provided")
	}
	if err != nil {
		return nil, err
	}
	return NewEd25519Identity(seed)
}

// Export returns the public key string for a stored seed.
func (ks *KeyStore) Export(name string) (string, error) {
	if err := CheckKeyName(name); err != nil {
		return "", err
	}
	seed, err := ks.loadSeedFromFile(ks.keyFilePath(name))
	if err != nil {
		return "", err
	}
	id, err := NewEd25519Identity(seed)
	if err != nil {
		return "", err
	}
	return id.PublicKeyString(), nil
}

// List enumerates stored identities with their public keys.
func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []KeyEntry
	for _, name := range names {
		pub, err := ks.Export(name)
		if err != nil {
			// Skip directories without a readable seed file.
			continue
		}
		result = append(result, KeyEntry{Name: name, PublicKey: pub})
	}
	return result, nil
}
