// Package digest computes content digests of artifact byte streams.
//
// Digests are streamed with bounded memory so artifact size never bounds
// process memory, and rendered as lowercase hex of fixed width.
package digest

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"golang.org/x/crypto/sha3"
)

// Alg names a supported digest algorithm.
type Alg string

const (
	SHA256  Alg = "sha256"
	SHA512  Alg = "sha512"
	SHA3256 Alg = "sha3-256"
)

// Default is the protocol's artifact digest algorithm. Its hex rendering is
// exactly claim.DigestHexLen characters wide.
const Default = SHA256

// New returns a fresh hash.Hash for alg.
func New(alg Alg) (hash.Hash, error) {
	switch alg {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case SHA3256:
		return sha3.New256(), nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm %q", alg)
	}
}

// HexLen returns the hex-rendered digest width for alg.
func HexLen(alg Alg) (int, error) {
	h, err := New(alg)
	if err != nil {
		return 0, err
	}
	return hex.EncodedLen(h.Size()), nil
}

// SumReader streams r through alg and returns the lowercase hex digest.
//
// The reader is consumed to EOF; any read error is returned as-is so a
// partial read can never silently produce a digest over a truncated stream.
func SumReader(alg Alg, r io.Reader) (string, error) {
	h, err := New(alg)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumBytes returns the lowercase hex digest of b.
func SumBytes(alg Alg, b []byte) (string, error) {
	h, err := New(alg)
	if err != nil {
		return "", err
	}
	_, _ = h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile streams the file at path and returns its lowercase hex digest.
// Failures carry the originating path.
func SumFile(alg Alg, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sum, err := SumReader(alg, f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}
