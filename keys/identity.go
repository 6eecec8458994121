package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// Supported signature algorithm names.
const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

// ErrSignatureInvalid reports a well-formed signature that did not verify.
var ErrSignatureInvalid = errors.New("keys: signature did not verify")

// Identity is a miner's signing identity.
//
// Sign produces a detached signature over canonical claim bytes: the signed
// message is sha256(canonical), and the signature is rendered as lowercase
// hex for the wire. Implementations must refuse empty input and must never
// expose private key material through errors.
type Identity interface {
	Alg() string

	// PublicKeyString renders the public half as "<alg>:" + base64.
	PublicKeyString() string

	Sign(canonical []byte) (string, error)
}

type ed25519Identity struct {
	priv ed25519.PrivateKey
}

// NewEd25519Identity constructs an identity from a raw 32-byte seed.
func NewEd25519Identity(seed []byte) (Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &ed25519Identity{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// GenerateEd25519Identity creates a fresh identity from rand.
func GenerateEd25519Identity(rand io.Reader) (Identity, []byte, error) {
	_, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, nil, err
	}
	return &ed25519Identity{priv: priv}, priv.Seed(), nil
}

func (id *ed25519Identity) Alg() string { return AlgEd25519 }

func (id *ed25519Identity) PublicKeyString() string {
	pub := id.priv.Public().(ed25519.PublicKey)
	return AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(pub)
}

func (id *ed25519Identity) Sign(canonical []byte) (string, error) {
	if len(canonical) == 0 {
		return "", errors.New("refusing to sign empty canonical bytes")
	}
	if len(id.priv) != ed25519.PrivateKeySize {
		return "", errors.New("malformed private key")
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(ed25519.Sign(id.priv, digest[:])), nil
}

type dilithium3Identity struct {
	priv *mode3.PrivateKey
	pub  *mode3.PublicKey
}

// NewDilithium3Identity wraps an existing dilithium3 key pair.
func NewDilithium3Identity(pub *mode3.PublicKey, priv *mode3.PrivateKey) (Identity, error) {
	if pub == nil || priv == nil {
		return nil, errors.New("missing dilithium3 key material")
	}
	return &dilithium3Identity{priv: priv, pub: pub}, nil
}

// GenerateDilithium3Identity creates a fresh post-quantum identity from rand.
func GenerateDilithium3Identity(rand io.Reader) (Identity, error) {
	pub, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &dilithium3Identity{priv: priv, pub: pub}, nil
}

func (id *dilithium3Identity) Alg() string { return AlgDilithium3 }

func (id *dilithium3Identity) PublicKeyString() string {
	b, err := id.pub.MarshalBinary()
	if err != nil {
		return ""
	}
	return AlgDilithium3 + ":" + base64.StdEncoding.EncodeToString(b)
}

func (id *dilithium3Identity) Sign(canonical []byte) (string, error) {
	if len(canonical) == 0 {
		return "", errors.New("refusing to sign empty canonical bytes")
	}
	digest := sha256.Sum256(canonical)
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(id.priv, digest[:], sig)
	return hex.EncodeToString(sig), nil
}

// PublicKeyBytes decodes a "<alg>:<base64>" public key string and validates
// its shape for the named algorithm.
func PublicKeyBytes(publicKey string) (alg string, raw []byte, err error) {
	alg, enc, ok := strings.Cut(publicKey, ":")
	if !ok {
		return "", nil, errors.New("invalid public key encoding")
	}
	raw, err = base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", nil, fmt.Errorf("invalid public key base64: %w", err)
	}
	switch alg {
	case AlgEd25519:
		if len(raw) != ed25519.PublicKeySize {
			return "", nil, errors.New("invalid ed25519 public key length")
		}
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(raw); err != nil {
			return "", nil, fmt.Errorf("invalid dilithium3 public key: %w", err)
		}
	default:
		return "", nil, fmt.Errorf("unsupported public key algorithm %q", alg)
	}
	return alg, raw, nil
}

// VerifyHexSignature is the verifier-side dual of Identity.Sign.
//
// It checks the lowercase hex signature over sha256(canonical) against the
// "<alg>:<base64>" public key. ErrSignatureInvalid reports a well-formed
// signature that simply does not verify; any other error means the key or
// signature was malformed.
func VerifyHexSignature(publicKey string, canonical []byte, sigHex string) error {
	if len(canonical) == 0 {
		return errors.New("empty canonical bytes")
	}
	alg, pub, err := PublicKeyBytes(publicKey)
	if err != nil {
		return err
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}

	digest := sha256.Sum256(canonical)
	switch alg {
	case AlgEd25519:
		if len(sig) != ed25519.SignatureSize {
			return errors.New("invalid ed25519 signature length")
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), digest[:], sig) {
			return ErrSignatureInvalid
		}
		return nil
	case AlgDilithium3:
		if len(sig) != mode3.SignatureSize {
			return errors.New("invalid dilithium3 signature length")
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return fmt.Errorf("invalid dilithium3 public key: %w", err)
		}
		if !mode3.Verify(&pk, digest[:], sig) {
			return ErrSignatureInvalid
		}
		return nil
	default:
		return fmt.Errorf("unsupported public key algorithm %q", alg)
	}
}
