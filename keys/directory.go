package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrUnknownMiner reports a miner ID with no registered public key.
var ErrUnknownMiner = errors.New("keys: unknown miner")

// Directory binds miner IDs to public key strings.
//
// The binding is established out of band (registration is not part of this
// protocol); the verifier only reads it. A Directory is immutable after
// construction and safe for concurrent use.
type Directory struct {
	byMiner map[int64]string
}

// NewDirectory builds a directory from an explicit binding table. Every
// public key is shape-checked up front so a malformed registry fails at
// startup rather than per submission.
func NewDirectory(bindings map[int64]string) (*Directory, error) {
	byMiner := make(map[int64]string, len(bindings))
	for id, pub := range bindings {
		if id <= 0 {
			return nil, fmt.Errorf("invalid miner id %d", id)
		}
		if _, _, err := PublicKeyBytes(pub); err != nil {
			return nil, fmt.Errorf("miner %d: %w", id, err)
		}
		byMiner[id] = pub
	}
	return &Directory{byMiner: byMiner}, nil
}

// LoadDirectory reads a JSON registry file mapping miner IDs to public key
// strings, e.g. {"1": "ed25519:..."}.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse key registry %s: %w", path, err)
	}
	bindings := make(map[int64]string, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse key registry %s: invalid miner id %q", path, k)
		}
		bindings[id] = v
	}
	d, err := NewDirectory(bindings)
	if err != nil {
		return nil, fmt.Errorf("key registry %s: %w", path, err)
	}
	return d, nil
}

// PublicKey resolves the public key bound to minerID.
func (d *Directory) PublicKey(minerID int64) (string, error) {
	if d == nil {
		return "", ErrUnknownMiner
	}
	pub, ok := d.byMiner[minerID]
	if !ok {
		return "", ErrUnknownMiner
	}
	return pub, nil
}

// Len returns the number of registered miners.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byMiner)
}
