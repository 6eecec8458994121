// Package memory provides an in-process CAS, used by tests and by the
// daemon when no ledger directory is configured.
package memory

import (
	"sync"

	"github.com/ipfs/go-cid"

	"claimwire.io/claimwire/cidutil"
	"claimwire.io/claimwire/storage"
)

// CAS is a mutex-guarded in-memory content-addressable store.
// Safe for concurrent use.
type CAS struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
}

func New() *CAS {
	return &CAS{objects: make(map[cid.Cid][]byte)}
}

func (c *CAS) Put(bytes []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}
	cp := append([]byte(nil), bytes...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.objects[id]; !ok {
		c.objects[id] = cp
	}
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.objects[id]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	_, ok := c.objects[id]
	c.mu.RUnlock()
	return ok
}
