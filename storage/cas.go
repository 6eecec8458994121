// Package storage defines the content-addressed ledger the verifier writes
// accepted submissions into. Claims and artifacts are stored immutably and
// keyed by the CID of their bytes, so a receipt is enough to retrieve and
// re-check exactly what was accepted.
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable storage interface.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - CIDs MUST be derived from the bytes written.
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
