// Package claim implements the canonical claim payload of the submission
// protocol: the structured assertion a miner signs and a verifier re-derives.
package claim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// DigestHexLen is the width of the artifact content digest field: a sha-256
// digest rendered as lowercase hex.
const DigestHexLen = 64

// Claim is the assertion made by a submitter about one training run.
//
// A Claim is immutable once its canonical bytes have been computed: changing
// any field invalidates every prior signature over it.
type Claim struct {
	// TaskID is the externally assigned task identifier. Opaque.
	TaskID string

	// MinerID identifies the submitter; it is bound 1:1 to a public key
	// out of band (see keys.Directory).
	MinerID int64

	// Performance is the claimed score of the training run.
	Performance float64

	// ArtifactHash is the lowercase hex sha-256 digest of the artifact
	// bytes transmitted alongside the claim.
	ArtifactHash string

	// Hyperparameters is the exact training configuration used to produce
	// the artifact. Must be a map value.
	Hyperparameters Value

	// Timestamp is submitter-supplied unix seconds; the verifier enforces
	// a freshness window around its own clock.
	Timestamp int64

	// Nonce is a submitter-supplied random 64-bit value, unique per
	// submission for a given miner. The verifier rejects reuse.
	Nonce uint64
}

// Wire field names. These are part of the protocol contract.
const (
	FieldTaskID          = "task_id"
	FieldMinerID         = "miner_id"
	FieldPerformance     = "performance"
	FieldArtifactHash    = "artifact_hash"
	FieldHyperparameters = "hyperparameters"
	FieldTimestamp       = "timestamp"
	FieldNonce           = "nonce"
)

// Validate checks field-shape invariants that must hold before a claim may
// be canonicalized, signed, or accepted.
func (c *Claim) Validate() error {
	if c == nil {
		return newError(KindValidation, "CW-VAL-000", "nil claim")
	}
	if c.TaskID == "" {
		return newError(KindValidation, "CW-VAL-001", "empty task_id")
	}
	if c.MinerID <= 0 {
		return newError(KindValidation, "CW-VAL-002", "miner_id must be positive")
	}
	if math.IsNaN(c.Performance) || math.IsInf(c.Performance, 0) {
		return newError(KindValidation, "CW-VAL-003", "performance must be finite")
	}
	if !isHexDigest(c.ArtifactHash) {
		return newError(KindValidation, "CW-VAL-004",
			fmt.Sprintf("artifact_hash must be %d lowercase hex chars", DigestHexLen))
	}
	if c.Hyperparameters.Kind() != KindMap {
		return newError(KindValidation, "CW-VAL-005", "hyperparameters must be an object")
	}
	if c.Timestamp <= 0 {
		return newError(KindValidation, "CW-VAL-006", "timestamp must be positive unix seconds")
	}
	return nil
}

func (c *Claim) value() Value {
	return Map(
		Entry{Key: FieldArtifactHash, Value: String(c.ArtifactHash)},
		Entry{Key: FieldHyperparameters, Value: c.Hyperparameters},
		Entry{Key: FieldMinerID, Value: Int(c.MinerID)},
		Entry{Key: FieldNonce, Value: Uint(c.Nonce)},
		Entry{Key: FieldPerformance, Value: Float(c.Performance)},
		Entry{Key: FieldTaskID, Value: String(c.TaskID)},
		Entry{Key: FieldTimestamp, Value: Int(c.Timestamp)},
	)
}

// CanonicalBytes returns the unique deterministic serialization of the
// claim. This is the exact byte sequence covered by the detached signature
// on both the submitter and verifier sides.
func (c *Claim) CanonicalBytes() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return Canonical(c.value())
}

// PayloadJSON returns the claim encoded for the wire `payload` part.
//
// The wire bytes happen to be canonical, but the verifier never relies on
// that: it always re-derives canonical bytes from the parsed fields, so a
// transport that re-formats the JSON cannot break a valid signature.
func (c *Claim) PayloadJSON() ([]byte, error) {
	return c.CanonicalBytes()
}

type payloadJSON struct {
	TaskID          *string         `json:"task_id"`
	MinerID         *int64          `json:"miner_id"`
	Performance     *float64        `json:"performance"`
	ArtifactHash    *string         `json:"artifact_hash"`
	Hyperparameters json.RawMessage `json:"hyperparameters"`
	Timestamp       *int64          `json:"timestamp"`
	Nonce           *uint64         `json:"nonce"`
}

// ParsePayload decodes a wire payload into a Claim.
//
// Parsing is strict: unknown fields, missing fields, duplicate
// hyperparameter keys, and trailing data are all rejected. Malformed input
// fails here, before any cryptographic work.
func ParsePayload(data []byte) (*Claim, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var p payloadJSON
	if err := dec.Decode(&p); err != nil {
		return nil, wrapError(KindParse, "CW-PAYLOAD-001", "invalid payload JSON", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, newError(KindParse, "CW-PAYLOAD-002", "trailing data after payload")
	}

	missing := ""
	switch {
	case p.TaskID == nil:
		missing = FieldTaskID
	case p.MinerID == nil:
		missing = FieldMinerID
	case p.Performance == nil:
		missing = FieldPerformance
	case p.ArtifactHash == nil:
		missing = FieldArtifactHash
	case p.Hyperparameters == nil:
		missing = FieldHyperparameters
	case p.Timestamp == nil:
		missing = FieldTimestamp
	case p.Nonce == nil:
		missing = FieldNonce
	}
	if missing != "" {
		return nil, newError(KindParse, "CW-PAYLOAD-003", "missing field "+missing)
	}

	hyper, err := ParseValue(p.Hyperparameters)
	if err != nil {
		return nil, err
	}
	if hyper.Kind() != KindMap {
		return nil, newError(KindParse, "CW-PAYLOAD-004", "hyperparameters must be an object")
	}

	c := &Claim{
		TaskID:          *p.TaskID,
		MinerID:         *p.MinerID,
		Performance:     *p.Performance,
		ArtifactHash:    *p.ArtifactHash,
		Hyperparameters: hyper,
		Timestamp:       *p.Timestamp,
		Nonce:           *p.Nonce,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func isHexDigest(s string) bool {
	if len(s) != DigestHexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return false
	}
	return true
}
