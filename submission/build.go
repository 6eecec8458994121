package submission

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"claimwire.io/claimwire/artifact"
	"claimwire.io/claimwire/claim"
	"claimwire.io/claimwire/keys"
)

// Request describes one submission to build.
//
// Either Bundle (a pre-packed artifact) or Files (inputs to pack now) must
// be provided.
type Request struct {
	TaskID      string
	MinerID     int64
	Performance float64

	// Hyperparameters is the training configuration; it is both bound
	// into the claim and written into the artifact bundle.
	Hyperparameters claim.Value

	// Files are reproduction files to pack alongside hyperparameters.
	Files []artifact.File

	// ArtifactName is the filename hint for a freshly packed bundle.
	ArtifactName string

	// Bundle, when set, is used as-is instead of packing Files.
	Bundle *artifact.Bundle
}

// Builder runs the client-side submission pipeline:
// pack artifact -> hash -> build claim -> canonicalize -> sign -> assemble.
//
// A Builder holds one miner's identity and is safe for concurrent use;
// independent submissions share no mutable state.
type Builder struct {
	Identity keys.Identity

	// Rand supplies nonce entropy. Defaults to crypto/rand.
	Rand io.Reader

	// Now supplies the claim timestamp. Defaults to time.Now.
	Now func() time.Time
}

// NewBuilder constructs a Builder for one miner identity.
func NewBuilder(id keys.Identity) (*Builder, error) {
	if id == nil {
		return nil, errors.New("submission: missing identity")
	}
	return &Builder{Identity: id}, nil
}

// Build produces a complete, signed submission envelope plus the claim it
// carries. No network I/O happens here; transport is the caller's concern.
func (b *Builder) Build(req Request) (*Envelope, *claim.Claim, error) {
	if b == nil || b.Identity == nil {
		return nil, nil, errors.New("submission: missing identity")
	}

	bundle := req.Bundle
	if bundle == nil {
		var err error
		bundle, err = artifact.Build(req.ArtifactName, req.Hyperparameters, req.Files...)
		if err != nil {
			return nil, nil, err
		}
	}

	nonce, err := b.newNonce()
	if err != nil {
		return nil, nil, err
	}

	c := &claim.Claim{
		TaskID:          req.TaskID,
		MinerID:         req.MinerID,
		Performance:     req.Performance,
		ArtifactHash:    bundle.Digest,
		Hyperparameters: req.Hyperparameters,
		Timestamp:       b.now().Unix(),
		Nonce:           nonce,
	}

	canonical, err := c.CanonicalBytes()
	if err != nil {
		return nil, nil, err
	}
	sig, err := b.Identity.Sign(canonical)
	if err != nil {
		return nil, nil, fmt.Errorf("submission: sign claim: %w", err)
	}

	payload, err := c.PayloadJSON()
	if err != nil {
		return nil, nil, err
	}

	env := &Envelope{
		Payload:   payload,
		Signature: sig,
		Artifact: Artifact{
			Filename:  bundle.Filename,
			MediaType: bundle.MediaType,
			Bytes:     bundle.Bytes,
		},
	}
	if err := env.Validate(); err != nil {
		return nil, nil, err
	}
	return env, c, nil
}

func (b *Builder) newNonce() (uint64, error) {
	r := b.Rand
	if r == nil {
		r = rand.Reader
	}
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("submission: nonce entropy: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
