// Package verify implements the server-side dual of the submission
// protocol: recompute the artifact digest, re-derive canonical claim bytes,
// check the detached signature, and enforce freshness and replay rules.
//
// A submission is either ACCEPTED (a Receipt is returned) or REJECTED with
// a specific Reason. There is no partial-accept state.
package verify

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"claimwire.io/claimwire/cidutil"
	"claimwire.io/claimwire/claim"
	"claimwire.io/claimwire/digest"
	"claimwire.io/claimwire/keys"
	"claimwire.io/claimwire/storage"
	"claimwire.io/claimwire/submission"
)

// Window bounds the accepted distance between a claim timestamp and the
// verifier's clock. Values follow the original deployment defaults.
type Window struct {
	// MaxBehind is how far in the past a timestamp may lie.
	MaxBehind time.Duration
	// MaxAhead is the allowed forward clock skew.
	MaxAhead time.Duration
}

// DefaultWindow accepts timestamps up to 5 minutes old with 1 minute of
// forward skew.
var DefaultWindow = Window{MaxBehind: 5 * time.Minute, MaxAhead: time.Minute}

// Verifier checks submissions against a key directory and replay store.
//
// Verify may be called concurrently; the nonce store provides the atomic
// insert-if-absent that makes concurrent replay checks safe.
type Verifier struct {
	Keys   *keys.Directory
	Nonces NonceStore
	Window Window

	// Ledger, when set, receives the canonical claim bytes and artifact
	// bytes of every accepted submission.
	Ledger storage.CAS

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewVerifier constructs a Verifier with the default freshness window.
func NewVerifier(dir *keys.Directory, nonces NonceStore) (*Verifier, error) {
	if dir == nil {
		return nil, errors.New("verify: missing key directory")
	}
	if nonces == nil {
		return nil, errors.New("verify: missing nonce store")
	}
	return &Verifier{Keys: dir, Nonces: nonces, Window: DefaultWindow}, nil
}

// Receipt identifies an accepted submission by the content of what was
// accepted: the CID of the canonical claim bytes and of the artifact.
type Receipt struct {
	ClaimCID    string
	ArtifactCID string
	MinerID     int64
	TaskID      string
	AcceptedAt  time.Time
}

// Verify checks one submission end to end.
//
// Check order: completeness, payload shape, artifact hash binding,
// signature, freshness, replay. The nonce is consumed only after every
// other check passes, so a forged submission cannot burn an honest miner's
// nonce.
func (v *Verifier) Verify(env *submission.Envelope) (*Receipt, error) {
	if err := env.Validate(); err != nil {
		return nil, rejectWrap(ReasonIncomplete, "missing submission part", err)
	}

	c, err := claim.ParsePayload(env.Payload)
	if err != nil {
		return nil, rejectWrap(ReasonMalformedPayload, "invalid payload", err)
	}

	sum, err := digest.SumReader(digest.Default, bytes.NewReader(env.Artifact.Bytes))
	if err != nil {
		return nil, fmt.Errorf("verify: hash artifact: %w", err)
	}
	if sum != c.ArtifactHash {
		return nil, reject(ReasonBadHash, "artifact digest does not match claim")
	}

	pub, err := v.Keys.PublicKey(c.MinerID)
	if err != nil {
		return nil, rejectWrap(ReasonUnknownMiner, fmt.Sprintf("no key for miner %d", c.MinerID), err)
	}

	canonical, err := c.CanonicalBytes()
	if err != nil {
		// ParsePayload validated the claim; failure here is internal.
		return nil, fmt.Errorf("verify: canonicalize claim: %w", err)
	}
	if err := keys.VerifyHexSignature(pub, canonical, env.Signature); err != nil {
		return nil, rejectWrap(ReasonBadSignature, "signature check failed", err)
	}

	now := v.now()
	ts := time.Unix(c.Timestamp, 0)
	window := v.Window
	if window == (Window{}) {
		window = DefaultWindow
	}
	if now.Sub(ts) > window.MaxBehind || ts.Sub(now) > window.MaxAhead {
		return nil, reject(ReasonStaleTimestamp, "timestamp outside freshness window")
	}

	if !v.Nonces.Remember(c.MinerID, c.Nonce, now) {
		return nil, reject(ReasonReplay, "nonce already consumed for this miner")
	}

	if v.Ledger != nil {
		if _, err := v.Ledger.Put(canonical); err != nil {
			return nil, fmt.Errorf("verify: persist claim: %w", err)
		}
		if _, err := v.Ledger.Put(env.Artifact.Bytes); err != nil {
			return nil, fmt.Errorf("verify: persist artifact: %w", err)
		}
	}

	return &Receipt{
		ClaimCID:    cidutil.CIDv1RawSHA256(canonical),
		ArtifactCID: cidutil.CIDv1RawSHA256(env.Artifact.Bytes),
		MinerID:     c.MinerID,
		TaskID:      c.TaskID,
		AcceptedAt:  now,
	}, nil
}

// VerifyFramed decodes a Marshal-framed submission and verifies it.
func (v *Verifier) VerifyFramed(data []byte) (*Receipt, error) {
	env, err := submission.Unmarshal(data)
	if err != nil {
		if errors.Is(err, submission.ErrIncomplete) {
			return nil, rejectWrap(ReasonIncomplete, "missing submission part", err)
		}
		return nil, rejectWrap(ReasonMalformedPayload, "undecodable submission", err)
	}
	return v.Verify(env)
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}
