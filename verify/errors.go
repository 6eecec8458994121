package verify

import (
	"errors"
	"fmt"
)

// Reason is the specific cause of a rejection. Reasons are stable wire
// identifiers: callers branch on Reason, never on message text.
//
// A rejection is final for the submission as sent — retrying without
// changing the payload cannot succeed. Transport failures are not Reasons;
// they surface as ordinary errors and may be retried.
type Reason string

const (
	ReasonIncomplete       Reason = "incomplete_submission"
	ReasonMalformedPayload Reason = "malformed_payload"
	ReasonUnknownMiner     Reason = "unknown_miner"
	ReasonBadHash          Reason = "artifact_hash_mismatch"
	ReasonBadSignature     Reason = "bad_signature"
	ReasonStaleTimestamp   Reason = "stale_timestamp"
	ReasonReplay           Reason = "replayed_nonce"
)

// RejectionError reports a REJECTED verification outcome with its reason.
type RejectionError struct {
	Reason  Reason
	Message string
	Cause   error
}

func (e *RejectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *RejectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func reject(reason Reason, msg string) error {
	return &RejectionError{Reason: reason, Message: msg}
}

func rejectWrap(reason Reason, msg string, cause error) error {
	return &RejectionError{Reason: reason, Message: msg, Cause: cause}
}

// ReasonOf extracts the rejection reason from err, if it carries one.
func ReasonOf(err error) (Reason, bool) {
	var e *RejectionError
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Reason, true
}

// IsRejection reports whether err is a REJECTED outcome (as opposed to an
// internal or transport failure).
func IsRejection(err error) bool {
	_, ok := ReasonOf(err)
	return ok
}
