package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrGatewayUnavailable = errors.New("ledger gateway unavailable")
	ErrAlreadySubmitting  = errors.New("submission already in flight")
	ErrEventsUnsupported  = errors.New("settlement events not supported by gateway")
)

// ErrorKind classifies a failed claim action for user-facing handling.
type ErrorKind string

const (
	KindAlreadyClaimed     ErrorKind = "already_claimed"
	KindNotEligible        ErrorKind = "not_eligible"
	KindSeasonNotFinalized ErrorKind = "season_not_finalized"
	KindNotFunded          ErrorKind = "not_funded"
	KindUserRejected       ErrorKind = "user_rejected"
	KindInsufficientGas    ErrorKind = "insufficient_gas"
	KindGatewayUnavailable ErrorKind = "gateway_unavailable"
	KindAlreadySubmitting  ErrorKind = "already_submitting"
	KindTimeout            ErrorKind = "timeout"
	KindUnknown            ErrorKind = "unknown"
)

// ClaimError is a classified submission failure. Message is bounded in length
// and safe to surface to the user; Err retains the original cause.
type ClaimError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ClaimError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ClaimError) Unwrap() error { return e.Err }

// RevertCode is a structured revert reason supplied by the ledger client when
// it can decode one. Substring matching of raw revert text is the documented
// fallback for transactions where no code is available.
type RevertCode string

const (
	RevertAlreadyClaimed     RevertCode = "ALREADY_CLAIMED"
	RevertNotEligible        RevertCode = "NOT_ELIGIBLE"
	RevertSeasonNotFinalized RevertCode = "SEASON_NOT_FINALIZED"
	RevertNotFunded          RevertCode = "NOT_FUNDED"
)

// RevertError is returned by the gateway when a claim transaction reverts.
// Code is empty when the ledger only supplied untyped revert text.
type RevertError struct {
	Code   RevertCode
	Reason string
}

func (e *RevertError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ledger revert %s: %s", e.Code, e.Reason)
	}
	return "ledger revert: " + e.Reason
}
