package domain

import "time"

// SubmissionStatus is the lifecycle state of one claim submission. It is an
// advisory, session-scoped cache; the ledger's claimed flags remain the
// source of truth and are re-checked on every discovery pass.
type SubmissionStatus string

const (
	SubmissionIdle      SubmissionStatus = "idle"
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionConfirmed SubmissionStatus = "confirmed"
	SubmissionFailed    SubmissionStatus = "failed"
)

// SubmissionUpdate is broadcast to watchers on every state transition, for
// button enable/disable and success/pending indicators.
type SubmissionUpdate struct {
	Identity ClaimIdentity    `json:"identity"`
	Status   SubmissionStatus `json:"status"`
	TxHash   string           `json:"tx_hash,omitempty"`
	Kind     ErrorKind        `json:"error_kind,omitempty"`
	At       time.Time        `json:"at"`
}
