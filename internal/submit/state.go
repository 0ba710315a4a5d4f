// Package submit tracks the per-claim submission lifecycle and drives
// at-most-once claim transactions against the ledger.
package submit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/winfall/claimkeeper/internal/domain"
)

// watchBufferSize is the per-watcher channel buffer. Slow watchers drop
// updates rather than block a transition.
const watchBufferSize = 64

type entry struct {
	status domain.SubmissionStatus
	txHash string
	gen    uint64 // bumped on every transition; guards delayed reversions
}

// State is the session-scoped submission state map. It is the only mutable
// shared resource of the subsystem and is mutated exclusively through its
// transition methods, which enforce the at-most-one-in-flight invariant at a
// single choke point.
type State struct {
	mu       sync.Mutex
	entries  map[domain.ClaimIdentity]*entry
	watchers map[int]chan domain.SubmissionUpdate
	nextID   int
	logger   *slog.Logger
}

// NewState creates an empty State.
func NewState(logger *slog.Logger) *State {
	return &State{
		entries:  make(map[domain.ClaimIdentity]*entry),
		watchers: make(map[int]chan domain.SubmissionUpdate),
		logger:   logger.With(slog.String("component", "submission_state")),
	}
}

// Begin transitions the identity to Pending. It returns
// domain.ErrAlreadySubmitting when a submission is already in flight and a
// ClaimError of kind AlreadyClaimed when the identity was confirmed this
// session. Failed identities revert to Idle and remain retryable.
func (s *State) Begin(id domain.ClaimIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.entries[id]
	if ent == nil {
		ent = &entry{status: domain.SubmissionIdle}
		s.entries[id] = ent
	}

	switch ent.status {
	case domain.SubmissionPending:
		return domain.ErrAlreadySubmitting
	case domain.SubmissionConfirmed:
		return &domain.ClaimError{Kind: domain.KindAlreadyClaimed, Message: "claim already settled this session"}
	}

	ent.status = domain.SubmissionPending
	ent.gen++
	s.broadcastLocked(domain.SubmissionUpdate{Identity: id, Status: domain.SubmissionPending, At: time.Now().UTC()})
	return nil
}

// Confirm transitions a Pending identity to Confirmed with its transaction
// hash. Confirmed identities are suppressed from future discovery results.
func (s *State) Confirm(id domain.ClaimIdentity, txHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.entries[id]
	if ent == nil || ent.status != domain.SubmissionPending {
		s.logger.Warn("confirm on non-pending identity", slog.String("identity", id.String()))
		return
	}
	ent.status = domain.SubmissionConfirmed
	ent.txHash = txHash
	ent.gen++
	s.broadcastLocked(domain.SubmissionUpdate{Identity: id, Status: domain.SubmissionConfirmed, TxHash: txHash, At: time.Now().UTC()})
}

// Fail reverts a Pending identity to Idle so the claim remains actionable.
// The classified kind is carried on the broadcast for the presentation layer.
func (s *State) Fail(id domain.ClaimIdentity, kind domain.ErrorKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.entries[id]
	if ent == nil || ent.status != domain.SubmissionPending {
		return
	}
	ent.status = domain.SubmissionIdle
	ent.gen++
	s.broadcastLocked(domain.SubmissionUpdate{Identity: id, Status: domain.SubmissionFailed, Kind: kind, At: time.Now().UTC()})
}

// ReleaseAfter keeps a timed-out identity Pending for a bounded grace period,
// then reverts it to Idle with the given kind so the user can retry rather
// than being stuck. The reversion is generation-guarded: if the identity
// transitions for any other reason first (confirm, settlement event), the
// delayed release is a no-op.
func (s *State) ReleaseAfter(id domain.ClaimIdentity, grace time.Duration, kind domain.ErrorKind) {
	s.mu.Lock()
	ent := s.entries[id]
	if ent == nil || ent.status != domain.SubmissionPending {
		s.mu.Unlock()
		return
	}
	gen := ent.gen
	s.mu.Unlock()

	time.AfterFunc(grace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		ent := s.entries[id]
		if ent == nil || ent.status != domain.SubmissionPending || ent.gen != gen {
			return
		}
		ent.status = domain.SubmissionIdle
		ent.gen++
		s.broadcastLocked(domain.SubmissionUpdate{Identity: id, Status: domain.SubmissionFailed, Kind: kind, At: time.Now().UTC()})
	})
}

// MarkSettled records an out-of-band settlement (observed via ledger event)
// regardless of the identity's current status, so the next discovery pass
// drops it even before the read path converges.
func (s *State) MarkSettled(id domain.ClaimIdentity, txHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.entries[id]
	if ent == nil {
		ent = &entry{}
		s.entries[id] = ent
	}
	if ent.status == domain.SubmissionConfirmed {
		return
	}
	ent.status = domain.SubmissionConfirmed
	ent.txHash = txHash
	ent.gen++
	s.broadcastLocked(domain.SubmissionUpdate{Identity: id, Status: domain.SubmissionConfirmed, TxHash: txHash, At: time.Now().UTC()})
}

// Status returns the identity's current status; unknown identities are Idle.
func (s *State) Status(id domain.ClaimIdentity) domain.SubmissionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent := s.entries[id]; ent != nil {
		return ent.status
	}
	return domain.SubmissionIdle
}

// TxHash returns the transaction hash recorded for a confirmed identity.
func (s *State) TxHash(id domain.ClaimIdentity) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent := s.entries[id]; ent != nil {
		return ent.txHash
	}
	return ""
}

// IsSettled implements discovery.SettledFilter.
func (s *State) IsSettled(id domain.ClaimIdentity) bool {
	return s.Status(id) == domain.SubmissionConfirmed
}

// Watch returns a channel of state transitions. The channel is closed and the
// watcher removed when stop is called.
func (s *State) Watch() (<-chan domain.SubmissionUpdate, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan domain.SubmissionUpdate, watchBufferSize)
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w)
		}
	}
	return ch, stop
}

// Reset discards all entries. Called when the active account or network
// changes; the session-scoped cache must not survive either.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[domain.ClaimIdentity]*entry)
}

func (s *State) broadcastLocked(u domain.SubmissionUpdate) {
	for _, ch := range s.watchers {
		select {
		case ch <- u:
		default:
			// Watcher is not keeping up; drop rather than block transitions.
		}
	}
}
