package submit

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/winfall/claimkeeper/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestStateLifecycle(t *testing.T) {
	s := NewState(testLogger())
	id := domain.NewGrandIdentity(1)

	if got := s.Status(id); got != domain.SubmissionIdle {
		t.Fatalf("initial status = %s, want idle", got)
	}

	if err := s.Begin(id); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if got := s.Status(id); got != domain.SubmissionPending {
		t.Fatalf("status after Begin = %s, want pending", got)
	}

	s.Confirm(id, "0xhash")
	if got := s.Status(id); got != domain.SubmissionConfirmed {
		t.Fatalf("status after Confirm = %s, want confirmed", got)
	}
	if got := s.TxHash(id); got != "0xhash" {
		t.Errorf("tx hash = %q, want 0xhash", got)
	}
	if !s.IsSettled(id) {
		t.Error("confirmed identity must report settled")
	}
}

func TestStateBeginRejectsPending(t *testing.T) {
	s := NewState(testLogger())
	id := domain.NewConsolationIdentity(3)

	if err := s.Begin(id); err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	if err := s.Begin(id); !errors.Is(err, domain.ErrAlreadySubmitting) {
		t.Errorf("second Begin = %v, want ErrAlreadySubmitting", err)
	}
}

func TestStateBeginRejectsConfirmed(t *testing.T) {
	s := NewState(testLogger())
	id := domain.NewGrandIdentity(2)

	if err := s.Begin(id); err != nil {
		t.Fatal(err)
	}
	s.Confirm(id, "0xhash")

	err := s.Begin(id)
	var cerr *domain.ClaimError
	if !errors.As(err, &cerr) || cerr.Kind != domain.KindAlreadyClaimed {
		t.Errorf("Begin on confirmed = %v, want already_claimed ClaimError", err)
	}
}

func TestStateFailRevertsToIdle(t *testing.T) {
	s := NewState(testLogger())
	id := domain.NewConsolationIdentity(1)

	if err := s.Begin(id); err != nil {
		t.Fatal(err)
	}
	s.Fail(id, domain.KindNotFunded)

	if got := s.Status(id); got != domain.SubmissionIdle {
		t.Fatalf("status after Fail = %s, want idle", got)
	}
	if err := s.Begin(id); err != nil {
		t.Errorf("failed identity must remain retryable: %v", err)
	}
}

func TestStateReleaseAfter(t *testing.T) {
	s := NewState(testLogger())
	id := domain.NewGrandIdentity(9)

	if err := s.Begin(id); err != nil {
		t.Fatal(err)
	}
	s.ReleaseAfter(id, 10*time.Millisecond, domain.KindTimeout)

	if got := s.Status(id); got != domain.SubmissionPending {
		t.Fatalf("status during grace = %s, want pending", got)
	}

	deadline := time.Now().Add(time.Second)
	for s.Status(id) != domain.SubmissionIdle {
		if time.Now().After(deadline) {
			t.Fatal("identity never released after grace period")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStateReleaseAfterGenerationGuard(t *testing.T) {
	s := NewState(testLogger())
	id := domain.NewGrandIdentity(9)

	if err := s.Begin(id); err != nil {
		t.Fatal(err)
	}
	s.ReleaseAfter(id, 20*time.Millisecond, domain.KindTimeout)

	// The settlement event lands inside the grace window; the delayed
	// release must not undo it.
	s.MarkSettled(id, "0xevent")

	time.Sleep(60 * time.Millisecond)
	if got := s.Status(id); got != domain.SubmissionConfirmed {
		t.Errorf("status = %s, delayed release must not revert a settlement", got)
	}
}

func TestStateMarkSettledFromAnyState(t *testing.T) {
	s := NewState(testLogger())

	// Unknown identity.
	id1 := domain.NewConsolationIdentity(1)
	s.MarkSettled(id1, "0xaaa")
	if got := s.Status(id1); got != domain.SubmissionConfirmed {
		t.Errorf("status = %s, want confirmed", got)
	}

	// Pending identity.
	id2 := domain.NewConsolationIdentity(2)
	if err := s.Begin(id2); err != nil {
		t.Fatal(err)
	}
	s.MarkSettled(id2, "0xbbb")
	if got := s.Status(id2); got != domain.SubmissionConfirmed {
		t.Errorf("status = %s, want confirmed", got)
	}

	// Second settlement is a no-op, the first hash wins.
	s.MarkSettled(id1, "0xother")
	if got := s.TxHash(id1); got != "0xaaa" {
		t.Errorf("tx hash = %q, want first settlement to win", got)
	}
}

func TestStateWatch(t *testing.T) {
	s := NewState(testLogger())
	id := domain.NewGrandIdentity(4)

	updates, stop := s.Watch()
	defer stop()

	if err := s.Begin(id); err != nil {
		t.Fatal(err)
	}
	s.Confirm(id, "0xhash")

	want := []domain.SubmissionStatus{domain.SubmissionPending, domain.SubmissionConfirmed}
	for i, w := range want {
		select {
		case u := <-updates:
			if u.Identity != id || u.Status != w {
				t.Errorf("update %d = %+v, want status %s", i, u, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for update %d", i)
		}
	}

	stop()
	if _, ok := <-updates; ok {
		t.Error("channel must be closed after stop")
	}
}

func TestStateReset(t *testing.T) {
	s := NewState(testLogger())
	id := domain.NewGrandIdentity(1)

	if err := s.Begin(id); err != nil {
		t.Fatal(err)
	}
	s.Confirm(id, "0xhash")
	s.Reset()

	if got := s.Status(id); got != domain.SubmissionIdle {
		t.Errorf("status after Reset = %s, want idle", got)
	}
	if err := s.Begin(id); err != nil {
		t.Errorf("Begin after Reset: %v", err)
	}
}
