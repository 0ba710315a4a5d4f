package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/winfall/claimkeeper/internal/domain"
)

func TestClassifyRevertCodes(t *testing.T) {
	tests := []struct {
		code domain.RevertCode
		want domain.ErrorKind
	}{
		{domain.RevertAlreadyClaimed, domain.KindAlreadyClaimed},
		{domain.RevertNotEligible, domain.KindNotEligible},
		{domain.RevertSeasonNotFinalized, domain.KindSeasonNotFinalized},
		{domain.RevertNotFunded, domain.KindNotFunded},
	}

	for _, tt := range tests {
		err := fmt.Errorf("submit: %w", &domain.RevertError{Code: tt.code, Reason: string(tt.code)})
		got := Classify(err)
		if got.Kind != tt.want {
			t.Errorf("Classify(%s) kind = %s, want %s", tt.code, got.Kind, tt.want)
		}
	}
}

func TestClassifyRevertReasonFallback(t *testing.T) {
	tests := []struct {
		reason string
		want   domain.ErrorKind
	}{
		{"execution reverted: already claimed", domain.KindAlreadyClaimed},
		{"execution reverted: caller is not winner", domain.KindNotEligible},
		{"execution reverted: not a participant", domain.KindNotEligible},
		{"execution reverted: season not finalized", domain.KindSeasonNotFinalized},
		{"execution reverted: market not settled", domain.KindSeasonNotFinalized},
		{"execution reverted: prize not funded", domain.KindNotFunded},
		{"user rejected the request", domain.KindUserRejected},
		{"insufficient funds for gas * price + value", domain.KindInsufficientGas},
		{"gas required exceeds allowance", domain.KindInsufficientGas},
		{"something novel happened", domain.KindUnknown},
	}

	for _, tt := range tests {
		got := Classify(errors.New(tt.reason))
		if got.Kind != tt.want {
			t.Errorf("Classify(%q) kind = %s, want %s", tt.reason, got.Kind, tt.want)
		}
	}
}

func TestClassifySentinels(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got.Kind != domain.KindTimeout {
		t.Errorf("deadline kind = %s, want %s", got.Kind, domain.KindTimeout)
	}
	if got := Classify(domain.ErrAlreadySubmitting); got.Kind != domain.KindAlreadySubmitting {
		t.Errorf("already submitting kind = %s", got.Kind)
	}
	if got := Classify(fmt.Errorf("enumerate: %w", domain.ErrGatewayUnavailable)); got.Kind != domain.KindGatewayUnavailable {
		t.Errorf("gateway kind = %s", got.Kind)
	}
}

func TestClassifyPassThrough(t *testing.T) {
	orig := &domain.ClaimError{Kind: domain.KindNotFunded, Message: "prize pool not funded"}
	got := Classify(fmt.Errorf("wrapped: %w", orig))
	if got != orig {
		t.Errorf("classified errors must pass through unchanged, got %+v", got)
	}
}

func TestClassifyTruncatesLongMessages(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := Classify(errors.New(long))
	if got.Kind != domain.KindUnknown {
		t.Fatalf("kind = %s, want unknown", got.Kind)
	}
	if len(got.Message) > maxReasonLen+3 {
		t.Errorf("message length = %d, want at most %d", len(got.Message), maxReasonLen+3)
	}
}

func TestClassifyRevertCodeBeatsReason(t *testing.T) {
	// A structured code wins even when the raw reason text would match a
	// different kind.
	err := &domain.RevertError{Code: domain.RevertNotFunded, Reason: "already claimed"}
	got := Classify(err)
	if got.Kind != domain.KindNotFunded {
		t.Errorf("kind = %s, want structured code to win", got.Kind)
	}
}
