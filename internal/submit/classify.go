package submit

import (
	"context"
	"errors"
	"strings"

	"github.com/winfall/claimkeeper/internal/domain"
)

// maxReasonLen bounds the raw message carried on an Unknown classification.
const maxReasonLen = 160

// Classify maps a submission failure into the claim error taxonomy. Already
// classified errors pass through; structured revert codes from the ledger
// client are preferred, with substring matching of untyped revert text kept
// as the fallback in matchRevertReason.
func Classify(err error) *domain.ClaimError {
	var cerr *domain.ClaimError
	if errors.As(err, &cerr) {
		return cerr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ClaimError{Kind: domain.KindTimeout, Message: "ledger did not respond in time", Err: err}
	case errors.Is(err, domain.ErrAlreadySubmitting):
		return &domain.ClaimError{Kind: domain.KindAlreadySubmitting, Message: "a submission for this claim is already in flight", Err: err}
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return &domain.ClaimError{Kind: domain.KindGatewayUnavailable, Message: "ledger gateway unavailable", Err: err}
	}

	var rev *domain.RevertError
	if errors.As(err, &rev) {
		kind := kindFromRevertCode(rev.Code)
		if kind == domain.KindUnknown {
			kind = matchRevertReason(rev.Reason)
		}
		return &domain.ClaimError{Kind: kind, Message: truncate(rev.Reason), Err: err}
	}

	if kind := matchRevertReason(err.Error()); kind != domain.KindUnknown {
		return &domain.ClaimError{Kind: kind, Message: truncate(err.Error()), Err: err}
	}

	return &domain.ClaimError{Kind: domain.KindUnknown, Message: truncate(err.Error()), Err: err}
}

func kindFromRevertCode(code domain.RevertCode) domain.ErrorKind {
	switch code {
	case domain.RevertAlreadyClaimed:
		return domain.KindAlreadyClaimed
	case domain.RevertNotEligible:
		return domain.KindNotEligible
	case domain.RevertSeasonNotFinalized:
		return domain.KindSeasonNotFinalized
	case domain.RevertNotFunded:
		return domain.KindNotFunded
	default:
		return domain.KindUnknown
	}
}

// matchRevertReason pattern-matches untyped revert text. This is the only
// place raw revert strings are inspected; everything upstream works with
// structured codes or kinds.
func matchRevertReason(reason string) domain.ErrorKind {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "already claimed"), strings.Contains(r, "claimed already"):
		return domain.KindAlreadyClaimed
	case strings.Contains(r, "not eligible"), strings.Contains(r, "not winner"),
		strings.Contains(r, "not a participant"), strings.Contains(r, "no position"):
		return domain.KindNotEligible
	case strings.Contains(r, "not finalized"), strings.Contains(r, "not settled"),
		strings.Contains(r, "season open"), strings.Contains(r, "still open"):
		return domain.KindSeasonNotFinalized
	case strings.Contains(r, "not funded"):
		return domain.KindNotFunded
	case strings.Contains(r, "user rejected"), strings.Contains(r, "user denied"),
		strings.Contains(r, "request rejected"):
		return domain.KindUserRejected
	case strings.Contains(r, "insufficient funds"), strings.Contains(r, "insufficient balance for gas"),
		strings.Contains(r, "gas required exceeds"):
		return domain.KindInsufficientGas
	default:
		return domain.KindUnknown
	}
}

func truncate(s string) string {
	if len(s) <= maxReasonLen {
		return s
	}
	return s[:maxReasonLen] + "..."
}
