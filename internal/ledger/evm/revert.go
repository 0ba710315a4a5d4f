package evm

import (
	"errors"
	"strings"

	"github.com/winfall/claimkeeper/internal/domain"
)

// knownRevertCodes are the structured revert identifiers the deployed
// contracts revert with. When the revert text is exactly one of these, the
// gateway surfaces a typed code; otherwise only the raw reason is carried and
// classification falls back to text matching upstream.
var knownRevertCodes = map[string]domain.RevertCode{
	"ALREADY_CLAIMED":      domain.RevertAlreadyClaimed,
	"NOT_ELIGIBLE":         domain.RevertNotEligible,
	"SEASON_NOT_FINALIZED": domain.RevertSeasonNotFinalized,
	"NOT_FUNDED":           domain.RevertNotFunded,
}

// parseRevert converts an RPC error into a *domain.RevertError when the node
// reported an execution revert. Non-revert errors pass through unchanged.
func parseRevert(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	idx := strings.Index(msg, "execution reverted")
	if idx < 0 {
		return err
	}

	reason := strings.TrimSpace(strings.TrimPrefix(msg[idx+len("execution reverted"):], ":"))
	rev := &domain.RevertError{Reason: reason}
	if code, ok := knownRevertCodes[reason]; ok {
		rev.Code = code
	}
	return rev
}

func asRevert(err error, target **domain.RevertError) bool {
	return errors.As(err, target)
}
