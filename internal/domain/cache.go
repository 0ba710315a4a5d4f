package domain

import (
	"context"
	"math/big"
)

// ClaimCache stores the grouped discovery result per account so the
// presentation layer does not trigger a full ledger fan-out on every render.
// Entries are invalidated after a confirmed submission or a matching
// settlement event.
type ClaimCache interface {
	Set(ctx context.Context, account string, groups []SeasonClaims) error
	Get(ctx context.Context, account string) ([]SeasonClaims, error)
	Invalidate(ctx context.Context, account string) error
}

// BalanceCache stores the account's spendable balance so a payout is
// reflected without a full reload.
type BalanceCache interface {
	Set(ctx context.Context, account string, balance *big.Int) error
	Get(ctx context.Context, account string) (*big.Int, error)
	Invalidate(ctx context.Context, account string) error
}

// SignalBus is the pub/sub channel over which the coordinator publishes
// invalidation and submission-state signals and the presentation layer
// subscribes. It decouples the coordinator from any specific caching or UI
// stack.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Bus channel names shared by the coordinator, event listener, and hub.
const (
	ChannelClaimsInvalidated = "claims:invalidated"
	ChannelSubmissionState   = "claims:submission"
)
