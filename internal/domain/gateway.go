package domain

import "context"

// Gateway is the read/write surface of the external settlement ledger. The
// concrete wire protocol is owned by the ledger client; callers treat it as a
// black box with latency and failure modes. All reads are independent per
// market/season and may be issued concurrently.
type Gateway interface {
	// EnumerateMarkets lists known markets, optionally restricted to the
	// given seasons. An empty filter returns all markets.
	EnumerateMarkets(ctx context.Context, seasons []uint64) ([]MarketSummary, error)

	// ReadPosition reads the account's position on one side of a market.
	ReadPosition(ctx context.Context, marketID uint64, account string, side Side) (PositionRead, error)

	// ReadSeasonPayoutState reads the per-season prize funding record.
	ReadSeasonPayoutState(ctx context.Context, seasonID uint64) (SeasonPayoutState, error)

	// IsParticipant reports whether the account is a verified past
	// participant of the season. Participation is a dedicated ledger
	// predicate, never inferred from address equality.
	IsParticipant(ctx context.Context, seasonID uint64, account string) (bool, error)

	// IsConsolationClaimed reports whether the account has already claimed
	// its consolation share for the season.
	IsConsolationClaimed(ctx context.Context, seasonID uint64, account string) (bool, error)

	// SubmitClaim submits the domain-appropriate claim transaction for the
	// identity on behalf of account and returns the transaction hash.
	// Reverts surface as *RevertError.
	SubmitClaim(ctx context.Context, identity ClaimIdentity, account string) (string, error)
}

// SettlementEvents delivers ledger-emitted settlement notifications. The
// returned channels are closed when the context is cancelled or the
// underlying subscription drops.
type SettlementEvents interface {
	SubscribeGrandClaimed(ctx context.Context) (<-chan SettlementEvent, error)
	SubscribeConsolationClaimed(ctx context.Context) (<-chan SettlementEvent, error)
}
