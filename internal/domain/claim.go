// Package domain defines the core types shared by the claims subsystem:
// claim identities and records, season payout state, submission lifecycle,
// the error taxonomy, and the interfaces implemented by the ledger gateway,
// caches, and stores.
package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// ClaimDomain is one of the four payout categories a claim can belong to.
type ClaimDomain string

const (
	DomainMarketPayout       ClaimDomain = "market_payout"
	DomainPositionRedemption ClaimDomain = "position_redemption"
	DomainRaffleGrand        ClaimDomain = "raffle_grand"
	DomainRaffleConsolation  ClaimDomain = "raffle_consolation"
)

// Side is one of the two outcome sides of a fixed-odds market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// ClaimIdentity uniquely identifies one claimable right. All fields are
// comparable, so the struct is used directly as a map key wherever claims are
// deduplicated or tracked. Only the fields relevant to the claim's domain are
// populated: MarketID and Side for market payouts, MarketID and Player for
// position redemptions, SeasonID alone for the two raffle domains.
type ClaimIdentity struct {
	Domain   ClaimDomain `json:"domain"`
	SeasonID uint64      `json:"season_id"`
	MarketID uint64      `json:"market_id,omitempty"`
	Side     Side        `json:"side,omitempty"`
	Player   string      `json:"player,omitempty"`
}

// NewMarketPayoutIdentity builds the identity for a fixed-odds market payout.
func NewMarketPayoutIdentity(seasonID, marketID uint64, side Side) ClaimIdentity {
	return ClaimIdentity{
		Domain:   DomainMarketPayout,
		SeasonID: seasonID,
		MarketID: marketID,
		Side:     side,
	}
}

// NewRedemptionIdentity builds the identity for a position redemption on the
// given settled market against the given counterpart player. MarketID is part
// of the identity: the same counterpart can settle several markets in one
// season, and the redemption transaction is addressed per market. The address
// is lowercased so that identity equality matches ledger address semantics.
func NewRedemptionIdentity(seasonID, marketID uint64, player string) ClaimIdentity {
	return ClaimIdentity{
		Domain:   DomainPositionRedemption,
		SeasonID: seasonID,
		MarketID: marketID,
		Player:   strings.ToLower(player),
	}
}

// NewGrandIdentity builds the identity for a season's grand prize claim.
func NewGrandIdentity(seasonID uint64) ClaimIdentity {
	return ClaimIdentity{Domain: DomainRaffleGrand, SeasonID: seasonID}
}

// NewConsolationIdentity builds the identity for a season's consolation claim.
func NewConsolationIdentity(seasonID uint64) ClaimIdentity {
	return ClaimIdentity{Domain: DomainRaffleConsolation, SeasonID: seasonID}
}

// String returns a stable human-readable key, e.g. "market_payout:3:17:yes".
func (id ClaimIdentity) String() string {
	switch id.Domain {
	case DomainMarketPayout:
		return fmt.Sprintf("%s:%d:%d:%s", id.Domain, id.SeasonID, id.MarketID, id.Side)
	case DomainPositionRedemption:
		return fmt.Sprintf("%s:%d:%d:%s", id.Domain, id.SeasonID, id.MarketID, id.Player)
	default:
		return fmt.Sprintf("%s:%d", id.Domain, id.SeasonID)
	}
}

// ClaimRecord is a discovered claimable amount for one identity. Amounts are
// in the smallest ledger unit (18 decimal places) and never pass through
// floating point. A record is only surfaced when Amount > 0 and
// AlreadyClaimed is false.
type ClaimRecord struct {
	Identity       ClaimIdentity `json:"identity"`
	Amount         *big.Int      `json:"amount"`
	AlreadyClaimed bool          `json:"already_claimed"`

	// Display metadata.
	Counterpart string `json:"counterpart,omitempty"`  // redemption counterpart address
	WinningSide Side   `json:"winning_side,omitempty"` // settled market outcome
}

// Payable reports whether the record may be surfaced to the user.
func (r ClaimRecord) Payable() bool {
	return r.Amount != nil && r.Amount.Sign() > 0 && !r.AlreadyClaimed
}

// SeasonClaims groups a season's payable records for presentation.
type SeasonClaims struct {
	SeasonID uint64        `json:"season_id"`
	Records  []ClaimRecord `json:"records"`
}

// MarketSummary is the ledger's view of one enumerated market.
type MarketSummary struct {
	ID          uint64
	SeasonID    uint64
	Question    string
	Settled     bool
	WinningSide Side
	Counterpart string // counterpart player for settled markets
}

// PositionRead is a raw per-side position read from the ledger.
type PositionRead struct {
	Amount  *big.Int // staked amount
	Payout  *big.Int // computed payable amount
	Claimed bool
}

// SeasonPayoutState is the ledger's per-season prize funding record. Once
// Funded is true the state is immutable except for the claimed flags, which
// only ever transition false -> true.
type SeasonPayoutState struct {
	Funded            bool
	GrandWinner       string // empty when no winner has been drawn
	GrandAmount       *big.Int
	GrandClaimed      bool
	ConsolationAmount *big.Int // total pool, split among non-winning participants
	TotalParticipants uint64
}

// SettlementEvent is a ledger-emitted notification that a raffle claim was
// paid, either by this process or out of band.
type SettlementEvent struct {
	Domain   ClaimDomain
	SeasonID uint64
	Account  string
	Amount   *big.Int
	TxHash   string
}

// Identity returns the claim identity the event settles.
func (e SettlementEvent) Identity() ClaimIdentity {
	if e.Domain == DomainRaffleGrand {
		return NewGrandIdentity(e.SeasonID)
	}
	return NewConsolationIdentity(e.SeasonID)
}
