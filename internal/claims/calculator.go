// Package claims contains the pure eligibility and amount arithmetic for all
// four claim domains. Every function here is side-effect free and operates on
// raw ledger reads; amounts stay in *big.Int smallest-unit form end to end,
// with no floating point at any stage including display formatting.
package claims

import (
	"math/big"
	"strings"

	"github.com/winfall/claimkeeper/internal/domain"
)

// LedgerDecimals is the fixed-point scale of the payout unit.
const LedgerDecimals = 18

// MarketPayoutRecord derives the claim record for one side of a fixed-odds
// market. The side qualifies when its staked amount is positive, its computed
// payout is positive, and it has not been claimed.
func MarketPayoutRecord(m domain.MarketSummary, side domain.Side, pos domain.PositionRead) (domain.ClaimRecord, bool) {
	if pos.Amount == nil || pos.Amount.Sign() <= 0 {
		return domain.ClaimRecord{}, false
	}
	if pos.Payout == nil || pos.Payout.Sign() <= 0 || pos.Claimed {
		return domain.ClaimRecord{}, false
	}
	return domain.ClaimRecord{
		Identity:    domain.NewMarketPayoutIdentity(m.SeasonID, m.ID, side),
		Amount:      new(big.Int).Set(pos.Payout),
		WinningSide: m.WinningSide,
	}, true
}

// RedemptionRecord derives the claim record for the account's winning-side
// balance on a settled market. A nonzero balance qualifies; unsettled markets
// never do.
func RedemptionRecord(m domain.MarketSummary, pos domain.PositionRead) (domain.ClaimRecord, bool) {
	if !m.Settled {
		return domain.ClaimRecord{}, false
	}
	if pos.Amount == nil || pos.Amount.Sign() <= 0 || pos.Claimed {
		return domain.ClaimRecord{}, false
	}
	return domain.ClaimRecord{
		Identity:    domain.NewRedemptionIdentity(m.SeasonID, m.ID, m.Counterpart),
		Amount:      new(big.Int).Set(pos.Amount),
		Counterpart: strings.ToLower(m.Counterpart),
		WinningSide: m.WinningSide,
	}, true
}

// GrandRecord derives the grand prize record for an account. It qualifies
// only when the season is funded, the account is the grand winner, and the
// prize is unclaimed. Address comparison is case-insensitive.
func GrandRecord(seasonID uint64, st domain.SeasonPayoutState, account string) (domain.ClaimRecord, bool) {
	if !st.Funded || st.GrandWinner == "" || st.GrandClaimed {
		return domain.ClaimRecord{}, false
	}
	if !strings.EqualFold(st.GrandWinner, account) {
		return domain.ClaimRecord{}, false
	}
	if st.GrandAmount == nil || st.GrandAmount.Sign() <= 0 {
		return domain.ClaimRecord{}, false
	}
	return domain.ClaimRecord{
		Identity: domain.NewGrandIdentity(seasonID),
		Amount:   new(big.Int).Set(st.GrandAmount),
	}, true
}

// ConsolationShare returns floor(pool / (totalParticipants - 1)). The
// fractional remainder is dust retained by the pool, never distributed.
// Seasons with fewer than two participants have no consolation payout.
func ConsolationShare(pool *big.Int, totalParticipants uint64) *big.Int {
	if pool == nil || pool.Sign() <= 0 || totalParticipants <= 1 {
		return new(big.Int)
	}
	divisor := new(big.Int).SetUint64(totalParticipants - 1)
	return new(big.Int).Quo(pool, divisor)
}

// ConsolationRecord derives the consolation record for an account. The
// caller supplies the two ledger predicates (verified participation and
// claimed flag) read alongside the payout state. A grand winner is never
// eligible for consolation in the same season, even if also a participant.
func ConsolationRecord(seasonID uint64, st domain.SeasonPayoutState, account string, participant, claimed bool) (domain.ClaimRecord, bool) {
	if !st.Funded || !participant || claimed {
		return domain.ClaimRecord{}, false
	}
	if st.GrandWinner != "" && strings.EqualFold(st.GrandWinner, account) {
		return domain.ClaimRecord{}, false
	}
	share := ConsolationShare(st.ConsolationAmount, st.TotalParticipants)
	if share.Sign() <= 0 {
		return domain.ClaimRecord{}, false
	}
	return domain.ClaimRecord{
		Identity: domain.NewConsolationIdentity(seasonID),
		Amount:   share,
	}, true
}

// FormatUnits renders a smallest-unit amount as a human-readable decimal
// string with the given scale, trimming trailing zeros. The conversion is
// pure string manipulation; no float is involved.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}

	s := new(big.Int).Abs(amount).String()
	neg := amount.Sign() < 0

	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}

	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")

	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}
