package claims

import (
	"math/big"
	"testing"

	"github.com/winfall/claimkeeper/internal/domain"
)

func TestConsolationShare(t *testing.T) {
	tests := []struct {
		name         string
		pool         int64
		participants uint64
		want         int64
	}{
		{"even split", 3000, 4, 1000},
		{"dust retained by pool", 3001, 4, 1000},
		{"large remainder floored", 1000, 3, 500},
		{"single participant", 3000, 1, 0},
		{"zero participants", 3000, 0, 0},
		{"zero pool", 0, 4, 0},
		{"pool smaller than divisor", 2, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConsolationShare(big.NewInt(tt.pool), tt.participants)
			if got.Int64() != tt.want {
				t.Errorf("ConsolationShare(%d, %d) = %s, want %d", tt.pool, tt.participants, got, tt.want)
			}
		})
	}

	if got := ConsolationShare(nil, 4); got.Sign() != 0 {
		t.Errorf("ConsolationShare(nil, 4) = %s, want 0", got)
	}
}

func TestConsolationShareExactDivision(t *testing.T) {
	// 10^18 pool split among 5 participants: 4 shares of 0.25 * 10^18 with
	// no dust.
	pool, _ := new(big.Int).SetString("1000000000000000000", 10)
	share := ConsolationShare(pool, 5)

	want, _ := new(big.Int).SetString("250000000000000000", 10)
	if share.Cmp(want) != 0 {
		t.Errorf("share = %s, want %s", share, want)
	}

	total := new(big.Int).Mul(share, big.NewInt(4))
	if total.Cmp(pool) != 0 {
		t.Errorf("4 shares sum to %s, want full pool %s", total, pool)
	}
}

func TestMarketPayoutRecord(t *testing.T) {
	m := domain.MarketSummary{ID: 7, SeasonID: 2, Settled: true, WinningSide: domain.SideYes}

	tests := []struct {
		name string
		pos  domain.PositionRead
		ok   bool
	}{
		{"qualifying position", domain.PositionRead{Amount: big.NewInt(100), Payout: big.NewInt(150)}, true},
		{"no stake", domain.PositionRead{Amount: big.NewInt(0), Payout: big.NewInt(150)}, false},
		{"zero payout", domain.PositionRead{Amount: big.NewInt(100), Payout: big.NewInt(0)}, false},
		{"already claimed", domain.PositionRead{Amount: big.NewInt(100), Payout: big.NewInt(150), Claimed: true}, false},
		{"nil amounts", domain.PositionRead{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := MarketPayoutRecord(m, domain.SideYes, tt.pos)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if rec.Identity.Domain != domain.DomainMarketPayout {
				t.Errorf("domain = %s, want %s", rec.Identity.Domain, domain.DomainMarketPayout)
			}
			if rec.Identity.MarketID != 7 || rec.Identity.SeasonID != 2 {
				t.Errorf("identity = %+v, want market 7 season 2", rec.Identity)
			}
			if rec.Amount.Cmp(tt.pos.Payout) != 0 {
				t.Errorf("amount = %s, want %s", rec.Amount, tt.pos.Payout)
			}
		})
	}
}

func TestMarketPayoutRecordCopiesAmount(t *testing.T) {
	pos := domain.PositionRead{Amount: big.NewInt(100), Payout: big.NewInt(150)}
	m := domain.MarketSummary{ID: 1, SeasonID: 1}

	rec, ok := MarketPayoutRecord(m, domain.SideNo, pos)
	if !ok {
		t.Fatal("expected qualifying record")
	}

	pos.Payout.SetInt64(999)
	if rec.Amount.Int64() != 150 {
		t.Errorf("record amount mutated to %s, want 150", rec.Amount)
	}
}

func TestRedemptionRecord(t *testing.T) {
	settled := domain.MarketSummary{
		ID: 3, SeasonID: 1, Settled: true,
		WinningSide: domain.SideNo, Counterpart: "0xABCDEF",
	}

	rec, ok := RedemptionRecord(settled, domain.PositionRead{Amount: big.NewInt(500)})
	if !ok {
		t.Fatal("expected qualifying record")
	}
	if rec.Identity.Domain != domain.DomainPositionRedemption {
		t.Errorf("domain = %s", rec.Identity.Domain)
	}
	if rec.Identity.MarketID != 3 {
		t.Errorf("market id = %d, want 3; the redemption transaction is addressed per market", rec.Identity.MarketID)
	}
	if rec.Identity.Player != "0xabcdef" {
		t.Errorf("player = %q, want lowercased counterpart", rec.Identity.Player)
	}
	if rec.Counterpart != "0xabcdef" {
		t.Errorf("counterpart = %q, want 0xabcdef", rec.Counterpart)
	}

	unsettled := settled
	unsettled.Settled = false
	if _, ok := RedemptionRecord(unsettled, domain.PositionRead{Amount: big.NewInt(500)}); ok {
		t.Error("unsettled market must not yield a redemption record")
	}

	if _, ok := RedemptionRecord(settled, domain.PositionRead{Amount: big.NewInt(500), Claimed: true}); ok {
		t.Error("claimed position must not yield a redemption record")
	}
}

func TestRedemptionRecordDistinctPerMarket(t *testing.T) {
	// One counterpart settling two markets in the same season yields two
	// separate identities, each carrying its own market ID.
	first := domain.MarketSummary{ID: 3, SeasonID: 1, Settled: true, Counterpart: "0xDDD"}
	second := domain.MarketSummary{ID: 7, SeasonID: 1, Settled: true, Counterpart: "0xDDD"}
	pos := domain.PositionRead{Amount: big.NewInt(500)}

	recA, ok := RedemptionRecord(first, pos)
	if !ok {
		t.Fatal("expected qualifying record for market 3")
	}
	recB, ok := RedemptionRecord(second, pos)
	if !ok {
		t.Fatal("expected qualifying record for market 7")
	}

	if recA.Identity == recB.Identity {
		t.Fatalf("identities collide: %s", recA.Identity)
	}
	if recB.Identity.MarketID != 7 {
		t.Errorf("market id = %d, want 7", recB.Identity.MarketID)
	}
}

func TestGrandRecord(t *testing.T) {
	st := domain.SeasonPayoutState{
		Funded:      true,
		GrandWinner: "0xAAA",
		GrandAmount: big.NewInt(1000),
	}

	rec, ok := GrandRecord(5, st, "0xaaa")
	if !ok {
		t.Fatal("expected grand record for winner, case-insensitive")
	}
	if rec.Identity != domain.NewGrandIdentity(5) {
		t.Errorf("identity = %+v", rec.Identity)
	}
	if rec.Amount.Int64() != 1000 {
		t.Errorf("amount = %s, want 1000", rec.Amount)
	}

	if _, ok := GrandRecord(5, st, "0xbbb"); ok {
		t.Error("non-winner must not get a grand record")
	}

	claimed := st
	claimed.GrandClaimed = true
	if _, ok := GrandRecord(5, claimed, "0xaaa"); ok {
		t.Error("claimed grand prize must not yield a record")
	}

	unfunded := st
	unfunded.Funded = false
	if _, ok := GrandRecord(5, unfunded, "0xaaa"); ok {
		t.Error("unfunded season must not yield a record")
	}
}

func TestConsolationRecordExcludesGrandWinner(t *testing.T) {
	st := domain.SeasonPayoutState{
		Funded:            true,
		GrandWinner:       "0xAAA",
		GrandAmount:       big.NewInt(1000),
		ConsolationAmount: big.NewInt(3000),
		TotalParticipants: 4,
	}

	// Grand winner is excluded even as a verified participant.
	if _, ok := ConsolationRecord(1, st, "0xaaa", true, false); ok {
		t.Error("grand winner must never receive consolation for the same season")
	}

	// Other participants each get the floored share.
	rec, ok := ConsolationRecord(1, st, "0xbbb", true, false)
	if !ok {
		t.Fatal("expected consolation record for non-winning participant")
	}
	if rec.Amount.Int64() != 1000 {
		t.Errorf("share = %s, want 1000", rec.Amount)
	}

	// Non-participants get nothing.
	if _, ok := ConsolationRecord(1, st, "0xccc", false, false); ok {
		t.Error("non-participant must not receive consolation")
	}

	// Already claimed gets nothing.
	if _, ok := ConsolationRecord(1, st, "0xbbb", true, true); ok {
		t.Error("claimed consolation must not yield a record")
	}

	// A zero share never surfaces.
	tiny := st
	tiny.ConsolationAmount = big.NewInt(2)
	if _, ok := ConsolationRecord(1, tiny, "0xbbb", true, false); ok {
		t.Error("zero share must not yield a record")
	}
}

func TestFormatUnits(t *testing.T) {
	set := func(s string) *big.Int {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			t.Fatalf("bad literal %q", s)
		}
		return n
	}

	tests := []struct {
		in   *big.Int
		want string
	}{
		{nil, "0"},
		{big.NewInt(0), "0"},
		{set("1000000000000000000"), "1"},
		{set("1500000000000000000"), "1.5"},
		{set("1"), "0.000000000000000001"},
		{set("123456789000000000000"), "123.456789"},
		{set("-2500000000000000000"), "-2.5"},
	}

	for _, tt := range tests {
		if got := FormatUnits(tt.in, LedgerDecimals); got != tt.want {
			t.Errorf("FormatUnits(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
