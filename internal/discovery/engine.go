// Package discovery enumerates candidate claims across all four payout
// domains and filters them down to currently-payable records.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/winfall/claimkeeper/internal/claims"
	"github.com/winfall/claimkeeper/internal/domain"
)

// SettledFilter reports identities already confirmed in this session so they
// are suppressed from results even while the gateway's read path is only
// eventually consistent with the write.
type SettledFilter interface {
	IsSettled(id domain.ClaimIdentity) bool
}

// Engine runs the discovery fan-out. Reads for distinct markets and seasons
// have no ordering dependency and are issued concurrently with a bounded
// worker limit; a failed or timed-out read drops only its own record.
type Engine struct {
	gw          domain.Gateway
	filter      SettledFilter
	maxParallel int
	readTimeout time.Duration
	logger      *slog.Logger
}

// NewEngine creates an Engine. maxParallel caps concurrent gateway reads;
// readTimeout bounds each individual read.
func NewEngine(gw domain.Gateway, filter SettledFilter, maxParallel int, readTimeout time.Duration, logger *slog.Logger) *Engine {
	if maxParallel <= 0 {
		maxParallel = 8
	}
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	return &Engine{
		gw:          gw,
		filter:      filter,
		maxParallel: maxParallel,
		readTimeout: readTimeout,
		logger:      logger.With(slog.String("component", "discovery")),
	}
}

// Discover returns every payable claim record for the account across the
// given seasons. It fails only when market enumeration itself is unreachable;
// per-market and per-season read failures are logged and the affected record
// is omitted. Result order is not stable across runs.
func (e *Engine) Discover(ctx context.Context, account string, seasons []uint64) ([]domain.ClaimRecord, error) {
	account = strings.ToLower(account)

	markets, err := e.gw.EnumerateMarkets(ctx, seasons)
	if err != nil {
		return nil, fmt.Errorf("discovery: enumerate markets: %w: %v", domain.ErrGatewayUnavailable, err)
	}

	if len(seasons) == 0 {
		seasons = seasonsFromMarkets(markets)
	}

	var (
		mu      sync.Mutex
		records []domain.ClaimRecord
	)
	emit := func(rec domain.ClaimRecord) {
		if !rec.Payable() {
			return
		}
		if e.filter != nil && e.filter.IsSettled(rec.Identity) {
			return
		}
		mu.Lock()
		records = append(records, rec)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(e.maxParallel)

	for _, m := range markets {
		g.Go(func() error {
			e.collectMarket(ctx, account, m, emit)
			return nil
		})
	}
	for _, s := range seasons {
		g.Go(func() error {
			e.collectSeason(ctx, account, s, emit)
			return nil
		})
	}

	// Workers never return errors; Wait only orders the emits before return.
	_ = g.Wait()

	return records, nil
}

// collectMarket gathers market payout records for both sides and, when the
// market is settled, the winning-side redemption record.
func (e *Engine) collectMarket(ctx context.Context, account string, m domain.MarketSummary, emit func(domain.ClaimRecord)) {
	for _, side := range []domain.Side{domain.SideYes, domain.SideNo} {
		pos, err := e.readPosition(ctx, m.ID, account, side)
		if err != nil {
			e.logger.WarnContext(ctx, "position read failed, omitting record",
				slog.Uint64("market_id", m.ID),
				slog.String("side", string(side)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if rec, ok := claims.MarketPayoutRecord(m, side, pos); ok {
			emit(rec)
		}
	}

	if !m.Settled || m.Counterpart == "" {
		return
	}
	pos, err := e.readPosition(ctx, m.ID, account, m.WinningSide)
	if err != nil {
		e.logger.WarnContext(ctx, "redemption read failed, omitting record",
			slog.Uint64("market_id", m.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if rec, ok := claims.RedemptionRecord(m, pos); ok {
		emit(rec)
	}
}

// collectSeason gathers the raffle grand and consolation records for one
// season. Grand winners are never consolation candidates for the same season.
func (e *Engine) collectSeason(ctx context.Context, account string, seasonID uint64, emit func(domain.ClaimRecord)) {
	rctx, cancel := context.WithTimeout(ctx, e.readTimeout)
	defer cancel()

	st, err := e.gw.ReadSeasonPayoutState(rctx, seasonID)
	if err != nil {
		e.logger.WarnContext(ctx, "season payout read failed, omitting season",
			slog.Uint64("season_id", seasonID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !st.Funded {
		return
	}

	if rec, ok := claims.GrandRecord(seasonID, st, account); ok {
		emit(rec)
		return
	}
	if st.GrandWinner != "" && strings.EqualFold(st.GrandWinner, account) {
		// Grand winner with nothing left to claim; mutually exclusive with
		// consolation regardless of participation.
		return
	}

	participant, err := e.gw.IsParticipant(rctx, seasonID, account)
	if err != nil {
		e.logger.WarnContext(ctx, "participation read failed, omitting record",
			slog.Uint64("season_id", seasonID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !participant {
		return
	}

	claimed, err := e.gw.IsConsolationClaimed(rctx, seasonID, account)
	if err != nil {
		e.logger.WarnContext(ctx, "consolation claimed read failed, omitting record",
			slog.Uint64("season_id", seasonID),
			slog.String("error", err.Error()),
		)
		return
	}

	if rec, ok := claims.ConsolationRecord(seasonID, st, account, participant, claimed); ok {
		emit(rec)
	}
}

func (e *Engine) readPosition(ctx context.Context, marketID uint64, account string, side domain.Side) (domain.PositionRead, error) {
	rctx, cancel := context.WithTimeout(ctx, e.readTimeout)
	defer cancel()
	return e.gw.ReadPosition(rctx, marketID, account, side)
}

// seasonsFromMarkets derives the distinct season set when the caller did not
// restrict discovery to specific seasons.
func seasonsFromMarkets(markets []domain.MarketSummary) []uint64 {
	seen := make(map[uint64]bool, len(markets))
	var out []uint64
	for _, m := range markets {
		if !seen[m.SeasonID] {
			seen[m.SeasonID] = true
			out = append(out, m.SeasonID)
		}
	}
	return out
}

// GroupBySeason groups payable records by season for presentation, masking
// the unstable enumeration order within a run.
func GroupBySeason(records []domain.ClaimRecord) []domain.SeasonClaims {
	byID := make(map[uint64][]domain.ClaimRecord)
	var order []uint64
	for _, rec := range records {
		s := rec.Identity.SeasonID
		if _, ok := byID[s]; !ok {
			order = append(order, s)
		}
		byID[s] = append(byID[s], rec)
	}

	groups := make([]domain.SeasonClaims, 0, len(order))
	for _, s := range order {
		groups = append(groups, domain.SeasonClaims{SeasonID: s, Records: byID[s]})
	}
	return groups
}
