package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/winfall/claimkeeper/internal/discovery"
	"github.com/winfall/claimkeeper/internal/domain"
	"github.com/winfall/claimkeeper/internal/submit"
)

// seasonGateway serves a single funded season and counts enumerate calls so
// tests can tell a cache hit from a fresh discovery pass.
type seasonGateway struct {
	mu         sync.Mutex
	enumerates int
	submits    int
	submitErr  error
}

func (g *seasonGateway) EnumerateMarkets(ctx context.Context, seasons []uint64) ([]domain.MarketSummary, error) {
	g.mu.Lock()
	g.enumerates++
	g.mu.Unlock()
	return []domain.MarketSummary{{ID: 1, SeasonID: 1}}, nil
}

func (g *seasonGateway) ReadPosition(ctx context.Context, marketID uint64, account string, side domain.Side) (domain.PositionRead, error) {
	return domain.PositionRead{}, nil
}

func (g *seasonGateway) ReadSeasonPayoutState(ctx context.Context, seasonID uint64) (domain.SeasonPayoutState, error) {
	return domain.SeasonPayoutState{
		Funded:            true,
		ConsolationAmount: big.NewInt(3000),
		TotalParticipants: 4,
	}, nil
}

func (g *seasonGateway) IsParticipant(ctx context.Context, seasonID uint64, account string) (bool, error) {
	return true, nil
}

func (g *seasonGateway) IsConsolationClaimed(ctx context.Context, seasonID uint64, account string) (bool, error) {
	return false, nil
}

func (g *seasonGateway) SubmitClaim(ctx context.Context, identity domain.ClaimIdentity, account string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submits++
	if g.submitErr != nil {
		return "", g.submitErr
	}
	return "0xhash", nil
}

func (g *seasonGateway) enumerateCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enumerates
}

// mapCache is an in-memory ClaimCache.
type mapCache struct {
	mu     sync.Mutex
	groups map[string][]domain.SeasonClaims
}

func newMapCache() *mapCache {
	return &mapCache{groups: make(map[string][]domain.SeasonClaims)}
}

func (c *mapCache) Set(ctx context.Context, account string, groups []domain.SeasonClaims) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[account] = groups
	return nil
}

func (c *mapCache) Get(ctx context.Context, account string) ([]domain.SeasonClaims, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[account]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return g, nil
}

func (c *mapCache) Invalidate(ctx context.Context, account string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.groups, account)
	return nil
}

type nopBalanceCache struct{}

func (nopBalanceCache) Set(ctx context.Context, account string, balance *big.Int) error { return nil }
func (nopBalanceCache) Get(ctx context.Context, account string) (*big.Int, error) {
	return nil, domain.ErrNotFound
}
func (nopBalanceCache) Invalidate(ctx context.Context, account string) error { return nil }

type nopBus struct{}

func (nopBus) Publish(ctx context.Context, channel string, payload []byte) error { return nil }
func (nopBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func newTestService(gw domain.Gateway, claimC domain.ClaimCache) (*ClaimService, *submit.State) {
	logger := slog.New(slog.DiscardHandler)
	state := submit.NewState(logger)
	engine := discovery.NewEngine(gw, state, 4, time.Second, logger)
	coord := submit.NewCoordinator(
		state, gw, claimC, nopBalanceCache{}, nopBus{},
		nil, nil, "0xbbb", time.Second, 50*time.Millisecond, logger,
	)
	svc := NewClaimService(engine, coord, state, claimC, nopBus{}, nil, "0xBBB", logger)
	return svc, state
}

func TestClaimsCachesUnrestrictedView(t *testing.T) {
	gw := &seasonGateway{}
	cache := newMapCache()
	svc, _ := newTestService(gw, cache)

	// Season filtering keeps discovery fresh and is never cached, so the
	// first unrestricted call below still has to hit the ledger.
	groups, err := svc.Claims(context.Background(), []uint64{1}, false)
	if err != nil {
		t.Fatalf("Claims: %v", err)
	}
	if len(groups) != 1 || groups[0].SeasonID != 1 {
		t.Fatalf("groups = %+v", groups)
	}
	if _, err := cache.Get(context.Background(), "0xbbb"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("season-filtered result must not be cached")
	}

	// Unrestricted view is cached under the lowercased account.
	if _, err := svc.Claims(context.Background(), nil, false); err != nil {
		t.Fatalf("Claims: %v", err)
	}
	if _, err := cache.Get(context.Background(), "0xbbb"); err != nil {
		t.Errorf("unrestricted result missing from cache: %v", err)
	}

	before := gw.enumerateCount()
	if _, err := svc.Claims(context.Background(), nil, false); err != nil {
		t.Fatalf("Claims: %v", err)
	}
	if got := gw.enumerateCount(); got != before {
		t.Errorf("cached call hit the ledger (%d -> %d enumerations)", before, got)
	}
}

func TestClaimsRefreshBypassesCache(t *testing.T) {
	gw := &seasonGateway{}
	cache := newMapCache()
	svc, _ := newTestService(gw, cache)

	if _, err := svc.Claims(context.Background(), nil, false); err != nil {
		t.Fatal(err)
	}
	before := gw.enumerateCount()

	if _, err := svc.Claims(context.Background(), nil, true); err != nil {
		t.Fatal(err)
	}
	if got := gw.enumerateCount(); got != before+1 {
		t.Errorf("refresh did not hit the ledger (%d -> %d enumerations)", before, got)
	}
}

func TestSubmitMarksSettledAndStatus(t *testing.T) {
	gw := &seasonGateway{}
	cache := newMapCache()
	svc, _ := newTestService(gw, cache)
	id := domain.NewConsolationIdentity(1)

	txHash, err := svc.Submit(context.Background(), id)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if txHash != "0xhash" {
		t.Errorf("tx hash = %q", txHash)
	}
	if got := svc.Status(id); got != domain.SubmissionConfirmed {
		t.Errorf("status = %s, want confirmed", got)
	}

	// Settled identities disappear from subsequent discovery.
	groups, err := svc.Claims(context.Background(), nil, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range groups {
		for _, rec := range g.Records {
			if rec.Identity == id {
				t.Error("settled identity still present in discovery result")
			}
		}
	}
}

func TestResetClearsStateAndCache(t *testing.T) {
	gw := &seasonGateway{}
	cache := newMapCache()
	svc, state := newTestService(gw, cache)
	id := domain.NewConsolationIdentity(1)

	if _, err := svc.Submit(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Claims(context.Background(), nil, false); err != nil {
		t.Fatal(err)
	}

	svc.Reset(context.Background())

	if state.IsSettled(id) {
		t.Error("Reset must discard session submission state")
	}
	if _, err := cache.Get(context.Background(), "0xbbb"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("Reset must drop the cached discovery result")
	}
}
