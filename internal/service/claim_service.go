// Package service composes discovery, submission, and history into the
// operations the presentation layer calls.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/winfall/claimkeeper/internal/discovery"
	"github.com/winfall/claimkeeper/internal/domain"
	"github.com/winfall/claimkeeper/internal/submit"
)

// ClaimService is the facade over the claims subsystem for one account
// session. Reads go through the claim cache; submissions go through the
// coordinator.
type ClaimService struct {
	engine  *discovery.Engine
	coord   *submit.Coordinator
	state   *submit.State
	claimC  domain.ClaimCache
	bus     domain.SignalBus
	history domain.SettlementStore // optional
	account string
	logger  *slog.Logger
}

// NewClaimService creates a ClaimService bound to the given account.
func NewClaimService(
	engine *discovery.Engine,
	coord *submit.Coordinator,
	state *submit.State,
	claimC domain.ClaimCache,
	bus domain.SignalBus,
	history domain.SettlementStore,
	account string,
	logger *slog.Logger,
) *ClaimService {
	return &ClaimService{
		engine:  engine,
		coord:   coord,
		state:   state,
		claimC:  claimC,
		bus:     bus,
		history: history,
		account: strings.ToLower(account),
		logger:  logger.With(slog.String("component", "claim_service")),
	}
}

// Account returns the account this service session is bound to.
func (s *ClaimService) Account() string { return s.account }

// Claims returns the account's payable claims grouped by season. A cached
// result is served unless refresh is set or the cache misses; a fresh
// discovery pass repopulates the cache.
func (s *ClaimService) Claims(ctx context.Context, seasons []uint64, refresh bool) ([]domain.SeasonClaims, error) {
	if !refresh && len(seasons) == 0 {
		groups, err := s.claimC.Get(ctx, s.account)
		if err == nil {
			return groups, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "claim cache read failed", slog.String("error", err.Error()))
		}
	}

	records, err := s.engine.Discover(ctx, s.account, seasons)
	if err != nil {
		return nil, fmt.Errorf("service: discover claims: %w", err)
	}
	groups := discovery.GroupBySeason(records)

	// Only the unrestricted view is cached; season-filtered results would
	// shadow the full list under the same key.
	if len(seasons) == 0 {
		if err := s.claimC.Set(ctx, s.account, groups); err != nil {
			s.logger.WarnContext(ctx, "claim cache write failed", slog.String("error", err.Error()))
		}
	}
	return groups, nil
}

// Submit submits the claim transaction for one identity and returns the
// transaction hash. Errors are domain ClaimErrors carrying a classified kind.
func (s *ClaimService) Submit(ctx context.Context, id domain.ClaimIdentity) (string, error) {
	return s.coord.Submit(ctx, id)
}

// Status reports the submission status of an identity.
func (s *ClaimService) Status(id domain.ClaimIdentity) domain.SubmissionStatus {
	return s.state.Status(id)
}

// History returns recorded settlements, newest first.
func (s *ClaimService) History(ctx context.Context, opts domain.ListOpts) ([]domain.SettlementRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(ctx, opts)
}

// Reset discards the session submission state and the account's cached
// discovery result. Called when the active account or network changes.
func (s *ClaimService) Reset(ctx context.Context) {
	s.state.Reset()
	if err := s.claimC.Invalidate(ctx, s.account); err != nil {
		s.logger.WarnContext(ctx, "claim cache invalidation failed", slog.String("error", err.Error()))
	}
}

// PumpSubmissionUpdates forwards submission state transitions onto the signal
// bus until the context is canceled, so presenters subscribed over the bus
// observe the same stream as in-process watchers.
func (s *ClaimService) PumpSubmissionUpdates(ctx context.Context) error {
	updates, stop := s.state.Watch()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(u)
			if err != nil {
				continue
			}
			if err := s.bus.Publish(ctx, domain.ChannelSubmissionState, payload); err != nil {
				s.logger.WarnContext(ctx, "submission update publish failed", slog.String("error", err.Error()))
			}
		}
	}
}
