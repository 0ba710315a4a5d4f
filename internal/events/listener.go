// Package events watches ledger-emitted settlement events and reconciles
// local state with claims paid out of band. Without it, a claim submitted
// from another session would keep showing as claimable until its cache TTL
// expired.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/winfall/claimkeeper/internal/domain"
	"github.com/winfall/claimkeeper/internal/submit"
)

// Listener subscribes to the grand-prize-claimed and consolation-claimed
// streams and, on an event matching the session account, performs the same
// invalidation as a successful local submission.
type Listener struct {
	events  domain.SettlementEvents
	state   *submit.State
	claimC  domain.ClaimCache
	balC    domain.BalanceCache
	bus     domain.SignalBus
	history domain.SettlementStore // optional
	notif   submit.Notifier        // optional
	account string
	logger  *slog.Logger
}

// NewListener creates a Listener bound to one account session.
func NewListener(
	events domain.SettlementEvents,
	state *submit.State,
	claimC domain.ClaimCache,
	balC domain.BalanceCache,
	bus domain.SignalBus,
	history domain.SettlementStore,
	notif submit.Notifier,
	account string,
	logger *slog.Logger,
) *Listener {
	return &Listener{
		events:  events,
		state:   state,
		claimC:  claimC,
		balC:    balC,
		bus:     bus,
		history: history,
		notif:   notif,
		account: account,
		logger:  logger.With(slog.String("component", "settlement_listener")),
	}
}

// Run subscribes to both settlement streams and processes events until the
// context is cancelled or a stream closes.
func (l *Listener) Run(ctx context.Context) error {
	grand, err := l.events.SubscribeGrandClaimed(ctx)
	if err != nil {
		return fmt.Errorf("events: subscribe grand claimed: %w", err)
	}
	consolation, err := l.events.SubscribeConsolationClaimed(ctx)
	if err != nil {
		return fmt.Errorf("events: subscribe consolation claimed: %w", err)
	}

	l.logger.InfoContext(ctx, "settlement listener started")
	defer l.logger.Info("settlement listener stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-grand:
			if !ok {
				return fmt.Errorf("events: grand claimed stream closed: %w", domain.ErrGatewayUnavailable)
			}
			l.handle(ctx, evt)
		case evt, ok := <-consolation:
			if !ok {
				return fmt.Errorf("events: consolation claimed stream closed: %w", domain.ErrGatewayUnavailable)
			}
			l.handle(ctx, evt)
		}
	}
}

// handle reconciles one settlement event. Ledger addresses are not
// case-sensitive identifiers, so the participant match is case-insensitive.
func (l *Listener) handle(ctx context.Context, evt domain.SettlementEvent) {
	if !strings.EqualFold(evt.Account, l.account) {
		return
	}

	id := evt.Identity()
	log := l.logger.With(
		slog.String("identity", id.String()),
		slog.String("tx_hash", evt.TxHash),
	)

	// Suppress the identity from future discovery even though the read path
	// may not reflect the claim yet.
	l.state.MarkSettled(id, evt.TxHash)

	if err := l.claimC.Invalidate(ctx, l.account); err != nil {
		log.WarnContext(ctx, "claim cache invalidation failed", slog.String("error", err.Error()))
	}
	if err := l.balC.Invalidate(ctx, l.account); err != nil {
		log.WarnContext(ctx, "balance cache invalidation failed", slog.String("error", err.Error()))
	}

	payload, _ := json.Marshal(map[string]string{"account": l.account})
	if err := l.bus.Publish(ctx, domain.ChannelClaimsInvalidated, payload); err != nil {
		log.WarnContext(ctx, "invalidation publish failed", slog.String("error", err.Error()))
	}

	if l.history != nil {
		amount := "0"
		if evt.Amount != nil {
			amount = evt.Amount.String()
		}
		err := l.history.Record(ctx, domain.SettlementRecord{
			ID:        uuid.New().String(),
			Domain:    id.Domain,
			SeasonID:  id.SeasonID,
			Account:   strings.ToLower(l.account),
			Amount:    amount,
			TxHash:    evt.TxHash,
			Source:    domain.SettlementSourceEvent,
			SettledAt: time.Now().UTC(),
		})
		if err != nil {
			log.WarnContext(ctx, "settlement history record failed", slog.String("error", err.Error()))
		}
	}

	if l.notif != nil {
		_ = l.notif.Notify(ctx, "claim_settled", "Claim settled on ledger",
			id.String()+" was claimed outside this session")
	}

	log.InfoContext(ctx, "settlement event reconciled")
}
