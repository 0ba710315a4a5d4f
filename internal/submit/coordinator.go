package submit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/winfall/claimkeeper/internal/domain"
)

// Notifier is the slice of the notification system the coordinator uses.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Coordinator drives the at-most-once submission of claim transactions for
// one account session. Side effects per submission are limited to one ledger
// write, at most two cache invalidations, and one user-facing notification.
type Coordinator struct {
	state   *State
	gw      domain.Gateway
	claimC  domain.ClaimCache
	balC    domain.BalanceCache
	bus     domain.SignalBus
	history domain.SettlementStore // optional
	notif   Notifier               // optional
	logger  *slog.Logger

	account       string
	submitTimeout time.Duration
	pendingGrace  time.Duration
}

// NewCoordinator creates a Coordinator for the given account session.
// submitTimeout bounds each ledger write; pendingGrace is how long a
// timed-out identity stays Pending before reverting to Idle.
func NewCoordinator(
	state *State,
	gw domain.Gateway,
	claimC domain.ClaimCache,
	balC domain.BalanceCache,
	bus domain.SignalBus,
	history domain.SettlementStore,
	notif Notifier,
	account string,
	submitTimeout, pendingGrace time.Duration,
	logger *slog.Logger,
) *Coordinator {
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	if pendingGrace <= 0 {
		pendingGrace = 90 * time.Second
	}
	return &Coordinator{
		state:         state,
		gw:            gw,
		claimC:        claimC,
		balC:          balC,
		bus:           bus,
		history:       history,
		notif:         notif,
		account:       account,
		submitTimeout: submitTimeout,
		pendingGrace:  pendingGrace,
		logger:        logger.With(slog.String("component", "coordinator")),
	}
}

// Account returns the account this coordinator session is bound to.
func (c *Coordinator) Account() string { return c.account }

// State exposes the submission state for read-only subscription.
func (c *Coordinator) State() *State { return c.state }

// Submit submits the claim transaction for one identity. Exactly one gateway
// write is issued per accepted call; a second call while the first is still
// Pending is rejected with AlreadySubmitting. On success the identity is
// Confirmed and the discovery and balance caches are invalidated, in that
// order, so the causal chain confirm -> invalidate -> rediscover holds.
func (c *Coordinator) Submit(ctx context.Context, id domain.ClaimIdentity) (string, error) {
	log := c.logger.With(slog.String("identity", id.String()))

	if err := c.state.Begin(id); err != nil {
		cerr := Classify(err)
		log.WarnContext(ctx, "submission rejected", slog.String("kind", string(cerr.Kind)))
		return "", cerr
	}

	subCtx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	txHash, err := c.gw.SubmitClaim(subCtx, id, c.account)
	if err != nil {
		return "", c.handleFailure(ctx, id, err, log)
	}

	// Snapshot the settled amount from the cached claim list before the
	// invalidation drops it. Best effort; the ledger stays authoritative.
	amount := c.cachedAmount(ctx, id)

	c.state.Confirm(id, txHash)
	c.invalidate(ctx, true, log)
	c.recordSettlement(ctx, id, txHash, amount, domain.SettlementSourceLocal, log)

	if c.notif != nil {
		_ = c.notif.Notify(ctx, "claim_settled", "Claim settled",
			id.String()+" settled in tx "+txHash)
	}

	log.InfoContext(ctx, "claim submitted", slog.String("tx_hash", txHash))
	return txHash, nil
}

// handleFailure classifies a failed write, reverts or parks the submission
// state, and refreshes the claim cache when the failure proves it stale.
func (c *Coordinator) handleFailure(ctx context.Context, id domain.ClaimIdentity, err error, log *slog.Logger) error {
	cerr := Classify(err)

	if cerr.Kind == domain.KindTimeout {
		// The write may still land; hold Pending for a bounded grace before
		// releasing the identity for retry.
		c.state.ReleaseAfter(id, c.pendingGrace, domain.KindTimeout)
	} else {
		c.state.Fail(id, cerr.Kind)
	}

	if cerr.Kind == domain.KindAlreadyClaimed {
		// The cached claim list was stale: another path settled this claim.
		// Invalidate so the next discovery pass reconciles.
		c.invalidate(ctx, false, log)
	}

	if c.notif != nil {
		_ = c.notif.Notify(ctx, "claim_failed", "Claim failed",
			id.String()+": "+cerr.Error())
	}

	log.WarnContext(ctx, "claim submission failed",
		slog.String("kind", string(cerr.Kind)),
		slog.String("error", cerr.Error()),
	)
	return cerr
}

// invalidate drops the account's discovery cache (and balance cache after a
// payout) and publishes the invalidation signal for subscribed presenters.
func (c *Coordinator) invalidate(ctx context.Context, withBalance bool, log *slog.Logger) {
	if err := c.claimC.Invalidate(ctx, c.account); err != nil {
		log.WarnContext(ctx, "claim cache invalidation failed", slog.String("error", err.Error()))
	}
	if withBalance {
		if err := c.balC.Invalidate(ctx, c.account); err != nil {
			log.WarnContext(ctx, "balance cache invalidation failed", slog.String("error", err.Error()))
		}
	}

	payload, _ := json.Marshal(map[string]string{"account": c.account})
	if err := c.bus.Publish(ctx, domain.ChannelClaimsInvalidated, payload); err != nil {
		log.WarnContext(ctx, "invalidation publish failed", slog.String("error", err.Error()))
	}
}

func (c *Coordinator) recordSettlement(ctx context.Context, id domain.ClaimIdentity, txHash, amount string, src domain.SettlementSource, log *slog.Logger) {
	if c.history == nil {
		return
	}

	err := c.history.Record(ctx, domain.SettlementRecord{
		ID:        uuid.New().String(),
		Domain:    id.Domain,
		SeasonID:  id.SeasonID,
		MarketID:  id.MarketID,
		Side:      id.Side,
		Player:    id.Player,
		Account:   c.account,
		Amount:    amount,
		TxHash:    txHash,
		Source:    src,
		SettledAt: time.Now().UTC(),
	})
	if err != nil {
		log.WarnContext(ctx, "settlement history record failed", slog.String("error", err.Error()))
	}
}

// cachedAmount reads the claim's amount from the cached discovery result, if
// the entry is still present. Returns "0" when unknown.
func (c *Coordinator) cachedAmount(ctx context.Context, id domain.ClaimIdentity) string {
	groups, err := c.claimC.Get(ctx, c.account)
	if err != nil {
		return "0"
	}
	for _, g := range groups {
		for _, rec := range g.Records {
			if rec.Identity == id && rec.Amount != nil {
				return rec.Amount.String()
			}
		}
	}
	return "0"
}
