package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/winfall/claimkeeper/internal/blob/s3"
	"github.com/winfall/claimkeeper/internal/cache/redis"
	"github.com/winfall/claimkeeper/internal/config"
	"github.com/winfall/claimkeeper/internal/crypto"
	"github.com/winfall/claimkeeper/internal/discovery"
	"github.com/winfall/claimkeeper/internal/domain"
	"github.com/winfall/claimkeeper/internal/events"
	"github.com/winfall/claimkeeper/internal/ledger/evm"
	"github.com/winfall/claimkeeper/internal/notify"
	"github.com/winfall/claimkeeper/internal/service"
	"github.com/winfall/claimkeeper/internal/store/postgres"
	"github.com/winfall/claimkeeper/internal/submit"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Gateway *evm.Gateway
	Account string

	ClaimCache   domain.ClaimCache
	BalanceCache domain.BalanceCache
	SignalBus    domain.SignalBus

	History  domain.SettlementStore // nil when history is not configured
	Archiver *s3blob.Archiver       // nil when archival is disabled

	State       *submit.State
	Engine      *discovery.Engine
	Coordinator *submit.Coordinator
	Listener    *events.Listener // nil when the ledger has no WS endpoint
	Service     *service.ClaimService

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to be
// called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// Signing key and ledger connection.
	keyHex, err := crypto.LoadKey(crypto.KeySource{
		RawHex:      cfg.Submitter.PrivateKey,
		KeyfilePath: cfg.Submitter.KeyfilePath,
		Passphrase:  cfg.Submitter.KeyPassphrase,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: load key: %w", err)
	}

	ledgerClient, err := evm.New(ctx, evm.ClientConfig{
		RPCURL:  cfg.Ledger.RPCURL,
		WSURL:   cfg.Ledger.WSURL,
		ChainID: cfg.Ledger.ChainID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: ledger client: %w", err)
	}
	closers = append(closers, ledgerClient.Close)

	sender, err := evm.NewSender(ledgerClient, keyHex)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: sender: %w", err)
	}

	account := strings.ToLower(cfg.Submitter.Account)
	if account == "" {
		account = strings.ToLower(sender.From().Hex())
	}
	deps.Account = account

	gateway, err := evm.NewGateway(ledgerClient, sender, cfg.Ledger.MarketContract, cfg.Ledger.RaffleContract)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: gateway: %w", err)
	}
	deps.Gateway = gateway

	// Redis caches and signal bus.
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.ClaimCache = redis.NewClaimCache(redisClient, time.Duration(cfg.Claims.CacheTTLSec)*time.Second)
	deps.BalanceCache = redis.NewBalanceCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// Settlement history store, when configured.
	if cfg.HistoryEnabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.History = postgres.NewSettlementStore(pgClient.Pool())
	}

	// Cold archival of settlement history.
	if cfg.Archive.Enabled && deps.History != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		retention := time.Duration(cfg.Archive.RetentionDays) * 24 * time.Hour
		deps.Archiver = s3blob.NewArchiver(s3Client, deps.History, retention, logger)
	}

	// Notifications.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// Claims subsystem.
	deps.State = submit.NewState(logger)
	deps.Engine = discovery.NewEngine(
		gateway,
		deps.State,
		cfg.Claims.MaxParallelReads,
		time.Duration(cfg.Claims.ReadTimeoutSec)*time.Second,
		logger,
	)
	deps.Coordinator = submit.NewCoordinator(
		deps.State,
		gateway,
		deps.ClaimCache,
		deps.BalanceCache,
		deps.SignalBus,
		deps.History,
		deps.Notifier,
		account,
		time.Duration(cfg.Claims.SubmitTimeoutSec)*time.Second,
		time.Duration(cfg.Claims.PendingGraceSec)*time.Second,
		logger,
	)

	if ledgerClient.SupportsSubscriptions() {
		deps.Listener = events.NewListener(
			gateway,
			deps.State,
			deps.ClaimCache,
			deps.BalanceCache,
			deps.SignalBus,
			deps.History,
			deps.Notifier,
			account,
			logger,
		)
	} else {
		logger.Warn("no ledger WS endpoint configured, settlement events disabled")
	}

	deps.Service = service.NewClaimService(
		deps.Engine,
		deps.Coordinator,
		deps.State,
		deps.ClaimCache,
		deps.SignalBus,
		deps.History,
		account,
		logger,
	)

	return deps, cleanup, nil
}
