package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicecampaign_backend/internal/adapters"
	"voicecampaign_backend/internal/adapters/storage"
	"voicecampaign_backend/internal/agents"
	"voicecampaign_backend/internal/calls"
	"voicecampaign_backend/internal/campaigns"
	"voicecampaign_backend/internal/dialer"
	"voicecampaign_backend/internal/events"
	apphttp "voicecampaign_backend/internal/http"
	"voicecampaign_backend/internal/http/router"
	"voicecampaign_backend/internal/lock"
	"voicecampaign_backend/internal/notification"
	"voicecampaign_backend/internal/phonebook"
	"voicecampaign_backend/internal/telephony"
	"voicecampaign_backend/internal/voiceai"
	"voicecampaign_backend/migrations"
	"voicecampaign_backend/platform/config"
	"voicecampaign_backend/platform/db"
	"voicecampaign_backend/platform/logger"
	"voicecampaign_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.Migrate(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Provider clients; either may be absent in development
	var telephonyAPI dialer.TelephonyAPI
	if client := telephony.NewClient(cfg, log); client != nil {
		telephonyAPI = client
	} else {
		log.Warn("telephony provider not configured; calls cannot be placed")
	}

	voiceClient := voiceai.NewClient(cfg, log)
	var voiceAPI dialer.VoiceAIAPI
	var sessionAPI calls.SessionAPI
	if voiceClient != nil {
		voiceAPI = voiceClient
		sessionAPI = voiceClient
	} else {
		log.Warn("voice AI provider not configured; sessions cannot be created")
	}

	// Recording archive (MinIO)
	var archive calls.RecordingArchive
	if store, err := storage.NewRecordingStore(cfg); err != nil {
		log.Warn("recording archive disabled", "reason", err.Error())
	} else {
		if err := withRetry(ctx, log, "ensure recordings bucket", 5, 2*time.Second, func() error {
			return store.EnsureBucket(ctx)
		}); err != nil {
			log.Error("failed to ensure recordings bucket", "error", err)
			panic("failed to ensure recordings bucket: " + err.Error())
		}
		archive = store
		log.Info("recording archive initialized", "bucket", cfg.GetMinioBucketRecordings())
	}

	// Task queue client for background analysis
	analysisQueue, err := dialer.NewClient(cfg)
	if err != nil {
		log.Warn("analysis queue disabled", "reason", err.Error())
	} else {
		defer analysisQueue.Close()
	}

	// Distributed dispatch lock
	locker := lock.NewManager(lock.NewRepository(pool), log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	agentsModule := agents.NewModule(pool, val, log)
	agentReader := adapters.NewAgentReader(agentsModule.Service())

	campaignsModule := campaigns.NewModule(pool, agentReader, eventBus, val, log)
	contactResolver := adapters.NewContactResolver(campaignsModule.Repository(), eventBus)

	callsModule := calls.NewModule(pool, sessionAPI, archive, contactResolver, eventBus, log)
	phonebookModule := phonebook.NewModule(pool, val, log)

	gateway := dialer.NewGateway(campaignsModule.Repository(), callsModule.Repository(),
		agentReader, telephonyAPI, voiceAPI, cfg, log)
	reconciler := dialer.NewReconciler(campaignsModule.Repository(), callsModule.Repository(),
		telephonyAPI, analysisQueue, eventBus, log)
	executor := dialer.NewExecutor(campaignsModule.Repository(), callsModule.Repository(),
		gateway, reconciler, locker, eventBus, cfg, log)
	dialerModule := dialer.NewModule(executor, gateway, val)

	// Notification subscriber mails a report when a campaign finishes
	notification.NewSubscriber(notification.NewSMTPSender(cfg), cfg.GetNotifyAddress(), log).
		Register(eventBus)
	// Hangup webhooks resolve contacts in this process; keep campaign
	// progress current without waiting for the reconcile loop.
	dialer.NewProgressSubscriber(campaignsModule.Repository(), callsModule.Repository(), log).
		Register(eventBus)

	// The executor runs in-process; a deployment can also run it in the
	// dedicated executor binary and leave it stopped here.
	if err := executor.Start(); err != nil {
		log.Error("failed to start executor", "error", err)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			agentsModule,
			campaignsModule,
			callsModule,
			phonebookModule,
			dialerModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := executor.Stop(shutdownCtx); err != nil {
			log.Error("executor did not stop cleanly", "error", err)
		}
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
