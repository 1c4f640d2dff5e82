package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskflow/taskcore/internal/agent"
	"github.com/taskflow/taskcore/internal/api"
	"github.com/taskflow/taskcore/internal/auth"
	"github.com/taskflow/taskcore/internal/config"
	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/health"
	"github.com/taskflow/taskcore/internal/logger"
	"github.com/taskflow/taskcore/internal/notify"
	"github.com/taskflow/taskcore/internal/outbox"
	"github.com/taskflow/taskcore/internal/recurrence"
	"github.com/taskflow/taskcore/internal/reminder"
	"github.com/taskflow/taskcore/internal/services/taskcore"
	"github.com/taskflow/taskcore/internal/store"
	"github.com/taskflow/taskcore/internal/store/postgres"
	"github.com/taskflow/taskcore/internal/store/sqlite"
)

// openStore opens the configured backend, returning both the store.Store
// and its underlying *sql.DB so the caller can close the connection on
// shutdown regardless of which adapter was selected. Grounded on the
// teacher's cmd/outbox-worker db.Open+Ping preamble, generalized to pick
// between the two adapters this domain carries.
func openStore(cfg *config.Config) (store.Store, *sql.DB, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres open: %w", err)
		}
		if err := postgres.Bootstrap(context.Background(), cfg.PostgresDSN); err != nil {
			return nil, nil, fmt.Errorf("postgres bootstrap: %w", err)
		}
		return postgres.New(db), db, nil
	default:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open: %w", err)
		}
		return sqlite.New(db), db, nil
	}
}

func main() {
	log := logger.New("taskcore")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("taskcore starting")

	s, db, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("storage unavailable")
	}

	signer := auth.NewSigner(cfg.SigningSecret, cfg.TokenTTL)
	authz := auth.NewTokenAuthorizer(signer, cfg.ServiceCredentialAllowList)

	tasks := taskcore.New(s, log)
	users := taskcore.NewUserService(s, signer, cfg.PasswordKDFCost)
	conversations := taskcore.NewConversationService(s)

	registry := agent.NewRegistry(tasks)
	llm := agent.NewHTTPLLMClient(cfg.AgentLLMBaseURL, cfg.AgentLLMModel, agent.RetryConfig{})
	chatAgent := agent.New(conversations, registry, llm, log).WithMaxIterations(cfg.AgentMaxToolIterations)

	// This binary runs RecurrenceWorker and NotificationWorker in-process
	// against an InProcessBus, per the monolith deployment this binary
	// provides; cmd/recurrence-worker and cmd/notification-worker are the
	// standalone alternative, fed over HTTP by an events.HTTPBus.
	var bus events.Bus = events.NoopBus{}
	inProc := events.NewInProcessBus()
	if cfg.EventBusEnabled {
		bus = inProc
	}

	recurrenceWorker := recurrence.NewWorker(tasks, s.ProcessedEvents(), log)
	emailSender := notify.NewHTTPEmailSender(cfg.EmailServiceBaseURL)
	notifyWorker := notify.NewWorker(emailSender, s.ProcessedEvents(), notify.RetryConfig{}, log)

	if cfg.EventBusEnabled && cfg.RecurrenceWorkerEnabled {
		inProc.Subscribe(events.TopicTaskEvents, recurrenceWorker.HandleTaskCompleted)
	}
	if cfg.EventBusEnabled && cfg.NotificationWorkerEnabled {
		inProc.Subscribe(events.TopicReminders, notifyWorker.HandleReminderDue)
	}

	outboxWorker := outbox.NewWorker(s.Outbox(), bus, outbox.Config{
		BatchSize: cfg.OutboxBatchSize,
		Interval:  cfg.OutboxDrainInterval,
	}, log)

	scheduler := reminder.NewScheduler(s.Tasks(), users, bus, reminder.Config{
		Interval:  cfg.SchedulerTick,
		BatchSize: cfg.SchedulerBatch,
	}, log)

	storeHealth := store.NewStoreHealthChecker(s, log, 5*time.Second)
	serviceHealth := health.NewServiceHealthChecker(log, storeHealth)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go storeHealth.Start(ctx, 10*time.Second)
	go serviceHealth.Start(ctx, 10*time.Second)
	api.BindServiceHealth(serviceHealth.IsHealthy)

	go func() {
		if err := outboxWorker.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("outbox worker exit")
		}
	}()
	go func() {
		if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("reminder scheduler exit")
		}
	}()

	router := api.NewRouter(api.Deps{
		Tasks:            tasks,
		Users:            users,
		Conversations:    conversations,
		Agent:            chatAgent,
		Authorizer:       authz,
		RecurrenceWorker: recurrenceWorker,
		NotifyWorker:     notifyWorker,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	_ = db.Close()
	log.Info().Msg("server exited")
}
