// Command reminder-scheduler is the standalone-deployment alternative to
// cmd/taskcore's embedded reminder.Scheduler: its own store connection, its
// own sweep loop, publishing reminder.due over an events.HTTPBus to
// notification-worker rather than an in-process subscription. It exposes
// only a health endpoint; it is a producer, not an event consumer.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/mux"

	"github.com/taskflow/taskcore/internal/api"
	"github.com/taskflow/taskcore/internal/api/recovery"
	"github.com/taskflow/taskcore/internal/auth"
	"github.com/taskflow/taskcore/internal/config"
	"github.com/taskflow/taskcore/internal/events"
	"github.com/taskflow/taskcore/internal/logger"
	"github.com/taskflow/taskcore/internal/reminder"
	"github.com/taskflow/taskcore/internal/services/taskcore"
	"github.com/taskflow/taskcore/internal/store/sqlite"
)

func main() {
	log := logger.New("reminder-scheduler")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage unavailable")
	}
	s := sqlite.New(db)

	signer := auth.NewSigner(cfg.SigningSecret, cfg.TokenTTL)
	users := taskcore.NewUserService(s, signer, cfg.PasswordKDFCost)

	// This process runs outside cmd/taskcore's monolith, so reminder.due
	// travels over HTTP to notification-worker rather than an in-process
	// bus; the outbound request carries a service credential for this
	// process's own identity, matching the RequireService gate on the
	// receiving side.
	serviceToken, err := signer.Issue("reminder-scheduler", auth.RoleService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to mint service credential")
	}
	httpClient := resty.New().SetHeader("Authorization", "Bearer "+serviceToken)
	bus := events.NewHTTPBus(httpClient, map[string]string{
		events.TopicReminders: cfg.NotificationWorkerURL + "/events/reminder-due",
	})

	scheduler := reminder.NewScheduler(s.Tasks(), users, bus, reminder.Config{
		Interval:  cfg.SchedulerTick,
		BatchSize: cfg.SchedulerBatch,
	}, log)

	router := mux.NewRouter()
	router.Use(recovery.Middleware)
	health := api.NewHealthHandler()
	router.HandleFunc("/api/health", health.CheckHealth).Methods("GET")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ReminderSchedulerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("reminder scheduler exit")
		}
	}()

	go func() {
		log.Info().Int("port", cfg.ReminderSchedulerPort).Msg("reminder-scheduler starting")
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
