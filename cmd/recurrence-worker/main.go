// Command recurrence-worker is the standalone-deployment alternative to
// cmd/taskcore's embedded RecurrenceWorker: its own store connection, its
// own minimal HTTP surface (health plus the task.completed subscription
// endpoint), fed by a remotely-configured events.HTTPBus rather than an
// in-process subscription.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/taskflow/taskcore/internal/api"
	"github.com/taskflow/taskcore/internal/api/middleware"
	"github.com/taskflow/taskcore/internal/api/recovery"
	"github.com/taskflow/taskcore/internal/auth"
	"github.com/taskflow/taskcore/internal/config"
	"github.com/taskflow/taskcore/internal/logger"
	"github.com/taskflow/taskcore/internal/recurrence"
	"github.com/taskflow/taskcore/internal/services/taskcore"
	"github.com/taskflow/taskcore/internal/store/sqlite"
)

func main() {
	log := logger.New("recurrence-worker")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage unavailable")
	}
	s := sqlite.New(db)

	tasks := taskcore.New(s, log)
	worker := recurrence.NewWorker(tasks, s.ProcessedEvents(), log)

	signer := auth.NewSigner(cfg.SigningSecret, cfg.TokenTTL)
	authz := auth.NewTokenAuthorizer(signer, cfg.ServiceCredentialAllowList)

	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	health := api.NewHealthHandler()
	router.HandleFunc("/api/health", health.CheckHealth).Methods("GET")

	eventRoutes := router.NewRoute().Subrouter()
	eventRoutes.Use(middleware.Authenticate(authz))
	eventRoutes.Use(middleware.RequireService)
	eventRoutes.HandleFunc("/events/task-completed", api.NewEventDeliveryHandler(worker.HandleTaskCompleted).Deliver).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.RecurrenceWorkerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Int("port", cfg.RecurrenceWorkerPort).Msg("recurrence-worker starting")
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
