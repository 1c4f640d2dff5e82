// Command agent-gateway is the standalone-deployment alternative to
// cmd/taskcore's embedded Agent: its own store connection, exposing only
// the conversation/chat surface (not task CRUD or registration), so it can
// scale independently of TaskCore's request volume.
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

	"github.com/taskflow/taskcore/internal/agent"
	"github.com/taskflow/taskcore/internal/api"
	"github.com/taskflow/taskcore/internal/api/middleware"
	"github.com/taskflow/taskcore/internal/api/recovery"
	"github.com/taskflow/taskcore/internal/auth"
	"github.com/taskflow/taskcore/internal/config"
	"github.com/taskflow/taskcore/internal/logger"
	"github.com/taskflow/taskcore/internal/services/taskcore"
	"github.com/taskflow/taskcore/internal/store/sqlite"
)

func main() {
	log := logger.New("agent-gateway")

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
	conversations := taskcore.NewConversationService(s)

	registry := agent.NewRegistry(tasks)
	llm := agent.NewHTTPLLMClient(cfg.AgentLLMBaseURL, cfg.AgentLLMModel, agent.RetryConfig{})
	chatAgent := agent.New(conversations, registry, llm, log).WithMaxIterations(cfg.AgentMaxToolIterations)

	signer := auth.NewSigner(cfg.SigningSecret, cfg.TokenTTL)
	authz := auth.NewTokenAuthorizer(signer, cfg.ServiceCredentialAllowList)

	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	health := api.NewHealthHandler()
	router.HandleFunc("/api/health", health.CheckHealth).Methods("GET")

	authenticated := router.NewRoute().Subrouter()
	authenticated.Use(middleware.Authenticate(authz))

	convHandler := api.NewConversationHandler(conversations, chatAgent)
	authenticated.HandleFunc("/api/users/{userId}/conversations", convHandler.CreateConversation).Methods("POST")
	authenticated.HandleFunc("/api/users/{userId}/conversations", convHandler.ListConversations).Methods("GET")
	authenticated.HandleFunc("/api/conversations/{conversationId}/messages", convHandler.ListMessages).Methods("GET")
	authenticated.HandleFunc("/api/conversations/{conversationId}/messages", convHandler.PostMessage).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.AgentGatewayPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Int("port", cfg.AgentGatewayPort).Msg("agent-gateway starting")
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
