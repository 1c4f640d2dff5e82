package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration shared by TaskCore and its worker
// processes. Environment variables are parsed with the TASKCORE_ prefix,
// e.g. TASKCORE_HTTP_PORT, TASKCORE_SIGNING_SECRET.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// DBDriver selects the store.Store backend: "sqlite" or "postgres".
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"taskcore.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Ports for the split-deployment worker binaries (cmd/recurrence-worker,
	// cmd/notification-worker, cmd/reminder-scheduler, cmd/agent-gateway),
	// each a minimal HTTP server exposing only its own health and (for the
	// two event consumers) subscription endpoint.
	RecurrenceWorkerPort   int `envconfig:"RECURRENCE_WORKER_PORT" default:"8081"`
	NotificationWorkerPort int `envconfig:"NOTIFICATION_WORKER_PORT" default:"8082"`
	ReminderSchedulerPort  int `envconfig:"REMINDER_SCHEDULER_PORT" default:"8083"`
	AgentGatewayPort       int `envconfig:"AGENT_GATEWAY_PORT" default:"8084"`

	// AgentLLMBaseURL/AgentLLMModel configure the agent's outbound
	// HTTPLLMClient (cmd/agent-gateway, or cmd/taskcore's embedded Agent).
	AgentLLMBaseURL string `envconfig:"AGENT_LLM_BASE_URL" default:"http://localhost:11500"`
	AgentLLMModel   string `envconfig:"AGENT_LLM_MODEL" default:"default"`

	// EmailServiceBaseURL configures notify.HTTPEmailSender's outbound
	// transactional-email API.
	EmailServiceBaseURL string `envconfig:"EMAIL_SERVICE_BASE_URL" default:"http://localhost:11600"`

	// NotificationWorkerURL/RecurrenceWorkerURL address the standalone
	// worker binaries' subscription endpoints, used to build an
	// events.HTTPBus when a producer (cmd/reminder-scheduler, a split-
	// deployment outbox) runs outside cmd/taskcore's monolith process.
	NotificationWorkerURL string `envconfig:"NOTIFICATION_WORKER_URL" default:"http://localhost:8082"`
	RecurrenceWorkerURL   string `envconfig:"RECURRENCE_WORKER_URL" default:"http://localhost:8081"`

	// Bearer-credential signing (spec "signing secret" / "token TTL").
	SigningSecret string        `envconfig:"SIGNING_SECRET" required:"true"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	// Argon2id cost parameter for password hashing ("password KDF cost").
	PasswordKDFCost uint32 `envconfig:"PASSWORD_KDF_COST" default:"3"`

	// ReminderScheduler cadence ("scheduler tick" / "scheduler batch").
	SchedulerTick  time.Duration `envconfig:"SCHEDULER_TICK" default:"60s"`
	SchedulerBatch int           `envconfig:"SCHEDULER_BATCH" default:"200"`

	RecurrenceWorkerEnabled  bool `envconfig:"RECURRENCE_WORKER_ENABLED" default:"true"`
	NotificationWorkerEnabled bool `envconfig:"NOTIFICATION_WORKER_ENABLED" default:"true"`

	// EventBusEnabled gates event publication; when false, publishes are
	// no-ops and RecurrenceWorker/NotificationWorker simply see nothing to
	// consume (spec "event bus enabled").
	EventBusEnabled bool `envconfig:"EVENT_BUS_ENABLED" default:"true"`

	AgentMaxToolIterations int `envconfig:"AGENT_MAX_TOOL_ITERATIONS" default:"8"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	// Outbox drain cadence, used by cmd/taskcore's embedded outbox worker
	// and standalone outbox-worker style deployments.
	OutboxDrainInterval time.Duration `envconfig:"OUTBOX_DRAIN_INTERVAL" default:"2s"`
	OutboxBatchSize     int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`

	// ServiceCredentialAllowList names the service-role callers accepted at
	// service-to-service endpoints (spec's supplemented service-credential
	// feature): a claim naming one of these identities is trusted, since
	// network origin alone is unverifiable through a sidecar.
	ServiceCredentialAllowList []string `envconfig:"SERVICE_CREDENTIAL_ALLOWLIST" default:"recurrence-worker,reminder-scheduler,notification-worker"`
}

// ResolveDefaults validates DBDriver and fills in derived fields.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("SIGNING_SECRET must not be empty")
	}
	return nil
}

// New parses environment variables prefixed TASKCORE_ into a Config.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("TASKCORE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Dur("scheduler_tick", cfg.SchedulerTick).
		Int("scheduler_batch", cfg.SchedulerBatch).
		Bool("recurrence_worker_enabled", cfg.RecurrenceWorkerEnabled).
		Bool("notification_worker_enabled", cfg.NotificationWorkerEnabled).
		Bool("event_bus_enabled", cfg.EventBusEnabled).
		Int("agent_max_tool_iterations", cfg.AgentMaxToolIterations).
		Msg("configuration loaded")

	return &cfg, nil
}

// NewForTesting returns a Config with safe defaults for unit and
// compliance-suite tests, bypassing environment variable parsing.
func NewForTesting() *Config {
	return &Config{
		Environment:               EnvTesting,
		DBDriver:                  "sqlite",
		SQLitePath:                ":memory:",
		HTTPPort:                  8080,
		SigningSecret:             "test-signing-secret",
		TokenTTL:                  time.Hour,
		PasswordKDFCost:           1,
		SchedulerTick:             time.Second,
		SchedulerBatch:            200,
		RecurrenceWorkerEnabled:   true,
		NotificationWorkerEnabled: true,
		EventBusEnabled:           true,
		AgentMaxToolIterations:    8,
		CORSOrigins:               []string{"*"},
		OutboxDrainInterval:        100 * time.Millisecond,
		OutboxBatchSize:            50,
		ServiceCredentialAllowList: []string{"recurrence-worker", "reminder-scheduler", "notification-worker"},
		RecurrenceWorkerPort:       8081,
		NotificationWorkerPort:     8082,
		ReminderSchedulerPort:      8083,
		AgentGatewayPort:           8084,
		AgentLLMBaseURL:            "http://localhost:11500",
		AgentLLMModel:              "default",
		EmailServiceBaseURL:        "http://localhost:11600",
		NotificationWorkerURL:      "http://localhost:8082",
		RecurrenceWorkerURL:        "http://localhost:8081",
	}
}

func (c *Config) IsTesting() bool    { return c.Environment == EnvTesting }
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// GetHTTPAddr returns the HTTP server listen address.
func (c *Config) GetHTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }
