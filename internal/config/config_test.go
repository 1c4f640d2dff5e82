package config

import (
	"os"
	"testing"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		prev, had := os.LookupEnv(k)
		_ = os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(k, prev)
			}
		})
	}
}

func TestNew_RequiresSigningSecret(t *testing.T) {
	unsetEnv(t, "TASKCORE_SIGNING_SECRET")
	if _, err := New(); err == nil {
		t.Fatal("expected error when TASKCORE_SIGNING_SECRET is unset")
	}
}

func TestNew_Defaults(t *testing.T) {
	unsetEnv(t, "TASKCORE_SIGNING_SECRET", "TASKCORE_DB_DRIVER", "TASKCORE_SCHEDULER_TICK")
	_ = os.Setenv("TASKCORE_SIGNING_SECRET", "dev-secret")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected default db driver sqlite, got %s", cfg.DBDriver)
	}
	if cfg.SchedulerBatch != 200 {
		t.Fatalf("expected default scheduler batch 200, got %d", cfg.SchedulerBatch)
	}
	if cfg.AgentMaxToolIterations != 8 {
		t.Fatalf("expected default agent max tool iterations 8, got %d", cfg.AgentMaxToolIterations)
	}
}

func TestResolveDefaults_PostgresRequiresDSN(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "postgres"
	cfg.PostgresDSN = ""
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatal("expected error when postgres driver selected without a DSN")
	}
}

func TestResolveDefaults_UnsupportedDriver(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "spanner"
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatal("expected error for unsupported db driver")
	}
}
