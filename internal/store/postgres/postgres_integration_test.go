package postgres

import (
	"os"
	"testing"

	"github.com/taskflow/taskcore/internal/store"
	"github.com/taskflow/taskcore/internal/store/storetest"
)

func makePGStore(t *testing.T) store.Store {
	t.Helper()
	dsn := os.Getenv("TASKCORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TASKCORE_TEST_POSTGRES_DSN not set; skipping postgres store integration test")
	}
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestPostgresStore_Compliance(t *testing.T) {
	storetest.Run(t, makePGStore)
}
