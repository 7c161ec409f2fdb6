package sqlstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/slotbooking/internal/persistence"
)

func TestOpen_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := Open(context.Background(), Config{Driver: "mysql", DSN: "x"}, logger); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(context.Background(), Config{Driver: DriverSQLite}, logger); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestMigrate_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "migrate.db") + "?_pragma=foreign_keys(1)"
	store, err := Open(ctx, Config{Driver: "SQLite", DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if store.Driver() != DriverSQLite {
		t.Fatalf("expected normalised driver, got %q", store.Driver())
	}
	for i := 0; i < 2; i++ {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("migration pass %d failed: %v", i, err)
		}
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if _, err := store.Games().ListGames(ctx); err != nil {
		t.Fatalf("expected games table after migration: %v", err)
	}
	if _, err := store.Accounts().GetAccount(ctx, "nobody@example.com"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
