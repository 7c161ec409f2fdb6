package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/slotbooking/internal/persistence/sqlstore"
)

// NewStore opens a migrated SQLite store in a temporary directory. The store
// is closed when the test finishes.
func NewStore(tb testing.TB) *sqlstore.Store {
	tb.Helper()
	return openStore(tb, "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
}

// NewStoreWithoutForeignKeys opens a migrated store that does not enforce
// foreign keys, so tests can leave rows whose parent was never written.
func NewStoreWithoutForeignKeys(tb testing.TB) *sqlstore.Store {
	tb.Helper()
	return openStore(tb, "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(0)")
}

func openStore(tb testing.TB, pragmas string) *sqlstore.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "slotbooking.db")
	dsn := "file:" + path + pragmas

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.Config{Driver: sqlstore.DriverSQLite, DSN: dsn}, DiscardLogger())
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		tb.Fatalf("failed to migrate store: %v", err)
	}
	return store
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
