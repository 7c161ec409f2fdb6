package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/example/slotbooking/internal/persistence"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Config describes how to reach the backing database.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	Retry        RetryConfig
}

// Store implements persistence.Store on top of sqlx.
type Store struct {
	db     *sqlx.DB
	driver string
	dsn    string
	retry  *RetryHelper
	logger *slog.Logger
}

var _ persistence.Store = (*Store)(nil)

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("sqlstore: dsn is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}

	switch {
	case driver == DriverSQLite:
		// SQLite allows a single writer; one connection serialises transactions.
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", driver, err)
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialDelay == 0 {
		retry = DefaultRetryConfig()
	}

	return &Store{
		db:     db,
		driver: driver,
		dsn:    cfg.DSN,
		retry:  NewRetryHelper(retry),
		logger: logger.With("component", "sqlstore", "driver", driver),
	}, nil
}

// Driver returns the normalised driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewErrorMapper().MapError(err)
	}
	return nil
}

// Migrate applies every pending embedded migration. A dedicated connection is
// used because the migrate drivers close their database handle on shutdown.
func (s *Store) Migrate(ctx context.Context) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("sqlstore: load migrations: %w", err)
	}

	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("sqlstore: open migration connection: %w", err)
	}

	var driver database.Driver
	switch s.driver {
	case DriverPostgres:
		driver, err = migratepostgres.WithInstance(db, &migratepostgres.Config{})
	default:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	}
	if err != nil {
		_ = src.Close()
		_ = db.Close()
		return fmt.Errorf("sqlstore: prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.driver, driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return fmt.Errorf("sqlstore: prepare migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			s.logger.WarnContext(ctx, "failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlstore: apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("sqlstore: read migration version: %w", err)
	}
	s.logger.InfoContext(ctx, "database schema ready", "version", version, "dirty", dirty)
	return nil
}

// WithinTx runs fn inside a transaction. Busy or locked errors retry the whole
// callback, so fn must not keep state across attempts.
func (s *Store) WithinTx(ctx context.Context, fn func(persistence.Repositories) error) error {
	return s.retry.WithRetry(ctx, func() error {
		return s.runTx(ctx, fn)
	})
}

func (s *Store) runTx(ctx context.Context, fn func(persistence.Repositories) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", NewErrorMapper().MapError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(repositories{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", NewErrorMapper().MapError(err))
	}
	return nil
}

func (s *Store) Games() persistence.GameRepository {
	return gameRepository{q: s.db}
}

func (s *Store) Slots() persistence.SlotRepository {
	return slotRepository{q: s.db}
}

func (s *Store) Invitations() persistence.InvitationRepository {
	return invitationRepository{q: s.db}
}

func (s *Store) Accounts() persistence.AccountRepository {
	return accountRepository{q: s.db}
}

// repositories binds every repository to one transaction.
type repositories struct {
	q sqlx.ExtContext
}

func (r repositories) Games() persistence.GameRepository {
	return gameRepository{q: r.q}
}

func (r repositories) Slots() persistence.SlotRepository {
	return slotRepository{q: r.q}
}

func (r repositories) Invitations() persistence.InvitationRepository {
	return invitationRepository{q: r.q}
}

func (r repositories) Accounts() persistence.AccountRepository {
	return accountRepository{q: r.q}
}
