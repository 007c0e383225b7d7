package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"eventscout/internal/config"
	"eventscout/internal/services"
)

// Store manages event persistence.
type Store struct {
	db      *sql.DB
	dialect dialect
	path    string
	now     func() time.Time
}

// Open connects to the configured database and applies pending migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	d, err := dialectFor(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	source := cfg.Database.DSN
	if d.name == config.DriverSQLite {
		source = cfg.Database.Path
	}
	db, err := sql.Open(d.sqlDriver, source)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "open", "Failed to open database", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}

	for _, pragma := range d.pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, dialect: d, now: time.Now}
	if d.name == config.DriverSQLite {
		store.path = source
	}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrStorage, "store", "migrate", "Failed to apply migrations", err)
	}
	return store, nil
}

// New wraps an existing connection without running migrations.
func New(db *sql.DB, driver string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: d, now: time.Now}, nil
}

// SetClock overrides the timestamp source used for created_at and updated_at.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ensureContext(ctx)); err != nil {
		return services.Wrap(services.ErrStorage, "store", "ping", "Database unreachable", err)
	}
	return nil
}

// Driver reports the active dialect name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Path returns the SQLite file path, or "" for PostgreSQL.
func (s *Store) Path() string {
	return s.path
}
