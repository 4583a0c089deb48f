package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Supported database/sql driver names
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite3"
)

// Options configures Open. Zero pool values leave the database/sql defaults.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          *zap.Logger
}

// Store owns the conversation and message tables
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// New wraps an already opened database handle. The schema is assumed to exist.
func New(db *sqlx.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Open connects to the database, verifies connectivity and applies pending migrations.
func Open(ctx context.Context, opts Options) (*Store, error) {
	switch opts.Driver {
	case DriverPostgres, DriverPgx, DriverSQLite:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", opts.Driver)
	}
	dsn := normalizeDSN(opts.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("store: empty DSN")
	}
	if opts.Driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.Driver == DriverSQLite && isSQLiteMemory(dsn) {
		// every connection to :memory: opens its own empty database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	version, err := migrateUp(db.DB, opts.Driver, dsn)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := New(db, opts.Logger)
	s.logger.Info("database ready",
		zap.String("driver", opts.Driver),
		zap.Uint("schema_version", version))
	return s, nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withConn holds a single pooled connection for the duration of fn and
// always hands it back, whatever fn returns.
func (s *Store) withConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

// normalizeDSN converts SQLAlchemy-style driver suffixes to plain URLs,
// e.g. postgresql+psycopg2:// -> postgresql://
func normalizeDSN(dsn string) string {
	s := strings.TrimSpace(dsn)
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return s
	}
	if base, _, found := strings.Cut(scheme, "+"); found {
		return base + "://" + rest
	}
	return s
}

// sqliteDSN fills in the connection parameters the store relies on unless the
// caller set them. Transactions begin IMMEDIATE so concurrent writers wait
// on busy_timeout rather than fail upgrading a read lock.
func sqliteDSN(dsn string) string {
	params := []struct {
		keys  []string
		value string
	}{
		{[]string{"_txlock"}, "_txlock=immediate"},
		{[]string{"_busy_timeout", "_timeout"}, "_busy_timeout=5000"},
		{[]string{"_foreign_keys", "_fk"}, "_foreign_keys=on"},
	}
	_, query, _ := strings.Cut(dsn, "?")
	set := map[string]bool{}
	for _, kv := range strings.Split(query, "&") {
		key, _, _ := strings.Cut(kv, "=")
		set[key] = true
	}

	var extra []string
	for _, p := range params {
		found := false
		for _, k := range p.keys {
			found = found || set[k]
		}
		if !found {
			extra = append(extra, p.value)
		}
	}
	if len(extra) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(extra, "&")
}

// isSQLiteMemory reports whether dsn names an in-memory database
func isSQLiteMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") ||
		strings.HasPrefix(dsn, "file::memory:") ||
		strings.Contains(dsn, "mode=memory")
}
