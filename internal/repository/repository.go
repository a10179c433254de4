// Package repository provides database access layer.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskflow/taskflow/internal/model"
)

const sqliteScheme = "sqlite://"

// ErrUnsupportedURL indicates a DATABASE_URL with an unknown scheme.
var ErrUnsupportedURL = errors.New("unsupported database URL scheme")

// Repository provides database access methods.
type Repository struct {
	db   *gorm.DB
	sql  *sql.DB
	pool *pgxpool.Pool // nil for sqlite
	now  func() time.Time
}

type options struct {
	logger      *slog.Logger
	echo        bool
	autoMigrate bool
	now         func() time.Time
}

// Option configures a Repository.
type Option func(*options)

// WithLogger sets the logger that receives SQL logs.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSQLEcho logs every statement when enabled.
func WithSQLEcho(echo bool) Option {
	return func(o *options) { o.echo = echo }
}

// WithAutoMigrate applies schema migrations on connect.
func WithAutoMigrate(enabled bool) Option {
	return func(o *options) { o.autoMigrate = enabled }
}

// WithClock overrides the time source used for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a new Repository for a postgres:// or sqlite:// URL.
func New(ctx context.Context, databaseURL string, opts ...Option) (*Repository, error) {
	o := buildOptions(opts)

	switch {
	case strings.HasPrefix(databaseURL, sqliteScheme):
		return openSQLite(strings.TrimPrefix(databaseURL, sqliteScheme), o)
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return openPostgres(ctx, databaseURL, o)
	default:
		return nil, ErrUnsupportedURL
	}
}

func openPostgres(ctx context.Context, databaseURL string, o options) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if o.autoMigrate {
		if err := MigrateUp(databaseURL); err != nil {
			pool.Close()
			return nil, err
		}
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig(o))
	if err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return &Repository{db: db, sql: sqlDB, pool: pool, now: o.now}, nil
}

func openSQLite(path string, o options) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig(o))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	repo, err := NewWithDB(db, WithClock(o.now))
	if err != nil {
		return nil, err
	}
	if o.autoMigrate {
		if err := repo.AutoMigrate(); err != nil {
			repo.Close()
			return nil, err
		}
	}
	return repo, nil
}

// NewWithDB wraps an already opened gorm handle.
func NewWithDB(db *gorm.DB, opts ...Option) (*Repository, error) {
	o := buildOptions(opts)
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return &Repository{db: db, sql: sqlDB, now: o.now}, nil
}

func gormConfig(o options) *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(o.logger, o.echo),
		NowFunc:        func() time.Time { return o.now().UTC() },
	}
}

// AutoMigrate creates the schema from the model definitions.
// Used for sqlite; postgres uses the embedded SQL migrations.
func (r *Repository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&model.Account{}, &model.Task{}); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	if r.pool != nil {
		return r.pool.Ping(ctx)
	}
	return r.sql.PingContext(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	_ = r.sql.Close()
	if r.pool != nil {
		r.pool.Close()
	}
}

// Pool returns the underlying pgx pool, or nil for sqlite.
// Use sparingly - prefer adding methods to Repository.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// DB returns the gorm handle.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// isUniqueViolation detects unique constraint failures across drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// PostgreSQL error code 23505 is unique_violation
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
