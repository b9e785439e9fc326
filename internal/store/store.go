// Package store owns the relational store: connection lifecycle for
// external and embedded PostgreSQL, idempotent schema creation, and
// bulk replacement of the three source tables. The handle is passed
// explicitly to each pipeline stage and closed by the caller at the
// end of a run.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

// Table names as created by EnsureSchema.
const (
	TableBedType      = "bed_type_table"
	TableBedFact      = "bed_fact_table"
	TableBusiness     = "business_table"
	TableCombined     = "combined_table"
	TableCombinedMeta = "combined_meta"
)

const (
	embeddedUser = "bedcap"
	embeddedPass = "bedcap"
	embeddedDB   = "bedcap"

	defaultPort         = 15432
	defaultDataDir      = ".bedcap/pgdata"
	defaultRuntimeDir   = ".bedcap/pgruntime"
	defaultStartTimeout = 60 * time.Second
)

// Options selects the backing server. When Embedded is set a private
// PostgreSQL instance is started on DataDir and stopped on Close; the
// data directory persists across runs until deleted externally.
// Otherwise DSN must point at a running server.
type Options struct {
	DSN string

	Embedded     bool
	DataDir      string
	RuntimeDir   string
	Port         uint32
	StartTimeout time.Duration

	MaxConns int32
}

// Store is an open handle on the bed capacity store.
type Store struct {
	pool     *pgxpool.Pool
	embedded *embeddedpostgres.EmbeddedPostgres
	log      *zap.Logger
}

// Open connects to the configured server, starting the embedded one
// first when requested, and verifies the connection with a ping.
func Open(ctx context.Context, opts Options, log *zap.Logger) (*Store, error) {
	dsn := opts.DSN
	var embedded *embeddedpostgres.EmbeddedPostgres

	if opts.Embedded {
		var err error
		embedded, dsn, err = startEmbedded(opts, log)
		if err != nil {
			return nil, err
		}
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		stopEmbedded(embedded, log)
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		stopEmbedded(embedded, log)
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		stopEmbedded(embedded, log)
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{pool: pool, embedded: embedded, log: log}, nil
}

func startEmbedded(opts Options, log *zap.Logger) (*embeddedpostgres.EmbeddedPostgres, string, error) {
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	runtimeDir := opts.RuntimeDir
	if runtimeDir == "" {
		runtimeDir = defaultRuntimeDir
	}
	port := opts.Port
	if port == 0 {
		port = defaultPort
	}
	timeout := opts.StartTimeout
	if timeout == 0 {
		timeout = defaultStartTimeout
	}

	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolve data dir: %w", err)
	}
	runtimeDir, err = filepath.Abs(runtimeDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolve runtime dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dataDir), 0o755); err != nil {
		return nil, "", fmt.Errorf("create data dir: %w", err)
	}

	pg := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		Username(embeddedUser).
		Password(embeddedPass).
		Database(embeddedDB).
		Port(port).
		DataPath(dataDir).
		RuntimePath(runtimeDir).
		StartTimeout(timeout))

	if err := pg.Start(); err != nil {
		return nil, "", fmt.Errorf("start embedded postgres: %w", err)
	}
	log.Info("embedded postgres started",
		zap.Uint32("port", port),
		zap.String("data_dir", dataDir))

	dsn := fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		embeddedUser, embeddedPass, port, embeddedDB)
	return pg, dsn, nil
}

func stopEmbedded(pg *embeddedpostgres.EmbeddedPostgres, log *zap.Logger) {
	if pg == nil {
		return
	}
	if err := pg.Stop(); err != nil {
		log.Warn("stop embedded postgres", zap.Error(err))
	}
}

// Close releases the pool and stops the embedded server if one was
// started. Call exactly once at the end of a run, success or failure.
func (s *Store) Close() {
	s.pool.Close()
	stopEmbedded(s.embedded, s.log)
}

// Pool exposes the underlying connection pool for the query stages.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// EnsureSchema creates every missing table by name. Existing tables
// are left untouched whatever their shape.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// TableExists reports whether a table of the given name exists in the
// current search path.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", name, err)
	}
	return exists, nil
}
