package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/lib/pq"
	"github.com/mohammad-safakhou/policylens/config"
	"github.com/mohammad-safakhou/policylens/internal/errs"
	"github.com/mohammad-safakhou/policylens/internal/runtime"
	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Store persists users, tags, policies, chats and messages in Postgres.
type Store struct {
	DB *sql.DB
}

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

var (
	metricsOnce    sync.Once
	policyCounter  otelmetric.Int64Counter
	messageCounter otelmetric.Int64Counter
	metricsInitErr error
)

func initStoreMetrics() {
	meter := otel.Meter("store")
	var err error
	policyCounter, err = meter.Int64Counter("policies_stored_total")
	if err != nil {
		metricsInitErr = err
		return
	}
	messageCounter, err = meter.Int64Counter("chat_messages_stored_total")
	if err != nil {
		metricsInitErr = err
	}
}

// New opens the store described by cfg.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	dsn, err := runtime.BuildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// mapErr classifies driver errors into errs kinds.
func mapErr(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound(kind, id)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return errs.Conflict(kind+" "+id, err)
	}
	return err
}

// expectOne turns a zero-row write into a not-found error.
func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.NotFound(kind, id)
	}
	return nil
}
