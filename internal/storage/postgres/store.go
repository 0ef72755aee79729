package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/Togather-Foundation/eventplus/internal/domain/users"
	"github.com/Togather-Foundation/eventplus/internal/metrics"
	"github.com/Togather-Foundation/eventplus/internal/storage"
	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var _ storage.Repository = (*Store)(nil)

const (
	// DefaultTxAttempts bounds how often a transaction is run when it keeps
	// failing transiently.
	DefaultTxAttempts = 3
	defaultTxBackoff  = 50 * time.Millisecond
)

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements storage.Repository on PostgreSQL. A Store returned inside
// WithTx is bound to that transaction.
type Store struct {
	pool        *pgxpool.Pool
	tx          pgx.Tx
	txAttempts  uint
	initialWait time.Duration
	logger      zerolog.Logger
}

type Option func(*Store)

// WithTxRetry sets the number of attempts and the first backoff interval for
// transactions that fail with serialization, deadlock or connection errors.
func WithTxRetry(attempts uint, initialWait time.Duration) Option {
	return func(s *Store) {
		if attempts > 0 {
			s.txAttempts = attempts
		}
		if initialWait > 0 {
			s.initialWait = initialWait
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger.With().Str("component", "postgres").Logger()
	}
}

func NewStore(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	s := &Store{
		pool:        pool,
		txAttempts:  DefaultTxAttempts,
		initialWait: defaultTxBackoff,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) queryer() queryer {
	if s.tx != nil {
		return s.tx
	}
	return s.pool
}

func (s *Store) Events() events.EventRepository {
	return &EventRepository{q: s.queryer()}
}

func (s *Store) Attendance() events.AttendanceRepository {
	return &AttendanceRepository{q: s.queryer()}
}

func (s *Store) Comments() events.CommentRepository {
	return &CommentRepository{q: s.queryer()}
}

func (s *Store) Users() users.Repository {
	return &UserRepository{q: s.queryer()}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx runs fn in a read-committed transaction. Transient failures roll back
// and rerun fn with exponential backoff; once attempts are exhausted the error
// is reported as ErrStoreUnavailable. Nested calls reuse the open transaction.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, events.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.initialWait
	policy.MaxInterval = 20 * s.initialWait

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := s.runTx(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if !isTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		metrics.RecordRetry("tx")
		s.logger.Warn().Err(err).Int("attempt", attempt).Msg("transaction failed transiently")
		return struct{}{}, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(s.txAttempts))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, events.ErrStoreUnavailable):
		return err
	case isTransient(err):
		return events.ErrStoreUnavailable.WithCause(err)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(context.Context, events.Store) error) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("tx", start, err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txStore := &Store{pool: s.pool, tx: tx, logger: s.logger}
	if err := fn(ctx, txStore); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback after error %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
