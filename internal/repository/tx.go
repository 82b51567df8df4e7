package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/config"
	"github.com/comment-moderation-api/internal/database"
	"github.com/comment-moderation-api/internal/metrics"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// PostgreSQL error codes that mean "try the whole transaction again"
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqForeignKeyViolation  = "23503"
	pqUniqueViolation      = "23505"
)

// pgTransactor runs moderation transactions on PostgreSQL and retries them
// on serialization failures and deadlocks.
type pgTransactor struct {
	db          *database.DB
	maxAttempts int
	backoff     time.Duration
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewPgTransactor creates a Transactor backed by PostgreSQL
func NewPgTransactor(db *database.DB, cfg config.ModerationConfig, m *metrics.Metrics, log zerolog.Logger) Transactor {
	return &pgTransactor{
		db:          db,
		maxAttempts: cfg.MaxTxAttempts,
		backoff:     cfg.RetryBackoff,
		metrics:     m,
		log:         log.With().Str("component", "pg_tx").Logger(),
	}
}

// WithinTx runs fn inside a transaction, retrying the whole unit on conflict
func (t *pgTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx CommentTx) error) error {
	return withRetry(ctx, t.maxAttempts, t.backoff, isRetryablePgError, func(attempt int, err error) {
		t.metrics.TxRetry(config.DriverPostgres)
		t.log.Warn().Err(err).Int("attempt", attempt).Msg("Transaction conflict, retrying")
	}, func() error {
		return t.runOnce(ctx, fn)
	})
}

func (t *pgTransactor) runOnce(ctx context.Context, fn func(ctx context.Context, tx CommentTx) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback is a no-op once Commit has succeeded
	defer tx.Rollback()

	if err := fn(ctx, &pgCommentTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// withRetry calls run up to maxAttempts times while retryable(err) holds,
// sleeping backoff*attempt in between. Exhausting the budget yields CONFLICT;
// other driver failures come back as DATABASE_ERROR.
func withRetry(
	ctx context.Context,
	maxAttempts int,
	backoff time.Duration,
	retryable func(error) bool,
	onRetry func(attempt int, err error),
	run func() error,
) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := run()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return asDatabaseError(err)
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}

	return apperr.Conflict(fmt.Sprintf("transaction conflict after %d attempts", maxAttempts), lastErr)
}

// asDatabaseError tags uncoded store failures; domain errors and
// cancellation pass through unchanged.
func asDatabaseError(err error) error {
	if apperr.Code(err) != "" || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperr.Database("database error", err)
}

func isRetryablePgError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
	}
	return false
}

// isUUID reports whether id can match a UUID primary key. Anything else
// would make Postgres fail with invalid_text_representation.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func pgErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
