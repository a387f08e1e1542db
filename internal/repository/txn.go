package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// TxRunner executes a unit of work inside one database transaction. Units that
// fail on an optimistic lock or a serialization failure are rolled back and
// re-run from scratch, up to maxAttempts times with exponential backoff.
type TxRunner struct {
	db          *sql.DB
	maxAttempts int
	baseDelay   time.Duration
	onRetry     func(err error, wait time.Duration)
}

func NewTxRunner(db *sql.DB, maxAttempts int, baseDelay time.Duration) *TxRunner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &TxRunner{db: db, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

// OnRetry registers a hook invoked before each retry.
func (r *TxRunner) OnRetry(fn func(err error, wait time.Duration)) *TxRunner {
	r.onRetry = fn
	return r
}

func (r *TxRunner) Run(ctx context.Context, fn func(tx *sql.Tx) error) error {
	op := func() error {
		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		if r.onRetry != nil {
			r.onRetry(err, wait)
		}
	}

	err := backoff.RetryNotify(op, backoff.WithContext(r.newBackOff(), ctx), notify)
	if err == nil {
		return nil
	}
	if isRetryable(err) {
		return fmt.Errorf("Run: %w: %w", domain.ErrConflict, err)
	}
	return err
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *TxRunner) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.baseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.5
	eb.MaxInterval = time.Second
	eb.MaxElapsedTime = 0
	return backoff.WithMaxRetries(eb, uint64(r.maxAttempts-1))
}

func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrVersionConflict) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
	}
	return false
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDArray(raw pq.StringArray) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parseUUIDArray: %w", err)
		}
		out[i] = id
	}
	return out, nil
}
