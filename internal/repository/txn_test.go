package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/repository"
	"github.com/josh-kwaku/canteen-ledger/internal/testutil"
)

func TestTxRunner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		testutil.ResetTables(t, db)
		runner := repository.NewTxRunner(db, 3, time.Millisecond)
		parent := uuid.New()

		err := runner.Run(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO parents (id, email, name) VALUES ($1, 'a@test.com', 'A')`, parent)
			return err
		})
		require.NoError(t, err)

		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM parents WHERE id = $1`, parent).Scan(&n))
		assert.Equal(t, 1, n)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		testutil.ResetTables(t, db)
		runner := repository.NewTxRunner(db, 3, time.Millisecond)
		boom := errors.New("boom")
		attempts := 0

		err := runner.Run(ctx, func(tx *sql.Tx) error {
			attempts++
			if _, err := tx.ExecContext(ctx, `INSERT INTO parents (id, email, name) VALUES ($1, 'b@test.com', 'B')`, uuid.New()); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, attempts, "non-retryable errors must not be retried")

		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM parents`).Scan(&n))
		assert.Zero(t, n)
	})

	t.Run("retries version conflicts then gives up", func(t *testing.T) {
		var retries int
		runner := repository.NewTxRunner(db, 3, time.Millisecond).
			OnRetry(func(error, time.Duration) { retries++ })
		attempts := 0

		err := runner.Run(ctx, func(tx *sql.Tx) error {
			attempts++
			return fmt.Errorf("UpdateBalance: %w", domain.ErrVersionConflict)
		})
		require.ErrorIs(t, err, domain.ErrConflict)
		require.ErrorIs(t, err, domain.ErrVersionConflict)
		assert.Equal(t, domain.KindConflict, domain.Classify(err))
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 2, retries)
	})

	t.Run("succeeds after a transient conflict", func(t *testing.T) {
		runner := repository.NewTxRunner(db, 3, time.Millisecond)
		attempts := 0

		err := runner.Run(ctx, func(tx *sql.Tx) error {
			attempts++
			if attempts == 1 {
				return &pq.Error{Code: "40001"}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
	})
}

func TestWalletRepository_UpdateBalanceChecksVersion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewWalletRepository(db)
	ctx := context.Background()

	owner := testutil.SeedParent(t, db, "w@test.com")
	testutil.SeedWallet(t, db, owner, 500)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	w, err := repo.Get(ctx, tx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(500), w.Balance)

	require.NoError(t, repo.UpdateBalance(ctx, tx, owner, 200, w.Version))
	err = repo.UpdateBalance(ctx, tx, owner, 100, w.Version)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestWalletRepository_BalanceNeverNegative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewWalletRepository(db)
	ctx := context.Background()

	owner := testutil.SeedParent(t, db, "neg@test.com")
	testutil.SeedWallet(t, db, owner, 100)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.UpdateBalance(ctx, tx, owner, -1, 0)
	require.Error(t, err)
}

func TestLedgerRepository_AppendOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewLedgerRepository(db)
	ctx := context.Background()

	owner := testutil.SeedParent(t, db, "l@test.com")
	testutil.SeedWallet(t, db, owner, 500)
	orderID := uuid.New()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, &domain.LedgerEntry{
		ID:              uuid.New(),
		OwnerID:         owner,
		SignedAmount:    -300,
		BalanceBefore:   500,
		BalanceAfter:    200,
		RelatedOrderIDs: []uuid.UUID{orderID},
		Reason:          domain.LedgerReasonSingleOrder,
		CreatedAt:       time.Now().UTC(),
	}))
	require.NoError(t, tx.Commit())

	entries, err := repo.GetByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []uuid.UUID{orderID}, entries[0].RelatedOrderIDs)

	latest, err := repo.Latest(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(200), latest.BalanceAfter)

	all, total, err := repo.GetByOwner(ctx, owner, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, entries[0].ID, all[0].ID, "newest entry first")

	_, err = db.Exec(`UPDATE ledger_entries SET reason = 'top_up' WHERE owner_id = $1`, owner)
	require.Error(t, err)
	_, err = db.Exec(`DELETE FROM ledger_entries WHERE owner_id = $1`, owner)
	require.Error(t, err)
}

func TestLedgerRepository_RejectsInconsistentEntry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewLedgerRepository(db)
	ctx := context.Background()

	owner := testutil.SeedParent(t, db, "bad@test.com")
	testutil.SeedWallet(t, db, owner, 0)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.Create(ctx, tx, &domain.LedgerEntry{
		ID:            uuid.New(),
		OwnerID:       owner,
		SignedAmount:  100,
		BalanceBefore: 0,
		BalanceAfter:  50,
		Reason:        domain.LedgerReasonTopUp,
		CreatedAt:     time.Now().UTC(),
	})
	require.Error(t, err)
}
