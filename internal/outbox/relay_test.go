package outbox_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/outbox"
	"github.com/josh-kwaku/canteen-ledger/internal/repository"
	"github.com/josh-kwaku/canteen-ledger/internal/testutil"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []domain.OutboxEvent
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, events []domain.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, events...)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func seedEvents(t *testing.T, db *sql.DB, repo *repository.OutboxRepository, n int) []uuid.UUID {
	t.Helper()
	ctx := context.Background()

	ids := make([]uuid.UUID, n)
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	for i := range n {
		order := &domain.Order{
			ID:           uuid.New(),
			ParentID:     uuid.New(),
			StudentID:    uuid.New(),
			TotalAmount:  300,
			Status:       domain.OrderStatusPending,
			Kind:         domain.OrderKindSingle,
			DeliveryDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		}
		ev, err := outbox.NewOrderEvent(order, domain.OutboxEventTypeOrderPlaced, time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, tx, ev))
		ids[i] = ev.ID
	}
	require.NoError(t, tx.Commit())
	return ids
}

func eventStatus(t *testing.T, db *sql.DB, id uuid.UUID) (domain.OutboxEventStatus, int) {
	t.Helper()
	var status domain.OutboxEventStatus
	var attempts int
	err := db.QueryRow(`SELECT status, attempts FROM outbox_events WHERE id = $1`, id).Scan(&status, &attempts)
	require.NoError(t, err)
	return status, attempts
}

func newRelay(db *sql.DB, pub outbox.Publisher) (*outbox.Relay, *repository.OutboxRepository) {
	repo := repository.NewOutboxRepository(db)
	runner := repository.NewTxRunner(db, 1, time.Millisecond)
	return outbox.NewRelay(repo, runner, pub, nil, slog.Default(), time.Second, 10), repo
}

func TestRelay_DispatchesPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pub := &fakePublisher{}
	relay, repo := newRelay(db, pub)
	ctx := context.Background()

	ids := seedEvents(t, db, repo, 3)

	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, pub.published, 3)

	for _, id := range ids {
		status, attempts := eventStatus(t, db, id)
		assert.Equal(t, domain.OutboxEventStatusDispatched, status)
		assert.Equal(t, 1, attempts)
	}

	pending, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, pub.published, 3, "dispatched events must not be published twice")
}

func TestRelay_PublishFailureKeepsEventsPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	relay, repo := newRelay(db, pub)
	ctx := context.Background()

	ids := seedEvents(t, db, repo, 2)

	_, err := relay.ProcessBatch(ctx)
	require.ErrorIs(t, err, pub.err)

	for _, id := range ids {
		status, attempts := eventStatus(t, db, id)
		assert.Equal(t, domain.OutboxEventStatusPending, status)
		assert.Equal(t, 1, attempts)
	}

	pub.err = nil
	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRelay_ParksAfterMaxAttempts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	relay, repo := newRelay(db, pub)
	ctx := context.Background()

	ids := seedEvents(t, db, repo, 1)
	_, err := db.Exec(`UPDATE outbox_events SET attempts = $1 WHERE id = $2`, outbox.DefaultMaxAttempts-1, ids[0])
	require.NoError(t, err)

	_, err = relay.ProcessBatch(ctx)
	require.Error(t, err)

	status, attempts := eventStatus(t, db, ids[0])
	assert.Equal(t, domain.OutboxEventStatusFailed, status)
	assert.Equal(t, outbox.DefaultMaxAttempts, attempts)
}
