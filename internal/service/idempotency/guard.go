package idempotency

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
)

type store interface {
	Get(ctx context.Context, ownerID uuid.UUID, key string) (*domain.IdempotencyRecord, error)
	Claim(ctx context.Context, tx *sql.Tx, rec *domain.IdempotencyRecord) error
	Complete(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, key string, orderIDs []uuid.UUID, newBalance int64) error
	CleanExpired(ctx context.Context) (int64, error)
}

// Outcome is what a replayed request receives.
type Outcome struct {
	OrderIDs   []uuid.UUID
	NewBalance int64
}

// Guard maps (owner, key) to the outcome of the first request that used it.
type Guard struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

func NewGuard(s store, ttl time.Duration) *Guard {
	return &Guard{
		store: s,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Lookup returns nil when the key is unused or expired. A live key recorded
// for a different operation or payload fails with ErrIdempotencyKeyReuse.
func (g *Guard) Lookup(ctx context.Context, ownerID uuid.UUID, key string, op domain.IdempotencyOperation, requestHash string) (*Outcome, error) {
	rec, err := g.store.Get(ctx, ownerID, key)
	if err != nil {
		return nil, fmt.Errorf("Lookup: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	if rec.Operation != op || rec.RequestHash != requestHash {
		return nil, fmt.Errorf("Lookup: %w", domain.ErrIdempotencyKeyReuse)
	}
	if !rec.Completed() {
		return nil, fmt.Errorf("Lookup: %w", domain.ErrIdempotencyOutcomeAbsent)
	}
	return &Outcome{OrderIDs: rec.OrderIDs, NewBalance: *rec.NewBalance}, nil
}

// Claim reserves the key inside tx so it commits or rolls back together with
// the work it guards.
func (g *Guard) Claim(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, key string, op domain.IdempotencyOperation, requestHash string) error {
	now := g.now()
	rec := &domain.IdempotencyRecord{
		OwnerID:     ownerID,
		Key:         key,
		Operation:   op,
		RequestHash: requestHash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(g.ttl),
	}
	if err := g.store.Claim(ctx, tx, rec); err != nil {
		return fmt.Errorf("Claim: %w", err)
	}
	return nil
}

func (g *Guard) Complete(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, key string, out Outcome) error {
	if err := g.store.Complete(ctx, tx, ownerID, key, out.OrderIDs, out.NewBalance); err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	return nil
}

func (g *Guard) Purge(ctx context.Context) (int64, error) {
	n, err := g.store.CleanExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("Purge: %w", err)
	}
	if n > 0 {
		logging.FromContext(ctx).Info("expired idempotency keys purged", "count", n)
	}
	return n, nil
}

// Hash fingerprints a request. encoding/json sorts map keys and emits struct
// fields in declaration order, so equal payloads hash equally.
func Hash(op domain.IdempotencyOperation, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("Hash: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(op))
	h.Write([]byte{0})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil)), nil
}
