package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
)

type walletRepo interface {
	Create(ctx context.Context, ownerID uuid.UUID, now time.Time) error
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	Get(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, newBalance int64, expectedVersion int64) error
}

type entryRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
	GetByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
}

type txRunner interface {
	Run(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Movement is the result of one balance change.
type Movement struct {
	EntryID       uuid.UUID
	BalanceBefore int64
	NewBalance    int64
}

// Ledger owns every wallet balance change. Each change is a version-checked
// balance update plus one appended entry, written inside the caller's transaction.
type Ledger struct {
	wallets walletRepo
	entries entryRepo
	tx      txRunner
	now     func() time.Time
}

func NewLedger(wallets walletRepo, entries entryRepo, tx txRunner) *Ledger {
	return &Ledger{
		wallets: wallets,
		entries: entries,
		tx:      tx,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Debit fails with *domain.InsufficientFundsError, writing nothing, when the
// balance does not cover amount.
func (l *Ledger) Debit(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, amount int64, orderIDs []uuid.UUID, reason domain.LedgerReason) (*Movement, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("Debit: %w", domain.ErrInvalidAmount)
	}

	w, err := l.wallets.Get(ctx, tx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}
	if w.Balance < amount {
		return nil, fmt.Errorf("Debit: %w", &domain.InsufficientFundsError{Required: amount, Available: w.Balance})
	}

	mv, err := l.apply(ctx, tx, w, -amount, orderIDs, reason)
	if err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}
	return mv, nil
}

func (l *Ledger) Credit(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, amount int64, orderIDs []uuid.UUID, reason domain.LedgerReason) (*Movement, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("Credit: %w", domain.ErrInvalidAmount)
	}

	w, err := l.wallets.Get(ctx, tx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("Credit: %w", err)
	}

	mv, err := l.apply(ctx, tx, w, amount, orderIDs, reason)
	if err != nil {
		return nil, fmt.Errorf("Credit: %w", err)
	}
	return mv, nil
}

// Balance reads the current balance inside tx.
func (l *Ledger) Balance(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID) (int64, error) {
	w, err := l.wallets.Get(ctx, tx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("Balance: %w", err)
	}
	return w.Balance, nil
}

func (l *Ledger) apply(ctx context.Context, tx *sql.Tx, w *domain.Wallet, signed int64, orderIDs []uuid.UUID, reason domain.LedgerReason) (*Movement, error) {
	newBalance := w.Balance + signed

	if err := l.wallets.UpdateBalance(ctx, tx, w.OwnerID, newBalance, w.Version); err != nil {
		return nil, err
	}

	if orderIDs == nil {
		orderIDs = []uuid.UUID{}
	}
	entry := &domain.LedgerEntry{
		ID:              uuid.New(),
		OwnerID:         w.OwnerID,
		SignedAmount:    signed,
		BalanceBefore:   w.Balance,
		BalanceAfter:    newBalance,
		RelatedOrderIDs: orderIDs,
		Reason:          reason,
		CreatedAt:       l.now(),
	}
	if err := l.entries.Create(ctx, tx, entry); err != nil {
		return nil, err
	}

	return &Movement{EntryID: entry.ID, BalanceBefore: w.Balance, NewBalance: newBalance}, nil
}

// TopUp credits a wallet in its own unit of work. It is the entry point for
// the external top-up approval flow; reference is that flow's identifier.
func (l *Ledger) TopUp(ctx context.Context, ownerID uuid.UUID, amount int64, reference string) (*Movement, error) {
	log := logging.FromContext(ctx)

	var mv *Movement
	err := l.tx.Run(ctx, func(tx *sql.Tx) error {
		var err error
		mv, err = l.Credit(ctx, tx, ownerID, amount, nil, domain.LedgerReasonTopUp)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("TopUp: %w", err)
	}

	log.Info("wallet topped up",
		"owner_id", ownerID,
		"amount", amount,
		"new_balance", mv.NewBalance,
		"reference", reference,
	)
	return mv, nil
}

func (l *Ledger) OpenWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	if err := l.wallets.Create(ctx, ownerID, l.now()); err != nil {
		return nil, fmt.Errorf("OpenWallet: %w", err)
	}
	w, err := l.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("OpenWallet: %w", err)
	}
	return w, nil
}

func (l *Ledger) GetWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	w, err := l.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("GetWallet: %w", err)
	}
	return w, nil
}

func (l *Ledger) ListEntries(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	entries, total, err := l.entries.GetByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEntries: %w", err)
	}
	return entries, total, nil
}
