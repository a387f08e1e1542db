package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/auth"
	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
)

type walletService interface {
	OpenWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	GetWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	ListEntries(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
}

type WalletHandler struct {
	wallets walletService
}

func NewWalletHandler(wallets walletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

type walletDTO struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWalletDTO(w *domain.Wallet) walletDTO {
	return walletDTO{
		OwnerID:   w.OwnerID,
		Balance:   w.Balance,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

type ledgerEntryDTO struct {
	ID              uuid.UUID   `json:"id"`
	Amount          int64       `json:"amount"`
	BalanceBefore   int64       `json:"balance_before"`
	BalanceAfter    int64       `json:"balance_after"`
	RelatedOrderIDs []uuid.UUID `json:"related_order_ids"`
	Reason          string      `json:"reason"`
	CreatedAt       time.Time   `json:"created_at"`
}

type ledgerPageDTO struct {
	Entries []ledgerEntryDTO `json:"entries"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// Open is idempotent: opening an existing wallet returns it unchanged.
func (h *WalletHandler) Open(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	wallet, err := h.wallets.OpenWallet(r.Context(), ownerID)
	if err != nil {
		logging.FromContext(r.Context()).Error("wallet open failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toWalletDTO(wallet))
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	wallet, err := h.wallets.GetWallet(r.Context(), ownerID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("wallet lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toWalletDTO(wallet))
}

func (h *WalletHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	p, fields := parsePage(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	entries, total, err := h.wallets.ListEntries(r.Context(), ownerID, p.Limit, p.Offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("ledger listing failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]ledgerEntryDTO, 0, len(entries))
	for _, e := range entries {
		ids := e.RelatedOrderIDs
		if ids == nil {
			ids = []uuid.UUID{}
		}
		dtos = append(dtos, ledgerEntryDTO{
			ID:              e.ID,
			Amount:          e.SignedAmount,
			BalanceBefore:   e.BalanceBefore,
			BalanceAfter:    e.BalanceAfter,
			RelatedOrderIDs: ids,
			Reason:          string(e.Reason),
			CreatedAt:       e.CreatedAt,
		})
	}

	RespondSuccess(w, http.StatusOK, ledgerPageDTO{
		Entries: dtos,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
	})
}
