package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

type fakeWalletService struct {
	wallet  *domain.Wallet
	entries []domain.LedgerEntry
	total   int
	err     error
}

func (f *fakeWalletService) OpenWallet(_ context.Context, owner uuid.UUID) (*domain.Wallet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Wallet{OwnerID: owner}, nil
}

func (f *fakeWalletService) GetWallet(context.Context, uuid.UUID) (*domain.Wallet, error) {
	return f.wallet, f.err
}

func (f *fakeWalletService) ListEntries(context.Context, uuid.UUID, int, int) ([]domain.LedgerEntry, int, error) {
	return f.entries, f.total, f.err
}

func TestWalletHandler_Open(t *testing.T) {
	owner := uuid.New()
	rec := httptest.NewRecorder()

	NewWalletHandler(&fakeWalletService{}).Open(rec, authedRequest(http.MethodPost, "/api/v1/wallet", "", owner))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data walletDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, owner, resp.Data.OwnerID)
	assert.Equal(t, int64(0), resp.Data.Balance)
}

func TestWalletHandler_Get_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()

	NewWalletHandler(&fakeWalletService{err: domain.ErrWalletNotFound}).Get(rec, authedRequest(http.MethodGet, "/api/v1/wallet", "", uuid.New()))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "WALLET_NOT_FOUND", decodeError(t, rec).Error.Code)
}

func TestWalletHandler_Ledger(t *testing.T) {
	svc := &fakeWalletService{
		entries: []domain.LedgerEntry{
			{ID: uuid.New(), SignedAmount: -300, BalanceBefore: 500, BalanceAfter: 200, Reason: domain.LedgerReasonSingleOrder, RelatedOrderIDs: []uuid.UUID{uuid.New()}},
			{ID: uuid.New(), SignedAmount: 500, BalanceBefore: 0, BalanceAfter: 500, Reason: domain.LedgerReasonTopUp},
		},
		total: 2,
	}
	rec := httptest.NewRecorder()

	NewWalletHandler(svc).Ledger(rec, authedRequest(http.MethodGet, "/api/v1/wallet/ledger", "", uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data ledgerPageDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Entries, 2)
	assert.Equal(t, int64(-300), resp.Data.Entries[0].Amount)
	assert.Equal(t, "single_order", resp.Data.Entries[0].Reason)
	assert.NotNil(t, resp.Data.Entries[1].RelatedOrderIDs)
	assert.Equal(t, 20, resp.Data.Limit)
}

func TestWalletHandler_Ledger_BadPage(t *testing.T) {
	rec := httptest.NewRecorder()

	NewWalletHandler(&fakeWalletService{}).Ledger(rec, authedRequest(http.MethodGet, "/api/v1/wallet/ledger?limit=500", "", uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
