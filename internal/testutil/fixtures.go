package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

func SeedParent(t *testing.T, db *sql.DB, email string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO parents (id, email, name) VALUES ($1, $2, $3)`,
		id, email, "Parent "+email,
	)
	if err != nil {
		t.Fatalf("seed parent %s: %v", email, err)
	}
	return id
}

// SeedStudent creates a student linked to parentID.
func SeedStudent(t *testing.T, db *sql.DB, parentID uuid.UUID, name string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	if _, err := db.Exec(`INSERT INTO students (id, name) VALUES ($1, $2)`, id, name); err != nil {
		t.Fatalf("seed student %s: %v", name, err)
	}
	LinkStudent(t, db, parentID, id)
	return id
}

func SeedUnlinkedStudent(t *testing.T, db *sql.DB, name string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	if _, err := db.Exec(`INSERT INTO students (id, name) VALUES ($1, $2)`, id, name); err != nil {
		t.Fatalf("seed student %s: %v", name, err)
	}
	return id
}

func LinkStudent(t *testing.T, db *sql.DB, parentID, studentID uuid.UUID) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO parent_students (parent_id, student_id) VALUES ($1, $2)`,
		parentID, studentID,
	)
	if err != nil {
		t.Fatalf("link student %s to parent %s: %v", studentID, parentID, err)
	}
}

func UnlinkStudent(t *testing.T, db *sql.DB, parentID, studentID uuid.UUID) {
	t.Helper()

	_, err := db.Exec(
		`DELETE FROM parent_students WHERE parent_id = $1 AND student_id = $2`,
		parentID, studentID,
	)
	if err != nil {
		t.Fatalf("unlink student %s from parent %s: %v", studentID, parentID, err)
	}
}

func SeedMenuItem(t *testing.T, db *sql.DB, name, price string, available bool) domain.MenuItem {
	t.Helper()

	m := domain.MenuItem{
		ID:        uuid.New(),
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Available: available,
	}
	_, err := db.Exec(
		`INSERT INTO menu_items (id, name, price, available) VALUES ($1, $2, $3, $4)`,
		m.ID, m.Name, m.Price.String(), m.Available,
	)
	if err != nil {
		t.Fatalf("seed menu item %s: %v", name, err)
	}
	return m
}

// SeedWallet opens a wallet holding balance. A non-zero balance is backed by a
// top_up entry so the newest entry always agrees with the wallet.
func SeedWallet(t *testing.T, db *sql.DB, ownerID uuid.UUID, balance int64) {
	t.Helper()

	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO wallets (owner_id, balance, version, created_at, updated_at)
		 VALUES ($1, $2, 0, $3, $3)`,
		ownerID, balance, now,
	)
	if err != nil {
		t.Fatalf("seed wallet %s: %v", ownerID, err)
	}
	if balance == 0 {
		return
	}

	_, err = db.Exec(
		`INSERT INTO ledger_entries (id, owner_id, signed_amount, balance_before, balance_after, reason, created_at)
		 VALUES ($1, $2, $3, 0, $3, $4, $5)`,
		uuid.New(), ownerID, balance, domain.LedgerReasonTopUp, now,
	)
	if err != nil {
		t.Fatalf("seed wallet entry %s: %v", ownerID, err)
	}
}

func GetWalletBalance(t *testing.T, db *sql.DB, ownerID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(`SELECT balance FROM wallets WHERE owner_id = $1`, ownerID).Scan(&balance)
	if err != nil {
		t.Fatalf("get wallet balance %s: %v", ownerID, err)
	}
	return balance
}

func CountOrders(t *testing.T, db *sql.DB, parentID uuid.UUID) int {
	t.Helper()
	return count(t, db, `SELECT COUNT(*) FROM orders WHERE parent_id = $1`, parentID)
}

func CountLedgerEntries(t *testing.T, db *sql.DB, ownerID uuid.UUID) int {
	t.Helper()
	return count(t, db, `SELECT COUNT(*) FROM ledger_entries WHERE owner_id = $1`, ownerID)
}

// CountDebitsForOrder counts debit entries referencing orderID.
func CountDebitsForOrder(t *testing.T, db *sql.DB, orderID uuid.UUID) int {
	t.Helper()
	return count(t, db,
		`SELECT COUNT(*) FROM ledger_entries WHERE signed_amount < 0 AND $1 = ANY(related_order_ids)`,
		orderID,
	)
}

func CountOutboxEvents(t *testing.T, db *sql.DB, eventType domain.OutboxEventType) int {
	t.Helper()
	return count(t, db, `SELECT COUNT(*) FROM outbox_events WHERE event_type = $1`, eventType)
}

// LatestBalanceAfter returns balance_after of the owner's newest ledger entry.
func LatestBalanceAfter(t *testing.T, db *sql.DB, ownerID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(
		`SELECT balance_after FROM ledger_entries WHERE owner_id = $1 ORDER BY seq DESC LIMIT 1`,
		ownerID,
	).Scan(&balance)
	if err != nil {
		t.Fatalf("latest ledger entry %s: %v", ownerID, err)
	}
	return balance
}

func count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()

	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return n
}
