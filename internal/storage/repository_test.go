package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgetmail/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(DialectSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCreateUser(t *testing.T, repo *Repository, name string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), name, name+"@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u
}

func TestRepository_CreateAndGetUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := mustCreateUser(t, repo, "alice")
	if u.ID == 0 || u.BudgetSet {
		t.Fatalf("unexpected new user: %+v", u)
	}

	byEmail, err := repo.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || byEmail.ID != u.ID {
		t.Fatalf("GetUserByEmail() = %+v, %v", byEmail, err)
	}
	byID, err := repo.GetUserByID(ctx, u.ID)
	if err != nil || byID.Username != "alice" {
		t.Fatalf("GetUserByID() = %+v, %v", byID, err)
	}

	if _, err := repo.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.CreateUser(ctx, "alice", "other@example.com", "hash"); !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser for username, got %v", err)
	}
	if _, err := repo.CreateUser(ctx, "bob", "alice@example.com", "hash"); !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser for email, got %v", err)
	}
}

func TestRepository_UpdatePassword(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustCreateUser(t, repo, "carol")

	if err := repo.UpdatePassword(ctx, u.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	got, _ := repo.GetUserByID(ctx, u.ID)
	if got.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q", got.PasswordHash)
	}
	if err := repo.UpdatePassword(ctx, 9999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepository_SaveBudgetIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustCreateUser(t, repo, "dave")
	other := mustCreateUser(t, repo, "erin")

	settings := core.BudgetSettings{MonthlyBudget: core.Money{Cents: 20000}, ReportEmail: "reports@example.com"}
	for i := 0; i < 2; i++ {
		if err := repo.SaveBudget(ctx, u.ID, settings); err != nil {
			t.Fatalf("SaveBudget() #%d error = %v", i, err)
		}
		got, err := repo.GetUserByID(ctx, u.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !got.BudgetSet || got.MonthlyBudget.Cents != 20000 || got.ReportEmail != "reports@example.com" {
			t.Fatalf("after save #%d: %+v", i, got)
		}
	}

	users, err := repo.ListBudgetedUsers(ctx)
	if err != nil {
		t.Fatalf("ListBudgetedUsers() error = %v", err)
	}
	if len(users) != 1 || users[0].ID != u.ID {
		t.Fatalf("expected only %d budgeted, got %+v (other=%d)", u.ID, users, other.ID)
	}
}

func TestRepository_InsertTransactionsAndMonthlySpent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustCreateUser(t, repo, "frank")

	monthStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	batch := []core.Transaction{
		{Merchant: "Old", Amount: core.Money{Cents: 999}, Type: core.Debit, Time: monthStart.Add(-time.Hour)},
		{Merchant: "A", Amount: core.Money{Cents: 10000}, Type: core.Debit, Time: monthStart.Add(time.Hour)},
		{Merchant: "B", Amount: core.Money{Cents: 5000}, Type: core.Debit, Time: monthStart.Add(2 * time.Hour)},
		{Merchant: "A", Amount: core.Money{Cents: 3000}, Type: core.Credit, Time: monthStart.Add(3 * time.Hour)},
	}
	if err := repo.InsertTransactions(ctx, u.ID, batch); err != nil {
		t.Fatalf("InsertTransactions() error = %v", err)
	}

	spent, err := repo.MonthlySpent(ctx, u.ID, monthStart)
	if err != nil || spent.Cents != 15000 {
		t.Fatalf("MonthlySpent() = %d, %v; want 15000", spent.Cents, err)
	}

	txs, err := repo.ListTransactionsSince(ctx, u.ID, monthStart)
	if err != nil {
		t.Fatalf("ListTransactionsSince() error = %v", err)
	}
	if len(txs) != 3 || txs[0].Merchant != "A" || txs[2].Type != core.Credit {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
	if !txs[0].Time.Equal(monthStart.Add(time.Hour)) {
		t.Errorf("time round-trip: got %v", txs[0].Time)
	}
}

func TestRepository_InsertTransactionsIsAtomic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustCreateUser(t, repo, "grace")

	now := time.Now()
	batch := []core.Transaction{
		{Merchant: "Good", Amount: core.Money{Cents: 100}, Type: core.Debit, Time: now},
		{Merchant: "Bad", Amount: core.Money{Cents: 100}, Type: "refund", Time: now},
	}
	if err := repo.InsertTransactions(ctx, u.ID, batch); err == nil {
		t.Fatal("expected error for invalid transaction")
	}

	n, err := repo.CountTransactions(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected no rows committed, got %d", n)
	}
}

func TestRepository_Deliveries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustCreateUser(t, repo, "heidi")
	period := time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC)

	status, err := repo.DeliveryStatus(ctx, u.ID, period)
	if err != nil || status != "" {
		t.Fatalf("DeliveryStatus() = %q, %v; want empty", status, err)
	}

	for _, status := range []string{DeliveryFailed, DeliveryQueued, DeliverySent} {
		detail := ""
		if status == DeliveryFailed {
			detail = "smtp down"
		}
		if err := repo.RecordDelivery(ctx, u.ID, period, status, detail); err != nil {
			t.Fatalf("RecordDelivery(%s) error = %v", status, err)
		}
		if got, _ := repo.DeliveryStatus(ctx, u.ID, period); got != status {
			t.Fatalf("status = %q, want %q", got, status)
		}
	}

	if err := repo.RecordDelivery(ctx, u.ID, period, "bounced", ""); err == nil {
		t.Error("expected an error for an unknown status")
	}

	// Different period is tracked separately.
	next := period.AddDate(0, 1, 0)
	if status, _ := repo.DeliveryStatus(ctx, u.ID, next); status != "" {
		t.Fatalf("expected no delivery for next period, got %q", status)
	}
}

func TestRebind(t *testing.T) {
	pg := New(nil, DialectPostgres)
	if got := pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := New(nil, DialectSQLite)
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}
