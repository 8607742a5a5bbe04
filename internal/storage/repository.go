package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetmail/internal/core"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateUser = errors.New("username or email already registered")
)

// Delivery statuses stored in report_deliveries. Queued means the report
// sits in the AMQP outbox and the mail worker has not confirmed it yet.
const (
	DeliveryQueued = "queued"
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// PeriodLayout formats a report period key (YYYY-MM).
const PeriodLayout = "2006-01"

type Repository struct {
	db      *sql.DB
	dialect string
	queries *Queries
}

// Open connects to the database, runs migrations and returns a ready repository.
// dialect is "sqlite" (dsn is a file path) or "postgres" (dsn is a connection URL).
func Open(dialect, dsn string) (*Repository, error) {
	switch dialect {
	case DialectSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = withSQLitePragmas(dsn)
	case DialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	db, err := sql.Open(driverName(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One writer at a time; avoids SQLITE_BUSY between the request path and the scheduler.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		dialect: dialect,
		queries: New(db, dialect),
	}, nil
}

func withSQLitePragmas(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser registers a new account. Username and email must both be unused.
func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error) {
	n, err := r.queries.CountUsersByIdentity(ctx, username, email)
	if err != nil {
		return core.User{}, fmt.Errorf("check existing user: %w", err)
	}
	if n > 0 {
		return core.User{}, ErrDuplicateUser
	}

	u, err := r.queries.CreateUser(ctx, CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Unix(),
	})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID, "username", u.Username)
	return toCoreUser(u), nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	u, err := r.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return toCoreUser(u), nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return toCoreUser(u), nil
}

func (r *Repository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	n, err := r.queries.UpdatePassword(ctx, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveBudget stores the budget settings and marks the user as budgeted.
// Saving the same settings twice leaves the same state.
func (r *Repository) SaveBudget(ctx context.Context, userID int64, settings core.BudgetSettings) error {
	n, err := r.queries.UpdateBudget(ctx, UpdateBudgetParams{
		ID:                 userID,
		MonthlyBudgetCents: settings.MonthlyBudget.Cents,
		ReportEmail:        settings.ReportEmail,
	})
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Budget saved",
		"user_id", userID,
		"budget_cents", settings.MonthlyBudget.Cents)
	return nil
}

// ListBudgetedUsers returns every user with BudgetSet, ordered by id.
func (r *Repository) ListBudgetedUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.queries.ListBudgetedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgeted users: %w", err)
	}
	users := make([]core.User, len(rows))
	for i, u := range rows {
		users[i] = toCoreUser(u)
	}
	return users, nil
}

// InsertTransactions appends a feed batch for userID in one database
// transaction: either every row is stored or none is.
func (r *Repository) InsertTransactions(ctx context.Context, userID int64, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	now := time.Now().Unix()
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		if err := q.CreateTransaction(ctx, CreateTransactionParams{
			UserID:      userID,
			Merchant:    t.Merchant,
			AmountCents: t.Amount.Cents,
			Type:        string(t.Type),
			OccurredAt:  t.Time.Unix(),
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("insert transaction %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transactions: %w", err)
	}

	slog.DebugContext(ctx, "Transactions stored", "user_id", userID, "count", len(txs))
	return nil
}

// ListTransactionsSince returns the user's transactions at or after since, oldest first.
func (r *Repository) ListTransactionsSince(ctx context.Context, userID int64, since time.Time) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsSince(ctx, userID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, len(rows))
	for i, t := range rows {
		out[i] = core.Transaction{
			ID:       t.ID,
			UserID:   t.UserID,
			Merchant: t.Merchant,
			Amount:   core.Money{Cents: t.AmountCents},
			Type:     core.TransactionType(t.Type),
			Time:     time.Unix(t.OccurredAt, 0).In(since.Location()),
		}
	}
	return out, nil
}

// MonthlySpent sums the user's debits at or after monthStart.
func (r *Repository) MonthlySpent(ctx context.Context, userID int64, monthStart time.Time) (core.Money, error) {
	total, err := r.queries.SumDebitsSince(ctx, userID, monthStart.Unix())
	if err != nil {
		return core.Money{}, fmt.Errorf("sum monthly spending: %w", err)
	}
	return core.Money{Cents: total}, nil
}

// CountTransactions returns how many transactions are stored for userID.
func (r *Repository) CountTransactions(ctx context.Context, userID int64) (int64, error) {
	n, err := r.queries.CountTransactions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// RecordDelivery stores the state of the report for period, replacing any
// earlier attempt. detail carries the failure reason and is empty otherwise.
func (r *Repository) RecordDelivery(ctx context.Context, userID int64, period time.Time, status, detail string) error {
	switch status {
	case DeliveryQueued, DeliverySent, DeliveryFailed:
	default:
		return fmt.Errorf("record delivery: unknown status %q", status)
	}
	if err := r.queries.UpsertDelivery(ctx, UpsertDeliveryParams{
		UserID:      userID,
		Period:      period.Format(PeriodLayout),
		Status:      status,
		Error:       detail,
		AttemptedAt: time.Now().Unix(),
	}); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// DeliveryStatus returns the recorded status for (userID, period), or "" if
// no attempt was recorded.
func (r *Repository) DeliveryStatus(ctx context.Context, userID int64, period time.Time) (string, error) {
	d, err := r.queries.GetDelivery(ctx, userID, period.Format(PeriodLayout))
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get delivery: %w", err)
	}
	return d.Status, nil
}

func toCoreUser(u User) core.User {
	return core.User{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		MonthlyBudget: core.Money{Cents: u.MonthlyBudgetCents},
		ReportEmail:   u.ReportEmail,
		BudgetSet:     u.BudgetSet,
		CreatedAt:     time.Unix(u.CreatedAt, 0),
	}
}
