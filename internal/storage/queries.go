package storage

import (
	"context"
)

const userColumns = `id, username, email, password_hash, monthly_budget_cents, report_email, budget_set, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.MonthlyBudgetCents,
		&u.ReportEmail,
		&u.BudgetSet,
		&u.CreatedAt,
	)
	return u, err
}

const createUser = `INSERT INTO users (username, email, password_hash, created_at)
VALUES (?, ?, ?, ?)
RETURNING ` + userColumns

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    int64
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, q.rebind(createUser),
		arg.Username,
		arg.Email,
		arg.PasswordHash,
		arg.CreatedAt,
	)
	return scanUser(row)
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, q.rebind(getUserByID), id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, q.rebind(getUserByEmail), email))
}

const countUsersByIdentity = `SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`

func (q *Queries) CountUsersByIdentity(ctx context.Context, username, email string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, q.rebind(countUsersByIdentity), username, email).Scan(&n)
	return n, err
}

const updatePassword = `UPDATE users SET password_hash = ? WHERE id = ?`

func (q *Queries) UpdatePassword(ctx context.Context, id int64, hash string) (int64, error) {
	res, err := q.db.ExecContext(ctx, q.rebind(updatePassword), hash, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateBudget = `UPDATE users
SET monthly_budget_cents = ?, report_email = ?, budget_set = ?
WHERE id = ?`

type UpdateBudgetParams struct {
	ID                 int64
	MonthlyBudgetCents int64
	ReportEmail        string
}

func (q *Queries) UpdateBudget(ctx context.Context, arg UpdateBudgetParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, q.rebind(updateBudget),
		arg.MonthlyBudgetCents,
		arg.ReportEmail,
		true,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listBudgetedUsers = `SELECT ` + userColumns + ` FROM users WHERE budget_set = ? ORDER BY id`

func (q *Queries) ListBudgetedUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, q.rebind(listBudgetedUsers), true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTransaction = `INSERT INTO transactions (user_id, merchant, amount_cents, type, occurred_at, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

type CreateTransactionParams struct {
	UserID      int64
	Merchant    string
	AmountCents int64
	Type        string
	OccurredAt  int64
	CreatedAt   int64
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, q.rebind(createTransaction),
		arg.UserID,
		arg.Merchant,
		arg.AmountCents,
		arg.Type,
		arg.OccurredAt,
		arg.CreatedAt,
	)
	return err
}

const listTransactionsSince = `SELECT id, user_id, merchant, amount_cents, type, occurred_at, created_at
FROM transactions
WHERE user_id = ? AND occurred_at >= ?
ORDER BY occurred_at, id`

func (q *Queries) ListTransactionsSince(ctx context.Context, userID, since int64) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, q.rebind(listTransactionsSince), userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Merchant,
			&i.AmountCents,
			&i.Type,
			&i.OccurredAt,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const sumDebitsSince = `SELECT COALESCE(SUM(amount_cents), 0)
FROM transactions
WHERE user_id = ? AND type = 'debit' AND occurred_at >= ?`

func (q *Queries) SumDebitsSince(ctx context.Context, userID, since int64) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, q.rebind(sumDebitsSince), userID, since).Scan(&total)
	return total, err
}

const countTransactions = `SELECT COUNT(*) FROM transactions WHERE user_id = ?`

func (q *Queries) CountTransactions(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, q.rebind(countTransactions), userID).Scan(&n)
	return n, err
}

const upsertDelivery = `INSERT INTO report_deliveries (user_id, period, status, error, attempted_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, period) DO UPDATE SET
    status = excluded.status,
    error = excluded.error,
    attempted_at = excluded.attempted_at`

type UpsertDeliveryParams struct {
	UserID      int64
	Period      string
	Status      string
	Error       string
	AttemptedAt int64
}

func (q *Queries) UpsertDelivery(ctx context.Context, arg UpsertDeliveryParams) error {
	_, err := q.db.ExecContext(ctx, q.rebind(upsertDelivery),
		arg.UserID,
		arg.Period,
		arg.Status,
		arg.Error,
		arg.AttemptedAt,
	)
	return err
}

const getDelivery = `SELECT id, user_id, period, status, error, attempted_at
FROM report_deliveries
WHERE user_id = ? AND period = ?`

func (q *Queries) GetDelivery(ctx context.Context, userID int64, period string) (ReportDelivery, error) {
	var i ReportDelivery
	err := q.db.QueryRowContext(ctx, q.rebind(getDelivery), userID, period).Scan(
		&i.ID,
		&i.UserID,
		&i.Period,
		&i.Status,
		&i.Error,
		&i.AttemptedAt,
	)
	return i, err
}
