package storage

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the raw SQL statements. Repository methods translate
// between these rows and core types.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// TransactionRow mirrors a row of the transactions table.
type TransactionRow struct {
	ID            int64
	Type          string
	AmountCents   int64
	Category      string
	Description   string
	Date          string
	PaymentMethod string
	Notes         string
	CreatedAt     string
	UpdatedAt     string
	ExportedAt    sql.NullString
}

const transactionColumns = `id, type, amount_cents, category, description, date, payment_method, notes, created_at, updated_at, exported_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (TransactionRow, error) {
	var t TransactionRow
	err := row.Scan(
		&t.ID,
		&t.Type,
		&t.AmountCents,
		&t.Category,
		&t.Description,
		&t.Date,
		&t.PaymentMethod,
		&t.Notes,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.ExportedAt,
	)
	return t, err
}

func scanTransactions(rows *sql.Rows) ([]TransactionRow, error) {
	defer rows.Close()
	var out []TransactionRow
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const createTransaction = `
INSERT INTO transactions (type, amount_cents, category, description, date, payment_method, notes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
	Type          string
	AmountCents   int64
	Category      string
	Description   string
	Date          string
	PaymentMethod string
	Notes         string
	Now           string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.Type,
		arg.AmountCents,
		arg.Category,
		arg.Description,
		arg.Date,
		arg.PaymentMethod,
		arg.Notes,
		arg.Now,
		arg.Now,
	)
	return scanTransaction(row)
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (TransactionRow, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const updateTransaction = `
UPDATE transactions
SET type = ?, amount_cents = ?, category = ?, description = ?, date = ?,
    payment_method = ?, notes = ?, updated_at = ?
WHERE id = ?
RETURNING ` + transactionColumns

type UpdateTransactionParams struct {
	ID int64
	CreateTransactionParams
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, updateTransaction,
		arg.Type,
		arg.AmountCents,
		arg.Category,
		arg.Description,
		arg.Date,
		arg.PaymentMethod,
		arg.Notes,
		arg.Now,
		arg.ID,
	)
	return scanTransaction(row)
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ? RETURNING ` + transactionColumns

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (TransactionRow, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, deleteTransaction, id))
}

type ListTransactionsParams struct {
	Type      string
	Category  string
	DateFrom  string // inclusive
	DateUntil string // exclusive
	Limit     int
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]TransactionRow, error) {
	var (
		where []string
		args  []any
	)
	if arg.Type != "" {
		where = append(where, "type = ?")
		args = append(args, arg.Type)
	}
	if arg.Category != "" {
		where = append(where, "category = ?")
		args = append(args, arg.Category)
	}
	if arg.DateFrom != "" {
		where = append(where, "date >= ?")
		args = append(args, arg.DateFrom)
	}
	if arg.DateUntil != "" {
		where = append(where, "date < ?")
		args = append(args, arg.DateUntil)
	}

	var b strings.Builder
	b.WriteString("SELECT " + transactionColumns + " FROM transactions")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY date DESC, id DESC")
	if arg.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, arg.Limit)
	}

	rows, err := q.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const listPendingExport = `
SELECT ` + transactionColumns + ` FROM transactions
WHERE exported_at IS NULL OR exported_at < updated_at
ORDER BY id
LIMIT ?`

func (q *Queries) ListPendingExport(ctx context.Context, limit int) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listPendingExport, limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const markExported = `UPDATE transactions SET exported_at = ? WHERE id = ?`

func (q *Queries) MarkExported(ctx context.Context, id int64, at string) error {
	_, err := q.db.ExecContext(ctx, markExported, at, id)
	return err
}

type CategoryBudgetRow struct {
	Category    string
	BudgetCents int64
}

const listCategoryBudgets = `SELECT category, budget_cents FROM category_budgets ORDER BY category`

func (q *Queries) ListCategoryBudgets(ctx context.Context) ([]CategoryBudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listCategoryBudgets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryBudgetRow
	for rows.Next() {
		var r CategoryBudgetRow
		if err := rows.Scan(&r.Category, &r.BudgetCents); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const upsertCategoryBudget = `
INSERT INTO category_budgets (category, budget_cents, updated_at) VALUES (?, ?, ?)
ON CONFLICT(category) DO UPDATE SET budget_cents = excluded.budget_cents, updated_at = excluded.updated_at`

func (q *Queries) UpsertCategoryBudget(ctx context.Context, category string, cents int64, now string) error {
	_, err := q.db.ExecContext(ctx, upsertCategoryBudget, category, cents, now)
	return err
}

const deleteCategoryBudget = `DELETE FROM category_budgets WHERE category = ?`

func (q *Queries) DeleteCategoryBudget(ctx context.Context, category string) error {
	_, err := q.db.ExecContext(ctx, deleteCategoryBudget, category)
	return err
}

const getSetting = `SELECT value FROM settings WHERE key = ?`

func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := q.db.QueryRowContext(ctx, getSetting, key).Scan(&v)
	return v, err
}

const upsertSetting = `
INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func (q *Queries) UpsertSetting(ctx context.Context, key, value, now string) error {
	_, err := q.db.ExecContext(ctx, upsertSetting, key, value, now)
	return err
}

const listCategories = `
SELECT category FROM transactions
UNION
SELECT category FROM category_budgets
ORDER BY category`

func (q *Queries) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
