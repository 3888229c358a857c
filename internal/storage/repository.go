package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"finman/internal/core"
	"finman/internal/ports"

	_ "modernc.org/sqlite"
)

// timestampLayout is fixed width so stored timestamps compare lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const (
	settingMonthlyBudget = "monthly_budget_cents"
	settingCurrency      = "currency"
	settingDisplayName   = "display_name"
)

type SQLiteRepository struct {
	db            *sql.DB
	queries       *Queries
	schemaVersion uint
	now           func() time.Time
}

var (
	_ ports.TransactionStore = (*SQLiteRepository)(nil)
	_ ports.BudgetStore      = (*SQLiteRepository)(nil)
	_ ports.PreferencesStore = (*SQLiteRepository)(nil)
	_ ports.CategoryLister   = (*SQLiteRepository)(nil)
	_ ports.ExportTracker    = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite repository ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:            db,
		queries:       New(db),
		schemaVersion: version,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection, for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SchemaVersion returns the migration version applied at startup.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().Format(timestampLayout)
}

// CreateTransaction implements ports.TransactionStore
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	row, err := r.queries.CreateTransaction(ctx, toParams(tx, r.timestamp()))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return fromRow(row)
}

// GetTransaction implements ports.TransactionStore
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return fromRow(row)
}

// UpdateTransaction implements ports.TransactionStore
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	row, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{
		ID:                      tx.ID,
		CreateTransactionParams: toParams(tx, r.timestamp()),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", tx.ID, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	return fromRow(row)
}

// DeleteTransaction implements ports.TransactionStore
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.DeleteTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return fromRow(row)
}

// ListTransactions implements ports.TransactionStore
func (r *SQLiteRepository) ListTransactions(ctx context.Context, filter ports.TransactionFilter) ([]core.Transaction, error) {
	params := ListTransactionsParams{
		Type:     string(filter.Type),
		Category: filter.Category,
		Limit:    filter.Limit,
	}
	if !filter.Month.IsZero() {
		params.DateFrom = filter.Month.Start().Format(core.DateLayout)
		params.DateUntil = filter.Month.AddMonths(1).Start().Format(core.DateLayout)
	}

	rows, err := r.queries.ListTransactions(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return fromRows(rows)
}

// PendingExport returns transactions created or changed since their last export.
func (r *SQLiteRepository) PendingExport(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.ListPendingExport(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	return fromRows(rows)
}

// MarkExported records a successful export of the transaction.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if err := r.queries.MarkExported(ctx, id, r.timestamp()); err != nil {
		return fmt.Errorf("mark transaction %d exported: %w", id, err)
	}
	return nil
}

// GetBudget implements ports.BudgetStore
func (r *SQLiteRepository) GetBudget(ctx context.Context) (core.BudgetConfig, error) {
	cfg := core.BudgetConfig{CategoryBudgets: map[string]core.Money{}}

	raw, err := r.queries.GetSetting(ctx, settingMonthlyBudget)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return cfg, fmt.Errorf("get monthly budget: %w", err)
	default:
		cents, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("parse monthly budget %q: %w", raw, err)
		}
		cfg.MonthlyBudget = core.Money{Cents: cents}
	}

	rows, err := r.queries.ListCategoryBudgets(ctx)
	if err != nil {
		return cfg, fmt.Errorf("list category budgets: %w", err)
	}
	for _, row := range rows {
		cfg.CategoryBudgets[row.Category] = core.Money{Cents: row.BudgetCents}
	}
	return cfg, nil
}

// SetMonthlyBudget implements ports.BudgetStore
func (r *SQLiteRepository) SetMonthlyBudget(ctx context.Context, amount core.Money) error {
	if amount.Cents < 0 {
		return core.ErrNegativeBudget
	}
	if err := r.queries.UpsertSetting(ctx, settingMonthlyBudget, strconv.FormatInt(amount.Cents, 10), r.timestamp()); err != nil {
		return fmt.Errorf("set monthly budget: %w", err)
	}
	return nil
}

// SetCategoryBudget implements ports.BudgetStore
func (r *SQLiteRepository) SetCategoryBudget(ctx context.Context, category string, amount core.Money) error {
	if err := core.ValidateCategory(category); err != nil {
		return err
	}
	if amount.Cents < 0 {
		return core.ErrNegativeBudget
	}
	if err := r.queries.UpsertCategoryBudget(ctx, category, amount.Cents, r.timestamp()); err != nil {
		return fmt.Errorf("set budget for %q: %w", category, err)
	}
	return nil
}

// DeleteCategoryBudget implements ports.BudgetStore
func (r *SQLiteRepository) DeleteCategoryBudget(ctx context.Context, category string) error {
	if err := r.queries.DeleteCategoryBudget(ctx, category); err != nil {
		return fmt.Errorf("delete budget for %q: %w", category, err)
	}
	return nil
}

// LoadPreferences implements ports.PreferencesStore
func (r *SQLiteRepository) LoadPreferences(ctx context.Context) (core.Preferences, error) {
	var p core.Preferences
	for key, dst := range map[string]*string{
		settingCurrency:    &p.Currency,
		settingDisplayName: &p.DisplayName,
	} {
		v, err := r.queries.GetSetting(ctx, key)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return core.Preferences{}, fmt.Errorf("get setting %s: %w", key, err)
		}
		*dst = v
	}
	return p, nil
}

// SavePreferences implements ports.PreferencesStore
func (r *SQLiteRepository) SavePreferences(ctx context.Context, p core.Preferences) error {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin preferences tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	now := r.timestamp()
	if err := q.UpsertSetting(ctx, settingCurrency, p.Currency, now); err != nil {
		return fmt.Errorf("save currency: %w", err)
	}
	if err := q.UpsertSetting(ctx, settingDisplayName, p.DisplayName, now); err != nil {
		return fmt.Errorf("save display name: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preferences: %w", err)
	}
	return nil
}

// Categories implements ports.CategoryLister
func (r *SQLiteRepository) Categories(ctx context.Context) ([]string, error) {
	categories, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func toParams(tx core.Transaction, now string) CreateTransactionParams {
	return CreateTransactionParams{
		Type:          string(tx.Type),
		AmountCents:   tx.Amount.Cents,
		Category:      tx.Category,
		Description:   tx.Description,
		Date:          tx.Date.Format(core.DateLayout),
		PaymentMethod: tx.PaymentMethod,
		Notes:         tx.Notes,
		Now:           now,
	}
}

func fromRow(row TransactionRow) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: stored date: %w", row.ID, err)
	}
	createdAt, _ := time.Parse(timestampLayout, row.CreatedAt)
	updatedAt, _ := time.Parse(timestampLayout, row.UpdatedAt)

	return core.Transaction{
		ID:            row.ID,
		Type:          core.TransactionType(row.Type),
		Amount:        core.Money{Cents: row.AmountCents},
		Category:      row.Category,
		Description:   row.Description,
		Date:          date,
		PaymentMethod: row.PaymentMethod,
		Notes:         row.Notes,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

func fromRows(rows []TransactionRow) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
