package ports

import (
	"context"

	"finman/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionStore persists transactions. Unknown ids yield core.ErrNotFound.
	TransactionStore interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		// UpdateTransaction replaces every field of the transaction with tx.ID.
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		// DeleteTransaction removes the transaction and returns what was removed.
		DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error)
		// ListTransactions returns matches ordered by date then id, newest first.
		ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.Transaction, error)
	}

	// BudgetStore holds the single budget configuration. Each write replaces
	// the previous value for its key.
	BudgetStore interface {
		GetBudget(ctx context.Context) (core.BudgetConfig, error)
		SetMonthlyBudget(ctx context.Context, amount core.Money) error
		SetCategoryBudget(ctx context.Context, category string, amount core.Money) error
		// DeleteCategoryBudget is a no-op for categories without a budget.
		DeleteCategoryBudget(ctx context.Context, category string) error
	}

	// PreferencesStore persists display preferences. A store that has never
	// been written returns zero Preferences.
	PreferencesStore interface {
		LoadPreferences(ctx context.Context) (core.Preferences, error)
		SavePreferences(ctx context.Context, p core.Preferences) error
	}

	// CategoryLister suggests category names for input forms.
	CategoryLister interface {
		Categories(ctx context.Context) ([]string, error)
	}

	// TransactionExporter mirrors transactions to an external sheet, one row
	// per transaction id.
	TransactionExporter interface {
		UpsertTransaction(ctx context.Context, tx core.Transaction) error
		RemoveTransaction(ctx context.Context, id int64) error
	}

	// ExportTracker records which transactions still need exporting.
	ExportTracker interface {
		PendingExport(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkExported(ctx context.Context, id int64) error
	}
)

// TransactionFilter narrows ListTransactions. Zero fields do not filter.
type TransactionFilter struct {
	Type     core.TransactionType
	Category string
	Month    core.Month
	Limit    int
}

// Matches reports whether tx passes the filter, ignoring Limit.
func (f TransactionFilter) Matches(tx core.Transaction) bool {
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if !f.Month.IsZero() && !f.Month.Contains(tx.Date) {
		return false
	}
	return true
}
