package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"finman/internal/core"
	"finman/internal/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "finman.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	// Strictly increasing clock so exported_at/updated_at ordering is deterministic.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int64
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	return repo
}

func sampleTx(typ core.TransactionType, cents int64, category string, date core.Date) core.Transaction {
	return core.Transaction{
		Type:          typ,
		Amount:        core.Money{Cents: cents},
		Category:      category,
		Description:   "sample",
		Date:          date,
		PaymentMethod: "cash",
	}
}

func TestMigrationsApplied(t *testing.T) {
	repo := newTestRepo(t)
	if repo.SchemaVersion() != 2 {
		t.Fatalf("schema version = %d, want 2", repo.SchemaVersion())
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finman.db")
	first, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := first.CreateTransaction(context.Background(), sampleTx(core.Income, 100, "Salary", core.NewDate(2024, 1, 1))); err != nil {
		t.Fatalf("create: %v", err)
	}
	first.Close()

	second, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	txs, err := second.ListTransactions(context.Background(), ports.TransactionFilter{})
	if err != nil || len(txs) != 1 {
		t.Fatalf("expected data to survive reopen, got %v err=%v", txs, err)
	}
}

func TestTransactionCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateTransaction(ctx, sampleTx(core.Expense, 1250, "Food", core.NewDate(2024, 1, 10)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 || created.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", created)
	}

	got, err := repo.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 1250 || got.Category != "Food" || got.Date.String() != "2024-01-10" || got.PaymentMethod != "cash" {
		t.Fatalf("unexpected transaction %+v", got)
	}

	got.Amount = core.Money{Cents: 999}
	got.Category = "Groceries"
	got.Type = core.Income
	updated, err := repo.UpdateTransaction(ctx, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.Cents != 999 || updated.Category != "Groceries" || updated.Type != core.Income {
		t.Fatalf("update not applied: %+v", updated)
	}

	deleted, err := repo.DeleteTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != created.ID || deleted.Category != "Groceries" {
		t.Fatalf("delete returned %+v", deleted)
	}

	if _, err := repo.GetTransaction(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get after delete: expected not found, got %v", err)
	}
	if _, err := repo.DeleteTransaction(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
	if _, err := repo.UpdateTransaction(ctx, updated); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update after delete: expected not found, got %v", err)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateTransaction(context.Background(), sampleTx(core.Expense, -5, "Food", core.NewDate(2024, 1, 1)))
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	seed := []core.Transaction{
		sampleTx(core.Expense, 100, "Food", core.NewDate(2024, 1, 31)),
		sampleTx(core.Expense, 200, "Food", core.NewDate(2024, 2, 1)),
		sampleTx(core.Income, 300, "Salary", core.NewDate(2024, 2, 1)),
		sampleTx(core.Expense, 400, "Rent", core.NewDate(2024, 2, 29)),
	}
	var ids []int64
	for _, tx := range seed {
		created, err := repo.CreateTransaction(ctx, tx)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, created.ID)
	}

	feb := core.Month{Year: 2024, Month: time.February}
	cases := []struct {
		name   string
		filter ports.TransactionFilter
		want   []int64
	}{
		{"all newest first", ports.TransactionFilter{}, []int64{ids[3], ids[2], ids[1], ids[0]}},
		{"month", ports.TransactionFilter{Month: feb}, []int64{ids[3], ids[2], ids[1]}},
		{"type", ports.TransactionFilter{Type: core.Income}, []int64{ids[2]}},
		{"category", ports.TransactionFilter{Category: "Food"}, []int64{ids[1], ids[0]}},
		{"limit", ports.TransactionFilter{Limit: 2}, []int64{ids[3], ids[2]}},
		{"combined", ports.TransactionFilter{Month: feb, Type: core.Expense, Category: "Food"}, []int64{ids[1]}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			txs, err := repo.ListTransactions(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			got := make([]int64, 0, len(txs))
			for _, tx := range txs {
				got = append(got, tx.ID)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ids = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBudgetRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	cfg, err := repo.GetBudget(ctx)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if cfg.MonthlyBudget.Cents != 0 || len(cfg.CategoryBudgets) != 0 {
		t.Fatalf("expected empty budget, got %+v", cfg)
	}

	if err := repo.SetMonthlyBudget(ctx, core.Money{Cents: 50000}); err != nil {
		t.Fatalf("set monthly: %v", err)
	}
	if err := repo.SetCategoryBudget(ctx, "Food", core.Money{Cents: 20000}); err != nil {
		t.Fatalf("set category: %v", err)
	}
	before, _ := repo.GetBudget(ctx)

	if err := repo.SetCategoryBudget(ctx, "Fun", core.Money{Cents: 5000}); err != nil {
		t.Fatalf("set category: %v", err)
	}
	if err := repo.SetCategoryBudget(ctx, "Food", core.Money{Cents: 25000}); err != nil {
		t.Fatalf("overwrite category: %v", err)
	}
	mid, _ := repo.GetBudget(ctx)
	if mid.CategoryBudgets["Food"].Cents != 25000 || len(mid.CategoryBudgets) != 2 {
		t.Fatalf("overwrite not applied: %+v", mid)
	}

	if err := repo.SetCategoryBudget(ctx, "Food", core.Money{Cents: 20000}); err != nil {
		t.Fatalf("restore category: %v", err)
	}
	if err := repo.DeleteCategoryBudget(ctx, "Fun"); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	after, _ := repo.GetBudget(ctx)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("set+delete did not restore budget: before=%+v after=%+v", before, after)
	}

	if err := repo.DeleteCategoryBudget(ctx, "Missing"); err != nil {
		t.Fatalf("deleting a missing category should be a no-op, got %v", err)
	}
	if err := repo.SetCategoryBudget(ctx, "Food", core.Money{Cents: -1}); !errors.Is(err, core.ErrNegativeBudget) {
		t.Fatalf("expected negative budget error, got %v", err)
	}
	if err := repo.SetMonthlyBudget(ctx, core.Money{Cents: -1}); !errors.Is(err, core.ErrNegativeBudget) {
		t.Fatalf("expected negative budget error, got %v", err)
	}
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	p, err := repo.LoadPreferences(ctx)
	if err != nil || p != (core.Preferences{}) {
		t.Fatalf("expected empty preferences, got %+v err=%v", p, err)
	}

	if err := repo.SavePreferences(ctx, core.Preferences{DisplayName: "Asha", Currency: "eur"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	p, err = repo.LoadPreferences(ctx)
	if err != nil || p.Currency != "EUR" || p.DisplayName != "Asha" {
		t.Fatalf("unexpected preferences %+v err=%v", p, err)
	}

	if err := repo.SavePreferences(ctx, core.Preferences{Currency: "EURO"}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected invalid currency, got %v", err)
	}
}

func TestCategoriesAndPendingExport(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, _ := repo.CreateTransaction(ctx, sampleTx(core.Expense, 100, "Food", core.NewDate(2024, 1, 1)))
	b, _ := repo.CreateTransaction(ctx, sampleTx(core.Income, 100, "Salary", core.NewDate(2024, 1, 1)))
	_ = repo.SetCategoryBudget(ctx, "Travel", core.Money{Cents: 100})

	cats, err := repo.Categories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if !reflect.DeepEqual(cats, []string{"Food", "Salary", "Travel"}) {
		t.Fatalf("categories = %v", cats)
	}

	pending, err := repo.PendingExport(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d err=%v", len(pending), err)
	}

	if err := repo.MarkExported(ctx, a.ID); err != nil {
		t.Fatalf("mark exported: %v", err)
	}
	pending, _ = repo.PendingExport(ctx, 10)
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("expected only %d pending, got %+v", b.ID, pending)
	}

	// An update after export makes the row pending again.
	a.Notes = "edited"
	if _, err := repo.UpdateTransaction(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}
	pending, _ = repo.PendingExport(ctx, 10)
	if len(pending) != 2 {
		t.Fatalf("expected edited row to be pending again, got %d", len(pending))
	}
}
