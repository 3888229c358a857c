package aggregate

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"finman/internal/core"
)

func tx(id int64, typ core.TransactionType, cents int64, category, date string) core.Transaction {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{ID: id, Type: typ, Amount: core.Money{Cents: cents}, Category: category, Date: d}
}

func month(s string) core.Month {
	m, err := core.ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func money(cents int64) core.Money { return core.Money{Cents: cents} }

func TestComputeMonthlySummary(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Income, 100000, "Salary", "2024-01-05"),
		tx(2, core.Expense, 30000, "Food", "2024-01-10"),
		tx(3, core.Expense, 9999, "Food", "2024-02-01"),
		tx(4, core.Income, 5000, "Gift", "2023-12-31"),
	}

	s, err := ComputeMonthlySummary(txs, core.BudgetConfig{MonthlyBudget: money(50000)}, month("2024-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TotalIncome.Cents != 100000 || s.TotalExpense.Cents != 30000 || s.NetAmount.Cents != 70000 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if pct, ok := s.BudgetUsedPercentage.Value(); !ok || pct != 60 {
		t.Fatalf("budget used = %v (set=%v), want 60", pct, ok)
	}
	if s.BudgetRemaining == nil || s.BudgetRemaining.Cents != 20000 {
		t.Fatalf("budget remaining = %v, want 200.00", s.BudgetRemaining)
	}
	if s.TotalIncome.Cents-s.TotalExpense.Cents != s.NetAmount.Cents {
		t.Fatalf("net amount does not balance")
	}
}

func TestComputeMonthlySummaryMonthBoundaries(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Expense, 100, "A", "2024-02-01"),
		tx(2, core.Expense, 200, "A", "2024-02-29"),
		tx(3, core.Expense, 400, "A", "2024-01-31"),
		tx(4, core.Expense, 800, "A", "2024-03-01"),
	}
	s, err := ComputeMonthlySummary(txs, core.BudgetConfig{}, month("2024-02"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TotalExpense.Cents != 300 {
		t.Fatalf("total expense = %d, want 300", s.TotalExpense.Cents)
	}
}

func TestComputeMonthlySummaryZeroBudget(t *testing.T) {
	txs := []core.Transaction{tx(1, core.Expense, 500, "Food", "2024-01-10")}
	s, err := ComputeMonthlySummary(txs, core.BudgetConfig{}, month("2024-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.BudgetUsedPercentage.IsSet() {
		t.Fatalf("percentage should be unset with zero budget, got %s", s.BudgetUsedPercentage)
	}
	if s.BudgetRemaining != nil {
		t.Fatalf("remaining should be unset with zero budget, got %v", *s.BudgetRemaining)
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["budget_used_percentage"] != nil || decoded["budget_remaining"] != nil {
		t.Fatalf("unset fields should encode as null: %s", b)
	}
}

func TestComputeMonthlySummaryOverspent(t *testing.T) {
	txs := []core.Transaction{tx(1, core.Expense, 15000, "Food", "2024-01-10")}
	s, err := ComputeMonthlySummary(txs, core.BudgetConfig{MonthlyBudget: money(10000)}, month("2024-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pct, _ := s.BudgetUsedPercentage.Value(); pct != 150 {
		t.Fatalf("percentage = %v, want 150", pct)
	}
	if s.BudgetRemaining.Cents != -5000 {
		t.Fatalf("remaining = %d, want -5000", s.BudgetRemaining.Cents)
	}
}

func TestComputeMonthlySummaryEmpty(t *testing.T) {
	s, err := ComputeMonthlySummary(nil, core.BudgetConfig{MonthlyBudget: money(1000)}, month("2024-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TotalIncome.Cents != 0 || s.TotalExpense.Cents != 0 || s.NetAmount.Cents != 0 {
		t.Fatalf("expected zero totals, got %+v", s)
	}
	if pct, ok := s.BudgetUsedPercentage.Value(); !ok || pct != 0 {
		t.Fatalf("percentage = %v (set=%v), want 0", pct, ok)
	}
}

func TestInvalidArguments(t *testing.T) {
	valid := []core.Transaction{tx(1, core.Expense, 100, "Food", "2024-01-10")}
	negative := []core.Transaction{tx(1, core.Expense, -100, "Food", "2024-01-10")}
	zero := []core.Transaction{tx(1, core.Expense, 0, "Food", "2024-01-10")}
	badType := []core.Transaction{tx(1, "transfer", 100, "Food", "2024-01-10")}
	noDate := []core.Transaction{{ID: 1, Type: core.Income, Amount: money(1), Category: "x"}}

	cases := []struct {
		name string
		call func() error
	}{
		{"summary malformed month", func() error {
			_, err := ComputeMonthlySummary(valid, core.BudgetConfig{}, core.Month{Year: 2024, Month: 13})
			return err
		}},
		{"summary zero month", func() error {
			_, err := ComputeMonthlySummary(valid, core.BudgetConfig{}, core.Month{})
			return err
		}},
		{"summary negative amount", func() error {
			_, err := ComputeMonthlySummary(negative, core.BudgetConfig{}, month("2024-01"))
			return err
		}},
		{"summary zero amount", func() error {
			_, err := ComputeMonthlySummary(zero, core.BudgetConfig{}, month("2024-01"))
			return err
		}},
		{"summary negative budget", func() error {
			_, err := ComputeMonthlySummary(valid, core.BudgetConfig{MonthlyBudget: money(-1)}, month("2024-01"))
			return err
		}},
		{"breakdown unknown type", func() error {
			_, err := ComputeCategoryBreakdown(badType, month("2024-01"))
			return err
		}},
		{"breakdown missing date", func() error {
			_, err := ComputeCategoryBreakdown(noDate, month("2024-01"))
			return err
		}},
		{"spend vs budget negative budget", func() error {
			_, err := ComputeCategorySpendVsBudget(nil, map[string]core.Money{"Food": money(-1)})
			return err
		}},
		{"spend vs budget empty category", func() error {
			_, err := ComputeCategorySpendVsBudget(nil, map[string]core.Money{"": money(1)})
			return err
		}},
		{"trend zero months", func() error {
			_, err := ComputeMonthlyTrend(valid, 0)
			return err
		}},
		{"trend negative months", func() error {
			_, err := ComputeMonthlyTrend(valid, -3)
			return err
		}},
		{"trend too many months", func() error {
			_, err := ComputeMonthlyTrend(valid, MaxTrendMonths+1)
			return err
		}},
		{"totals negative amount", func() error {
			_, err := ComputeTotals(negative)
			return err
		}},
		{"totals amount above maximum", func() error {
			_, err := ComputeTotals([]core.Transaction{tx(1, core.Expense, core.MaxAmountCents+1, "Food", "2024-01-10")})
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if !errors.Is(err, core.ErrInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
}

func TestComputeCategoryBreakdown(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Expense, 1000, "Food", "2024-01-02"),
		tx(2, core.Expense, 2500, "Food", "2024-01-20"),
		tx(3, core.Expense, 700, "food", "2024-01-20"),
		tx(4, core.Income, 99999, "Food", "2024-01-03"),
		tx(5, core.Expense, 4000, "Rent", "2024-02-01"),
		tx(6, core.Expense, 300, "Transport", "2024-01-31"),
	}
	got, err := ComputeCategoryBreakdown(txs, month("2024-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := CategoryBreakdown{"Food": money(3500), "food": money(700), "Transport": money(300)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("breakdown = %v, want %v", got, want)
	}
	if total, err := got.Total(); err != nil || total.Cents != 4500 {
		t.Fatalf("total = %d, %v, want 4500", total.Cents, err)
	}

	sorted := got.Sorted()
	if len(sorted) != 3 || sorted[0].Category != "Food" || sorted[2].Category != "Transport" {
		t.Fatalf("unexpected ordering: %+v", sorted)
	}
}

func TestComputeCategoryBreakdownEmpty(t *testing.T) {
	got, err := ComputeCategoryBreakdown(nil, month("2024-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil breakdown, got %v", got)
	}
}

func TestComputeCategorySpendVsBudget(t *testing.T) {
	spending := CategoryBreakdown{
		"Food":      money(25000),
		"Fun":       money(8000),
		"Transport": money(4000),
		"Gifts":     money(100),
		"Untracked": money(99900),
	}
	budgets := map[string]core.Money{
		"Food":      money(20000),
		"Fun":       money(10000),
		"Transport": money(10000),
		"Gifts":     money(0),
		"Savings":   money(0),
		"Rent":      money(4000),
	}
	got, err := ComputeCategorySpendVsBudget(spending, budgets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		category string
		status   Status
		pct      float64
		pctSet   bool
	}{
		{"Food", StatusOver, 125, true},
		{"Fun", StatusUnder, 80, true},
		{"Gifts", StatusOver, 0, false},
		{"Rent", StatusUnder, 0, true},
		{"Savings", StatusUnder, 0, false},
		{"Transport", StatusUnder, 40, true},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.Category != w.category || g.Status != w.status {
			t.Errorf("entry %d = %s/%s, want %s/%s", i, g.Category, g.Status, w.category, w.status)
		}
		pct, ok := g.Percentage.Value()
		if ok != w.pctSet || pct != w.pct {
			t.Errorf("%s percentage = %v (set=%v), want %v (set=%v)", g.Category, pct, ok, w.pct, w.pctSet)
		}
	}
}

func TestClassifyThresholds(t *testing.T) {
	cases := []struct {
		spent, limit int64
		want         Status
	}{
		{0, 10000, StatusUnder},
		{8000, 10000, StatusUnder},
		{8001, 10000, StatusWarning},
		{10000, 10000, StatusWarning},
		{10001, 10000, StatusOver},
		{0, 0, StatusUnder},
		{1, 0, StatusOver},
	}
	for _, tc := range cases {
		if got := Classify(money(tc.spent), money(tc.limit)); got != tc.want {
			t.Errorf("Classify(%d, %d) = %s, want %s", tc.spent, tc.limit, got, tc.want)
		}
	}
}

func TestComputeMonthlyTrend(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Income, 1000, "Salary", "2024-03-01"),
		tx(2, core.Expense, 400, "Food", "2024-03-15"),
		tx(3, core.Expense, 100, "Food", "2024-01-20"),
		tx(4, core.Income, 5000, "Salary", "2023-06-01"),
	}
	got, err := ComputeMonthlyTrend(txs, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []MonthlyTrend{
		{Month: month("2024-01"), Expense: money(100)},
		{Month: month("2024-02")},
		{Month: month("2024-03"), Income: money(1000), Expense: money(400)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("trend = %+v, want %+v", got, want)
	}
}

func TestComputeMonthlyTrendSingleMonthZeroFilled(t *testing.T) {
	txs := []core.Transaction{tx(1, core.Expense, 100, "Food", "2024-01-20")}
	got, err := ComputeMonthlyTrend(txs, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Month != month("2023-11") || got[1].Month != month("2023-12") || got[2].Month != month("2024-01") {
		t.Fatalf("unexpected months: %v %v %v", got[0].Month, got[1].Month, got[2].Month)
	}
	if got[0].Expense.Cents != 0 || got[1].Expense.Cents != 0 || got[2].Expense.Cents != 100 {
		t.Fatalf("unexpected amounts: %+v", got)
	}
}

func TestComputeMonthlyTrendEmpty(t *testing.T) {
	got, err := ComputeMonthlyTrend(nil, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty trend, got %v", got)
	}
}

func TestComputeMonthlyTrendEndingAt(t *testing.T) {
	txs := []core.Transaction{tx(1, core.Expense, 100, "Food", "2024-05-20")}
	got, err := ComputeMonthlyTrendEndingAt(txs, month("2024-02"), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[1].Month != month("2024-02") || got[0].Month.Month != time.January {
		t.Fatalf("unexpected window: %+v", got)
	}
	if got[0].Expense.Cents != 0 || got[1].Expense.Cents != 0 {
		t.Fatalf("out-of-window transaction leaked into trend: %+v", got)
	}
}

func TestComputeTotals(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Income, 1000, "Salary", "2023-03-01"),
		tx(2, core.Expense, 400, "Food", "2024-03-15"),
		tx(3, core.Expense, 900, "Food", "2021-01-20"),
	}
	got, err := ComputeTotals(txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Income.Cents != 1000 || got.Expense.Cents != 1300 || got.Balance.Cents != -300 {
		t.Fatalf("unexpected totals %+v", got)
	}
}

func TestRecentTransactions(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Income, 1, "A", "2024-01-01"),
		tx(2, core.Income, 1, "A", "2024-03-01"),
		tx(3, core.Income, 1, "A", "2024-03-01"),
		tx(4, core.Income, 1, "A", "2024-02-01"),
	}
	got := RecentTransactions(txs, 3)
	ids := []int64{got[0].ID, got[1].ID, got[2].ID}
	if !reflect.DeepEqual(ids, []int64{3, 2, 4}) {
		t.Fatalf("recent ids = %v, want [3 2 4]", ids)
	}
	if txs[0].ID != 1 || txs[3].ID != 4 {
		t.Fatalf("input slice was reordered")
	}
	if len(RecentTransactions(txs, 0)) != 0 {
		t.Fatalf("n=0 should give empty result")
	}
}

func TestPureInputsUntouched(t *testing.T) {
	txs := []core.Transaction{tx(1, core.Expense, 100, "Food", "2024-01-20")}
	budgets := map[string]core.Money{"Food": money(50)}
	spending := CategoryBreakdown{"Food": money(100)}

	if _, err := ComputeCategorySpendVsBudget(spending, budgets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ComputeMonthlyTrend(txs, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(budgets) != 1 || budgets["Food"].Cents != 50 || len(spending) != 1 || txs[0].Amount.Cents != 100 {
		t.Fatalf("inputs mutated")
	}
}

func TestSumsReportOverflow(t *testing.T) {
	// enough maximum-size expenses to exceed int64 cents
	n := int(math.MaxInt64/core.MaxAmountCents) + 1
	txs := make([]core.Transaction, n)
	for i := range txs {
		txs[i] = tx(int64(i+1), core.Expense, core.MaxAmountCents, "Rent", "2024-01-15")
	}

	cases := []struct {
		name string
		call func() error
	}{
		{"summary", func() error {
			_, err := ComputeMonthlySummary(txs, core.BudgetConfig{}, month("2024-01"))
			return err
		}},
		{"breakdown", func() error {
			_, err := ComputeCategoryBreakdown(txs, month("2024-01"))
			return err
		}},
		{"trend", func() error {
			_, err := ComputeMonthlyTrend(txs, 3)
			return err
		}},
		{"trend ending at", func() error {
			_, err := ComputeMonthlyTrendEndingAt(txs, month("2024-02"), 2)
			return err
		}},
		{"totals", func() error {
			_, err := ComputeTotals(txs)
			return err
		}},
		{"breakdown total", func() error {
			_, err := CategoryBreakdown{"Rent": money(math.MaxInt64 - 1), "Food": money(2)}.Total()
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if !errors.Is(err, core.ErrAmountOverflow) || !errors.Is(err, core.ErrInvalidArgument) {
				t.Fatalf("expected overflow error, got %v", err)
			}
		})
	}

	// one fewer still fits
	totals, err := ComputeTotals(txs[:n-1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Expense.Cents <= 0 || totals.Balance.Cents >= 0 {
		t.Fatalf("totals = %+v", totals)
	}
}
