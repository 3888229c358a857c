// Package aggregate derives monthly summaries, category breakdowns, budget
// utilization and trends from a list of transactions.
//
// Every function here is pure: inputs are never mutated and identical inputs
// always produce identical outputs. Empty input is a zero result, never an
// error. Malformed input fails with an error matching core.ErrInvalidArgument.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"finman/internal/core"
)

// Status classifies how much of a category budget has been used.
type Status string

const (
	StatusUnder   Status = "under"
	StatusWarning Status = "warning"
	StatusOver    Status = "over"
)

// WarningThreshold is the utilization percent above which a category is in warning.
const WarningThreshold = 80

// MaxTrendMonths bounds the trend window.
const MaxTrendMonths = 120

type (
	// MonthlySummary holds the totals for one reference month.
	// BudgetUsedPercentage and BudgetRemaining are unset when no monthly
	// budget is configured. BudgetRemaining goes negative once overspent.
	MonthlySummary struct {
		Month                core.Month  `json:"month"`
		TotalIncome          core.Money  `json:"total_income"`
		TotalExpense         core.Money  `json:"total_expense"`
		NetAmount            core.Money  `json:"net_amount"`
		MonthlyBudget        core.Money  `json:"monthly_budget"`
		BudgetUsedPercentage Percentage  `json:"budget_used_percentage"`
		BudgetRemaining      *core.Money `json:"budget_remaining"`
	}

	// CategoryBreakdown maps a category to the expense total for the month.
	// Categories without expenses are absent.
	CategoryBreakdown map[string]core.Money

	CategoryAmount struct {
		Category string     `json:"category"`
		Amount   core.Money `json:"amount"`
	}

	CategoryStatus struct {
		Category   string     `json:"category"`
		Spent      core.Money `json:"spent"`
		Budget     core.Money `json:"budget"`
		Percentage Percentage `json:"percentage"`
		Status     Status     `json:"status"`
	}

	MonthlyTrend struct {
		Month   core.Month `json:"month"`
		Income  core.Money `json:"income"`
		Expense core.Money `json:"expense"`
	}

	// Totals are all-time sums across every transaction.
	Totals struct {
		Income  core.Money `json:"total_income"`
		Expense core.Money `json:"total_expense"`
		Balance core.Money `json:"balance"`
	}
)

// ComputeMonthlySummary sums the income and expenses dated inside month and
// relates the expense total to the monthly budget.
func ComputeMonthlySummary(txs []core.Transaction, budget core.BudgetConfig, month core.Month) (MonthlySummary, error) {
	if err := month.Validate(); err != nil {
		return MonthlySummary{}, err
	}
	if budget.MonthlyBudget.Cents < 0 {
		return MonthlySummary{}, core.ErrNegativeBudget
	}
	if err := validateTransactions(txs); err != nil {
		return MonthlySummary{}, err
	}

	s := MonthlySummary{Month: month, MonthlyBudget: budget.MonthlyBudget}
	for _, tx := range txs {
		if !month.Contains(tx.Date) {
			continue
		}
		var err error
		switch tx.Type {
		case core.Income:
			err = accumulate(&s.TotalIncome, tx.Amount)
		case core.Expense:
			err = accumulate(&s.TotalExpense, tx.Amount)
		}
		if err != nil {
			return MonthlySummary{}, fmt.Errorf("%s totals: %w", month, err)
		}
	}
	s.NetAmount = s.TotalIncome.Sub(s.TotalExpense)

	if budget.MonthlyBudget.Cents > 0 {
		s.BudgetUsedPercentage = percentOf(s.TotalExpense.Cents, budget.MonthlyBudget.Cents)
		remaining := budget.MonthlyBudget.Sub(s.TotalExpense)
		s.BudgetRemaining = &remaining
	}
	return s, nil
}

// ComputeCategoryBreakdown groups the month's expenses by exact category name.
// Income never contributes.
func ComputeCategoryBreakdown(txs []core.Transaction, month core.Month) (CategoryBreakdown, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	if err := validateTransactions(txs); err != nil {
		return nil, err
	}

	out := CategoryBreakdown{}
	for _, tx := range txs {
		if tx.Type != core.Expense || !month.Contains(tx.Date) {
			continue
		}
		total := out[tx.Category]
		if err := accumulate(&total, tx.Amount); err != nil {
			return nil, fmt.Errorf("category %q: %w", tx.Category, err)
		}
		out[tx.Category] = total
	}
	return out, nil
}

// ComputeCategorySpendVsBudget evaluates every budgeted category against its
// spending. The result is ordered by category name. Spending in categories
// without a budget entry is not reported.
func ComputeCategorySpendVsBudget(spending CategoryBreakdown, budgets map[string]core.Money) ([]CategoryStatus, error) {
	for category, amount := range spending {
		if amount.Cents < 0 {
			return nil, fmt.Errorf("%w: negative spending for category %q", core.ErrInvalidArgument, category)
		}
	}
	for category, limit := range budgets {
		if err := core.ValidateCategory(category); err != nil {
			return nil, err
		}
		if limit.Cents < 0 {
			return nil, fmt.Errorf("%w (category %q)", core.ErrNegativeBudget, category)
		}
	}

	categories := make([]string, 0, len(budgets))
	for category := range budgets {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	out := make([]CategoryStatus, 0, len(categories))
	for _, category := range categories {
		spent := spending[category]
		limit := budgets[category]
		out = append(out, CategoryStatus{
			Category:   category,
			Spent:      spent,
			Budget:     limit,
			Percentage: percentOf(spent.Cents, limit.Cents),
			Status:     Classify(spent, limit),
		})
	}
	return out, nil
}

// Classify maps spending against a limit to a Status. Exactly 100% is a
// warning. A zero limit with any spending is over.
func Classify(spent, limit core.Money) Status {
	if limit.Cents == 0 {
		if spent.Cents > 0 {
			return StatusOver
		}
		return StatusUnder
	}
	// spent*100 <= limit*80, compared exactly.
	scaledSpent := decimal.New(spent.Cents, 0).Mul(hundred)
	scaledLimit := decimal.New(limit.Cents, 0).Mul(decimal.New(WarningThreshold, 0))
	switch {
	case scaledSpent.LessThanOrEqual(scaledLimit):
		return StatusUnder
	case spent.Cents <= limit.Cents:
		return StatusWarning
	default:
		return StatusOver
	}
}

// ComputeMonthlyTrend returns monthCount consecutive months in ascending
// order, ending at the most recent month that has any transaction. Months
// without transactions are zero-filled. No transactions gives an empty trend.
func ComputeMonthlyTrend(txs []core.Transaction, monthCount int) ([]MonthlyTrend, error) {
	if err := validateMonthCount(monthCount); err != nil {
		return nil, err
	}
	if err := validateTransactions(txs); err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return []MonthlyTrend{}, nil
	}

	latest := txs[0].Date.YearMonth()
	for _, tx := range txs[1:] {
		if m := tx.Date.YearMonth(); latest.Before(m) {
			latest = m
		}
	}
	return trend(txs, latest, monthCount)
}

// ComputeMonthlyTrendEndingAt is ComputeMonthlyTrend with an explicit final
// month, for views anchored on a selected month. The window is always
// monthCount long, even with no transactions.
func ComputeMonthlyTrendEndingAt(txs []core.Transaction, end core.Month, monthCount int) ([]MonthlyTrend, error) {
	if err := end.Validate(); err != nil {
		return nil, err
	}
	if err := validateMonthCount(monthCount); err != nil {
		return nil, err
	}
	if err := validateTransactions(txs); err != nil {
		return nil, err
	}
	return trend(txs, end, monthCount)
}

func trend(txs []core.Transaction, end core.Month, monthCount int) ([]MonthlyTrend, error) {
	start := end.AddMonths(-(monthCount - 1))
	out := make([]MonthlyTrend, monthCount)
	index := make(map[core.Month]int, monthCount)
	for i := range out {
		m := start.AddMonths(i)
		out[i].Month = m
		index[m] = i
	}

	for _, tx := range txs {
		i, ok := index[tx.Date.YearMonth()]
		if !ok {
			continue
		}
		var err error
		switch tx.Type {
		case core.Income:
			err = accumulate(&out[i].Income, tx.Amount)
		case core.Expense:
			err = accumulate(&out[i].Expense, tx.Amount)
		}
		if err != nil {
			return nil, fmt.Errorf("%s trend: %w", out[i].Month, err)
		}
	}
	return out, nil
}

// ComputeTotals sums every transaction regardless of date.
func ComputeTotals(txs []core.Transaction) (Totals, error) {
	if err := validateTransactions(txs); err != nil {
		return Totals{}, err
	}
	var t Totals
	for _, tx := range txs {
		var err error
		switch tx.Type {
		case core.Income:
			err = accumulate(&t.Income, tx.Amount)
		case core.Expense:
			err = accumulate(&t.Expense, tx.Amount)
		}
		if err != nil {
			return Totals{}, fmt.Errorf("totals: %w", err)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t, nil
}

// RecentTransactions returns up to n transactions, newest date first, ties
// broken by the higher id. The input slice is left untouched.
func RecentTransactions(txs []core.Transaction, n int) []core.Transaction {
	if n <= 0 || len(txs) == 0 {
		return []core.Transaction{}
	}
	sorted := make([]core.Transaction, len(txs))
	copy(sorted, txs)
	SortNewestFirst(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// SortNewestFirst orders transactions by date descending, then id descending.
func SortNewestFirst(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date.Time) {
			return txs[i].Date.After(txs[j].Date.Time)
		}
		return txs[i].ID > txs[j].ID
	})
}

// Sorted lists the breakdown by amount descending, then by name.
func (b CategoryBreakdown) Sorted() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(b))
	for category, amount := range b {
		out = append(out, CategoryAmount{Category: category, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Total sums all categories.
func (b CategoryBreakdown) Total() (core.Money, error) {
	var total core.Money
	for _, amount := range b {
		if err := accumulate(&total, amount); err != nil {
			return core.Money{}, err
		}
	}
	return total, nil
}

func accumulate(total *core.Money, amount core.Money) error {
	sum, err := total.CheckedAdd(amount)
	if err != nil {
		return err
	}
	*total = sum
	return nil
}

func validateMonthCount(n int) error {
	if n <= 0 || n > MaxTrendMonths {
		return fmt.Errorf("%w: got %d, max %d", core.ErrInvalidMonthCount, n, MaxTrendMonths)
	}
	return nil
}

func validateTransactions(txs []core.Transaction) error {
	for i, tx := range txs {
		if !tx.Type.Valid() {
			return fmt.Errorf("transaction %d (id %d): %w", i, tx.ID, core.ErrInvalidType)
		}
		if err := tx.Amount.Validate(); err != nil {
			return fmt.Errorf("transaction %d (id %d): %w", i, tx.ID, core.ErrInvalidAmount)
		}
		if tx.Date.IsZero() {
			return fmt.Errorf("transaction %d (id %d): %w", i, tx.ID, core.ErrInvalidDate)
		}
	}
	return nil
}
