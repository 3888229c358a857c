package notify

import (
	"context"
	"fmt"

	"finman/internal/aggregate"
	"finman/internal/core"
	"finman/internal/ports"
)

var statusRank = map[aggregate.Status]int{
	aggregate.StatusUnder:   0,
	aggregate.StatusWarning: 1,
	aggregate.StatusOver:    2,
}

// Escalated reports whether moving from prev to next should raise an alert.
func Escalated(prev, next aggregate.Status) bool {
	return next != aggregate.StatusUnder && statusRank[next] > statusRank[prev]
}

// BudgetAlerter decides whether a written expense pushed its category into
// warning or over, by comparing the month's spending before and after the
// write.
type BudgetAlerter struct {
	txs      ports.TransactionStore
	budgets  ports.BudgetStore
	notifier Notifier
	currency func(ctx context.Context) string
}

// NewBudgetAlerter builds an alerter. currency supplies the display currency
// at alert time and may be nil.
func NewBudgetAlerter(txs ports.TransactionStore, budgets ports.BudgetStore, notifier Notifier, currency func(ctx context.Context) string) *BudgetAlerter {
	if currency == nil {
		currency = func(context.Context) string { return "" }
	}
	return &BudgetAlerter{txs: txs, budgets: budgets, notifier: notifier, currency: currency}
}

// Evaluate returns the alert tx causes, or nil when it causes none. Only
// expenses in a budgeted category can alert. previous is the state an
// updated transaction replaced and is nil for new transactions.
func (b *BudgetAlerter) Evaluate(ctx context.Context, tx core.Transaction, previous *core.Transaction) (*Alert, error) {
	if tx.Type != core.Expense {
		return nil, nil
	}

	cfg, err := b.budgets.GetBudget(ctx)
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	limit, ok := cfg.CategoryBudgets[tx.Category]
	if !ok {
		return nil, nil
	}

	month := tx.Date.YearMonth()
	txs, err := b.txs.ListTransactions(ctx, ports.TransactionFilter{
		Type:     core.Expense,
		Category: tx.Category,
		Month:    month,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s expenses for %s: %w", tx.Category, month, err)
	}

	var with, before core.Money
	found := false
	for _, t := range txs {
		if with, err = with.CheckedAdd(t.Amount); err != nil {
			return nil, fmt.Errorf("sum %s expenses for %s: %w", tx.Category, month, err)
		}
		if t.ID == tx.ID {
			found = true
			continue
		}
		before = before.Add(t.Amount)
	}
	if !found {
		// changed again or deleted since the event was published
		return nil, nil
	}
	if previous != nil && previous.Type == core.Expense && previous.Category == tx.Category &&
		month.Contains(previous.Date) {
		if before, err = before.CheckedAdd(previous.Amount); err != nil {
			return nil, fmt.Errorf("sum %s expenses for %s: %w", tx.Category, month, err)
		}
	}

	prev := aggregate.Classify(before, limit)
	statuses, err := aggregate.ComputeCategorySpendVsBudget(
		aggregate.CategoryBreakdown{tx.Category: with},
		map[string]core.Money{tx.Category: limit},
	)
	if err != nil {
		return nil, err
	}
	current := statuses[0]
	if !Escalated(prev, current.Status) {
		return nil, nil
	}

	return &Alert{
		Category:   tx.Category,
		Month:      month,
		Spent:      current.Spent,
		Budget:     current.Budget,
		Percentage: current.Percentage,
		Previous:   prev,
		Status:     current.Status,
		Currency:   b.currency(ctx),
	}, nil
}

// Check evaluates tx and delivers any resulting alert.
func (b *BudgetAlerter) Check(ctx context.Context, tx core.Transaction, previous *core.Transaction) (*Alert, error) {
	alert, err := b.Evaluate(ctx, tx, previous)
	if err != nil || alert == nil {
		return nil, err
	}
	if err := b.notifier.Notify(ctx, *alert); err != nil {
		return alert, fmt.Errorf("notify: %w", err)
	}
	return alert, nil
}
