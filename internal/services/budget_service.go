package services

import (
	"context"
	"fmt"
	"strings"

	"finman/internal/core"
	"finman/internal/log"
	"finman/internal/ports"
)

// BudgetService edits the single budget configuration.
type BudgetService struct {
	store   ports.BudgetStore
	logger  *log.Logger
	onWrite []func()
}

func NewBudgetService(store ports.BudgetStore, logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &BudgetService{
		store:  store,
		logger: logger.WithComponent(log.ComponentBudget),
	}
}

// OnWrite registers fn to run after every successful change.
func (s *BudgetService) OnWrite(fn func()) {
	s.onWrite = append(s.onWrite, fn)
}

func (s *BudgetService) Get(ctx context.Context) (core.BudgetConfig, error) {
	cfg, err := s.store.GetBudget(ctx)
	if err != nil {
		return core.BudgetConfig{}, fmt.Errorf("get budget: %w", err)
	}
	if cfg.CategoryBudgets == nil {
		cfg.CategoryBudgets = map[string]core.Money{}
	}
	return cfg, nil
}

func (s *BudgetService) SetMonthlyBudget(ctx context.Context, amount core.Money) error {
	if amount.Cents < 0 {
		return core.ErrNegativeBudget
	}
	if err := s.store.SetMonthlyBudget(ctx, amount); err != nil {
		return fmt.Errorf("set monthly budget: %w", err)
	}
	s.logger.InfoContext(ctx, "Monthly budget updated", log.FieldAmountCents, amount.Cents)
	s.changed()
	return nil
}

// SetCategoryBudget creates or replaces the limit for category.
func (s *BudgetService) SetCategoryBudget(ctx context.Context, category string, amount core.Money) error {
	category = strings.TrimSpace(category)
	if err := core.ValidateCategory(category); err != nil {
		return err
	}
	if amount.Cents < 0 {
		return core.ErrNegativeBudget
	}
	if err := s.store.SetCategoryBudget(ctx, category, amount); err != nil {
		return fmt.Errorf("set category budget: %w", err)
	}
	s.logger.InfoContext(ctx, "Category budget updated",
		log.FieldCategory, category,
		log.FieldAmountCents, amount.Cents)
	s.changed()
	return nil
}

// DeleteCategoryBudget removes the limit for category. Removing a category
// that has no budget succeeds.
func (s *BudgetService) DeleteCategoryBudget(ctx context.Context, category string) error {
	category = strings.TrimSpace(category)
	if err := core.ValidateCategory(category); err != nil {
		return err
	}
	if err := s.store.DeleteCategoryBudget(ctx, category); err != nil {
		return fmt.Errorf("delete category budget: %w", err)
	}
	s.logger.InfoContext(ctx, "Category budget removed", log.FieldCategory, category)
	s.changed()
	return nil
}

func (s *BudgetService) changed() {
	for _, fn := range s.onWrite {
		fn()
	}
}
