package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"finman/internal/aggregate"
	"finman/internal/core"
	"finman/internal/ports"
)

var defaultCategories = []string{"Food", "Transport", "Entertainment", "Shopping", "Bills", "Salary"}

// Store keeps transactions, budgets and preferences in process memory.
// Data is lost on restart.
type Store struct {
	mu     sync.Mutex
	nextID int64
	txs    map[int64]core.Transaction
	budget core.BudgetConfig
	prefs  core.Preferences
	cats   []string
	now    func() time.Time
}

var (
	_ ports.TransactionStore = (*Store)(nil)
	_ ports.BudgetStore      = (*Store)(nil)
	_ ports.PreferencesStore = (*Store)(nil)
	_ ports.CategoryLister   = (*Store)(nil)
)

func New(cats []string) *Store {
	return &Store{
		nextID: 1,
		txs:    make(map[int64]core.Transaction),
		budget: core.BudgetConfig{CategoryBudgets: map[string]core.Money{}},
		cats:   dedupe(cats),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewFromFiles seeds category suggestions from base/seed_categories.txt,
// falling back to built-in defaults when the file is missing or empty.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = defaultCategories
	}
	return New(cats)
}

// Ping always succeeds; the store has nothing to lose contact with.
func (s *Store) Ping(context.Context) error { return nil }

// CreateTransaction assigns the next id and stores the transaction.
func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	tx.ID = s.nextID
	tx.CreatedAt = now
	tx.UpdatedAt = now
	s.nextID++
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.txs[tx.ID]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", tx.ID, core.ErrNotFound)
	}
	tx.CreatedAt = old.CreatedAt
	tx.UpdatedAt = s.now()
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	delete(s.txs, id)
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, filter ports.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	out := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if filter.Matches(tx) {
			out = append(out, tx)
		}
	}
	s.mu.Unlock()

	aggregate.SortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) GetBudget(_ context.Context) (core.BudgetConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget.Clone(), nil
}

func (s *Store) SetMonthlyBudget(_ context.Context, amount core.Money) error {
	if amount.Cents < 0 {
		return core.ErrNegativeBudget
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget.MonthlyBudget = amount
	return nil
}

func (s *Store) SetCategoryBudget(_ context.Context, category string, amount core.Money) error {
	if err := core.ValidateCategory(category); err != nil {
		return err
	}
	if amount.Cents < 0 {
		return core.ErrNegativeBudget
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget.CategoryBudgets[category] = amount
	return nil
}

func (s *Store) DeleteCategoryBudget(_ context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.budget.CategoryBudgets, category)
	return nil
}

func (s *Store) LoadPreferences(_ context.Context) (core.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, nil
}

func (s *Store) SavePreferences(_ context.Context, p core.Preferences) error {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
	return nil
}

// Categories returns the seeded suggestions plus every category in use,
// sorted by name.
func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	all := append([]string(nil), s.cats...)
	for _, tx := range s.txs {
		all = append(all, tx.Category)
	}
	for category := range s.budget.CategoryBudgets {
		all = append(all, category)
	}
	s.mu.Unlock()

	out := dedupe(all)
	sort.Strings(out)
	return out, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
