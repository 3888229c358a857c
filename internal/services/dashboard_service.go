package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"finman/internal/aggregate"
	"finman/internal/cache"
	"finman/internal/core"
	"finman/internal/log"
	"finman/internal/ports"
)

const snapshotKey = "snapshot"

// DashboardConfig tunes DashboardService.
type DashboardConfig struct {
	TrendMonths int
	RecentCount int
	CacheTTL    time.Duration
	// LoadTimeout bounds a shared snapshot load. The load is detached from
	// the caller that started it so one cancelled request cannot fail the
	// others waiting on it.
	LoadTimeout time.Duration
}

func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		TrendMonths: 6,
		RecentCount: 10,
		CacheTTL:    30 * time.Second,
		LoadTimeout: 7 * time.Second,
	}
}

// Dashboard is everything the overview page shows for one reference month.
type Dashboard struct {
	Month              core.Month                 `json:"month"`
	Summary            aggregate.MonthlySummary   `json:"summary"`
	Totals             aggregate.Totals           `json:"totals"`
	CategoryBreakdown  []aggregate.CategoryAmount `json:"category_breakdown"`
	SpendVsBudget      []aggregate.CategoryStatus `json:"spend_vs_budget"`
	Trend              []aggregate.MonthlyTrend   `json:"trend"`
	RecentTransactions []core.Transaction         `json:"recent_transactions"`
	Preferences        core.Preferences           `json:"preferences"`
}

// snapshot is the full input of one dashboard computation.
type snapshot struct {
	txs    []core.Transaction
	budget core.BudgetConfig
	prefs  core.Preferences
}

// DashboardService computes dashboards from a cached snapshot of the stores.
// Concurrent cache misses share a single load. Any write must call
// Invalidate.
type DashboardService struct {
	txs      ports.TransactionStore
	budgets  ports.BudgetStore
	settings *SettingsService
	config   DashboardConfig
	logger   *log.Logger

	cache      *cache.LRUCache[snapshot]
	group      singleflight.Group
	generation atomic.Uint64
}

func NewDashboardService(txs ports.TransactionStore, budgets ports.BudgetStore, settings *SettingsService, config DashboardConfig, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	defaults := DefaultDashboardConfig()
	if config.TrendMonths <= 0 {
		config.TrendMonths = defaults.TrendMonths
	}
	if config.RecentCount <= 0 {
		config.RecentCount = defaults.RecentCount
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = defaults.LoadTimeout
	}
	return &DashboardService{
		txs:      txs,
		budgets:  budgets,
		settings: settings,
		config:   config,
		logger:   logger.WithComponent(log.ComponentDashboard),
		cache:    cache.NewLRUCache[snapshot](1, config.CacheTTL),
	}
}

// Cache exposes the snapshot cache for periodic cleanup.
func (s *DashboardService) Cache() cache.Cleaner {
	return s.cache
}

// Invalidate drops the cached snapshot. Loads already in flight will not
// repopulate the cache.
func (s *DashboardService) Invalidate() {
	s.generation.Add(1)
	s.cache.Clear()
	s.group.Forget(snapshotKey)
}

func (s *DashboardService) load(ctx context.Context) (snapshot, error) {
	if snap, ok := s.cache.Get(snapshotKey); ok {
		return snap, nil
	}

	gen := s.generation.Load()
	ch := s.group.DoChan(snapshotKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.LoadTimeout)
		defer cancel()

		var snap snapshot
		g, gctx := errgroup.WithContext(loadCtx)
		g.Go(func() error {
			txs, err := s.txs.ListTransactions(gctx, ports.TransactionFilter{})
			if err != nil {
				return fmt.Errorf("list transactions: %w", err)
			}
			snap.txs = txs
			return nil
		})
		g.Go(func() error {
			budget, err := s.budgets.GetBudget(gctx)
			if err != nil {
				return fmt.Errorf("get budget: %w", err)
			}
			snap.budget = budget
			return nil
		})
		g.Go(func() error {
			prefs, err := s.settings.Get(gctx)
			if err != nil {
				return err
			}
			snap.prefs = prefs
			return nil
		})
		if err := g.Wait(); err != nil {
			return snapshot{}, err
		}

		if s.generation.Load() == gen {
			s.cache.Set(snapshotKey, snap)
		}
		return snap, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return snapshot{}, ctx.Err()
	}
	if res.Err != nil {
		return snapshot{}, res.Err
	}
	if res.Shared {
		s.logger.DebugContext(ctx, "Shared in-flight dashboard load")
	}
	return res.Val.(snapshot), nil
}

// Dashboard computes the overview for month. A zero month means the current
// calendar month.
func (s *DashboardService) Dashboard(ctx context.Context, month core.Month) (Dashboard, error) {
	if month.IsZero() {
		month = core.CurrentMonth()
	}
	if err := month.Validate(); err != nil {
		return Dashboard{}, err
	}

	snap, err := s.load(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	summary, err := aggregate.ComputeMonthlySummary(snap.txs, snap.budget, month)
	if err != nil {
		return Dashboard{}, fmt.Errorf("monthly summary: %w", err)
	}
	breakdown, err := aggregate.ComputeCategoryBreakdown(snap.txs, month)
	if err != nil {
		return Dashboard{}, fmt.Errorf("category breakdown: %w", err)
	}
	statuses, err := aggregate.ComputeCategorySpendVsBudget(breakdown, snap.budget.CategoryBudgets)
	if err != nil {
		return Dashboard{}, fmt.Errorf("spend vs budget: %w", err)
	}
	trend, err := aggregate.ComputeMonthlyTrendEndingAt(snap.txs, month, s.config.TrendMonths)
	if err != nil {
		return Dashboard{}, fmt.Errorf("monthly trend: %w", err)
	}
	totals, err := aggregate.ComputeTotals(snap.txs)
	if err != nil {
		return Dashboard{}, fmt.Errorf("totals: %w", err)
	}

	return Dashboard{
		Month:              month,
		Summary:            summary,
		Totals:             totals,
		CategoryBreakdown:  breakdown.Sorted(),
		SpendVsBudget:      statuses,
		Trend:              trend,
		RecentTransactions: aggregate.RecentTransactions(snap.txs, s.config.RecentCount),
		Preferences:        snap.prefs,
	}, nil
}

// CategoryBreakdown returns the month's expenses per category, largest first.
func (s *DashboardService) CategoryBreakdown(ctx context.Context, month core.Month) ([]aggregate.CategoryAmount, error) {
	if month.IsZero() {
		month = core.CurrentMonth()
	}
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	breakdown, err := aggregate.ComputeCategoryBreakdown(snap.txs, month)
	if err != nil {
		return nil, err
	}
	return breakdown.Sorted(), nil
}

// Trend returns monthCount months ending at the latest month with data.
// monthCount of zero uses the configured default.
func (s *DashboardService) Trend(ctx context.Context, monthCount int) ([]aggregate.MonthlyTrend, error) {
	if monthCount == 0 {
		monthCount = s.config.TrendMonths
	}
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.ComputeMonthlyTrend(snap.txs, monthCount)
}
