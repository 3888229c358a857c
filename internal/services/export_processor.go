package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finman/internal/core"
	"finman/internal/log"
	"finman/internal/ports"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// PollInterval is how often to look for unexported transactions (default: 5m)
	PollInterval time.Duration

	// BatchSize is the max number of transactions exported per cycle (default: 50)
	BatchSize int

	// MaxRetries is how many cycles a failing transaction is retried before
	// the processor stops picking it up until restart (default: 3)
	MaxRetries int
}

func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval: 5 * time.Minute,
		BatchSize:    50,
		MaxRetries:   3,
	}
}

// ExportProcessor mirrors stored transactions to the sheet exporter. Event
// handlers call Export and Remove directly; the periodic loop picks up
// anything that changed while no event was delivered.
type ExportProcessor struct {
	tracker  ports.ExportTracker
	exporter ports.TransactionExporter
	config   ExportProcessorConfig
	logger   *log.Logger

	failMu   sync.Mutex
	failures map[int64]int

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(tracker ports.ExportTracker, exporter ports.TransactionExporter, config ExportProcessorConfig, logger *log.Logger) *ExportProcessor {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExportProcessor{
		tracker:  tracker,
		exporter: exporter,
		config:   config,
		logger:   logger.WithComponent(log.ComponentSheets),
		failures: make(map[int64]int),
	}
}

// Export writes tx to the sheet and records it as exported.
func (p *ExportProcessor) Export(ctx context.Context, tx core.Transaction) error {
	if err := p.exporter.UpsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("export transaction %d: %w", tx.ID, err)
	}
	if err := p.tracker.MarkExported(ctx, tx.ID); err != nil {
		// the row is in the sheet; the next cycle rewrites it idempotently
		p.logger.WarnContext(ctx, "Failed to mark transaction exported",
			log.FieldTransactionID, tx.ID,
			log.FieldError, err)
	}
	return nil
}

// Remove clears the sheet row of a deleted transaction.
func (p *ExportProcessor) Remove(ctx context.Context, id int64) error {
	if err := p.exporter.RemoveTransaction(ctx, id); err != nil {
		return fmt.Errorf("remove transaction %d from sheet: %w", id, err)
	}
	p.failMu.Lock()
	delete(p.failures, id)
	p.failMu.Unlock()
	return nil
}

// RunOnce exports one batch of pending transactions and returns how many
// were exported.
func (p *ExportProcessor) RunOnce(ctx context.Context) (int, error) {
	p.failMu.Lock()
	exhausted := 0
	for _, n := range p.failures {
		if n >= p.config.MaxRetries {
			exhausted++
		}
	}
	p.failMu.Unlock()

	pending, err := p.tracker.PendingExport(ctx, p.config.BatchSize+exhausted)
	if err != nil {
		return 0, fmt.Errorf("list pending export: %w", err)
	}

	exported := 0
	for _, tx := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		if exported >= p.config.BatchSize || p.gaveUp(tx.ID) {
			continue
		}

		if err := p.Export(ctx, tx); err != nil {
			attempts := p.recordFailure(tx.ID)
			p.logger.WarnContext(ctx, "Export failed",
				log.FieldTransactionID, tx.ID,
				"attempt", attempts,
				log.FieldError, err)
			if attempts >= p.config.MaxRetries {
				p.logger.ErrorContext(ctx, "Export failed permanently after max retries",
					log.FieldTransactionID, tx.ID,
					"attempts", attempts)
			}
			continue
		}

		p.failMu.Lock()
		delete(p.failures, tx.ID)
		p.failMu.Unlock()
		exported++
	}

	if exported > 0 {
		p.logger.InfoContext(ctx, "Exported pending transactions", "count", exported)
	}
	return exported, nil
}

func (p *ExportProcessor) gaveUp(id int64) bool {
	p.failMu.Lock()
	defer p.failMu.Unlock()
	return p.failures[id] >= p.config.MaxRetries
}

func (p *ExportProcessor) recordFailure(id int64) int {
	p.failMu.Lock()
	defer p.failMu.Unlock()
	p.failures[id]++
	return p.failures[id]
}

// Start begins the processing loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	p.logger.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Export processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}
}

func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Catch up on startup
	p.runCycle(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

func (p *ExportProcessor) runCycle(ctx context.Context) {
	if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
		p.logger.ErrorContext(ctx, "Export cycle failed", log.FieldError, err)
	}
}
