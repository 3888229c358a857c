package services

import (
	"context"
	"fmt"
	"strings"

	"finman/internal/amqp"
	"finman/internal/core"
	"finman/internal/log"
	"finman/internal/ports"
)

// DefaultPaymentMethod is used when a transaction arrives without one.
const DefaultPaymentMethod = "cash"

// Publisher announces transaction writes to other processes.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error
}

// TransactionService writes transactions through the store, then announces
// each write. Publishing is best effort: a saved transaction stays saved.
type TransactionService struct {
	store      ports.TransactionStore
	publisher  Publisher
	logger     *log.Logger
	structured *log.StructuredLogger
	onWrite    []func()
}

// NewTransactionService builds the service. publisher may be nil when no
// broker is configured.
func NewTransactionService(store ports.TransactionStore, publisher Publisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentTransaction)
	return &TransactionService{
		store:      store,
		publisher:  publisher,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
	}
}

// OnWrite registers fn to run after every successful write.
func (s *TransactionService) OnWrite(fn func()) {
	s.onWrite = append(s.onWrite, fn)
}

func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx = normalize(tx)
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.afterWrite(ctx, log.OpCreate, amqp.NewTransactionEvent(amqp.ActionCreated, created), created)
	return created, nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// Update replaces the stored transaction with tx. CreatedAt is kept from the
// stored record. The published event carries the replaced state so budget
// alerts can tell an edit from new spending.
func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx = normalize(tx)
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	before, err := s.store.GetTransaction(ctx, tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	event := amqp.NewTransactionEvent(amqp.ActionUpdated, updated).WithPrevious(before)
	s.afterWrite(ctx, log.OpUpdate, event, updated)
	return updated, nil
}

// Delete removes the transaction and returns its final state.
func (s *TransactionService) Delete(ctx context.Context, id int64) (core.Transaction, error) {
	deleted, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}

	s.afterWrite(ctx, log.OpDelete, amqp.NewTransactionEvent(amqp.ActionDeleted, deleted), deleted)
	return deleted, nil
}

func (s *TransactionService) List(ctx context.Context, filter ports.TransactionFilter) ([]core.Transaction, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidType, filter.Type)
	}
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", core.ErrInvalidArgument)
	}
	return s.store.ListTransactions(ctx, filter)
}

func (s *TransactionService) afterWrite(ctx context.Context, op string, event *amqp.TransactionEvent, tx core.Transaction) {
	for _, fn := range s.onWrite {
		fn()
	}

	s.structured.LogTransactionWrite(ctx, op, tx.ID, string(tx.Type), tx.Amount.Cents, tx.Category)

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping transaction event", log.FieldTransactionID, tx.ID)
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldTransactionID, tx.ID,
			log.FieldEventAction, string(event.Action),
			log.FieldError, err)
	}
}

func normalize(tx core.Transaction) core.Transaction {
	tx.Category = strings.TrimSpace(tx.Category)
	tx.Description = strings.TrimSpace(tx.Description)
	tx.Notes = strings.TrimSpace(tx.Notes)
	tx.PaymentMethod = strings.TrimSpace(tx.PaymentMethod)
	if tx.PaymentMethod == "" {
		tx.PaymentMethod = DefaultPaymentMethod
	}
	if tx.Date.IsZero() {
		tx.Date = core.Today()
	}
	return tx
}
