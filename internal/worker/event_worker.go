package worker

import (
	"context"
	"errors"
	"fmt"

	"finman/internal/amqp"
	"finman/internal/core"
	"finman/internal/log"
	"finman/internal/notify"
	"finman/internal/ports"
)

// Exporter mirrors transactions to the external sheet.
type Exporter interface {
	Export(ctx context.Context, tx core.Transaction) error
	Remove(ctx context.Context, id int64) error
}

// Alerter turns a written expense into a budget alert when it crosses a
// threshold. previous is the state an update replaced, nil for creates.
type Alerter interface {
	Check(ctx context.Context, tx core.Transaction, previous *core.Transaction) (*notify.Alert, error)
}

// Consumer delivers transaction events until its context ends.
type Consumer interface {
	ConsumeTransactionEvents(ctx context.Context, handler func(context.Context, *amqp.TransactionEvent) error) error
}

// EventWorker reacts to transaction events published by the API server.
// Either of exporter and alerter may be nil.
type EventWorker struct {
	store    ports.TransactionStore
	exporter Exporter
	alerter  Alerter
	logger   *log.Logger
}

func NewEventWorker(store ports.TransactionStore, exporter Exporter, alerter Alerter, logger *log.Logger) *EventWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &EventWorker{
		store:    store,
		exporter: exporter,
		alerter:  alerter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes events until ctx is cancelled.
func (w *EventWorker) Run(ctx context.Context, consumer Consumer) error {
	err := consumer.ConsumeTransactionEvents(ctx, w.HandleEvent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleEvent processes one event. A returned error asks the broker to
// redeliver, so only failures a retry can fix are returned. Alert delivery
// failures are logged.
func (w *EventWorker) HandleEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	w.logger.InfoContext(ctx, "Processing transaction event",
		log.FieldEventID, event.EventID,
		log.FieldEventAction, string(event.Action),
		log.FieldTransactionID, event.TransactionID)

	switch event.Action {
	case amqp.ActionDeleted:
		return w.handleDelete(ctx, event)
	case amqp.ActionCreated, amqp.ActionUpdated:
		return w.handleWrite(ctx, event)
	default:
		w.logger.WarnContext(ctx, "Ignoring event with unknown action",
			log.FieldEventID, event.EventID,
			log.FieldEventAction, string(event.Action))
		return nil
	}
}

func (w *EventWorker) handleWrite(ctx context.Context, event *amqp.TransactionEvent) error {
	// The store is the source of truth; the event may be older than the row.
	tx, err := w.store.GetTransaction(ctx, event.TransactionID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.InfoContext(ctx, "Transaction no longer exists, skipping event",
			log.FieldEventID, event.EventID,
			log.FieldTransactionID, event.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction %d: %w", event.TransactionID, err)
	}

	if w.exporter != nil {
		if err := w.exporter.Export(ctx, tx); err != nil {
			return err
		}
	}

	if w.alerter == nil {
		return nil
	}
	previous := event.PreviousTransaction()
	if event.Action == amqp.ActionUpdated && previous == nil {
		// Without the replaced state an edit looks like new spending.
		w.logger.DebugContext(ctx, "Update event without prior state, skipping budget alert",
			log.FieldEventID, event.EventID,
			log.FieldTransactionID, tx.ID)
		return nil
	}
	alert, err := w.alerter.Check(ctx, tx, previous)
	if err != nil {
		w.logger.ErrorContext(ctx, "Budget alert failed",
			log.FieldTransactionID, tx.ID,
			log.FieldCategory, tx.Category,
			log.FieldError, err)
		return nil
	}
	if alert != nil {
		w.logger.InfoContext(ctx, "Budget alert sent",
			log.FieldCategory, alert.Category,
			log.FieldStatus, string(alert.Status),
			log.FieldMonth, alert.Month.String())
	}
	return nil
}

func (w *EventWorker) handleDelete(ctx context.Context, event *amqp.TransactionEvent) error {
	if w.exporter == nil {
		w.logger.DebugContext(ctx, "No exporter configured, skipping delete",
			log.FieldTransactionID, event.TransactionID)
		return nil
	}
	return w.exporter.Remove(ctx, event.TransactionID)
}
