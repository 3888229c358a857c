package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finman/internal/core"
)

// EventAction names the write that produced a TransactionEvent.
type EventAction string

const (
	ActionCreated EventAction = "created"
	ActionUpdated EventAction = "updated"
	ActionDeleted EventAction = "deleted"
)

func (a EventAction) valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// PriorState is what an updated transaction looked like before the write.
type PriorState struct {
	Type        core.TransactionType `json:"type"`
	Category    string               `json:"category"`
	AmountCents int64                `json:"amount_cents"`
	Date        core.Date            `json:"date"`
}

// TransactionEvent announces a transaction write. It carries enough of the
// transaction for budget alerts; consumers that need the full record fetch it
// by id. Deleted events carry the state the transaction had before removal,
// updated events also carry it in Previous.
type TransactionEvent struct {
	EventID       string               `json:"event_id"`
	Action        EventAction          `json:"action"`
	TransactionID int64                `json:"transaction_id"`
	Type          core.TransactionType `json:"type"`
	Category      string               `json:"category"`
	AmountCents   int64                `json:"amount_cents"`
	Date          core.Date            `json:"date"`
	Timestamp     time.Time            `json:"timestamp"`
	Previous      *PriorState          `json:"previous,omitempty"`
}

// NewTransactionEvent builds an event for tx with a fresh event id.
func NewTransactionEvent(action EventAction, tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		EventID:       uuid.NewString(),
		Action:        action,
		TransactionID: tx.ID,
		Type:          tx.Type,
		Category:      tx.Category,
		AmountCents:   tx.Amount.Cents,
		Date:          tx.Date,
		Timestamp:     time.Now().UTC(),
	}
}

// WithPrevious records the state tx had before this write.
func (e *TransactionEvent) WithPrevious(tx core.Transaction) *TransactionEvent {
	e.Previous = &PriorState{
		Type:        tx.Type,
		Category:    tx.Category,
		AmountCents: tx.Amount.Cents,
		Date:        tx.Date,
	}
	return e
}

// PreviousTransaction rebuilds the pre-write transaction, or nil when the
// event has no prior state.
func (e *TransactionEvent) PreviousTransaction() *core.Transaction {
	if e.Previous == nil {
		return nil
	}
	return &core.Transaction{
		ID:       e.TransactionID,
		Type:     e.Previous.Type,
		Category: e.Previous.Category,
		Amount:   core.Money{Cents: e.Previous.AmountCents},
		Date:     e.Previous.Date,
	}
}

// Month returns the reference month the transaction falls in.
func (e *TransactionEvent) Month() core.Month {
	return e.Date.YearMonth()
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Action.valid() {
		return nil, fmt.Errorf("unknown event action %q", e.Action)
	}
	if e.TransactionID <= 0 {
		return nil, fmt.Errorf("invalid transaction id %d", e.TransactionID)
	}
	return &e, nil
}
