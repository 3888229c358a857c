package http

import (
	"errors"
	"fmt"
	"net/http"

	"finman/internal/core"
	"finman/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	txs, err := s.svc.Transactions.List(ctx, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Data(txs).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	tx, err := s.svc.Transactions.Get(ctx, id)
	if err != nil {
		s.writeTransactionError(w, r, id, err)
		return
	}
	NewJSONResponse().Data(tx).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	input, err := parseTransactionInput(p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	created, err := s.svc.Transactions.Create(ctx, input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writes.Add(1)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.FieldTransactionID, created.ID,
		log.FieldMonth, created.Date.YearMonth().String())

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/transactions/%d", created.ID)).
		Message("Transaction added successfully!").
		Field("transactionId", created.ID).
		Field("transaction", created).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	input, err := parseTransactionInput(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	input.ID = id

	ctx, cancel := s.storeContext(r)
	defer cancel()

	updated, err := s.svc.Transactions.Update(ctx, input)
	if err != nil {
		s.writeTransactionError(w, r, id, err)
		return
	}
	s.writes.Add(1)

	NewJSONResponse().
		Message(fmt.Sprintf("Transaction with ID %d was successfully updated.", id)).
		Field("transactionId", id).
		Field("transaction", updated).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	if _, err := s.svc.Transactions.Delete(ctx, id); err != nil {
		s.writeTransactionError(w, r, id, err)
		return
	}
	s.writes.Add(1)

	NewJSONResponse().
		Message(fmt.Sprintf("Transaction with ID %d was successfully deleted.", id)).
		Write(w)
}

// writeTransactionError answers unknown ids with a message naming the id.
func (s *Server) writeTransactionError(w http.ResponseWriter, r *http.Request, id int64, err error) {
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError(fmt.Sprintf("Transaction with ID %d not found.", id)).Write(w)
		return
	}
	writeError(w, r, err)
}
