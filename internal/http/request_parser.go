// Package http provides HTTP server and handler implementations.
//
// This file turns query strings, path values and request bodies into domain
// values. Input that cannot be read at all is reported as a malformed request;
// input that parses but breaks a domain rule keeps its core error.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finman/internal/aggregate"
	"finman/internal/core"
	"finman/internal/ports"
)

const maxBodyBytes = 1 << 20

// requestError marks input that could not be parsed.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *requestError) Unwrap() error { return e.err }

func malformed(err error, format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...), err: err}
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON objects and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body of r once, up to maxBodyBytes.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("request body larger than %d bytes", maxBodyBytes)
	}
	return p
}

// Parse decodes the body as JSON or form data. Failures are malformed
// request errors.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = malformed(p.err, "could not read request body")
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.IsJSONContent() || trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = malformed(err, "invalid JSON body")
			return p.err
		}
		return nil
	}

	form, err := url.ParseQuery(string(trimmed))
	if err != nil {
		p.err = malformed(err, "invalid form body")
		return p.err
	}
	p.formData = form
	return nil
}

// Get returns the first non-empty value among keys, sanitized and trimmed.
// Several keys let camelCase and snake_case clients share one endpoint.
func (p *RequestBodyParser) Get(keys ...string) string {
	for _, key := range keys {
		if v := p.get(key); v != "" {
			return v
		}
	}
	return ""
}

func (p *RequestBodyParser) get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSONContent reports whether the request declared a JSON body.
func (p *RequestBodyParser) IsJSONContent() bool {
	mediaType, _, err := mime.ParseMediaType(p.contentType)
	return err == nil && mediaType == "application/json"
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// parseTransactionInput builds a transaction from a parsed body. The date
// defaults to today and the id is left to the caller.
func parseTransactionInput(p *RequestBodyParser) (core.Transaction, error) {
	typ, err := core.ParseTransactionType(p.Get("type"))
	if err != nil {
		return core.Transaction{}, err
	}
	cents, err := core.ParseDecimalToCents(p.Get("amount"))
	if err != nil {
		return core.Transaction{}, err
	}

	date := core.Today()
	if v := p.Get("date"); v != "" {
		if date, err = core.ParseDate(v); err != nil {
			return core.Transaction{}, err
		}
	}

	return core.Transaction{
		Type:          typ,
		Amount:        core.Money{Cents: cents},
		Category:      p.Get("category"),
		Description:   p.Get("description"),
		Date:          date,
		PaymentMethod: p.Get("paymentMethod", "payment_method"),
		Notes:         p.Get("notes"),
	}, nil
}

// parseMonthQuery reads a YYYY-MM query parameter. An absent parameter
// yields the zero month, which services treat as the current month.
func parseMonthQuery(query url.Values, key string) (core.Month, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Month{}, nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return core.Month{}, malformed(err, "invalid %s parameter", key)
	}
	return m, nil
}

// parseMonthsQuery reads a trend length. Absent means the configured default.
func parseMonthsQuery(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("months"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, malformed(err, "months must be a number")
	}
	if n <= 0 || n > aggregate.MaxTrendMonths {
		return 0, malformed(nil, "months must be between 1 and %d", aggregate.MaxTrendMonths)
	}
	return n, nil
}

func parseID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, malformed(nil, "invalid transaction id %q", raw)
	}
	return id, nil
}

// parseTransactionFilter reads the list filters from the query string.
func parseTransactionFilter(query url.Values) (ports.TransactionFilter, error) {
	var filter ports.TransactionFilter

	if v := strings.TrimSpace(query.Get("type")); v != "" {
		typ, err := core.ParseTransactionType(v)
		if err != nil {
			return filter, malformed(err, "invalid type parameter")
		}
		filter.Type = typ
	}

	month, err := parseMonthQuery(query, "month")
	if err != nil {
		return filter, err
	}
	filter.Month = month
	filter.Category = sanitizeInput(query.Get("category"))

	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, malformed(err, "limit must be a non-negative number")
		}
		filter.Limit = n
	}
	return filter, nil
}

// requireAmount parses a non-negative budget amount from the first present key.
func requireAmount(p *RequestBodyParser, keys ...string) (core.Money, error) {
	v := p.Get(keys...)
	if v == "" {
		return core.Money{}, malformed(nil, "%s is required", keys[0])
	}
	cents, err := core.ParseBudgetToCents(v)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

func isMalformed(err error) bool {
	var re *requestError
	return errors.As(err, &re)
}
