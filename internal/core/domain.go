package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the wire and storage format for transaction dates.
const DateLayout = "2006-01-02"

const (
	maxDescriptionLen = 200
	maxNotesLen       = 1000
	maxCategoryLen    = 100
)

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID            int64           `json:"id"`
		Type          TransactionType `json:"type"`
		Amount        Money           `json:"amount"`
		Category      string          `json:"category"`
		Description   string          `json:"description"`
		Date          Date            `json:"date"`
		PaymentMethod string          `json:"payment_method"`
		Notes         string          `json:"notes"`
		CreatedAt     time.Time       `json:"created_at"`
		UpdatedAt     time.Time       `json:"updated_at"`
	}

	// BudgetConfig holds the overall monthly limit and the per-category limits.
	// A zero MonthlyBudget means no overall budget is set.
	BudgetConfig struct {
		MonthlyBudget   Money            `json:"monthly_budget"`
		CategoryBudgets map[string]Money `json:"category_budgets"`
	}

	// Preferences are user display settings persisted next to the budget.
	Preferences struct {
		DisplayName string `json:"display_name"`
		Currency    string `json:"currency"`
	}
)

var (
	// ErrInvalidArgument is the root of every input validation failure.
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")

	ErrInvalidAmount      = fmt.Errorf("%w: amount must be a positive decimal", ErrInvalidArgument)
	ErrAmountOverflow     = fmt.Errorf("%w: amount total out of range", ErrInvalidArgument)
	ErrNegativeBudget     = fmt.Errorf("%w: budget must not be negative", ErrInvalidArgument)
	ErrInvalidType        = fmt.Errorf("%w: transaction type must be income or expense", ErrInvalidArgument)
	ErrInvalidDate        = fmt.Errorf("%w: invalid date", ErrInvalidArgument)
	ErrInvalidMonth       = fmt.Errorf("%w: month must be formatted as YYYY-MM", ErrInvalidArgument)
	ErrEmptyCategory      = fmt.Errorf("%w: category is required", ErrInvalidArgument)
	ErrCategoryTooLong    = fmt.Errorf("%w: category too long (max %d characters)", ErrInvalidArgument, maxCategoryLen)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max %d characters)", ErrInvalidArgument, maxDescriptionLen)
	ErrNotesTooLong       = fmt.Errorf("%w: notes too long (max %d characters)", ErrInvalidArgument, maxNotesLen)
	ErrInvalidCurrency    = fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidArgument)
	ErrInvalidMonthCount  = fmt.Errorf("%w: month count must be positive", ErrInvalidArgument)
	ErrDisplayNameTooLong = fmt.Errorf("%w: display name too long", ErrInvalidArgument)
)

// ParseTransactionType accepts the type name in any letter case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t TransactionType) String() string {
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// YearMonth returns the calendar month the date falls in.
func (d Date) YearMonth() Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidDate
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the invariants every stored transaction must hold.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := ValidateCategory(t.Category); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if utf8.RuneCountInString(t.Notes) > maxNotesLen {
		return ErrNotesTooLong
	}
	return nil
}

// ValidateCategory rejects blank or oversized category names. Names are
// otherwise kept verbatim and compared case-sensitively.
func ValidateCategory(category string) error {
	if strings.TrimSpace(category) == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(category) > maxCategoryLen {
		return ErrCategoryTooLong
	}
	return nil
}

// Clone returns a deep copy so callers can mutate the map safely.
func (b BudgetConfig) Clone() BudgetConfig {
	out := BudgetConfig{
		MonthlyBudget:   b.MonthlyBudget,
		CategoryBudgets: make(map[string]Money, len(b.CategoryBudgets)),
	}
	for k, v := range b.CategoryBudgets {
		out.CategoryBudgets[k] = v
	}
	return out
}

func (b BudgetConfig) Validate() error {
	if b.MonthlyBudget.Cents < 0 {
		return ErrNegativeBudget
	}
	for category, limit := range b.CategoryBudgets {
		if err := ValidateCategory(category); err != nil {
			return err
		}
		if limit.Cents < 0 {
			return fmt.Errorf("%w (category %q)", ErrNegativeBudget, category)
		}
	}
	return nil
}

// Normalize upper-cases the currency code.
func (p Preferences) Normalize() Preferences {
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	return p
}

func (p Preferences) Validate() error {
	if len(p.Currency) != 3 {
		return ErrInvalidCurrency
	}
	for _, r := range p.Currency {
		if r < 'A' || r > 'Z' {
			return ErrInvalidCurrency
		}
	}
	if utf8.RuneCountInString(p.DisplayName) > 80 {
		return ErrDisplayNameTooLong
	}
	return nil
}
