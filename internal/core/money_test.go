package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("%q expected invalid argument, got %v", tc.in, err)
			}
		}
	}
}

func TestParseBudgetToCents(t *testing.T) {
	if got, err := ParseBudgetToCents("0"); err != nil || got != 0 {
		t.Fatalf("zero budget: got %d err=%v", got, err)
	}
	if got, err := ParseBudgetToCents("500"); err != nil || got != 50000 {
		t.Fatalf("500 budget: got %d err=%v", got, err)
	}
	if _, err := ParseBudgetToCents("-5"); !errors.Is(err, ErrNegativeBudget) {
		t.Fatalf("expected negative budget error, got %v", err)
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		123456: "1234.56",
		-250:   "-2.50",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Money{Cents: 30000}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"amount":300.00}` {
		t.Fatalf("unexpected json: %s", b)
	}

	inputs := map[string]int64{
		`12.5`:     1250,
		`"12,50"`:  1250,
		`"-3"`:     -300,
		`1000`:     100000,
		`0.125`:    13,
		`null`:     0,
	}
	for in, want := range inputs {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if m.Cents != want {
			t.Errorf("unmarshal %s = %d cents, want %d", in, m.Cents, want)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"ten"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}

func TestNewMoneyFromFloat(t *testing.T) {
	if got := NewMoneyFromFloat(19.99); got.Cents != 1999 {
		t.Fatalf("19.99 -> %d cents", got.Cents)
	}
	if got := NewMoneyFromFloat(0.1 + 0.2); got.Cents != 30 {
		t.Fatalf("0.1+0.2 -> %d cents", got.Cents)
	}
}

func TestCurrencySymbol(t *testing.T) {
	tests := map[string]string{
		"INR":   "₹",
		"usd":   "$",
		" EUR ": "€",
		"GBP":   "£",
		"JPY":   "₹",
		"":      "₹",
	}
	for code, want := range tests {
		if got := CurrencySymbol(code); got != want {
			t.Errorf("CurrencySymbol(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(Money{Cents: 1250}, "USD"); got != "$12.50" {
		t.Errorf("FormatAmount = %q", got)
	}
	if got := FormatAmount(Money{Cents: -500}, "EUR"); got != "-€5.00" {
		t.Errorf("FormatAmount negative = %q", got)
	}
}

func TestMoneyAmountBounds(t *testing.T) {
	if _, err := ParseDecimalToCents("10000000000000"); err != nil {
		t.Fatalf("largest amount rejected: %v", err)
	}
	if _, err := ParseDecimalToCents("10000000000000.01"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	var m Money
	if err := json.Unmarshal([]byte(`90071992547409.91`), &m); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("json err = %v, want ErrInvalidAmount", err)
	}
	if err := (Money{Cents: MaxAmountCents + 1}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("validate err = %v, want ErrInvalidAmount", err)
	}
}

func TestMoneyCheckedAdd(t *testing.T) {
	got, err := Money{Cents: 1250}.CheckedAdd(Money{Cents: 750})
	if err != nil || got.Cents != 2000 {
		t.Fatalf("CheckedAdd = %d, %v", got.Cents, err)
	}

	// eleven maximum amounts used to wrap negative
	var total Money
	for i := 0; i < 11; i++ {
		total, err = total.CheckedAdd(Money{Cents: MaxAmountCents})
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if total.Cents <= 0 {
		t.Fatalf("total = %d, want positive", total.Cents)
	}

	_, err = Money{Cents: math.MaxInt64 - 10}.CheckedAdd(Money{Cents: 11})
	if !errors.Is(err, ErrAmountOverflow) || !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrAmountOverflow", err)
	}
	_, err = Money{Cents: math.MinInt64 + 10}.CheckedAdd(Money{Cents: -11})
	if !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("negative err = %v, want ErrAmountOverflow", err)
	}
}
