package charts

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"finman/internal/aggregate"
	"finman/internal/core"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func month(y int, m time.Month) core.Month {
	return core.Month{Year: y, Month: m}
}

func TestTrendPNG(t *testing.T) {
	r := NewRenderer("₹")

	tests := []struct {
		name    string
		trend   []aggregate.MonthlyTrend
		wantErr error
	}{
		{"empty", nil, ErrNoData},
		{"all zero", []aggregate.MonthlyTrend{{Month: month(2024, 1)}, {Month: month(2024, 2)}}, ErrNoData},
		{"single month", []aggregate.MonthlyTrend{
			{Month: month(2024, 1), Income: core.Money{Cents: 100000}, Expense: core.Money{Cents: 30000}},
		}, nil},
		{"several months", []aggregate.MonthlyTrend{
			{Month: month(2023, 12), Expense: core.Money{Cents: 5000}},
			{Month: month(2024, 1), Income: core.Money{Cents: 100000}, Expense: core.Money{Cents: 30000}},
			{Month: month(2024, 2)},
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := r.TrendPNG(tt.trend)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("TrendPNG: %v", err)
			}
			if !bytes.HasPrefix(img, pngMagic) {
				t.Errorf("output is not a PNG (%d bytes)", len(img))
			}
		})
	}
}

func TestCategoryPiePNG(t *testing.T) {
	r := NewRenderer("$")

	if _, err := r.CategoryPiePNG(nil); !errors.Is(err, ErrNoData) {
		t.Errorf("empty breakdown: error = %v, want ErrNoData", err)
	}

	img, err := r.CategoryPiePNG([]aggregate.CategoryAmount{
		{Category: "Rent", Amount: core.Money{Cents: 90000}},
		{Category: "Food", Amount: core.Money{Cents: 25000}},
		{Category: "Fun", Amount: core.Money{Cents: 5000}},
	})
	if err != nil {
		t.Fatalf("CategoryPiePNG: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Errorf("output is not a PNG (%d bytes)", len(img))
	}
}

func TestFormatAmount(t *testing.T) {
	r := NewRenderer("€")
	if got := r.formatAmount(1234.4); got != "€1234" {
		t.Errorf("formatAmount = %q", got)
	}
	if got := r.formatAmount("x"); got != "" {
		t.Errorf("formatAmount(non-float) = %q, want empty", got)
	}
}
