// Package charts renders dashboard aggregates as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"finman/internal/aggregate"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to chart")

const (
	width  = 900
	height = 450
)

var background = chart.Style{
	Padding: chart.Box{
		Top:    40,
		Left:   20,
		Right:  20,
		Bottom: 20,
	},
	FillColor: chart.ColorWhite,
}

// Renderer draws charts with a fixed currency symbol on the value axes.
type Renderer struct {
	symbol string
}

func NewRenderer(currencySymbol string) *Renderer {
	return &Renderer{symbol: currencySymbol}
}

func (r *Renderer) formatAmount(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%s%.0f", r.symbol, f)
	}
	return ""
}

// TrendPNG draws income and expense per month. A single month is drawn as
// two bars since a line needs at least two points.
func (r *Renderer) TrendPNG(trend []aggregate.MonthlyTrend) ([]byte, error) {
	if len(trend) == 0 {
		return nil, ErrNoData
	}

	xValues := make([]time.Time, len(trend))
	incomeValues := make([]float64, len(trend))
	expenseValues := make([]float64, len(trend))
	maxValue := 0.0
	for i, m := range trend {
		xValues[i] = m.Month.Start()
		incomeValues[i] = m.Income.Float()
		expenseValues[i] = m.Expense.Float()
		maxValue = max(maxValue, incomeValues[i], expenseValues[i])
	}
	if maxValue == 0 {
		return nil, ErrNoData
	}

	if len(trend) == 1 {
		return r.monthBars(trend[0], maxValue)
	}

	graph := chart.Chart{
		Title:      "Income vs expenses",
		Width:      width,
		Height:     height,
		Background: background,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 2006"),
			Style: chart.Style{
				FontSize:  10,
				FontColor: chart.ColorBlack,
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: r.formatAmount,
			Range:          &chart.ContinuousRange{Min: 0, Max: maxValue * 1.1},
			Style: chart.Style{
				FontSize:  10,
				FontColor: chart.ColorBlack,
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Income",
				XValues: xValues,
				YValues: incomeValues,
				Style: chart.Style{
					StrokeColor: chart.ColorGreen,
					StrokeWidth: 2,
				},
			},
			chart.TimeSeries{
				Name:    "Expenses",
				XValues: xValues,
				YValues: expenseValues,
				Style: chart.Style{
					StrokeColor: chart.ColorRed,
					StrokeWidth: 2,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, chart.Style{
			FontSize:  10,
			FontColor: chart.ColorBlack,
		}),
	}

	return render("trend", graph.Render)
}

func (r *Renderer) monthBars(m aggregate.MonthlyTrend, maxValue float64) ([]byte, error) {
	graph := chart.BarChart{
		Title:      "Income vs expenses " + m.Month.String(),
		Width:      width,
		Height:     height,
		BarWidth:   80,
		Background: background,
		YAxis: chart.YAxis{
			ValueFormatter: r.formatAmount,
			Range:          &chart.ContinuousRange{Min: 0, Max: maxValue * 1.1},
		},
		Bars: []chart.Value{
			{
				Label: "Income",
				Value: m.Income.Float(),
				Style: chart.Style{StrokeColor: chart.ColorGreen, FillColor: chart.ColorGreen},
			},
			{
				Label: "Expenses",
				Value: m.Expense.Float(),
				Style: chart.Style{StrokeColor: chart.ColorRed, FillColor: chart.ColorRed},
			},
		},
	}
	return render("trend", graph.Render)
}

// CategoryPiePNG draws each category's share of the month's expenses.
func (r *Renderer) CategoryPiePNG(breakdown []aggregate.CategoryAmount) ([]byte, error) {
	var total float64
	for _, c := range breakdown {
		total += c.Amount.Float()
	}
	if total <= 0 {
		return nil, ErrNoData
	}

	values := make([]chart.Value, 0, len(breakdown))
	for _, c := range breakdown {
		amount := c.Amount.Float()
		if amount <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %s%.2f (%.1f%%)", c.Category, r.symbol, amount, amount/total*100),
			Value: amount,
		})
	}

	pie := chart.PieChart{
		Title:      "Expenses by category",
		Width:      height * 2,
		Height:     height * 2,
		Values:     values,
		Background: background,
	}
	return render("category pie", pie.Render)
}

func render(name string, fn func(chart.RendererProvider, io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render %s chart: %w", name, err)
	}
	return buf.Bytes(), nil
}
