package http

import (
	"html/template"
	"strings"

	"finman/internal/aggregate"
	"finman/internal/core"
)

var templateFuncs = template.FuncMap{
	"money":    core.FormatAmount,
	"symbol":   core.CurrencySymbol,
	"negative": func(m core.Money) bool { return m.Cents < 0 },

	"percent": func(p aggregate.Percentage) string {
		if !p.IsSet() {
			return "n/a"
		}
		return p.String() + "%"
	},
	// barWidth scales a percentage for progress bars, capped at 100.
	"barWidth": func(p aggregate.Percentage) int {
		v, ok := p.Value()
		if !ok || v <= 0 {
			return 0
		}
		if v > 100 {
			return 100
		}
		if v < 2 {
			return 2
		}
		return int(v + 0.5)
	},
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
