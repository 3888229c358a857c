package core

import "strings"

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// CurrencySymbol returns the display symbol for an ISO currency code.
// Unknown codes fall back to the rupee sign.
func CurrencySymbol(code string) string {
	if s, ok := currencySymbols[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return s
	}
	return "₹"
}

// FormatAmount renders m with the symbol for code, e.g. "$12.50".
func FormatAmount(m Money, code string) string {
	if m.Cents < 0 {
		return "-" + CurrencySymbol(code) + Money{Cents: -m.Cents}.String()
	}
	return CurrencySymbol(code) + m.String()
}
