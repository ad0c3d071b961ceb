package utils

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatAmount renders an integer minor-unit amount as a human-readable price
// with its currency symbol (e.g. 1999, "usd" → "$ 19.99"). Unknown currency
// codes fall back to "<major>.<minor> <CODE>"; this is a display helper only
// and never feeds back into settlement math.
func FormatAmount(minor int64, code string) string {
	major := float64(minor) / 100

	unit, err := currency.ParseISO(code)
	if err != nil {
		return moneyPrinter.Sprintf("%.2f %s", major, strings.ToUpper(code))
	}
	return fmt.Sprint(currency.Symbol(unit.Amount(major)))
}
