package engine

import "github.com/shopspring/decimal"

// FormatPrice renders a price at a fixed number of decimal places, padding
// with zeros, so "1.085" at 5 places becomes "1.08500".
func FormatPrice(p decimal.Decimal, places int32) string {
	return p.StringFixed(places)
}
