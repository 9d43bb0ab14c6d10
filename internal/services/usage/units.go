package usage

import (
	"strings"

	"github.com/shopspring/decimal"
)

var kgPerUnit = map[string]decimal.Decimal{
	"kg":    decimal.NewFromInt(1),
	"g":     decimal.RequireFromString("0.001"),
	"t":     decimal.NewFromInt(1000),
	"ton":   decimal.NewFromInt(1000),
	"tonne": decimal.NewFromInt(1000),
	"lb":    decimal.RequireFromString("0.45359237"),
}

// ToKg converts quantity to kilograms. Unknown units are taken as kg.
func ToKg(quantity float64, unit string) decimal.Decimal {
	q := decimal.NewFromFloat(quantity)
	f, ok := kgPerUnit[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return q
	}
	return q.Mul(f)
}
