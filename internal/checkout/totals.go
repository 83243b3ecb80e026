package checkout

import "github.com/shopspring/decimal"

// Pricing rules for order placement. Every component reads these values from
// here; they are not restated anywhere else.
var (
	// FreeShippingThreshold is the subtotal above which shipping is free.
	// The comparison is strict: a subtotal of exactly 100.00 still ships
	// at the flat rate.
	FreeShippingThreshold = decimal.RequireFromString("100.00")

	// ShippingFlatRate applies to orders at or under the threshold.
	ShippingFlatRate = decimal.RequireFromString("9.99")

	// TaxRate applies to the subtotal only, never to shipping.
	TaxRate = decimal.RequireFromString("0.08")
)

// Totals carries the priced breakdown of an order.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals derives shipping, tax, and the grand total from a subtotal.
func ComputeTotals(subtotal decimal.Decimal) Totals {
	shipping := ShippingFlatRate
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(TaxRate).Round(2)
	return Totals{
		Subtotal: subtotal.Round(2),
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax).Round(2),
	}
}
