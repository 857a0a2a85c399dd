package reconcile

import (
	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

var hundred = decimal.NewFromInt(100)

// DeriveDiscount compares the internal total with the partner's after-tax
// total. A positive result means the partner charges less. Percent is
// relative to the internal total, rounded to two places.
func DeriveDiscount(internal, external generic.Money) generic.Discount {
	amount := internal.Sub(external).Round()
	percent := decimal.Zero
	if !internal.IsZero() {
		percent = amount.Value.Div(internal.Value).Mul(hundred).Round(2)
	}
	return generic.Discount{Amount: amount, Percent: generic.Rate{Percent: percent}}
}
