package reconcile

import (
	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

// ValidatePremiumData reports whether the three components add up to the
// stated total within tolerance (0.01 = 1%), checked separately before and
// after tax. A failed check is informational; callers still use the figures.
func ValidatePremiumData(p generic.PremiumComponents, tolerance decimal.Decimal) bool {
	sum := p.ComponentSum()
	return withinTolerance(sum.BeforeTax, p.Total.BeforeTax, tolerance) &&
		withinTolerance(sum.AfterTax, p.Total.AfterTax, tolerance)
}

// Check is ValidatePremiumData returning the mismatch as an error.
func Check(p generic.PremiumComponents, tolerance decimal.Decimal) error {
	if ValidatePremiumData(p, tolerance) {
		return nil
	}
	return &generic.ParseInconsistencyError{StatedTotal: p.Total, ComponentSum: p.ComponentSum()}
}

// withinTolerance: |sum - total| <= tolerance * total. A zero total only
// matches a zero sum.
func withinTolerance(sum, total generic.Money, tolerance decimal.Decimal) bool {
	if total.IsZero() {
		return sum.IsZero()
	}
	diff := sum.Sub(total).Value.Abs()
	return diff.LessThanOrEqual(total.Value.Abs().Mul(tolerance))
}
