package generic

import "time"

// =============================================================================
// FEE BREAKDOWN - Internally computed premium
// =============================================================================

// FeeBreakdown is the canonical internal premium of a contract. Every amount
// is in whole currency units.
//
// INVARIANTS (checked by Validate):
//   - TotalBeforeDiscount = BaseFee + liability + passenger + renewal.
//   - TotalAfterDiscount = ChargedBaseFee + liability + passenger + renewal
//     - VolumeDiscount.
//   - Neither total is negative. A negative RenewalAdjustment lowers both.
type FeeBreakdown struct {
	InsurableValue Money `json:"insurable_value"`

	PackageCode string `json:"package_code,omitempty"`
	PackageRate Rate   `json:"package_rate"`
	CustomRate  *Rate  `json:"custom_rate,omitempty"`

	// BaseFee is the base coverage fee at the system (package) rate.
	BaseFee Money `json:"base_fee"`
	// CustomFee is the base coverage fee at the override rate. Equals BaseFee
	// when no custom rate is active.
	CustomFee Money `json:"custom_fee"`
	// BatteryFee is the part of BaseFee attributable to the battery value.
	// It is already included in BaseFee and is reported for display only.
	BatteryFee Money `json:"battery_fee"`

	MandatoryLiabilityFee Money `json:"mandatory_liability_fee"`
	PassengerAccidentFee  Money `json:"passenger_accident_fee"`

	// RenewalAdjustment is signed: negative is a discount, positive a surcharge.
	RenewalAdjustment Money `json:"renewal_adjustment"`

	// VolumeDiscount is a product-level reduction such as a group rate.
	// It lowers only TotalAfterDiscount.
	VolumeDiscount Money `json:"volume_discount"`

	MinimumFeeApplied bool `json:"minimum_fee_applied"`

	TotalBeforeDiscount Money `json:"total_before_discount"`
	TotalAfterDiscount  Money `json:"total_after_discount"`
}

// HasCustomRate reports whether an override rate is in effect.
func (f FeeBreakdown) HasCustomRate() bool { return f.CustomRate != nil }

// ChargedBaseFee is the base coverage fee actually charged.
func (f FeeBreakdown) ChargedBaseFee() Money {
	if f.HasCustomRate() {
		return f.CustomFee
	}
	return f.BaseFee
}

// Validate checks that the totals follow from the components. A zero
// breakdown is valid.
func (f FeeBreakdown) Validate() error {
	for _, c := range []struct {
		field string
		m     Money
	}{
		{"insurable_value", f.InsurableValue},
		{"base_fee", f.BaseFee},
		{"custom_fee", f.CustomFee},
		{"battery_fee", f.BatteryFee},
		{"mandatory_liability_fee", f.MandatoryLiabilityFee},
		{"passenger_accident_fee", f.PassengerAccidentFee},
		{"volume_discount", f.VolumeDiscount},
		{"total_before_discount", f.TotalBeforeDiscount},
		{"total_after_discount", f.TotalAfterDiscount},
	} {
		if c.m.IsNegative() {
			return NewValidationError(c.field, "must not be negative")
		}
	}

	supplements := f.MandatoryLiabilityFee.Add(f.PassengerAccidentFee).Add(f.RenewalAdjustment)
	if !f.TotalBeforeDiscount.Equal(f.BaseFee.Add(supplements)) {
		return NewValidationError("total_before_discount", "does not match base fee plus supplements")
	}
	if !f.TotalAfterDiscount.Equal(f.ChargedBaseFee().Add(supplements).Sub(f.VolumeDiscount)) {
		return NewValidationError("total_after_discount", "does not match charged fee plus supplements")
	}
	return nil
}

// IsZero reports whether no fee has been computed yet.
func (f FeeBreakdown) IsZero() bool {
	return f.TotalBeforeDiscount.IsZero() && f.TotalAfterDiscount.IsZero()
}

// =============================================================================
// EXTERNAL PREMIUM - Partner-computed premium snapshot
// =============================================================================

// TaxedAmount is an amount before and after tax.
type TaxedAmount struct {
	BeforeTax Money `json:"before_tax"`
	AfterTax  Money `json:"after_tax"`
}

// Tax returns AfterTax - BeforeTax.
func (t TaxedAmount) Tax() Money { return t.AfterTax.Sub(t.BeforeTax) }

func (t TaxedAmount) Add(o TaxedAmount) TaxedAmount {
	return TaxedAmount{BeforeTax: t.BeforeTax.Add(o.BeforeTax), AfterTax: t.AfterTax.Add(o.AfterTax)}
}

// PremiumComponents is the canonical breakdown extracted from a partner
// fee report.
type PremiumComponents struct {
	BaseCoverage       TaxedAmount `json:"base_coverage"`
	MandatoryLiability TaxedAmount `json:"mandatory_liability"`
	PassengerAccident  TaxedAmount `json:"passenger_accident"`
	Total              TaxedAmount `json:"total"`
}

// ComponentSum adds the three components (excluding Total).
func (p PremiumComponents) ComponentSum() TaxedAmount {
	return p.BaseCoverage.Add(p.MandatoryLiability).Add(p.PassengerAccident)
}

// Discount is the difference between the internal and the partner total.
// A positive Amount means the partner charges less than the internal figure.
type Discount struct {
	Amount  Money `json:"amount"`
	Percent Rate  `json:"percent"`
}

// ExternalPremium is the reconciliation snapshot stored on a contract.
// It is overwritten on every recheck, never appended.
type ExternalPremium struct {
	Components PremiumComponents `json:"components"`
	Discount   Discount          `json:"discount"`

	// Validated is false when the component sums disagree with the stated
	// total beyond tolerance. The figures are still usable.
	Validated bool   `json:"validated"`
	Warning   string `json:"warning,omitempty"`

	CheckedAt time.Time `json:"checked_at"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}
