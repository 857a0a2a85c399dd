/*
calculator.go - Fee Calculator

PURPOSE:
  Combines a package rate (or a custom override) with the supplemental
  coverages and the renewal adjustment into a generic.FeeBreakdown.
  Pure: identical input always yields an identical breakdown.

ALGORITHM:
  1. insurable  = vehicleValue + battery (electric/hybrid only)
  2. baseFee    = insurable * packageRate / 100, floored at MinimumFee for
                  private non-commercial vehicles valued below the threshold
  3. customFee  = same formula and floor with the custom rate; equals
                  baseFee when no custom rate is active
  4. liability  = flat bracket fee, zero if disabled
  5. passenger  = pre-quoted fee, zero if disabled
  6. renewal    = insurable * renewalPercent / 100 (signed)
  7. before     = baseFee   + liability + passenger + renewal
  8. after      = customFee + liability + passenger + renewal

  Every amount is rounded to whole currency units as it is produced, so
  the totals are exact sums of the displayed parts.

BATTERY:
  The battery value is part of the insurable value, so the fee for it is
  already inside baseFee/customFee. BatteryFee reports that share for
  display and is not added a second time.

EXAMPLE:
  fees, err := premium.ComputeFees(premium.FeeInput{
      VehicleValue: generic.NewMoney(800_000_000),
      Engine:       premium.EnginePetrol,
      Category:     premium.CategoryPrivate,
      PackageRate:  generic.MustRate("1.21"),
  })
  // fees.BaseFee == 9.680.000
*/
package premium

import (
	"github.com/warp/contract-engine/generic"
)

// LiabilityOption selects the mandatory-liability bracket.
type LiabilityOption struct {
	Enabled bool
	Bracket string
}

// PassengerAccidentOption carries the fee quoted by a PassengerAccidentQuoter.
type PassengerAccidentOption struct {
	Enabled bool
	Fee     generic.Money
}

// FeeInput is everything ComputeFees reads.
type FeeInput struct {
	VehicleValue generic.Money
	// BatteryValue is required for electric and hybrid engines, ignored
	// otherwise.
	BatteryValue generic.Money
	Engine       EngineType
	Category     BusinessCategory

	PackageCode string
	PackageRate generic.Rate

	// CustomRate is used only when UseCustomRate is set.
	UseCustomRate bool
	CustomRate    *generic.Rate

	MandatoryLiability LiabilityOption
	PassengerAccident  PassengerAccidentOption

	// RenewalPercent is signed: negative is a discount, positive a surcharge.
	RenewalPercent generic.Rate
}

// =============================================================================
// COMPUTE FEES
// =============================================================================

var defaultSchedule = DefaultSchedule()

// ComputeFees computes a breakdown against the default schedule.
func ComputeFees(in FeeInput) (generic.FeeBreakdown, error) {
	return defaultSchedule.ComputeFees(in)
}

// ComputeFees computes a breakdown against this schedule.
func (s *Schedule) ComputeFees(in FeeInput) (generic.FeeBreakdown, error) {
	if err := s.validateFeeInput(in); err != nil {
		return generic.FeeBreakdown{}, err
	}

	insurable := in.VehicleValue
	battery := generic.ZeroMoney()
	if in.Engine.IsElectric() {
		battery = in.BatteryValue
		insurable = insurable.Add(battery)
	}
	floorApplies := s.MinimumFeeApplies(in.Category, in.VehicleValue)

	out := generic.FeeBreakdown{
		InsurableValue: insurable,
		PackageCode:    in.PackageCode,
		PackageRate:    in.PackageRate,
	}

	var baseFloored, customFloored bool
	out.BaseFee, baseFloored = s.flooredFee(insurable, in.PackageRate, floorApplies)
	out.CustomFee, customFloored = out.BaseFee, baseFloored
	chargedRate := in.PackageRate
	if in.UseCustomRate {
		rate := *in.CustomRate
		out.CustomRate = &rate
		out.CustomFee, customFloored = s.flooredFee(insurable, rate, floorApplies)
		chargedRate = rate
	}
	out.MinimumFeeApplied = customFloored
	out.BatteryFee = battery.ApplyRate(chargedRate).Round()

	out.MandatoryLiabilityFee = generic.ZeroMoney()
	if in.MandatoryLiability.Enabled {
		fee, _ := s.LiabilityFee(in.MandatoryLiability.Bracket)
		out.MandatoryLiabilityFee = fee
	}

	out.PassengerAccidentFee = generic.ZeroMoney()
	if in.PassengerAccident.Enabled {
		out.PassengerAccidentFee = in.PassengerAccident.Fee.Round()
	}

	out.RenewalAdjustment = insurable.ApplyRate(in.RenewalPercent).Round()

	supplements := out.MandatoryLiabilityFee.Add(out.PassengerAccidentFee).Add(out.RenewalAdjustment)
	out.TotalBeforeDiscount = out.BaseFee.Add(supplements)
	out.TotalAfterDiscount = out.ChargedBaseFee().Add(supplements)

	if out.TotalBeforeDiscount.IsNegative() || out.TotalAfterDiscount.IsNegative() {
		return generic.FeeBreakdown{}, generic.NewValidationError("renewal_percent", "discount exceeds the premium")
	}
	return out, nil
}

// flooredFee returns value * rate / 100 rounded, lifted to the minimum fee
// when the floor applies.
func (s *Schedule) flooredFee(value generic.Money, rate generic.Rate, floorApplies bool) (generic.Money, bool) {
	fee := value.ApplyRate(rate).Round()
	if floorApplies && fee.LessThan(s.MinimumFee) {
		return s.MinimumFee, true
	}
	return fee, false
}

func (s *Schedule) validateFeeInput(in FeeInput) error {
	if !in.VehicleValue.IsPositive() {
		return generic.NewValidationError("vehicle_value", "must be positive")
	}
	if in.Engine.IsElectric() && !in.BatteryValue.IsPositive() {
		return generic.NewValidationError("battery_value", "is required for "+string(in.Engine)+" vehicles")
	}
	if in.PackageRate.IsNegative() || in.PackageRate.GreaterThan(s.MaxPackageRate) {
		return generic.NewValidationError("package_rate", "must be between 0 and "+s.MaxPackageRate.String()+"%")
	}
	if in.UseCustomRate {
		if in.CustomRate == nil {
			return generic.NewValidationError("custom_rate", "is required when a custom rate is active")
		}
		if in.CustomRate.LessThan(s.CustomRateMin) || in.CustomRate.GreaterThan(s.CustomRateMax) {
			return generic.NewValidationError("custom_rate",
				"must be between "+s.CustomRateMin.String()+"% and "+s.CustomRateMax.String()+"%")
		}
	}
	if in.MandatoryLiability.Enabled {
		if _, ok := s.LiabilityFee(in.MandatoryLiability.Bracket); !ok {
			return generic.NewValidationError("mandatory_liability.bracket", "unknown bracket "+in.MandatoryLiability.Bracket)
		}
	}
	if in.PassengerAccident.Enabled && in.PassengerAccident.Fee.IsNegative() {
		return generic.NewValidationError("passenger_accident.fee", "must not be negative")
	}
	return nil
}
