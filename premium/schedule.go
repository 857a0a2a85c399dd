package premium

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// PACKAGE DEFINITIONS
// =============================================================================

// AgeTier is the rate applied from a given vehicle age onwards.
type AgeTier struct {
	FromAgeYears int
	Rate         generic.Rate
}

// PackageDef is one coverage package offered for a category.
//
// Rate selection works like tenure tiers: the tier with the highest
// FromAgeYears not above the vehicle age wins.
//
// Example:
//
//	Tiers: [{0, 1.21}, {3, 1.35}, {6, 1.50}]
//	age 0-2 -> 1.21%, age 3-5 -> 1.35%, age 6+ -> 1.50%
type PackageDef struct {
	Code string
	Name string

	Tiers []AgeTier

	// MaxAgeYears hides the package for older vehicles. Zero means no limit.
	MaxAgeYears int
	// MinSeats hides the package for smaller vehicles. Zero means no limit.
	MinSeats int
	// MinCargoWeight hides the package for lighter trucks (tonnes).
	MinCargoWeight decimal.Decimal

	// ElectricLoading is added to the rate for electric and hybrid vehicles.
	ElectricLoading generic.Rate
}

// RateFor returns the tier rate for a vehicle of the given age.
func (p PackageDef) RateFor(age int) (generic.Rate, bool) {
	var (
		rate  generic.Rate
		found bool
		best  = -1
	)
	for _, t := range p.Tiers {
		if t.FromAgeYears <= age && t.FromAgeYears > best {
			rate, best, found = t.Rate, t.FromAgeYears, true
		}
	}
	return rate, found
}

// availableFor checks the package preconditions.
func (p PackageDef) availableFor(age, seats int, cargo decimal.Decimal) bool {
	if p.MaxAgeYears > 0 && age > p.MaxAgeYears {
		return false
	}
	if p.MinSeats > 0 && seats < p.MinSeats {
		return false
	}
	if p.MinCargoWeight.IsPositive() && cargo.LessThan(p.MinCargoWeight) {
		return false
	}
	return true
}

// =============================================================================
// MANDATORY LIABILITY BRACKETS
// =============================================================================

// LiabilityBracket is one flat mandatory-liability fee. Passenger categories
// bracket by seat count (inclusive bounds), freight categories by cargo
// weight in tonnes ([MinWeight, MaxWeight)). A zero upper bound is open-ended.
type LiabilityBracket struct {
	Key      string
	Category BusinessCategory

	MinSeats int
	MaxSeats int

	MinWeight decimal.Decimal
	MaxWeight decimal.Decimal

	Fee generic.Money
}

func (b LiabilityBracket) matches(category BusinessCategory, seats int, weight decimal.Decimal) bool {
	if b.Category != category {
		return false
	}
	if category.RequiresCargoWeight() {
		if weight.LessThan(b.MinWeight) {
			return false
		}
		return b.MaxWeight.IsZero() || weight.LessThan(b.MaxWeight)
	}
	if seats < b.MinSeats {
		return false
	}
	return b.MaxSeats == 0 || seats <= b.MaxSeats
}

// =============================================================================
// SCHEDULE
// =============================================================================

// Schedule holds every table the resolver and the calculator read.
type Schedule struct {
	Packages  map[BusinessCategory][]PackageDef
	Liability []LiabilityBracket

	// MinimumFee is the floor for the base fee of private non-commercial
	// vehicles valued below MinimumFeeValueThreshold.
	MinimumFee               generic.Money
	MinimumFeeValueThreshold generic.Money

	// Custom rate bounds, inclusive.
	CustomRateMin generic.Rate
	CustomRateMax generic.Rate

	// MaxPackageRate bounds package rates, inclusive.
	MaxPackageRate generic.Rate
}

// LiabilityBracketFor finds the bracket for a vehicle.
func (s *Schedule) LiabilityBracketFor(category BusinessCategory, seats int, weight decimal.Decimal) (LiabilityBracket, error) {
	for _, b := range s.Liability {
		if b.matches(category, seats, weight) {
			return b, nil
		}
	}
	if category.RequiresCargoWeight() {
		return LiabilityBracket{}, generic.NewValidationError("cargo_weight",
			fmt.Sprintf("no liability bracket for %s tonnes", weight))
	}
	return LiabilityBracket{}, generic.NewValidationError("seats",
		fmt.Sprintf("no liability bracket for %d seats", seats))
}

// LiabilityFee returns the flat fee of a bracket key.
func (s *Schedule) LiabilityFee(key string) (generic.Money, bool) {
	for _, b := range s.Liability {
		if b.Key == key {
			return b.Fee, true
		}
	}
	return generic.ZeroMoney(), false
}

// LiabilityKeys lists bracket keys sorted alphabetically.
func (s *Schedule) LiabilityKeys() []string {
	keys := make([]string, 0, len(s.Liability))
	for _, b := range s.Liability {
		keys = append(keys, b.Key)
	}
	sort.Strings(keys)
	return keys
}

// MinimumFeeApplies reports whether the base fee floor is in force.
func (s *Schedule) MinimumFeeApplies(category BusinessCategory, vehicleValue generic.Money) bool {
	return category.IsPrivateNonCommercial() && vehicleValue.LessThan(s.MinimumFeeValueThreshold)
}
