package premium

import (
	"fmt"

	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// RATE SCHEDULE RESOLVER
// =============================================================================

// oldestProductionYear rejects obviously mistyped years.
const oldestProductionYear = 1950

// Resolver looks up available packages and the liability bracket.
// It is pure apart from reading the clock when the profile has no
// valuation date.
type Resolver struct {
	Schedule *Schedule
	Clock    generic.Clock
}

// NewResolver creates a resolver over schedule using the wall clock.
func NewResolver(schedule *Schedule) *Resolver {
	return &Resolver{Schedule: schedule, Clock: generic.SystemClock{}}
}

// Resolve returns the packages available for the vehicle, in schedule order,
// and its mandatory-liability bracket.
func (r *Resolver) Resolve(p VehicleProfile) (RateQuote, error) {
	if err := r.validate(p); err != nil {
		return RateQuote{}, err
	}

	at := p.ValuationDate
	if at.IsZero() {
		at = r.Clock.Now()
	}
	age := generic.YearsSince(p.ProductionYear, at)
	if age < 0 {
		return RateQuote{}, generic.NewValidationError("production_year", "is in the future")
	}

	quote := RateQuote{VehicleAge: age, Packages: []PackageRate{}}
	for _, def := range r.Schedule.Packages[p.Category] {
		if !def.availableFor(age, p.Seats, p.CargoWeight) {
			continue
		}
		rate, ok := def.RateFor(age)
		if !ok {
			continue
		}
		if p.Engine.IsElectric() {
			rate = rate.Add(def.ElectricLoading)
		}
		quote.Packages = append(quote.Packages, PackageRate{Code: def.Code, Name: def.Name, Rate: rate})
	}

	bracket, err := r.Schedule.LiabilityBracketFor(p.Category, p.Seats, p.CargoWeight)
	if err != nil {
		return RateQuote{}, err
	}
	quote.LiabilityBracket = bracket.Key
	quote.LiabilityFee = bracket.Fee

	return quote, nil
}

func (r *Resolver) validate(p VehicleProfile) error {
	if !p.Value.IsPositive() {
		return generic.NewValidationError("vehicle_value", "must be positive")
	}
	if _, ok := r.Schedule.Packages[p.Category]; !ok {
		return generic.NewValidationError("business_category", fmt.Sprintf("no packages for %q", p.Category))
	}
	if p.ProductionYear < oldestProductionYear {
		return generic.NewValidationError("production_year", fmt.Sprintf("must be %d or later", oldestProductionYear))
	}
	if p.Seats <= 0 {
		return generic.NewValidationError("seats", "must be positive")
	}
	if p.Category.RequiresCargoWeight() && !p.CargoWeight.IsPositive() {
		return generic.NewValidationError("cargo_weight", "is required for "+string(p.Category))
	}
	return nil
}
