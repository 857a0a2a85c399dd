/*
Package premium computes motor insurance premiums.

PURPOSE:
  Turns vehicle data into a fee breakdown in two pure steps:
  1. Resolver: vehicle profile -> available packages with their rates,
     plus the mandatory-liability bracket
  2. ComputeFees: chosen rate (or a custom override) + supplemental
     coverages + renewal adjustment -> generic.FeeBreakdown

  Both steps are table-driven. The tables live in a Schedule so a market
  can load its own (see factory/schedule.go) without touching the algorithm.

FLOW:
  ┌────────────────┐    ┌──────────┐    ┌─────────────┐    ┌──────────────┐
  │ VehicleProfile │──▶ │ Resolver │──▶ │ RateQuote   │──▶ │ ComputeFees  │
  └────────────────┘    └──────────┘    │ (packages,  │    │ (FeeInput)   │
                                        │  bracket)   │    └──────┬───────┘
                                        └─────────────┘           ▼
                                                         generic.FeeBreakdown

SEE ALSO:
  - schedule.go: Table types and lookups
  - calculator.go: The fee algorithm
  - schedules.go: Default market tables
*/
package premium

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// BUSINESS CATEGORY - Closed enumeration of vehicle use
// =============================================================================

// BusinessCategory is how the vehicle is used. It selects the package table,
// the liability bracket family and whether the minimum fee can apply.
type BusinessCategory string

const (
	// CategoryPrivate is a private passenger car, not used for business.
	CategoryPrivate BusinessCategory = "private"
	// CategoryCommercialPassenger covers taxis, ride-hailing and rentals.
	CategoryCommercialPassenger BusinessCategory = "commercial_passenger"
	// CategoryPickup covers pickups and panel vans.
	CategoryPickup BusinessCategory = "pickup"
	// CategoryCargo covers trucks carrying freight.
	CategoryCargo BusinessCategory = "cargo"
)

// AllCategories lists every category in display order.
var AllCategories = []BusinessCategory{
	CategoryPrivate,
	CategoryCommercialPassenger,
	CategoryPickup,
	CategoryCargo,
}

// ParseCategory validates a wire value.
func ParseCategory(s string) (BusinessCategory, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", generic.NewValidationError("business_category", "unknown category "+s)
}

// RequiresCargoWeight reports whether the category is freight use.
func (c BusinessCategory) RequiresCargoWeight() bool {
	return c == CategoryPickup || c == CategoryCargo
}

// IsPrivateNonCommercial reports whether the minimum base fee may apply.
func (c BusinessCategory) IsPrivateNonCommercial() bool {
	return c == CategoryPrivate
}

// =============================================================================
// ENGINE TYPE
// =============================================================================

type EngineType string

const (
	EnginePetrol   EngineType = "petrol"
	EngineDiesel   EngineType = "diesel"
	EngineHybrid   EngineType = "hybrid"
	EngineElectric EngineType = "electric"
)

// IsElectric reports whether the vehicle carries a traction battery that
// must be insured with it.
func (e EngineType) IsElectric() bool {
	return e == EngineElectric || e == EngineHybrid
}

// ParseEngineType validates a wire value. Empty means petrol.
func ParseEngineType(s string) (EngineType, error) {
	switch EngineType(s) {
	case "":
		return EnginePetrol, nil
	case EnginePetrol, EngineDiesel, EngineHybrid, EngineElectric:
		return EngineType(s), nil
	default:
		return "", generic.NewValidationError("engine_type", "unknown engine type "+s)
	}
}

// =============================================================================
// VEHICLE PROFILE - Resolver input
// =============================================================================

// VehicleProfile is the form data the resolver needs.
type VehicleProfile struct {
	Value          generic.Money
	ProductionYear int
	Seats          int
	// CargoWeight is the payload in tonnes. Zero means not provided.
	CargoWeight decimal.Decimal
	Category    BusinessCategory
	Engine      EngineType
	// ValuationDate is the date the vehicle age is computed at. Zero means
	// the resolver's clock.
	ValuationDate time.Time
}

// PackageRate is one available coverage package.
type PackageRate struct {
	Code string       `json:"code"`
	Name string       `json:"name"`
	Rate generic.Rate `json:"rate"`
}

// RateQuote is the resolver output.
type RateQuote struct {
	// Packages are the available packages in schedule order.
	Packages []PackageRate `json:"packages"`

	LiabilityBracket string        `json:"liability_bracket"`
	LiabilityFee     generic.Money `json:"liability_fee"`

	VehicleAge int `json:"vehicle_age"`
}

// Package finds a quoted package by code.
func (q RateQuote) Package(code string) (PackageRate, bool) {
	for _, p := range q.Packages {
		if p.Code == code {
			return p, true
		}
	}
	return PackageRate{}, false
}
