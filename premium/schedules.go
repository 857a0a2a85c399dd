/*
schedules.go - Default market rate tables

PURPOSE:
  Ready-to-use tables for the home market. Markets with other tariffs
  load a schedule from JSON through factory.ParseSchedule instead.

PACKAGES (rates in % of insured value, by vehicle age):
  private:
    comprehensive       0y 1.21  3y 1.35  6y 1.50  10y 1.80   (max 15y)
    comprehensive_plus  0y 1.41  3y 1.55  6y 1.70             (max 10y)
    total_loss          0y 0.60  10y 0.75                     (max 20y)
  commercial_passenger:
    comprehensive       0y 1.60  3y 1.80  6y 2.10             (max 10y)
    coach               0y 1.90  3y 2.10  6y 2.40   (16+ seats, max 15y)
  pickup:
    comprehensive       0y 1.50  3y 1.65  6y 1.90             (max 15y)
  cargo:
    comprehensive       0y 1.70  3y 1.90  6y 2.20             (max 15y)
    heavy_duty          0y 2.00  3y 2.25  6y 2.60    (8t+, max 15y)

  Electric and hybrid vehicles pay a 0.10 point loading on comprehensive
  packages.

MINIMUM FEE:
  5.500.000 for private vehicles valued below 500.000.000.

SEE ALSO:
  - factory/schedule.go: JSON-based schedules
*/
package premium

import (
	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

func tier(fromAge int, rate string) AgeTier {
	return AgeTier{FromAgeYears: fromAge, Rate: generic.MustRate(rate)}
}

var evLoading = generic.MustRate("0.10")

// DefaultSchedule returns the home-market tables.
func DefaultSchedule() *Schedule {
	return &Schedule{
		Packages: map[BusinessCategory][]PackageDef{
			CategoryPrivate: {
				{Code: "comprehensive", Name: "Comprehensive", Tiers: []AgeTier{tier(0, "1.21"), tier(3, "1.35"), tier(6, "1.50"), tier(10, "1.80")}, MaxAgeYears: 15, ElectricLoading: evLoading},
				{Code: "comprehensive_plus", Name: "Comprehensive Plus (flood, engine water damage)", Tiers: []AgeTier{tier(0, "1.41"), tier(3, "1.55"), tier(6, "1.70")}, MaxAgeYears: 10, ElectricLoading: evLoading},
				{Code: "total_loss", Name: "Total Loss Only", Tiers: []AgeTier{tier(0, "0.60"), tier(10, "0.75")}, MaxAgeYears: 20},
			},
			CategoryCommercialPassenger: {
				{Code: "comprehensive", Name: "Comprehensive", Tiers: []AgeTier{tier(0, "1.60"), tier(3, "1.80"), tier(6, "2.10")}, MaxAgeYears: 10, ElectricLoading: evLoading},
				{Code: "coach", Name: "Coach & Bus", Tiers: []AgeTier{tier(0, "1.90"), tier(3, "2.10"), tier(6, "2.40")}, MaxAgeYears: 15, MinSeats: 16},
			},
			CategoryPickup: {
				{Code: "comprehensive", Name: "Comprehensive", Tiers: []AgeTier{tier(0, "1.50"), tier(3, "1.65"), tier(6, "1.90")}, MaxAgeYears: 15, ElectricLoading: evLoading},
			},
			CategoryCargo: {
				{Code: "comprehensive", Name: "Comprehensive", Tiers: []AgeTier{tier(0, "1.70"), tier(3, "1.90"), tier(6, "2.20")}, MaxAgeYears: 15},
				{Code: "heavy_duty", Name: "Heavy Duty", Tiers: []AgeTier{tier(0, "2.00"), tier(3, "2.25"), tier(6, "2.60")}, MaxAgeYears: 15, MinCargoWeight: decimal.NewFromInt(8)},
			},
		},
		Liability: defaultLiabilityBrackets(),

		MinimumFee:               generic.NewMoney(5_500_000),
		MinimumFeeValueThreshold: generic.NewMoney(500_000_000),

		CustomRateMin:  generic.MustRate("0.1"),
		CustomRateMax:  generic.MustRate("10"),
		MaxPackageRate: generic.MustRate("10"),
	}
}

func defaultLiabilityBrackets() []LiabilityBracket {
	tons := func(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

	return []LiabilityBracket{
		{Key: "private_lt6", Category: CategoryPrivate, MinSeats: 1, MaxSeats: 5, Fee: generic.NewMoney(437_000)},
		{Key: "private_6_11", Category: CategoryPrivate, MinSeats: 6, MaxSeats: 11, Fee: generic.NewMoney(794_000)},
		{Key: "private_12_24", Category: CategoryPrivate, MinSeats: 12, MaxSeats: 24, Fee: generic.NewMoney(1_270_000)},
		{Key: "private_gt24", Category: CategoryPrivate, MinSeats: 25, Fee: generic.NewMoney(1_825_000)},

		{Key: "commercial_lt6", Category: CategoryCommercialPassenger, MinSeats: 1, MaxSeats: 5, Fee: generic.NewMoney(756_000)},
		{Key: "commercial_6_11", Category: CategoryCommercialPassenger, MinSeats: 6, MaxSeats: 11, Fee: generic.NewMoney(1_080_000)},
		{Key: "commercial_12_24", Category: CategoryCommercialPassenger, MinSeats: 12, MaxSeats: 24, Fee: generic.NewMoney(2_007_000)},
		{Key: "commercial_gt24", Category: CategoryCommercialPassenger, MinSeats: 25, Fee: generic.NewMoney(3_363_000)},

		{Key: "pickup", Category: CategoryPickup, MinWeight: tons(0), Fee: generic.NewMoney(933_000)},

		{Key: "cargo_lt3", Category: CategoryCargo, MinWeight: tons(0), MaxWeight: tons(3), Fee: generic.NewMoney(853_000)},
		{Key: "cargo_3_8", Category: CategoryCargo, MinWeight: tons(3), MaxWeight: tons(8), Fee: generic.NewMoney(1_660_000)},
		{Key: "cargo_8_15", Category: CategoryCargo, MinWeight: tons(8), MaxWeight: tons(15), Fee: generic.NewMoney(2_746_000)},
		{Key: "cargo_gt15", Category: CategoryCargo, MinWeight: tons(15), Fee: generic.NewMoney(3_200_000)},
	}
}
