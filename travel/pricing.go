package travel

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

// Zone is a destination pricing zone.
type Zone string

const (
	ZoneDomestic  Zone = "domestic"
	ZoneAsia      Zone = "asia"
	ZoneWorldwide Zone = "worldwide"
)

// IsInternational reports whether travellers cross a border.
func (z Zone) IsInternational() bool { return z == ZoneAsia || z == ZoneWorldwide }

// RateTable holds per-traveller per-day prices by zone.
type RateTable struct {
	PerDay map[Zone]generic.Money

	// GroupSize and GroupDiscount: groups of at least GroupSize travellers
	// get GroupDiscount percent off. Zero GroupSize disables it.
	GroupSize     int
	GroupDiscount generic.Rate
}

// DefaultRateTable returns the home-market travel prices.
func DefaultRateTable() RateTable {
	return RateTable{
		PerDay: map[Zone]generic.Money{
			ZoneDomestic:  generic.NewMoney(15_000),
			ZoneAsia:      generic.NewMoney(45_000),
			ZoneWorldwide: generic.NewMoney(90_000),
		},
		GroupSize:     5,
		GroupDiscount: generic.MustRate("10"),
	}
}

// Quote is a priced trip.
type Quote struct {
	Days       int                  `json:"days"`
	Travellers int                  `json:"travellers"`
	PerDay     generic.Money        `json:"per_day"`
	Fees       generic.FeeBreakdown `json:"fee_breakdown"`
}

// Quote prices the trip: per-day rate x days x travellers, less the group
// discount. The discount is the gap between the two totals.
func (t RateTable) Quote(d Details, period generic.Period) (Quote, error) {
	if err := period.Validate(); err != nil {
		return Quote{}, err
	}
	days := period.Days()
	if days > MaxTripDays {
		return Quote{}, generic.NewValidationError("period", fmt.Sprintf("trip exceeds %d days", MaxTripDays))
	}
	perDay, ok := t.PerDay[d.Zone]
	if !ok {
		return Quote{}, generic.NewValidationError("zone", fmt.Sprintf("unknown zone %q", d.Zone))
	}
	n := len(d.Travellers)
	if n == 0 {
		return Quote{}, generic.NewValidationError("travellers", "at least one traveller is required")
	}

	gross := perDay.Mul(decimal.NewFromInt(int64(days * n))).Round()
	net := gross
	if t.GroupSize > 0 && n >= t.GroupSize {
		net = gross.Sub(gross.ApplyRate(t.GroupDiscount)).Round()
	}

	return Quote{
		Days:       days,
		Travellers: n,
		PerDay:     perDay,
		Fees: generic.FeeBreakdown{
			InsurableValue:      gross,
			PackageCode:         string(d.Zone),
			BaseFee:             gross,
			CustomFee:           gross,
			VolumeDiscount:      gross.Sub(net),
			TotalBeforeDiscount: gross,
			TotalAfterDiscount:  net,
		},
	}, nil
}
