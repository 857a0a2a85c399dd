package vehicle

import (
	"fmt"

	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/premium"
)

// Quote is a priced vehicle: the packages on offer and the breakdown for
// the chosen one.
type Quote struct {
	Rates premium.RateQuote    `json:"rates"`
	Fees  generic.FeeBreakdown `json:"fee_breakdown"`
}

// Quoter prices vehicle details against a rate schedule.
type Quoter struct {
	Resolver  *premium.Resolver
	Passenger premium.PassengerAccidentQuoter
}

// NewQuoter uses schedule with the default seat table.
func NewQuoter(schedule *premium.Schedule) *Quoter {
	return &Quoter{
		Resolver:  premium.NewResolver(schedule),
		Passenger: premium.DefaultSeatTableQuoter(),
	}
}

// Quote resolves the package rate for d.PackageCode and computes the fees.
func (q *Quoter) Quote(d Details) (Quote, error) {
	rates, err := q.Resolver.Resolve(d.Profile())
	if err != nil {
		return Quote{}, err
	}

	pkg, ok := rates.Package(d.PackageCode)
	if !ok {
		return Quote{}, generic.NewValidationError("package_code",
			fmt.Sprintf("%q is not available for this vehicle", d.PackageCode))
	}

	pa := premium.PassengerAccidentOption{Enabled: d.PassengerAccident}
	if d.PassengerAccident {
		if pa.Fee, err = q.Passenger.QuotePassengerAccidentFee(d.Seats, d.Category); err != nil {
			return Quote{}, err
		}
	}

	fees, err := q.Resolver.Schedule.ComputeFees(premium.FeeInput{
		VehicleValue:       d.VehicleValue,
		BatteryValue:       d.BatteryValue,
		Engine:             d.Engine,
		Category:           d.Category,
		PackageCode:        pkg.Code,
		PackageRate:        pkg.Rate,
		UseCustomRate:      d.CustomRate != nil,
		CustomRate:         d.CustomRate,
		MandatoryLiability: premium.LiabilityOption{Enabled: d.MandatoryLiability, Bracket: rates.LiabilityBracket},
		PassengerAccident:  pa,
		RenewalPercent:     d.RenewalPercent,
	})
	if err != nil {
		return Quote{}, err
	}
	return Quote{Rates: rates, Fees: fees}, nil
}

// Reprice recomputes the fees of a stored contract from its details and
// returns the patch to save.
func (q *Quoter) Reprice(c generic.Contract) (generic.ContractPatch, error) {
	if c.Product != Product {
		return generic.ContractPatch{}, generic.NewValidationError("product", "not a vehicle contract")
	}
	d, err := DetailsOf(c)
	if err != nil {
		return generic.ContractPatch{}, err
	}
	quote, err := q.Quote(d)
	if err != nil {
		return generic.ContractPatch{}, err
	}
	return generic.ContractPatch{Fees: &quote.Fees}, nil
}
