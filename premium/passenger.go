package premium

import (
	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

// PassengerAccidentQuoter prices the optional per-seat accident cover.
// The calculator treats its answer as an opaque input.
type PassengerAccidentQuoter interface {
	QuotePassengerAccidentFee(seats int, category BusinessCategory) (generic.Money, error)
}

// SeatTableQuoter charges a flat premium per seat, by category.
type SeatTableQuoter struct {
	PerSeat map[BusinessCategory]generic.Money
	// Default is used for categories missing from PerSeat.
	Default generic.Money
}

var _ PassengerAccidentQuoter = SeatTableQuoter{}

// DefaultSeatTableQuoter prices a 10,000,000 sum insured per seat.
func DefaultSeatTableQuoter() SeatTableQuoter {
	return SeatTableQuoter{
		PerSeat: map[BusinessCategory]generic.Money{
			CategoryPrivate:             generic.NewMoney(10_000),
			CategoryCommercialPassenger: generic.NewMoney(15_000),
		},
		Default: generic.NewMoney(10_000),
	}
}

func (q SeatTableQuoter) QuotePassengerAccidentFee(seats int, category BusinessCategory) (generic.Money, error) {
	if seats <= 0 {
		return generic.ZeroMoney(), generic.NewValidationError("seats", "must be positive")
	}
	perSeat, ok := q.PerSeat[category]
	if !ok {
		perSeat = q.Default
	}
	return perSeat.Mul(decimal.NewFromInt(int64(seats))), nil
}
