package health

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

// Plan is a health coverage level.
type Plan string

const (
	PlanBasic    Plan = "basic"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// AgeBand prices everyone from FromAge up to the next band.
type AgeBand struct {
	FromAge int
	Price   generic.Money
}

// PriceTable holds the annual per-person price of each plan by age band.
type PriceTable struct {
	Plans  map[Plan][]AgeBand
	MaxAge int
}

// DefaultPriceTable returns the home-market annual prices.
func DefaultPriceTable() PriceTable {
	band := func(from int, price int64) AgeBand { return AgeBand{FromAge: from, Price: generic.NewMoney(price)} }
	return PriceTable{
		Plans: map[Plan][]AgeBand{
			PlanBasic:    {band(0, 1_200_000), band(18, 1_500_000), band(41, 2_100_000), band(61, 3_300_000)},
			PlanStandard: {band(0, 2_400_000), band(18, 2_900_000), band(41, 3_900_000), band(61, 5_800_000)},
			PlanPremium:  {band(0, 4_800_000), band(18, 5_600_000), band(41, 7_400_000), band(61, 10_900_000)},
		},
		MaxAge: 75,
	}
}

// PriceFor returns the annual price of plan for someone aged age.
func (t PriceTable) PriceFor(plan Plan, age int) (generic.Money, error) {
	bands, ok := t.Plans[plan]
	if !ok || len(bands) == 0 {
		return generic.Money{}, generic.NewValidationError("plan", fmt.Sprintf("unknown plan %q", plan))
	}
	if age < 0 || (t.MaxAge > 0 && age > t.MaxAge) {
		return generic.Money{}, generic.NewValidationError("date_of_birth", fmt.Sprintf("age %d is not insurable", age))
	}

	sorted := append([]AgeBand(nil), bands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FromAge < sorted[j].FromAge })

	price := sorted[0].Price
	for _, b := range sorted {
		if b.FromAge <= age {
			price = b.Price
		}
	}
	return price, nil
}

// PersonPrice is the price charged for one insured person.
type PersonPrice struct {
	Name  string        `json:"name"`
	Age   int           `json:"age"`
	Price generic.Money `json:"price"`
}

// Quote is a priced health contract.
type Quote struct {
	People []PersonPrice        `json:"people"`
	Fees   generic.FeeBreakdown `json:"fee_breakdown"`
}

// Quote prices every insured person at their age on the period start.
// Terms shorter than a year are charged pro rata by month.
func (t PriceTable) Quote(d Details, period generic.Period) (Quote, error) {
	if err := period.Validate(); err != nil {
		return Quote{}, err
	}
	months := period.Months()
	if months <= 0 || months > MaxPeriodMonths {
		return Quote{}, generic.NewValidationError("period", fmt.Sprintf("must be 1 to %d months", MaxPeriodMonths))
	}
	if len(d.Insured) == 0 {
		return Quote{}, generic.NewValidationError("insured_persons", "at least one person is required")
	}

	q := Quote{People: make([]PersonPrice, 0, len(d.Insured))}
	total := generic.ZeroMoney()
	for i, p := range d.Insured {
		age := p.AgeAt(period.Start)
		price, err := t.PriceFor(d.Plan, age)
		if err != nil {
			if ve, ok := err.(*generic.ValidationError); ok && ve.Field == "date_of_birth" {
				ve.Field = fmt.Sprintf("insured_persons[%d].date_of_birth", i)
			}
			return Quote{}, err
		}
		price = prorate(price, months)
		q.People = append(q.People, PersonPrice{Name: p.Name, Age: age, Price: price})
		total = total.Add(price)
	}

	q.Fees = generic.FeeBreakdown{
		InsurableValue:      total,
		PackageCode:         string(d.Plan),
		BaseFee:             total,
		CustomFee:           total,
		TotalBeforeDiscount: total,
		TotalAfterDiscount:  total,
	}
	return q, nil
}

func prorate(annual generic.Money, months int) generic.Money {
	if months >= 12 {
		return annual
	}
	return generic.NewMoneyFromDecimal(annual.Value.Mul(decimal.NewFromInt(int64(months))).Div(decimal.NewFromInt(12))).Round()
}

// DefaultQuote prices with the default table. at is only used when the
// contract has no period yet.
func DefaultQuote(d Details, period *generic.Period, at time.Time) (Quote, error) {
	p := generic.NewPeriod(at, 12)
	if period != nil {
		p = *period
	}
	return DefaultPriceTable().Quote(d, p)
}
