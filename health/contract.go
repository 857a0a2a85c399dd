// Package health implements the health insurance product line: one
// contract covers a policyholder and the people insured under it.
package health

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/contract-engine/generic"
)

// Product is the product identifier stored on health contracts.
const Product generic.ProductID = "health"

// MaxPeriodMonths is the longest health policy term.
const MaxPeriodMonths = 12

// Line is the health generic.ProductLine.
type Line struct{}

var _ generic.ProductLine = Line{}

func (Line) ProductID() generic.ProductID  { return Product }
func (Line) NumberPrefix() string          { return "SK" }
func (Line) Lifecycle() *generic.Lifecycle { return lifecycle }

var lifecycle = generic.DefaultLifecycle().WithPreconditions(RequiredFields)

func init() {
	generic.RegisterProduct(Line{})
}

// InsuredPerson is one covered person.
type InsuredPerson struct {
	Name         string    `json:"name"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	IDNumber     string    `json:"id_number,omitempty"`
	Relationship string    `json:"relationship,omitempty"`
}

// AgeAt returns the person's age in whole years on date at.
func (p InsuredPerson) AgeAt(at time.Time) int {
	age := at.Year() - p.DateOfBirth.Year()
	if at.Month() < p.DateOfBirth.Month() ||
		(at.Month() == p.DateOfBirth.Month() && at.Day() < p.DateOfBirth.Day()) {
		age--
	}
	return age
}

// Details is the health data stored in Contract.Details.
type Details struct {
	PolicyholderName  string          `json:"policyholder_name"`
	PolicyholderPhone string          `json:"policyholder_phone,omitempty"`
	Plan              Plan            `json:"plan"`
	Insured           []InsuredPerson `json:"insured_persons"`
}

// DetailsOf decodes the health details of c.
func DetailsOf(c generic.Contract) (Details, error) {
	var d Details
	if err := c.DecodeDetails(&d); err != nil {
		return Details{}, generic.NewValidationError("details", err.Error())
	}
	return d, nil
}

// RequiredFields lists what a health contract needs before it leaves draft.
func RequiredFields(c generic.Contract, target generic.Status) []string {
	if target == generic.StatusCancelled {
		return nil
	}

	var missing []string
	if !c.HasPeriod() || c.Period.Months() > MaxPeriodMonths {
		missing = append(missing, "period")
	}
	if c.Fees.IsZero() {
		missing = append(missing, "fee_breakdown")
	}

	d, err := DetailsOf(c)
	if err != nil {
		return append(missing, "details")
	}
	if strings.TrimSpace(d.PolicyholderName) == "" {
		missing = append(missing, "policyholder_name")
	}
	if d.Plan == "" {
		missing = append(missing, "plan")
	}
	if len(d.Insured) == 0 {
		missing = append(missing, "insured_persons")
	}
	for i, p := range d.Insured {
		if strings.TrimSpace(p.Name) == "" {
			missing = append(missing, fmt.Sprintf("insured_persons[%d].name", i))
		}
		if p.DateOfBirth.IsZero() {
			missing = append(missing, fmt.Sprintf("insured_persons[%d].date_of_birth", i))
		}
	}
	return missing
}
