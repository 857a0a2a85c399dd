// Package travel implements the travel insurance product line: cover for
// a group of travellers over the dates of one trip.
package travel

import (
	"fmt"
	"strings"

	"github.com/warp/contract-engine/generic"
)

// Product is the product identifier stored on travel contracts.
const Product generic.ProductID = "travel"

// MaxTripDays is the longest single trip that can be covered.
const MaxTripDays = 365

// Line is the travel generic.ProductLine.
type Line struct{}

var _ generic.ProductLine = Line{}

func (Line) ProductID() generic.ProductID  { return Product }
func (Line) NumberPrefix() string          { return "DL" }
func (Line) Lifecycle() *generic.Lifecycle { return lifecycle }

var lifecycle = generic.DefaultLifecycle().WithPreconditions(RequiredFields)

func init() {
	generic.RegisterProduct(Line{})
}

// Traveller is one covered person.
type Traveller struct {
	Name           string `json:"name"`
	PassportNumber string `json:"passport_number,omitempty"`
}

// Details is the trip data stored in Contract.Details.
type Details struct {
	ContactName string      `json:"contact_name"`
	Destination string      `json:"destination"`
	Zone        Zone        `json:"zone"`
	Travellers  []Traveller `json:"travellers"`
}

// DetailsOf decodes the travel details of c.
func DetailsOf(c generic.Contract) (Details, error) {
	var d Details
	if err := c.DecodeDetails(&d); err != nil {
		return Details{}, generic.NewValidationError("details", err.Error())
	}
	return d, nil
}

// RequiredFields lists what a travel contract needs before it leaves draft.
// International zones need a passport number per traveller.
func RequiredFields(c generic.Contract, target generic.Status) []string {
	if target == generic.StatusCancelled {
		return nil
	}

	var missing []string
	if !c.HasPeriod() || c.Period.Days() > MaxTripDays {
		missing = append(missing, "period")
	}
	if c.Fees.IsZero() {
		missing = append(missing, "fee_breakdown")
	}

	d, err := DetailsOf(c)
	if err != nil {
		return append(missing, "details")
	}
	if strings.TrimSpace(d.ContactName) == "" {
		missing = append(missing, "contact_name")
	}
	if strings.TrimSpace(d.Destination) == "" {
		missing = append(missing, "destination")
	}
	if d.Zone == "" {
		missing = append(missing, "zone")
	}
	if len(d.Travellers) == 0 {
		missing = append(missing, "travellers")
	}
	for i, tr := range d.Travellers {
		if strings.TrimSpace(tr.Name) == "" {
			missing = append(missing, fmt.Sprintf("travellers[%d].name", i))
		}
		if d.Zone.IsInternational() && tr.PassportNumber == "" {
			missing = append(missing, fmt.Sprintf("travellers[%d].passport_number", i))
		}
	}
	return missing
}
