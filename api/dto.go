/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Quotes:
    HealthQuoteRequest, TravelQuoteRequest, FeeRequest

  Contracts:
    ContractDTO, DisplayDTO, CreateContractRequest, UpdateContractRequest,
    TransitionRequest, TransitionsDTO

  Periods:
    PeriodDTO (dates as YYYY-MM-DD, or start plus months)

  Scenarios:
    ScenarioDTO

  Errors:
    ErrorResponse

VALIDATION:
  Validation is done in handlers and domain code, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - reconcile/format.go: Formats the display amounts
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/health"
	"github.com/warp/contract-engine/premium"
	"github.com/warp/contract-engine/reconcile"
	"github.com/warp/contract-engine/travel"
)

// =============================================================================
// PERIOD
// =============================================================================

// PeriodDTO is a coverage period on the wire. Either End or Months is set.
type PeriodDTO struct {
	Start  string `json:"start"`
	End    string `json:"end,omitempty"`
	Months int    `json:"months,omitempty"`
}

// Period converts the DTO. A nil DTO yields a nil period.
func (p *PeriodDTO) Period() (*generic.Period, error) {
	if p == nil {
		return nil, nil
	}
	start, err := time.Parse(generic.DateLayout, p.Start)
	if err != nil {
		return nil, generic.NewValidationError("period", "start must be YYYY-MM-DD")
	}
	if p.End == "" {
		if p.Months <= 0 {
			return nil, generic.NewValidationError("period", "end or months is required")
		}
		period := generic.NewPeriod(start, p.Months)
		return &period, nil
	}
	end, err := time.Parse(generic.DateLayout, p.End)
	if err != nil {
		return nil, generic.NewValidationError("period", "end must be YYYY-MM-DD")
	}
	period := generic.Period{Start: start, End: end}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	return &period, nil
}

// =============================================================================
// QUOTES
// =============================================================================

// HealthQuoteRequest prices a health contract.
type HealthQuoteRequest struct {
	Details health.Details `json:"details"`
	Period  *PeriodDTO     `json:"period"`
}

// TravelQuoteRequest prices a trip.
type TravelQuoteRequest struct {
	Details travel.Details `json:"details"`
	Period  *PeriodDTO     `json:"period"`
}

// FeeRequest runs the fee calculator directly with an explicit package rate.
type FeeRequest struct {
	VehicleValue generic.Money            `json:"vehicle_value"`
	BatteryValue generic.Money            `json:"battery_value"`
	Engine       premium.EngineType       `json:"engine_type"`
	Category     premium.BusinessCategory `json:"business_category"`

	PackageCode string        `json:"package_code"`
	PackageRate generic.Rate  `json:"package_rate"`
	CustomRate  *generic.Rate `json:"custom_rate,omitempty"`

	MandatoryLiability string `json:"mandatory_liability_bracket,omitempty"`
	PassengerSeats     int    `json:"passenger_accident_seats,omitempty"`

	RenewalPercent generic.Rate `json:"renewal_percent"`
}

// =============================================================================
// CONTRACTS
// =============================================================================

// ContractDTO is a contract with its amounts formatted for display.
type ContractDTO struct {
	generic.Contract
	Display DisplayDTO `json:"display"`
}

// DisplayDTO holds locale-formatted amounts.
type DisplayDTO struct {
	TotalBeforeDiscount string `json:"total_before_discount"`
	TotalAfterDiscount  string `json:"total_after_discount"`
	ExternalTotal       string `json:"external_total,omitempty"`
	Discount            string `json:"discount,omitempty"`
}

func toContractDTO(c generic.Contract, loc reconcile.Locale) ContractDTO {
	dto := ContractDTO{
		Contract: c,
		Display: DisplayDTO{
			TotalBeforeDiscount: reconcile.FormatAmount(c.Fees.TotalBeforeDiscount, loc),
			TotalAfterDiscount:  reconcile.FormatAmount(c.Fees.TotalAfterDiscount, loc),
		},
	}
	if c.External != nil && c.External.Success {
		dto.Display.ExternalTotal = reconcile.FormatAmount(c.External.Components.Total.AfterTax, loc)
		dto.Display.Discount = reconcile.FormatAmount(c.External.Discount.Amount, loc)
	}
	return dto
}

func toContractDTOs(cs []generic.Contract, loc reconcile.Locale) []ContractDTO {
	dtos := make([]ContractDTO, len(cs))
	for i, c := range cs {
		dtos[i] = toContractDTO(c, loc)
	}
	return dtos
}

// CreateContractRequest opens a draft contract. Fees are always computed
// on the server; without Price the draft starts unpriced.
type CreateContractRequest struct {
	Product generic.ProductID `json:"product"`
	Period  *PeriodDTO        `json:"period,omitempty"`
	Details json.RawMessage   `json:"details,omitempty"`
	Price   bool              `json:"price"`
}

// UpdateContractRequest edits an editable contract. Omitted fields stay.
// A priced contract is repriced whenever its details or period change.
type UpdateContractRequest struct {
	Period  *PeriodDTO      `json:"period,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
	Price   bool            `json:"price"`
}

// TransitionRequest moves a contract to another status.
type TransitionRequest struct {
	To   generic.Status `json:"to"`
	Note string         `json:"note,omitempty"`
}

// TransitionsDTO lists the statuses the caller may move a contract to.
type TransitionsDTO struct {
	ContractID generic.ContractID `json:"contract_id"`
	Status     generic.Status     `json:"status"`
	Available  []generic.Status   `json:"available"`
}

// ProductDTO describes a registered product line.
type ProductDTO struct {
	ID           generic.ProductID `json:"id"`
	NumberPrefix string            `json:"number_prefix"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Product     string `json:"product"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Details   string   `json:"details,omitempty"`
	Field     string   `json:"field,omitempty"`
	Fields    []string `json:"fields,omitempty"`
	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`

	// ExternalPremium is the failure snapshot of a partner call.
	ExternalPremium *generic.ExternalPremium `json:"external_premium,omitempty"`
}
