// Package vehicle implements the motor insurance product line.
// It plugs vehicle details, required-field checks and fee quoting into the
// generic contract engine.
package vehicle

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/premium"
)

// Product is the product identifier stored on vehicle contracts.
const Product generic.ProductID = "vehicle"

// MaxPeriodMonths is the longest motor policy that can be issued.
const MaxPeriodMonths = 36

// =============================================================================
// PRODUCT LINE
// =============================================================================

// Line is the vehicle generic.ProductLine.
type Line struct{}

var _ generic.ProductLine = Line{}

func (Line) ProductID() generic.ProductID { return Product }
func (Line) NumberPrefix() string         { return "XE" }

// Lifecycle is the shared graph plus cancellation after customer approval,
// which motor policies allow until issue.
func (Line) Lifecycle() *generic.Lifecycle {
	return lifecycle
}

var lifecycle = generic.DefaultLifecycle().
	WithRule(generic.StatusCustomerApproved, generic.StatusCancelled, generic.OwnerOrAdmin).
	WithPreconditions(RequiredFields)

func init() {
	generic.RegisterProduct(Line{})
}

// =============================================================================
// DETAILS
// =============================================================================

// Details is the vehicle data stored in Contract.Details.
type Details struct {
	OwnerName     string `json:"owner_name"`
	OwnerAddress  string `json:"owner_address,omitempty"`
	PlateNumber   string `json:"plate_number,omitempty"`
	ChassisNumber string `json:"chassis_number,omitempty"`
	EngineNumber  string `json:"engine_number,omitempty"`
	Brand         string `json:"brand,omitempty"`
	Model         string `json:"model,omitempty"`

	ProductionYear int                      `json:"production_year"`
	Seats          int                      `json:"seats"`
	CargoWeight    decimal.Decimal          `json:"cargo_weight"`
	Category       premium.BusinessCategory `json:"business_category"`
	Engine         premium.EngineType       `json:"engine_type"`

	VehicleValue generic.Money `json:"vehicle_value"`
	BatteryValue generic.Money `json:"battery_value"`

	PackageCode string        `json:"package_code"`
	CustomRate  *generic.Rate `json:"custom_rate,omitempty"`

	MandatoryLiability bool         `json:"mandatory_liability"`
	PassengerAccident  bool         `json:"passenger_accident"`
	RenewalPercent     generic.Rate `json:"renewal_percent"`
}

// Profile is the resolver input for these details.
func (d Details) Profile() premium.VehicleProfile {
	return premium.VehicleProfile{
		Value:          d.VehicleValue,
		ProductionYear: d.ProductionYear,
		Seats:          d.Seats,
		CargoWeight:    d.CargoWeight,
		Category:       d.Category,
		Engine:         d.Engine,
	}
}

// DetailsOf decodes the vehicle details of c.
func DetailsOf(c generic.Contract) (Details, error) {
	var d Details
	if err := c.DecodeDetails(&d); err != nil {
		return Details{}, generic.NewValidationError("details", err.Error())
	}
	return d, nil
}

// =============================================================================
// REQUIRED FIELDS
// =============================================================================

// RequiredFields lists what a vehicle contract must carry before it leaves
// draft. Cancellation never requires anything.
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
	if strings.TrimSpace(d.OwnerName) == "" {
		missing = append(missing, "owner_name")
	}
	if d.PlateNumber == "" && d.ChassisNumber == "" {
		missing = append(missing, "plate_number")
	}
	if !d.VehicleValue.IsPositive() {
		missing = append(missing, "vehicle_value")
	}
	if d.ProductionYear == 0 {
		missing = append(missing, "production_year")
	}
	if d.Seats <= 0 {
		missing = append(missing, "seats")
	}
	if d.Category == "" {
		missing = append(missing, "business_category")
	}
	if d.Category.RequiresCargoWeight() && !d.CargoWeight.IsPositive() {
		missing = append(missing, "cargo_weight")
	}
	if d.Engine.IsElectric() && !d.BatteryValue.IsPositive() {
		missing = append(missing, "battery_value")
	}
	if d.PackageCode == "" {
		missing = append(missing, "package_code")
	}
	return missing
}
