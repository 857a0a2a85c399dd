/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	contracts for testing and demos. Each scenario prices its contracts
	with the live tables and walks them through part of the lifecycle.

AVAILABLE SCENARIOS:

	ev-vehicle:        Electric car with battery cover, sent to the customer
	renewal-discount:  Renewal with a loyalty discount, customer approved
	renewal-surcharge: Renewal with a claims surcharge, still in draft
	health-family:     Family of three on the standard plan
	travel-group:      Five travellers to Asia, issued by an administrator

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Build product details
 3. Price them with the handler's quoters
 4. Create the contract through the service
 5. Apply the scenario's transitions

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "ev-vehicle"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add it to the loaders map

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Pricing helpers and the service
  - vehicle/, health/, travel/: Product details
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/health"
	"github.com/warp/contract-engine/premium"
	"github.com/warp/contract-engine/travel"
	"github.com/warp/contract-engine/vehicle"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "ev-vehicle",
		Name:        "Electric Vehicle",
		Description: "EV with battery value insured alongside the car, pending customer approval",
		Product:     string(vehicle.Product),
	},
	{
		ID:          "renewal-discount",
		Name:        "Renewal Discount",
		Description: "Renewed sedan with a -0.5% loyalty adjustment, approved by the customer",
		Product:     string(vehicle.Product),
	},
	{
		ID:          "renewal-surcharge",
		Name:        "Renewal Surcharge",
		Description: "Renewed sedan with a +0.3% claims surcharge, still in draft",
		Product:     string(vehicle.Product),
	},
	{
		ID:          "health-family",
		Name:        "Health Family",
		Description: "Two adults and a child on the standard health plan",
		Product:     string(health.Product),
	},
	{
		ID:          "travel-group",
		Name:        "Travel Group",
		Description: "Five travellers to Asia with the group discount, issued",
		Product:     string(travel.Product),
	},
}

var (
	demoAgent = generic.Actor{ID: "agent-demo"}
	demoAdmin = generic.Actor{ID: "admin-demo", IsAdmin: true}
)

type step struct {
	to    generic.Status
	actor generic.Actor
	note  string
}

func (h *Handler) loaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"ev-vehicle":        h.loadEVVehicleScenario,
		"renewal-discount":  h.loadRenewalDiscountScenario,
		"renewal-surcharge": h.loadRenewalSurchargeScenario,
		"health-family":     h.loadHealthFamilyScenario,
		"travel-group":      h.loadTravelGroupScenario,
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	load, ok := h.loaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	contracts, err := h.Service.List(ctx, generic.ContractFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "loaded",
		"scenario":  req.ScenarioID,
		"contracts": toContractDTOs(contracts, h.locale()),
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func demoSedan() vehicle.Details {
	return vehicle.Details{
		OwnerName:          "Nguyen Van A",
		OwnerAddress:       "12 Trang Tien, Hoan Kiem, Ha Noi",
		PlateNumber:        "30A-123.45",
		Brand:              "Toyota",
		Model:              "Camry",
		ProductionYear:     time.Now().Year() - 2,
		Seats:              5,
		Category:           premium.CategoryPrivate,
		Engine:             premium.EnginePetrol,
		VehicleValue:       generic.NewMoney(800_000_000),
		PackageCode:        "comprehensive",
		MandatoryLiability: true,
		PassengerAccident:  true,
	}
}

func (h *Handler) loadEVVehicleScenario(ctx context.Context) error {
	d := demoSedan()
	d.Brand, d.Model = "VinFast", "VF 8"
	d.PlateNumber = "30K-888.88"
	d.Engine = premium.EngineElectric
	d.VehicleValue = generic.NewMoney(900_000_000)
	d.BatteryValue = generic.NewMoney(300_000_000)

	_, err := h.openContract(ctx, vehicle.Product, nextMonth(12), d,
		step{generic.StatusPendingApproval, demoAgent, "quote sent to customer"})
	return err
}

func (h *Handler) loadRenewalDiscountScenario(ctx context.Context) error {
	d := demoSedan()
	d.RenewalPercent = generic.MustRate("-0.5")

	_, err := h.openContract(ctx, vehicle.Product, nextMonth(12), d,
		step{generic.StatusPendingApproval, demoAgent, "renewal offer"},
		step{generic.StatusCustomerApproved, demoAgent, "customer signed"})
	return err
}

func (h *Handler) loadRenewalSurchargeScenario(ctx context.Context) error {
	d := demoSedan()
	d.OwnerName = "Tran Thi B"
	d.PlateNumber = "51G-456.78"
	d.RenewalPercent = generic.MustRate("0.3")

	_, err := h.openContract(ctx, vehicle.Product, nextMonth(12), d)
	return err
}

func (h *Handler) loadHealthFamilyScenario(ctx context.Context) error {
	d := health.Details{
		PolicyholderName:  "Le Van C",
		PolicyholderPhone: "0912 345 678",
		Plan:              health.PlanStandard,
		Insured: []health.InsuredPerson{
			{Name: "Le Van C", DateOfBirth: generic.Date(1985, time.June, 10), Relationship: "self"},
			{Name: "Pham Thi D", DateOfBirth: generic.Date(1987, time.March, 15), Relationship: "spouse"},
			{Name: "Le Van E", DateOfBirth: generic.Date(2018, time.September, 1), Relationship: "child"},
		},
	}

	_, err := h.openContract(ctx, health.Product, nextMonth(12), d,
		step{generic.StatusPendingApproval, demoAgent, "sent to policyholder"})
	return err
}

func (h *Handler) loadTravelGroupScenario(ctx context.Context) error {
	d := travel.Details{
		ContactName: "Hoang Van F",
		Destination: "Bangkok",
		Zone:        travel.ZoneAsia,
	}
	for i, name := range []string{"Hoang Van F", "Vu Thi G", "Hoang Van H", "Do Thi I", "Bui Van K"} {
		d.Travellers = append(d.Travellers, travel.Traveller{Name: name, PassportNumber: fmt.Sprintf("B%07d", 1234500+i)})
	}

	start := generic.DateOf(time.Now()).AddDate(0, 0, 14)
	trip := generic.Period{Start: start, End: start.AddDate(0, 0, 10)}

	_, err := h.openContract(ctx, travel.Product, trip, d,
		step{generic.StatusPendingApproval, demoAgent, ""},
		step{generic.StatusCustomerApproved, demoAgent, "paid online"},
		step{generic.StatusIssued, demoAdmin, "issued"})
	return err
}

// openContract prices details, creates the contract and applies steps.
func (h *Handler) openContract(ctx context.Context, product generic.ProductID, period generic.Period, details any, steps ...step) (generic.Contract, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return generic.Contract{}, err
	}
	fees, err := h.price(product, raw, &period)
	if err != nil {
		return generic.Contract{}, fmt.Errorf("price %s: %w", product, err)
	}

	c, err := h.Service.Create(ctx, generic.NewContractInput{
		Product: product,
		Actor:   demoAgent,
		Period:  &period,
		Fees:    fees,
		Details: raw,
	})
	if err != nil {
		return generic.Contract{}, err
	}

	for _, s := range steps {
		next, err := h.Service.Transition(ctx, c.ID, s.to, s.actor, s.note)
		if err != nil {
			return generic.Contract{}, fmt.Errorf("%s -> %s: %w", c.Status, s.to, err)
		}
		c = next
	}
	return c, nil
}

func nextMonth(months int) generic.Period {
	now := time.Now()
	start := generic.Date(now.Year(), now.Month(), 1).AddDate(0, 1, 0)
	return generic.NewPeriod(start, months)
}
