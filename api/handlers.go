/*
handlers.go - HTTP API handlers for the contract engine

PURPOSE:
  Exposes quoting, the contract lifecycle and partner reconciliation via
  REST API. Handles HTTP request/response, JSON serialization, and
  delegates to domain logic.

ENDPOINTS:
  Quotes:
    POST   /api/quotes/vehicle/rates     Packages and liability bracket for a vehicle
    POST   /api/quotes/vehicle           Rates plus fee breakdown for the chosen package
    POST   /api/quotes/health            Per-person health prices
    POST   /api/quotes/travel            Trip price
    POST   /api/fees                     Fee calculator with an explicit rate

  Contracts:
    GET    /api/products                         Registered product lines
    GET    /api/contracts                        List (product, status, created_by, limit)
    POST   /api/contracts                        Open a draft
    GET    /api/contracts/{id}                   Get one contract
    GET    /api/contracts/by-number/{number}     Get by contract number
    PATCH  /api/contracts/{id}                   Edit period, fees or details
    GET    /api/contracts/{id}/history           Status history
    GET    /api/contracts/{id}/transitions       Statuses the caller may move to
    POST   /api/contracts/{id}/transitions       Move to another status
    POST   /api/contracts/{id}/reconcile         Recheck the premium with the partner

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

ACTORS:
  The caller is identified by the X-Actor-ID header; "X-Actor-Role: admin"
  marks an administrator. Partner credentials for reconciliation come from
  X-Partner-Session and X-Agent-Code.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed JSON or query parameters
  - 403: Actor is neither owner nor admin
  - 404: Contract or product not found
  - 409: Transition rejected, contract locked, concurrent modification
  - 422: Validation errors, missing preconditions (with field names)
  - 502: Partner call failed (with the failure snapshot)
  - 500: Internal errors

SECURITY NOTE:
  Actor headers are trusted as-is. Authentication belongs to the gateway
  in front of this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/health"
	"github.com/warp/contract-engine/logging"
	"github.com/warp/contract-engine/metrics"
	"github.com/warp/contract-engine/partner"
	"github.com/warp/contract-engine/premium"
	"github.com/warp/contract-engine/reconcile"
	"github.com/warp/contract-engine/store/sqlite"
	"github.com/warp/contract-engine/travel"
	"github.com/warp/contract-engine/vehicle"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Service    *generic.ContractService
	Reconciler *reconcile.Reconciler
	Metrics    *metrics.Metrics

	Schedule *premium.Schedule
	Vehicle  *vehicle.Quoter
	Health   health.PriceTable
	Travel   travel.RateTable

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the handlers to the service and the pricing tables.
// The service must be backed by store.
func NewHandler(store *sqlite.Store, svc *generic.ContractService, schedule *premium.Schedule, rec *reconcile.Reconciler) *Handler {
	if schedule == nil {
		schedule = premium.DefaultSchedule()
	}
	return &Handler{
		Store:      store,
		Service:    svc,
		Reconciler: rec,
		Schedule:   schedule,
		Vehicle:    vehicle.NewQuoter(schedule),
		Health:     health.DefaultPriceTable(),
		Travel:     travel.DefaultRateTable(),
	}
}

func (h *Handler) locale() reconcile.Locale {
	if h.Reconciler != nil {
		return h.Reconciler.Locale
	}
	return reconcile.DefaultLocale()
}

// =============================================================================
// QUOTE HANDLERS
// =============================================================================

// QuoteVehicleRates resolves the packages on offer for a vehicle.
// POST /api/quotes/vehicle/rates
func (h *Handler) QuoteVehicleRates(w http.ResponseWriter, r *http.Request) {
	var d vehicle.Details
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	quote, err := h.Vehicle.Resolver.Resolve(d.Profile())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// QuoteVehicle resolves the rates and prices the chosen package.
// POST /api/quotes/vehicle
func (h *Handler) QuoteVehicle(w http.ResponseWriter, r *http.Request) {
	var d vehicle.Details
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	quote, err := h.Vehicle.Quote(d)
	h.Metrics.ObserveFeeCalculation(string(d.Category), err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// QuoteHealth prices every insured person.
// POST /api/quotes/health
func (h *Handler) QuoteHealth(w http.ResponseWriter, r *http.Request) {
	var req HealthQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := requiredPeriod(req.Period)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	quote, err := h.Health.Quote(req.Details, period)
	h.Metrics.ObserveFeeCalculation(string(health.Product), err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// QuoteTravel prices a trip.
// POST /api/quotes/travel
func (h *Handler) QuoteTravel(w http.ResponseWriter, r *http.Request) {
	var req TravelQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := requiredPeriod(req.Period)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	quote, err := h.Travel.Quote(req.Details, period)
	h.Metrics.ObserveFeeCalculation(string(travel.Product), err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// ComputeFees runs the fee calculator with a caller-supplied package rate.
// POST /api/fees
func (h *Handler) ComputeFees(w http.ResponseWriter, r *http.Request) {
	var req FeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := premium.FeeInput{
		VehicleValue:       req.VehicleValue,
		BatteryValue:       req.BatteryValue,
		Engine:             req.Engine,
		Category:           req.Category,
		PackageCode:        req.PackageCode,
		PackageRate:        req.PackageRate,
		UseCustomRate:      req.CustomRate != nil,
		CustomRate:         req.CustomRate,
		MandatoryLiability: premium.LiabilityOption{Enabled: req.MandatoryLiability != "", Bracket: req.MandatoryLiability},
		RenewalPercent:     req.RenewalPercent,
	}
	if req.PassengerSeats > 0 {
		fee, err := h.Vehicle.Passenger.QuotePassengerAccidentFee(req.PassengerSeats, req.Category)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		in.PassengerAccident = premium.PassengerAccidentOption{Enabled: true, Fee: fee}
	}

	fees, err := h.Schedule.ComputeFees(in)
	h.Metrics.ObserveFeeCalculation(string(req.Category), err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fees)
}

func requiredPeriod(dto *PeriodDTO) (generic.Period, error) {
	p, err := dto.Period()
	if err != nil {
		return generic.Period{}, err
	}
	if p == nil {
		return generic.Period{}, generic.NewValidationError("period", "start and end are required")
	}
	return *p, nil
}

// price computes the fee breakdown of a contract from its product details.
func (h *Handler) price(product generic.ProductID, details json.RawMessage, period *generic.Period) (generic.FeeBreakdown, error) {
	c := generic.Contract{Product: product, Details: details, Period: period}

	switch product {
	case vehicle.Product:
		d, err := vehicle.DetailsOf(c)
		if err != nil {
			return generic.FeeBreakdown{}, err
		}
		quote, err := h.Vehicle.Quote(d)
		h.Metrics.ObserveFeeCalculation(string(d.Category), err)
		return quote.Fees, err

	case health.Product:
		d, err := health.DetailsOf(c)
		if err != nil {
			return generic.FeeBreakdown{}, err
		}
		if period == nil {
			return generic.FeeBreakdown{}, generic.NewValidationError("period", "required for pricing")
		}
		quote, err := h.Health.Quote(d, *period)
		h.Metrics.ObserveFeeCalculation(string(product), err)
		return quote.Fees, err

	case travel.Product:
		d, err := travel.DetailsOf(c)
		if err != nil {
			return generic.FeeBreakdown{}, err
		}
		if period == nil {
			return generic.FeeBreakdown{}, generic.NewValidationError("period", "required for pricing")
		}
		quote, err := h.Travel.Quote(d, *period)
		h.Metrics.ObserveFeeCalculation(string(product), err)
		return quote.Fees, err
	}
	return generic.FeeBreakdown{}, fmt.Errorf("%w: %s", generic.ErrProductNotFound, product)
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListProducts returns the registered product lines.
// GET /api/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	lines := generic.ListProducts()
	dtos := make([]ProductDTO, len(lines))
	for i, l := range lines {
		dtos[i] = ProductDTO{ID: l.ProductID(), NumberPrefix: l.NumberPrefix()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListContracts returns contracts, newest first.
// GET /api/contracts?product=vehicle&status=draft&created_by=agent-1&limit=20
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := generic.ContractFilter{
		Product:   generic.ProductID(q.Get("product")),
		CreatedBy: generic.ActorID(q.Get("created_by")),
	}
	if s := q.Get("status"); s != "" {
		status, ok := generic.ParseStatus(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown status", nil)
			return
		}
		filter.Status = status
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	contracts, err := h.Service.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTOs(contracts, h.locale()))
}

// CreateContract opens a draft contract.
// POST /api/contracts
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := req.Period.Period()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	in := generic.NewContractInput{
		Product: req.Product,
		Actor:   actor,
		Period:  period,
		Details: req.Details,
	}
	if req.Price {
		if in.Fees, err = h.price(req.Product, req.Details, period); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	c, err := h.Service.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	logging.Info().Add(
		logging.Component("api"),
		logging.ContractID(c.ID),
		logging.ContractNumber(c.Number),
		logging.Product(c.Product),
		logging.Actor(actor.ID, generic.RoleOwner),
	).Msg("contract created")

	writeJSON(w, http.StatusCreated, toContractDTO(c, h.locale()))
}

// GetContract returns one contract.
// GET /api/contracts/{id}
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Get(r.Context(), generic.ContractID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c, h.locale()))
}

// GetContractByNumber returns the contract with a given number.
// GET /api/contracts/by-number/{number}
func (h *Handler) GetContractByNumber(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.LoadByNumber(r.Context(), generic.ContractNumber(chi.URLParam(r, "number")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c, h.locale()))
}

// UpdateContract edits an editable contract.
// PATCH /api/contracts/{id}
func (h *Handler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req UpdateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	id := generic.ContractID(chi.URLParam(r, "id"))

	period, err := req.Period.Period()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	patch := generic.ContractPatch{Period: period, Details: req.Details}

	current, err := h.Service.Get(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	changed := patch.Details != nil || patch.Period != nil
	if req.Price || (changed && !current.Fees.IsZero()) {
		details, p := current.Details, current.Period
		if patch.Details != nil {
			details = patch.Details
		}
		if patch.Period != nil {
			p = patch.Period
		}
		fees, err := h.price(current.Product, details, p)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		patch.Fees = &fees
	}

	c, err := h.Service.Update(ctx, id, actor, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c, h.locale()))
}

// GetHistory returns the status history of a contract, oldest first.
// GET /api/contracts/{id}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Get(r.Context(), generic.ContractID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contract_id": c.ID,
		"status":      c.Status,
		"history":     c.History,
	})
}

// AvailableTransitions lists the statuses the caller may move a contract to.
// GET /api/contracts/{id}/transitions
func (h *Handler) AvailableTransitions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	id := generic.ContractID(chi.URLParam(r, "id"))

	c, err := h.Service.Get(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	targets, err := h.Service.AvailableTransitions(ctx, id, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if targets == nil {
		targets = []generic.Status{}
	}
	writeJSON(w, http.StatusOK, TransitionsDTO{ContractID: c.ID, Status: c.Status, Available: targets})
}

// TransitionContract moves a contract to another status.
// POST /api/contracts/{id}/transitions
func (h *Handler) TransitionContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	to, ok := generic.ParseStatus(string(req.To))
	if !ok {
		writeDomainError(w, generic.NewValidationError("to", fmt.Sprintf("unknown status %q", req.To)))
		return
	}

	c, err := h.Service.Transition(r.Context(), generic.ContractID(chi.URLParam(r, "id")), to, actor, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c, h.locale()))
}

// ReconcileContract submits the contract to the partner and stores the
// premium it reports.
// POST /api/contracts/{id}/reconcile
func (h *Handler) ReconcileContract(w http.ResponseWriter, r *http.Request) {
	if h.Reconciler == nil {
		writeError(w, http.StatusServiceUnavailable, "Reconciliation is not configured", nil)
		return
	}
	auth := partner.AuthContext{
		SessionToken: r.Header.Get("X-Partner-Session"),
		AgentCode:    r.Header.Get("X-Agent-Code"),
	}

	c, err := h.Reconciler.Recheck(r.Context(), h.Service, generic.ContractID(chi.URLParam(r, "id")), auth)
	if err != nil {
		if errors.Is(err, generic.ErrExternalCall) && c.External != nil {
			writeJSON(w, http.StatusBadGateway, ErrorResponse{
				Error:           "Partner call failed",
				Details:         err.Error(),
				Retryable:       true,
				ExternalPremium: c.External,
			})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c, h.locale()))
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// actorFrom reads the calling actor, writing a 401 when it is missing.
func actorFrom(w http.ResponseWriter, r *http.Request) (generic.Actor, bool) {
	id := strings.TrimSpace(r.Header.Get("X-Actor-ID"))
	if id == "" {
		writeError(w, http.StatusUnauthorized, "X-Actor-ID header is required", nil)
		return generic.Actor{}, false
	}
	return generic.Actor{
		ID:      generic.ActorID(id),
		IsAdmin: strings.EqualFold(r.Header.Get("X-Actor-Role"), "admin"),
	}, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		verr *generic.ValidationError
		perr *generic.PreconditionMissingError
		terr *generic.TransitionRejectedError
	)
	switch {
	case errors.As(err, &perr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Required fields are missing",
			Details: err.Error(),
			Fields:  perr.Fields,
			To:      string(perr.Target),
		})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Validation failed",
			Details: err.Error(),
			Field:   verr.Field,
		})
	case errors.Is(err, generic.ErrInvalidPeriod):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Validation failed",
			Details: err.Error(),
			Field:   "period",
		})
	case errors.As(err, &terr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "Transition not allowed",
			Details: err.Error(),
			From:    string(terr.From),
			To:      string(terr.To),
		})
	case errors.Is(err, generic.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, generic.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     "Contract changed concurrently",
			Details:   err.Error(),
			Retryable: true,
		})
	case errors.Is(err, generic.ErrContractLocked), errors.Is(err, generic.ErrDuplicateContractNumber):
		writeError(w, http.StatusConflict, "Conflict", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, generic.ErrExternalCall):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:     "Partner call failed",
			Details:   err.Error(),
			Retryable: true,
		})
	default:
		logging.Error().Add(logging.Component("api"), logging.ErrorField(err)).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
