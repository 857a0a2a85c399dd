/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Quote and fee endpoints
- Contract creation, editing and transitions over HTTP
- Error mapping (401, 404, 409, 422, 502)
- Partner reconciliation against a stub portal
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/metrics"
	"github.com/warp/contract-engine/partner"
	"github.com/warp/contract-engine/premium"
	"github.com/warp/contract-engine/reconcile"
	"github.com/warp/contract-engine/store/sqlite"
	"github.com/warp/contract-engine/travel"
	"github.com/warp/contract-engine/vehicle"
)

var t0 = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

const partnerReport = `----
Package: Vehicle physical damage
Premium: 8.500.000 VND
Tax: 850.000 VND
----
Package: Compulsory civil liability (mandatory liability)
Premium: 437.000 VND
Tax: 43.700 VND
----
Package: Passenger accident
Premium: 45.455 VND
Tax: 4.545 VND
----
Total payable: 9.880.700 VND
`

type testServer struct {
	handler *Handler
	router  http.Handler
	partner *httptest.Server
	status  int
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ts := &testServer{status: http.StatusOK}
	ts.partner = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sess-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(ts.status)
		if ts.status == http.StatusOK {
			io.WriteString(w, partnerReport)
		}
	}))
	t.Cleanup(ts.partner.Close)

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	svc := generic.NewContractService(store)
	svc.Clock = &generic.FixedClock{At: t0, Step: time.Minute}
	svc.Observer = m

	client := partner.NewClient(partner.Config{BaseURL: ts.partner.URL, MaxRetries: 1, RetryDelay: time.Millisecond}).WithLatency(m)
	rec := reconcile.NewReconciler(client)
	rec.Clock = &generic.FixedClock{At: t0.Add(time.Hour)}
	rec.Metrics = m

	h := NewHandler(store, svc, premium.DefaultSchedule(), rec)
	h.Vehicle.Resolver.Clock = &generic.FixedClock{At: t0}
	h.Metrics = m

	ts.handler = h
	ts.router = NewRouter(h, RouterOptions{Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func asAgent() []string { return []string{"X-Actor-ID", "agent-1"} }
func asOther() []string { return []string{"X-Actor-ID", "agent-2"} }
func asAdmin() []string { return []string{"X-Actor-ID", "admin-1", "X-Actor-Role", "admin"} }

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func sedan() vehicle.Details {
	return vehicle.Details{
		OwnerName:          "Nguyen Van A",
		PlateNumber:        "30A-123.45",
		ProductionYear:     2024,
		Seats:              5,
		Category:           premium.CategoryPrivate,
		Engine:             premium.EnginePetrol,
		VehicleValue:       generic.NewMoney(800_000_000),
		PackageCode:        "comprehensive",
		MandatoryLiability: true,
		PassengerAccident:  true,
	}
}

// =============================================================================
// QUOTES
// =============================================================================

func TestQuoteVehicle(t *testing.T) {
	// GIVEN: A private sedan with all supplements
	ts := setupTestServer(t)

	// WHEN: Quoting it
	rec := ts.do(t, http.MethodPost, "/api/quotes/vehicle", sedan())

	// THEN: The breakdown matches the calculator
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decode[vehicle.Quote](t, rec)
	assert.Equal(t, "private_lt6", q.Rates.LiabilityBracket)
	assert.Equal(t, int64(10_167_000), q.Fees.TotalAfterDiscount.Int64())
}

func TestQuoteVehicleRates(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/quotes/vehicle/rates", sedan())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decode[premium.RateQuote](t, rec)
	assert.Equal(t, 2, q.VehicleAge)
	_, ok := q.Package("comprehensive")
	assert.True(t, ok)
}

func TestQuoteVehicle_ValidationErrorIs422WithField(t *testing.T) {
	ts := setupTestServer(t)
	d := sedan()
	d.PackageCode = "coach"

	rec := ts.do(t, http.MethodPost, "/api/quotes/vehicle", d)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "package_code", decode[ErrorResponse](t, rec).Field)
}

func TestComputeFees(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/fees", FeeRequest{
		VehicleValue:       generic.NewMoney(800_000_000),
		Engine:             premium.EnginePetrol,
		Category:           premium.CategoryPrivate,
		PackageCode:        "comprehensive",
		PackageRate:        generic.MustRate("1.21"),
		MandatoryLiability: "private_lt6",
		PassengerSeats:     5,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fees := decode[generic.FeeBreakdown](t, rec)
	assert.Equal(t, int64(9_680_000), fees.BaseFee.Int64())
	assert.Equal(t, int64(437_000), fees.MandatoryLiabilityFee.Int64())
	assert.Equal(t, int64(50_000), fees.PassengerAccidentFee.Int64())
	assert.Equal(t, int64(10_167_000), fees.TotalBeforeDiscount.Int64())
}

func TestQuoteTravel(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/quotes/travel", map[string]any{
		"details": travel.Details{
			Zone:       travel.ZoneAsia,
			Travellers: []travel.Traveller{{Name: "A"}, {Name: "B"}},
		},
		"period": PeriodDTO{Start: "2026-05-01", End: "2026-05-08"},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decode[travel.Quote](t, rec)
	assert.Equal(t, int64(630_000), q.Fees.TotalAfterDiscount.Int64())
}

func TestQuoteHealth_RequiresPeriod(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/quotes/health", map[string]any{"details": map[string]any{"plan": "standard"}})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "period", decode[ErrorResponse](t, rec).Field)
}

// =============================================================================
// CONTRACTS
// =============================================================================

func createSedan(t *testing.T, ts *testServer) ContractDTO {
	t.Helper()
	raw, err := json.Marshal(sedan())
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/api/contracts", CreateContractRequest{
		Product: vehicle.Product,
		Period:  &PeriodDTO{Start: "2026-04-01", Months: 12},
		Details: raw,
		Price:   true,
	}, asAgent()...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ContractDTO](t, rec)
}

func TestCreateContract_PricedAndNumbered(t *testing.T) {
	ts := setupTestServer(t)

	c := createSedan(t, ts)

	assert.Equal(t, "XE-20260302-000001", string(c.Number))
	assert.Equal(t, generic.StatusDraft, c.Status)
	assert.Equal(t, int64(10_167_000), c.Fees.TotalAfterDiscount.Int64())
	assert.Equal(t, "10.167.000", c.Display.TotalAfterDiscount)
	assert.Equal(t, 1, c.History.Len())

	rec := ts.do(t, http.MethodGet, "/api/contracts/by-number/XE-20260302-000001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, c.ID, decode[ContractDTO](t, rec).ID)
}

func TestCreateContract_RequiresActor(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/contracts", CreateContractRequest{Product: vehicle.Product})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateContract_UnknownProduct(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/contracts", CreateContractRequest{Product: "pet"}, asAgent()...)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetContract_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/contracts/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContractLifecycle_OverHTTP(t *testing.T) {
	// GIVEN: A priced vehicle draft owned by agent-1
	ts := setupTestServer(t)
	c := createSedan(t, ts)
	base := "/api/contracts/" + string(c.ID)

	// WHEN: Asking which moves the owner has
	rec := ts.do(t, http.MethodGet, base+"/transitions", nil, asAgent()...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []generic.Status{generic.StatusPendingApproval, generic.StatusCancelled}, decode[TransitionsDTO](t, rec).Available)

	// THEN: Another agent cannot move it
	rec = ts.do(t, http.MethodPost, base+"/transitions", TransitionRequest{To: generic.StatusPendingApproval}, asOther()...)
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "draft", resp.From)
	assert.Equal(t, "pending_approval", resp.To)

	// AND: The owner walks it to customer approval
	rec = ts.do(t, http.MethodPost, base+"/transitions", TransitionRequest{To: generic.StatusPendingApproval, Note: "sent"}, asAgent()...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, base+"/transitions", TransitionRequest{To: generic.StatusCustomerApproved}, asAgent()...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// AND: Fees are locked once the customer approved
	rec = ts.do(t, http.MethodPatch, base, UpdateContractRequest{Price: true}, asAgent()...)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND: Only an admin may issue
	rec = ts.do(t, http.MethodPost, base+"/transitions", TransitionRequest{To: generic.StatusIssued}, asAgent()...)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = ts.do(t, http.MethodPost, base+"/transitions", TransitionRequest{To: generic.StatusIssued}, asAdmin()...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, base+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Status  generic.Status         `json:"status"`
		History []generic.HistoryEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, generic.StatusIssued, hist.Status)
	require.Len(t, hist.History, 4)
	assert.Equal(t, "sent", hist.History[1].Note)
	assert.Equal(t, generic.RoleAdmin, hist.History[3].Role)

	rec = ts.do(t, http.MethodGet, "/api/contracts/?status=issued", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ContractDTO](t, rec), 1)
}

func TestTransition_MissingFieldsIs422(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/contracts", CreateContractRequest{Product: vehicle.Product}, asAgent()...)
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decode[ContractDTO](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/contracts/"+string(c.ID)+"/transitions",
		TransitionRequest{To: generic.StatusPendingApproval}, asAgent()...)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Contains(t, resp.Fields, "period")
	assert.Contains(t, resp.Fields, "fee_breakdown")
	assert.Contains(t, resp.Fields, "owner_name")
}

func TestTransition_UnknownStatusIs422(t *testing.T) {
	ts := setupTestServer(t)
	c := createSedan(t, ts)

	rec := ts.do(t, http.MethodPost, "/api/contracts/"+string(c.ID)+"/transitions", TransitionRequest{To: "archived"}, asAgent()...)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "to", decode[ErrorResponse](t, rec).Field)
}

func TestUpdateContract_Reprices(t *testing.T) {
	ts := setupTestServer(t)
	c := createSedan(t, ts)

	d := sedan()
	d.RenewalPercent = generic.MustRate("-0.5")
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPatch, "/api/contracts/"+string(c.ID), UpdateContractRequest{Details: raw, Price: true}, asAgent()...)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[ContractDTO](t, rec)
	assert.Equal(t, int64(-4_000_000), got.Fees.RenewalAdjustment.Int64())
	assert.Equal(t, int64(6_167_000), got.Fees.TotalAfterDiscount.Int64())

	rec = ts.do(t, http.MethodPatch, "/api/contracts/"+string(c.ID), UpdateContractRequest{Details: raw}, asOther()...)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateContract_IgnoresClientFees(t *testing.T) {
	// GIVEN: A request carrying a hand-made negative fee breakdown
	ts := setupTestServer(t)
	body := map[string]any{
		"product":       vehicle.Product,
		"fee_breakdown": map[string]any{"total_after_discount": -5_000_000},
	}

	// WHEN: Creating without pricing
	rec := ts.do(t, http.MethodPost, "/api/contracts", body, asAgent()...)

	// THEN: The draft is unpriced
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[ContractDTO](t, rec)
	assert.True(t, c.Fees.IsZero())
}

func TestUpdateContract_DetailChangeReprices(t *testing.T) {
	// GIVEN: A priced draft
	ts := setupTestServer(t)
	c := createSedan(t, ts)

	d := sedan()
	d.RenewalPercent = generic.MustRate("-0.5")
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	// WHEN: The owner edits the details without asking for a price
	rec := ts.do(t, http.MethodPatch, "/api/contracts/"+string(c.ID), UpdateContractRequest{Details: raw}, asAgent()...)

	// THEN: The stored fees follow the new details
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[ContractDTO](t, rec)
	assert.Equal(t, int64(6_167_000), got.Fees.TotalAfterDiscount.Int64())
	assert.NoError(t, got.Fees.Validate())
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcileContract_Success(t *testing.T) {
	// GIVEN: A priced sedan and a partner whose report totals 9.880.700
	ts := setupTestServer(t)
	c := createSedan(t, ts)

	// WHEN: Rechecking with partner credentials
	rec := ts.do(t, http.MethodPost, "/api/contracts/"+string(c.ID)+"/reconcile", nil,
		"X-Partner-Session", "sess-1", "X-Agent-Code", "AG-7")

	// THEN: The snapshot is stored with the discount against 10.167.000
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[ContractDTO](t, rec)
	require.NotNil(t, got.External)
	assert.True(t, got.External.Success)
	assert.True(t, got.External.Validated)
	assert.Equal(t, int64(286_300), got.External.Discount.Amount.Int64())
	assert.Equal(t, "9.880.700", got.Display.ExternalTotal)
	assert.Equal(t, "286.300", got.Display.Discount)

	stored, err := ts.handler.Store.Load(t.Context(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.External)
	assert.Equal(t, int64(9_880_700), stored.External.Components.Total.AfterTax.Int64())
}

func TestReconcileContract_PartnerFailureIs502WithSnapshot(t *testing.T) {
	ts := setupTestServer(t)
	c := createSedan(t, ts)
	ts.status = http.StatusBadRequest

	rec := ts.do(t, http.MethodPost, "/api/contracts/"+string(c.ID)+"/reconcile", nil, "X-Partner-Session", "sess-1")

	require.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	require.NotNil(t, resp.ExternalPremium)
	assert.False(t, resp.ExternalPremium.Success)
	assert.NotEmpty(t, resp.ExternalPremium.Error)

	stored, err := ts.handler.Store.Load(t.Context(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.External)
	assert.False(t, stored.External.Success)
}

// =============================================================================
// METRICS
// =============================================================================

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	c := createSedan(t, ts)
	ts.do(t, http.MethodPost, "/api/contracts/"+string(c.ID)+"/transitions", TransitionRequest{To: generic.StatusCancelled}, asAgent()...)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `contracts_transitions_total{from="draft",product="vehicle",to="cancelled"} 1`), body)
	assert.Contains(t, body, "contracts_fee_calculations_total")
}
