/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Contracts are created and priced
	- The lifecycle steps were applied
	- Loading resets what a previous scenario left behind

These tests ensure scenarios work correctly and can be used as integration tests.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/health"
	"github.com/warp/contract-engine/travel"
	"github.com/warp/contract-engine/vehicle"
)

type loadResponse struct {
	Scenario  string        `json:"scenario"`
	Contracts []ContractDTO `json:"contracts"`
}

func loadScenario(t *testing.T, ts *testServer, id string) []ContractDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[loadResponse](t, rec)
	assert.Equal(t, id, resp.Scenario)
	return resp.Contracts
}

func TestScenarios_AllLoad(t *testing.T) {
	tests := []struct {
		id      string
		product generic.ProductID
		status  generic.Status
	}{
		{"ev-vehicle", vehicle.Product, generic.StatusPendingApproval},
		{"renewal-discount", vehicle.Product, generic.StatusCustomerApproved},
		{"renewal-surcharge", vehicle.Product, generic.StatusDraft},
		{"health-family", health.Product, generic.StatusPendingApproval},
		{"travel-group", travel.Product, generic.StatusIssued},
	}
	require.Len(t, scenarios, len(tests))

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			// GIVEN: A fresh server
			ts := setupTestServer(t)

			// WHEN: Loading the scenario
			contracts := loadScenario(t, ts, tt.id)

			// THEN: One priced contract in the expected status
			require.Len(t, contracts, 1)
			c := contracts[0]
			assert.Equal(t, tt.product, c.Product)
			assert.Equal(t, tt.status, c.Status)
			assert.True(t, c.Fees.TotalAfterDiscount.IsPositive())
			assert.NotEmpty(t, c.Display.TotalAfterDiscount)
		})
	}
}

func TestScenario_EVIncludesBattery(t *testing.T) {
	ts := setupTestServer(t)

	c := loadScenario(t, ts, "ev-vehicle")[0]

	assert.Equal(t, int64(1_200_000_000), c.Fees.InsurableValue.Int64())
	assert.True(t, c.Fees.BatteryFee.IsPositive())
}

func TestScenario_RenewalAdjustments(t *testing.T) {
	ts := setupTestServer(t)

	discount := loadScenario(t, ts, "renewal-discount")[0]
	assert.Equal(t, int64(-4_000_000), discount.Fees.RenewalAdjustment.Int64())

	surcharge := loadScenario(t, ts, "renewal-surcharge")[0]
	assert.Equal(t, int64(2_400_000), surcharge.Fees.RenewalAdjustment.Int64())
}

func TestScenario_TravelGroupDiscount(t *testing.T) {
	ts := setupTestServer(t)

	c := loadScenario(t, ts, "travel-group")[0]

	// 45.000 x 10 days x 5 travellers, less 10%
	assert.Equal(t, int64(2_250_000), c.Fees.TotalBeforeDiscount.Int64())
	assert.Equal(t, int64(2_025_000), c.Fees.TotalAfterDiscount.Int64())
	assert.Equal(t, 4, c.History.Len())
}

func TestScenario_LoadResetsPreviousData(t *testing.T) {
	ts := setupTestServer(t)
	loadScenario(t, ts, "ev-vehicle")
	loadScenario(t, ts, "health-family")

	all, err := ts.handler.Service.List(context.Background(), generic.ContractFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, health.Product, all[0].Product)

	rec := ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health-family", decode[ScenarioDTO](t, rec).ID)
}

func TestScenario_Unknown(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetDatabase(t *testing.T) {
	ts := setupTestServer(t)
	loadScenario(t, ts, "travel-group")

	rec := ts.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/contracts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]ContractDTO](t, rec))
}
