package vehicle_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/generic/store"
	"github.com/warp/contract-engine/premium"
	"github.com/warp/contract-engine/vehicle"
)

var (
	t0    = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	agent = generic.Actor{ID: "agent-1"}
	admin = generic.Actor{ID: "admin-1", IsAdmin: true}
)

func newQuoter() *vehicle.Quoter {
	q := vehicle.NewQuoter(premium.DefaultSchedule())
	q.Resolver.Clock = &generic.FixedClock{At: t0}
	return q
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

func TestQuote_PrivateSedan(t *testing.T) {
	// GIVEN: A two-year-old private sedan worth 800M with all supplements
	// WHEN: Quoting the comprehensive package
	// THEN: 1.21% base, private_lt6 liability and 5 seats of passenger cover
	q, err := newQuoter().Quote(sedan())
	require.NoError(t, err)

	assert.Equal(t, 2, q.Rates.VehicleAge)
	assert.Equal(t, "private_lt6", q.Rates.LiabilityBracket)
	assert.Equal(t, int64(9_680_000), q.Fees.BaseFee.Int64())
	assert.Equal(t, int64(437_000), q.Fees.MandatoryLiabilityFee.Int64())
	assert.Equal(t, int64(50_000), q.Fees.PassengerAccidentFee.Int64())
	assert.Equal(t, int64(10_167_000), q.Fees.TotalBeforeDiscount.Int64())
	assert.Equal(t, int64(10_167_000), q.Fees.TotalAfterDiscount.Int64())
}

func TestQuote_CustomRateAndRenewal(t *testing.T) {
	d := sedan()
	custom := generic.MustRate("1.25")
	d.CustomRate = &custom
	d.PassengerAccident = false
	d.MandatoryLiability = false
	d.RenewalPercent = generic.MustRate("-0.5")

	q, err := newQuoter().Quote(d)
	require.NoError(t, err)

	// 800M * -0.5% = -4M renewal discount
	assert.Equal(t, int64(10_000_000), q.Fees.CustomFee.Int64())
	assert.Equal(t, int64(-4_000_000), q.Fees.RenewalAdjustment.Int64())
	assert.Equal(t, int64(5_680_000), q.Fees.TotalBeforeDiscount.Int64())
	assert.Equal(t, int64(6_000_000), q.Fees.TotalAfterDiscount.Int64())
}

func TestQuote_Electric(t *testing.T) {
	d := sedan()
	d.Engine = premium.EngineElectric
	d.VehicleValue = generic.NewMoney(600_000_000)
	d.BatteryValue = generic.NewMoney(200_000_000)
	d.MandatoryLiability = false
	d.PassengerAccident = false

	q, err := newQuoter().Quote(d)
	require.NoError(t, err)

	// 1.21 + 0.10 EV loading on 800M insured value
	assert.Equal(t, "1.31", q.Fees.PackageRate.String())
	assert.Equal(t, int64(10_480_000), q.Fees.BaseFee.Int64())
	assert.Equal(t, int64(2_620_000), q.Fees.BatteryFee.Int64())
}

func TestQuote_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*vehicle.Details)
		field  string
	}{
		{"unavailable package", func(d *vehicle.Details) { d.PackageCode = "coach" }, "package_code"},
		{"cargo without weight", func(d *vehicle.Details) { d.Category = premium.CategoryCargo }, "cargo_weight"},
		{"no value", func(d *vehicle.Details) { d.VehicleValue = generic.ZeroMoney() }, "vehicle_value"},
		{"ev without battery", func(d *vehicle.Details) { d.Engine = premium.EngineHybrid }, "battery_value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sedan()
			tt.mutate(&d)
			_, err := newQuoter().Quote(d)

			var ve *generic.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestQuote_CargoByWeight(t *testing.T) {
	d := sedan()
	d.Category = premium.CategoryCargo
	d.Seats = 3
	d.CargoWeight = decimal.NewFromInt(10)
	d.PackageCode = "heavy_duty"
	d.PassengerAccident = false

	q, err := newQuoter().Quote(d)
	require.NoError(t, err)
	assert.Equal(t, "cargo_8_15", q.Rates.LiabilityBracket)
	assert.Equal(t, int64(2_746_000), q.Fees.MandatoryLiabilityFee.Int64())
	assert.Equal(t, int64(16_000_000), q.Fees.BaseFee.Int64())
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func newService() *generic.ContractService {
	svc := generic.NewContractService(store.NewMemory())
	svc.Clock = &generic.FixedClock{At: t0, Step: time.Minute}
	return svc
}

func TestLifecycle_MissingFieldsBeforeSubmission(t *testing.T) {
	// GIVEN: A vehicle draft with only an owner name
	svc := newService()
	ctx := context.Background()
	details, _ := json.Marshal(vehicle.Details{OwnerName: "Tran Thi B"})
	c, err := svc.Create(ctx, generic.NewContractInput{Product: vehicle.Product, Actor: agent, Details: details})
	require.NoError(t, err)
	assert.Regexp(t, `^XE-20260302-\d{6}$`, string(c.Number))

	// WHEN: Submitting for approval
	_, err = svc.Transition(ctx, c.ID, generic.StatusPendingApproval, agent, "")

	// THEN: Every missing field is listed
	var pm *generic.PreconditionMissingError
	require.True(t, errors.As(err, &pm))
	assert.Equal(t, []string{
		"period", "fee_breakdown", "plate_number", "vehicle_value", "production_year",
		"seats", "business_category", "package_code",
	}, pm.Fields)
}

func TestLifecycle_FullPathAndLateCancellation(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	d := sedan()
	q, err := newQuoter().Quote(d)
	require.NoError(t, err)

	details, _ := json.Marshal(d)
	period := generic.NewPeriod(generic.Date(2026, time.April, 1), 12)
	c, err := svc.Create(ctx, generic.NewContractInput{
		Product: vehicle.Product, Actor: agent, Period: &period, Fees: q.Fees, Details: details,
	})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, c.ID, generic.StatusPendingApproval, agent, "sent to customer")
	require.NoError(t, err)
	_, err = svc.Transition(ctx, c.ID, generic.StatusCustomerApproved, agent, "signed")
	require.NoError(t, err)

	// Motor contracts may still be cancelled after customer approval
	targets, err := svc.AvailableTransitions(ctx, c.ID, agent)
	require.NoError(t, err)
	assert.Equal(t, []generic.Status{generic.StatusCancelled}, targets)

	targets, err = svc.AvailableTransitions(ctx, c.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, []generic.Status{generic.StatusIssued, generic.StatusCancelled}, targets)

	done, err := svc.Transition(ctx, c.ID, generic.StatusCancelled, agent, "customer withdrew")
	require.NoError(t, err)
	assert.True(t, done.IsCancelled())
	assert.Equal(t, 4, done.History.Len())
}

func TestLifecycle_PeriodTooLong(t *testing.T) {
	c := generic.NewContract("c-1", "XE-1", vehicle.Product, "agent-1", t0)
	p := generic.NewPeriod(generic.Date(2026, time.April, 1), 37)
	c.Period = &p

	assert.Contains(t, vehicle.RequiredFields(c, generic.StatusPendingApproval), "period")
	assert.Empty(t, vehicle.RequiredFields(c, generic.StatusCancelled))
}

func TestReprice(t *testing.T) {
	c := generic.NewContract("c-1", "XE-1", vehicle.Product, "agent-1", t0)
	c, err := c.WithDetails(sedan(), t0)
	require.NoError(t, err)

	patch, err := newQuoter().Reprice(c)
	require.NoError(t, err)
	require.NotNil(t, patch.Fees)
	assert.Equal(t, int64(10_167_000), patch.Fees.TotalAfterDiscount.Int64())

	other := generic.NewContract("c-2", "SK-1", "health", "agent-1", t0)
	_, err = newQuoter().Reprice(other)
	assert.ErrorIs(t, err, generic.ErrValidation)
}
