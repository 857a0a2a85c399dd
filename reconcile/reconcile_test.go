package reconcile_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/generic/store"
	"github.com/warp/contract-engine/partner"
	"github.com/warp/contract-engine/reconcile"
)

const sampleReport = `----
Package: Vehicle physical damage
Premium: 15.490.909 VND
Tax: 1.549.091 VND
----
Package: Compulsory civil liability (mandatory liability)
Premium: 756.000 VND
Tax: 75.600 VND
----
Package: Passenger accident
Premium: 27.273 VND
Tax: 2.727 VND
----
Total payable: 17.901.600 VND
`

var t0 = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func money(n int64) generic.Money { return generic.NewMoney(n) }

func taxed(before, after int64) generic.TaxedAmount {
	return generic.TaxedAmount{BeforeTax: money(before), AfterTax: money(after)}
}

func assertTaxed(t *testing.T, want, got generic.TaxedAmount, msg string) {
	t.Helper()
	assert.Equal(t, want.BeforeTax.Int64(), got.BeforeTax.Int64(), "%s before tax", msg)
	assert.Equal(t, want.AfterTax.Int64(), got.AfterTax.Int64(), "%s after tax", msg)
}

// =============================================================================
// PARSE
// =============================================================================

func TestParse_SampleReport(t *testing.T) {
	// GIVEN: The partner report with three sections and a stated total
	// WHEN: Parsing with the default locale
	// THEN: Base coverage is the total minus liability and passenger accident
	res := reconcile.Parse(sampleReport, reconcile.DefaultLocale())

	require.True(t, res.TotalFound)
	assert.False(t, res.TaxEstimated)
	require.Len(t, res.Sections, 3)
	assert.Equal(t, reconcile.BucketBase, res.Sections[0].Bucket)
	assert.Equal(t, reconcile.BucketLiability, res.Sections[1].Bucket)
	assert.Equal(t, reconcile.BucketPassenger, res.Sections[2].Bucket)
	assert.Equal(t, "Vehicle physical damage", res.Sections[0].Name)

	c := res.Components
	assertTaxed(t, taxed(756_000, 831_600), c.MandatoryLiability, "liability")
	assertTaxed(t, taxed(27_273, 30_000), c.PassengerAccident, "passenger")
	assertTaxed(t, taxed(15_490_909, 17_040_000), c.BaseCoverage, "base")
	assertTaxed(t, taxed(16_274_182, 17_901_600), c.Total, "total")
}

func TestParse_EmptyOrGarbageYieldsZeros(t *testing.T) {
	for _, text := range []string{"", "   \n\n", "<html>session expired</html>", "----\n----\n"} {
		res := reconcile.Parse(text, reconcile.DefaultLocale())

		assert.False(t, res.TotalFound, text)
		assert.Empty(t, res.Sections, text)
		for _, amt := range []generic.TaxedAmount{
			res.Components.BaseCoverage, res.Components.MandatoryLiability,
			res.Components.PassengerAccident, res.Components.Total,
		} {
			assert.True(t, amt.BeforeTax.IsZero(), text)
			assert.True(t, amt.AfterTax.IsZero(), text)
		}
	}
}

func TestParse_MissingTotalCountsAsZero(t *testing.T) {
	// GIVEN: A report without the total line
	text := strings.Replace(sampleReport, "Total payable: 17.901.600 VND", "", 1)

	// WHEN: Parsing it
	res := reconcile.Parse(text, reconcile.DefaultLocale())

	// THEN: The after-tax total is zero and base after tax clamps to zero
	assert.False(t, res.TotalFound)
	assert.True(t, res.Components.Total.AfterTax.IsZero())
	assert.True(t, res.Components.BaseCoverage.AfterTax.IsZero())
	assertTaxed(t, taxed(756_000, 831_600), res.Components.MandatoryLiability, "liability")

	// AND: Validation reports the mismatch
	assert.False(t, reconcile.ValidatePremiumData(res.Components, decimal.RequireFromString("0.01")))
}

func TestParse_BaseSectionMissingEstimatesPreTax(t *testing.T) {
	// GIVEN: The total includes base coverage but no base section is listed
	text := `----
Package: Mandatory liability
Premium: 756.000 VND
Tax: 75.600 VND
----
Total payable: 11.831.600 VND`

	res := reconcile.Parse(text, reconcile.DefaultLocale())

	// THEN: Base after tax is derived, pre-tax is afterTax / 1.1
	assert.True(t, res.TaxEstimated)
	assertTaxed(t, taxed(10_000_000, 11_000_000), res.Components.BaseCoverage, "base")
	assertTaxed(t, taxed(10_756_000, 11_831_600), res.Components.Total, "total")
	assert.True(t, reconcile.ValidatePremiumData(res.Components, decimal.RequireFromString("0.01")))
}

func TestParse_TaxRateComesFromLocale(t *testing.T) {
	text := "Total payable: 1.080.000"
	loc := reconcile.DefaultLocale()
	loc.TaxRate = decimal.RequireFromString("0.08")

	res := reconcile.Parse(text, loc)

	assertTaxed(t, taxed(1_000_000, 1_080_000), res.Components.BaseCoverage, "base")
}

func TestParse_ComponentsClampedToZero(t *testing.T) {
	// GIVEN: A stated total lower than the liability section alone
	text := `----
Package: Compulsory liability
Premium: 756.000
Tax: 75.600
----
Total payable: 500.000`

	res := reconcile.Parse(text, reconcile.DefaultLocale())

	// THEN: Base coverage is clamped instead of going negative
	assertTaxed(t, taxed(0, 0), res.Components.BaseCoverage, "base")
	assert.False(t, res.Components.MandatoryLiability.AfterTax.IsNegative())
}

func TestParse_SectionNeedsPremiumAndTax(t *testing.T) {
	text := `----
Package: Vehicle physical damage
Premium: 1.000.000
----
Package: Passenger accident
Tax: 2.727
----
Total payable: 1.100.000`

	res := reconcile.Parse(text, reconcile.DefaultLocale())

	assert.Empty(t, res.Sections)
	assert.True(t, res.TotalFound)
	assert.Equal(t, int64(1_100_000), res.Components.BaseCoverage.AfterTax.Int64())
}

func TestParse_FirstBucketWins(t *testing.T) {
	// GIVEN: A name matching both liability and passenger keywords
	text := `----
Package: Compulsory passenger accident
Premium: 10.000
Tax: 1.000`

	res := reconcile.Parse(text, reconcile.DefaultLocale())

	require.Len(t, res.Sections, 1)
	assert.Equal(t, reconcile.BucketLiability, res.Sections[0].Bucket)
	assert.True(t, res.Components.PassengerAccident.AfterTax.IsZero())
}

func TestParse_CustomLocale(t *testing.T) {
	// GIVEN: A market with comma grouping and its own labels
	loc := reconcile.DefaultLocale()
	loc.TotalMarker = "TOTAL:"
	loc.SectionDelimiter = "==="
	loc.NameLabel = "Cover:"
	loc.PremiumLabel = "Net:"
	loc.TaxLabel = "VAT:"
	loc.ThousandsSeparator = ","
	loc.LiabilityKeywords = []string{"third party"}
	loc.PassengerKeywords = []string{"occupant"}

	text := `===
Cover: Own damage
Net: 2,000,000
VAT: 200,000
===
Cover: Third party
Net: 500,000
VAT: 50,000
===
TOTAL: 2,750,000`

	res := reconcile.Parse(text, loc)

	require.Len(t, res.Sections, 2)
	assertTaxed(t, taxed(2_000_000, 2_200_000), res.Components.BaseCoverage, "base")
	assertTaxed(t, taxed(500_000, 550_000), res.Components.MandatoryLiability, "liability")
}

func TestParse_Deterministic(t *testing.T) {
	a := reconcile.Parse(sampleReport, reconcile.DefaultLocale())
	b := reconcile.Parse(sampleReport, reconcile.DefaultLocale())
	assert.Equal(t, a, b)
}

// =============================================================================
// VALIDATE
// =============================================================================

func TestValidatePremiumData(t *testing.T) {
	tol := reconcile.DefaultLocale().Tolerance
	sample := reconcile.Parse(sampleReport, reconcile.DefaultLocale()).Components

	// GIVEN: The sample report
	// THEN: It validates
	assert.True(t, reconcile.ValidatePremiumData(sample, tol))
	assert.NoError(t, reconcile.Check(sample, tol))

	// GIVEN: The total forced to half the component sum
	broken := sample
	broken.Total = taxed(sample.Total.BeforeTax.Int64()/2, sample.Total.AfterTax.Int64()/2)

	// THEN: It does not, and Check reports both figures
	assert.False(t, reconcile.ValidatePremiumData(broken, tol))
	err := reconcile.Check(broken, tol)
	assert.ErrorIs(t, err, generic.ErrParseInconsistency)
	var pie *generic.ParseInconsistencyError
	require.True(t, errors.As(err, &pie))
	assert.Equal(t, int64(17_901_600), pie.ComponentSum.AfterTax.Int64())
}

func TestValidatePremiumData_ToleranceBoundary(t *testing.T) {
	tol := decimal.RequireFromString("0.01")
	comps := generic.PremiumComponents{
		BaseCoverage: taxed(1_000_000, 990_000),
		Total:        taxed(1_000_000, 1_000_000),
	}
	// Exactly 1% off after tax: accepted
	assert.True(t, reconcile.ValidatePremiumData(comps, tol))

	comps.BaseCoverage = taxed(1_000_000, 989_999)
	assert.False(t, reconcile.ValidatePremiumData(comps, tol))

	// Zero total matches only zero components
	assert.True(t, reconcile.ValidatePremiumData(generic.PremiumComponents{}, tol))
	assert.False(t, reconcile.ValidatePremiumData(generic.PremiumComponents{BaseCoverage: taxed(1, 1)}, tol))
}

// =============================================================================
// DISCOUNT AND FORMAT
// =============================================================================

func TestDeriveDiscount(t *testing.T) {
	d := reconcile.DeriveDiscount(money(20_000_000), money(17_901_600))
	assert.Equal(t, int64(2_098_400), d.Amount.Int64())
	assert.Equal(t, "10.49", d.Percent.String())

	// Partner charges more: negative discount
	d = reconcile.DeriveDiscount(money(10_000_000), money(11_000_000))
	assert.Equal(t, int64(-1_000_000), d.Amount.Int64())
	assert.Equal(t, "-10", d.Percent.String())

	d = reconcile.DeriveDiscount(generic.ZeroMoney(), money(1_000))
	assert.True(t, d.Percent.IsZero())
}

func TestFormatAmount(t *testing.T) {
	loc := reconcile.DefaultLocale()
	assert.Equal(t, "17.901.600", reconcile.FormatAmount(money(17_901_600), loc))
	assert.Equal(t, "999", reconcile.FormatAmount(money(999), loc))
	assert.Equal(t, "0", reconcile.FormatAmount(generic.ZeroMoney(), loc))

	loc.Language = "en"
	loc.ThousandsSeparator = ","
	assert.Equal(t, "17,901,600", reconcile.FormatAmount(money(17_901_600), loc))
}

func TestLocale_Validate(t *testing.T) {
	assert.NoError(t, reconcile.DefaultLocale().Validate())

	tests := []struct {
		name   string
		mutate func(*reconcile.Locale)
	}{
		{"no marker", func(l *reconcile.Locale) { l.TotalMarker = "" }},
		{"no delimiter", func(l *reconcile.Locale) { l.SectionDelimiter = " " }},
		{"no labels", func(l *reconcile.Locale) { l.TaxLabel = "" }},
		{"no separator", func(l *reconcile.Locale) { l.ThousandsSeparator = "" }},
		{"negative tax", func(l *reconcile.Locale) { l.TaxRate = decimal.NewFromInt(-1) }},
		{"tolerance too wide", func(l *reconcile.Locale) { l.Tolerance = decimal.NewFromInt(1) }},
		{"bad language", func(l *reconcile.Locale) { l.Language = "not a tag!" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := reconcile.DefaultLocale()
			tt.mutate(&loc)
			assert.Error(t, loc.Validate())
		})
	}
}

// =============================================================================
// RECONCILER
// =============================================================================

type fakeSubmitter struct {
	result  partner.Result
	err     error
	calls   int
	payload partner.Payload
}

func (f *fakeSubmitter) SubmitForReview(_ context.Context, p partner.Payload, _ partner.AuthContext) (partner.Result, error) {
	f.calls++
	f.payload = p
	return f.result, f.err
}

type outcomeSpy struct{ outcomes []string }

func (s *outcomeSpy) ObserveReconciliation(_ generic.ProductID, outcome string) {
	s.outcomes = append(s.outcomes, outcome)
}

func newReconciler(sub reconcile.Submitter) (*reconcile.Reconciler, *outcomeSpy) {
	spy := &outcomeSpy{}
	r := reconcile.NewReconciler(sub)
	r.Clock = &generic.FixedClock{At: t0}
	r.Metrics = spy
	return r, spy
}

func contractWithTotal(total int64) generic.Contract {
	c := generic.NewContract("c-1", "TST-1", "reconcile-test", "agent-1", t0)
	c.Fees.TotalAfterDiscount = money(total)
	return c
}

func TestReconcile_Success(t *testing.T) {
	// GIVEN: The partner returns the sample report
	sub := &fakeSubmitter{result: partner.Result{Success: true, RawText: sampleReport}}
	r, spy := newReconciler(sub)

	// WHEN: Reconciling a contract whose internal total is 18,500,000
	ep, err := r.Reconcile(context.Background(), contractWithTotal(18_500_000), partner.Payload{}, partner.AuthContext{})

	// THEN: The snapshot is validated and carries the discount
	require.NoError(t, err)
	assert.True(t, ep.Success)
	assert.True(t, ep.Validated)
	assert.Empty(t, ep.Warning)
	assert.Equal(t, t0, ep.CheckedAt)
	assert.Equal(t, int64(17_040_000), ep.Components.BaseCoverage.AfterTax.Int64())
	assert.Equal(t, int64(598_400), ep.Discount.Amount.Int64())
	assert.Equal(t, []string{reconcile.OutcomeSuccess}, spy.outcomes)
}

func TestReconcile_InconsistentReportIsWarningNotError(t *testing.T) {
	// GIVEN: A report whose only section exceeds the stated total
	report := `----
Package: Mandatory liability
Premium: 756.000
Tax: 75.600
----
Total payable: 415.800`
	r, spy := newReconciler(&fakeSubmitter{result: partner.Result{Success: true, RawText: report}})

	ep, err := r.Reconcile(context.Background(), contractWithTotal(1_000_000), partner.Payload{}, partner.AuthContext{})

	// THEN: No error, flagged unvalidated, warning shows both formatted figures
	require.NoError(t, err)
	assert.True(t, ep.Success)
	assert.False(t, ep.Validated)
	assert.Contains(t, ep.Warning, "831.600")
	assert.Contains(t, ep.Warning, "415.800")
	assert.Equal(t, []string{reconcile.OutcomeUnvalidated}, spy.outcomes)
}

func TestReconcile_ExternalFailureIsNotParsed(t *testing.T) {
	// GIVEN: The partner call fails
	sub := &fakeSubmitter{
		result: partner.Result{Error: "timeout", RawText: sampleReport},
		err:    errors.New("timeout"),
	}
	r, spy := newReconciler(sub)

	ep, err := r.Reconcile(context.Background(), contractWithTotal(1), partner.Payload{}, partner.AuthContext{})

	// THEN: Failure snapshot with the cause and no parsed figures
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrExternalCall)
	assert.True(t, generic.IsRetryable(err))
	assert.False(t, ep.Success)
	assert.Equal(t, "timeout", ep.Error)
	assert.True(t, ep.Components.Total.AfterTax.IsZero())
	assert.Equal(t, t0, ep.CheckedAt)
	assert.Equal(t, []string{reconcile.OutcomeFailure}, spy.outcomes)
}

func TestReconcile_UnsuccessfulResultWithoutError(t *testing.T) {
	r, _ := newReconciler(&fakeSubmitter{result: partner.Result{Success: false, Error: "rejected"}})

	ep, err := r.Reconcile(context.Background(), contractWithTotal(1), partner.Payload{}, partner.AuthContext{})

	assert.ErrorIs(t, err, generic.ErrExternalCall)
	assert.False(t, ep.Success)
	assert.Contains(t, ep.Error, "rejected")
}

// =============================================================================
// RECHECK
// =============================================================================

type reconcileLine struct{}

func (reconcileLine) ProductID() generic.ProductID  { return "reconcile-test" }
func (reconcileLine) NumberPrefix() string          { return "RCT" }
func (reconcileLine) Lifecycle() *generic.Lifecycle { return generic.DefaultLifecycle() }

func init() { generic.RegisterProduct(reconcileLine{}) }

func TestRecheck_OverwritesSnapshot(t *testing.T) {
	ctx := context.Background()
	svc := generic.NewContractService(store.NewMemory())
	agent := generic.Actor{ID: "agent-1"}

	c, err := svc.Create(ctx, generic.NewContractInput{
		Product: "reconcile-test",
		Actor:   agent,
		Details: []byte(`{"plate":"30A-123.45"}`),
		Fees: generic.FeeBreakdown{
			BaseFee:             money(18_000_000),
			TotalBeforeDiscount: money(18_000_000),
			TotalAfterDiscount:  money(18_000_000),
		},
	})
	require.NoError(t, err)

	// GIVEN: A first recheck fails
	sub := &fakeSubmitter{err: errors.New("portal down")}
	r, _ := newReconciler(sub)

	updated, err := r.Recheck(ctx, svc, c.ID, partner.AuthContext{})

	// THEN: The failure is recorded on the contract and returned
	assert.ErrorIs(t, err, generic.ErrExternalCall)
	require.NotNil(t, updated.External)
	assert.False(t, updated.External.Success)
	assert.Equal(t, "30A-123.45", sub.payload.Fields["plate"])
	assert.Equal(t, "RCT", strings.Split(sub.payload.ContractNumber, "-")[0])

	// WHEN: The next recheck succeeds
	sub.err = nil
	sub.result = partner.Result{Success: true, RawText: sampleReport}
	updated, err = r.Recheck(ctx, svc, c.ID, partner.AuthContext{})

	// THEN: The snapshot is overwritten, history untouched
	require.NoError(t, err)
	stored, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.External)
	assert.True(t, stored.External.Success)
	assert.Equal(t, int64(98_400), stored.External.Discount.Amount.Int64())
	assert.Equal(t, 1, stored.History.Len())
	assert.Equal(t, updated.External.CheckedAt, stored.External.CheckedAt)
}

func TestRecheck_TerminalContractLocked(t *testing.T) {
	ctx := context.Background()
	svc := generic.NewContractService(store.NewMemory())
	agent := generic.Actor{ID: "agent-1"}

	c, err := svc.Create(ctx, generic.NewContractInput{Product: "reconcile-test", Actor: agent})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, c.ID, generic.StatusCancelled, agent, "")
	require.NoError(t, err)

	r, _ := newReconciler(&fakeSubmitter{result: partner.Result{Success: true, RawText: sampleReport}})
	_, err = r.Recheck(ctx, svc, c.ID, partner.AuthContext{})

	assert.ErrorIs(t, err, generic.ErrContractLocked)
}
