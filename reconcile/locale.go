/*
Package reconcile compares the partner insurer's own premium calculation
against the internally computed fee breakdown.

PURPOSE:
  After submission the partner portal returns a semi-structured fee report.
  This package turns that text into generic.PremiumComponents, checks its
  arithmetic, derives the discount against the internal total and stores the
  result on the contract as its ExternalPremium snapshot.

FLOW:
  ┌─────────────────┐    ┌─────────┐    ┌────────────────────┐    ┌────────────┐
  │ partner.Client  │──▶ │  Parse  │──▶ │ ValidatePremiumData│──▶ │ snapshot   │
  │ SubmitForReview │    │ (text)  │    │ + DeriveDiscount   │    │ on contract│
  └─────────────────┘    └─────────┘    └────────────────────┘    └────────────┘

  Parse, ValidatePremiumData and DeriveDiscount are pure. Only the
  Reconciler touches the network, through the Submitter interface.

MARKET SETTINGS:
  Markers, labels, the thousands separator, the fallback tax rate and the
  tolerance all come from an explicit Locale value. Nothing is global.

SEE ALSO:
  - generic/fees.go: PremiumComponents, ExternalPremium
  - partner/client.go: The HTTP collaborator
*/
package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// Locale describes one market's fee report format.
type Locale struct {
	// TotalMarker precedes the overall after-tax total.
	TotalMarker string
	// SectionDelimiter separates package sections.
	SectionDelimiter string

	NameLabel    string
	PremiumLabel string
	TaxLabel     string

	// ThousandsSeparator groups digits in amounts ("." in 17.901.600).
	ThousandsSeparator string

	// TaxRate is the fraction used to estimate a missing pre-tax figure
	// (0.10 means afterTax / 1.10).
	TaxRate decimal.Decimal

	// Tolerance is the allowed relative gap between components and total
	// (0.01 means 1%).
	Tolerance decimal.Decimal

	// Language is a BCP 47 tag used for formatting amounts.
	Language string

	// LiabilityKeywords and PassengerKeywords classify sections by name.
	// Liability is checked first; a section lands in at most one bucket.
	LiabilityKeywords []string
	PassengerKeywords []string
}

// DefaultLocale is the format of the domestic partner portal.
func DefaultLocale() Locale {
	return Locale{
		TotalMarker:        "Total payable:",
		SectionDelimiter:   "----",
		NameLabel:          "Package:",
		PremiumLabel:       "Premium:",
		TaxLabel:           "Tax:",
		ThousandsSeparator: ".",
		TaxRate:            decimal.RequireFromString("0.10"),
		Tolerance:          decimal.RequireFromString("0.01"),
		Language:           "vi",
		LiabilityKeywords:  []string{"mandatory liability", "compulsory"},
		PassengerKeywords:  []string{"passenger accident"},
	}
}

// Validate checks that the locale can drive the parser.
func (l Locale) Validate() error {
	switch {
	case strings.TrimSpace(l.TotalMarker) == "":
		return fmt.Errorf("reconcile locale: total marker is required")
	case strings.TrimSpace(l.SectionDelimiter) == "":
		return fmt.Errorf("reconcile locale: section delimiter is required")
	case l.PremiumLabel == "" || l.TaxLabel == "":
		return fmt.Errorf("reconcile locale: premium and tax labels are required")
	case l.ThousandsSeparator == "":
		return fmt.Errorf("reconcile locale: thousands separator is required")
	case l.TaxRate.IsNegative():
		return fmt.Errorf("reconcile locale: tax rate must not be negative")
	case l.Tolerance.IsNegative() || l.Tolerance.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return fmt.Errorf("reconcile locale: tolerance must be in [0, 1)")
	}
	if _, err := language.Parse(l.Language); err != nil {
		return fmt.Errorf("reconcile locale: language %q: %w", l.Language, err)
	}
	return nil
}

func (l Locale) tag() language.Tag {
	tag, err := language.Parse(l.Language)
	if err != nil {
		return language.Vietnamese
	}
	return tag
}
