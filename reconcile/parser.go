package reconcile

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

// Bucket is the canonical component a report section belongs to.
type Bucket string

const (
	BucketBase      Bucket = "base_coverage"
	BucketLiability Bucket = "mandatory_liability"
	BucketPassenger Bucket = "passenger_accident"
)

// Section is one package block of a fee report.
type Section struct {
	Name   string              `json:"name"`
	Bucket Bucket              `json:"bucket"`
	Amount generic.TaxedAmount `json:"amount"`
}

// ParseResult is the canonical breakdown plus what the parser saw.
type ParseResult struct {
	Components generic.PremiumComponents `json:"components"`
	Sections   []Section                 `json:"sections"`

	// TotalFound is false when the report had no total marker. The after-tax
	// total is then zero.
	TotalFound bool `json:"total_found"`

	// TaxEstimated is true when the base pre-tax figure was derived from
	// the after-tax one using the locale's tax rate.
	TaxEstimated bool `json:"tax_estimated"`
}

// Parse extracts the canonical premium breakdown from a partner fee report.
// It never fails: unparseable input yields zero components.
//
// Base coverage is whatever the total leaves after mandatory liability and
// passenger accident, computed separately before and after tax.
func Parse(text string, loc Locale) ParseResult {
	res := ParseResult{Sections: []Section{}}

	statedAfter, found := findTotal(text, loc)
	res.TotalFound = found

	var liability, passenger, all generic.TaxedAmount
	for _, chunk := range strings.Split(text, loc.SectionDelimiter) {
		sec, ok := parseSection(chunk, loc)
		if !ok {
			continue
		}
		res.Sections = append(res.Sections, sec)
		all = all.Add(sec.Amount)
		switch sec.Bucket {
		case BucketLiability:
			liability = liability.Add(sec.Amount)
		case BucketPassenger:
			passenger = passenger.Add(sec.Amount)
		}
	}

	// statedAfter is zero when no marker was found.
	total := generic.TaxedAmount{BeforeTax: all.BeforeTax, AfterTax: statedAfter}

	base := generic.TaxedAmount{
		BeforeTax: total.BeforeTax.Sub(liability.BeforeTax).Sub(passenger.BeforeTax).Round(),
		AfterTax:  total.AfterTax.Sub(liability.AfterTax).Sub(passenger.AfterTax).Round(),
	}

	if !base.BeforeTax.IsPositive() && base.AfterTax.IsPositive() {
		divisor := decimal.NewFromInt(1).Add(loc.TaxRate)
		base.BeforeTax = base.AfterTax.Div(divisor).Round()
		total.BeforeTax = base.BeforeTax.Add(liability.BeforeTax).Add(passenger.BeforeTax)
		res.TaxEstimated = true
	}

	res.Components = generic.PremiumComponents{
		BaseCoverage:       clamp(base),
		MandatoryLiability: clamp(liability),
		PassengerAccident:  clamp(passenger),
		Total:              clamp(total),
	}
	return res
}

// findTotal returns the amount following the first total marker.
func findTotal(text string, loc Locale) (generic.Money, bool) {
	marker := loc.TotalMarker
	for _, line := range strings.Split(text, "\n") {
		idx := strings.Index(line, marker)
		if lower := strings.ToLower(line); idx < 0 && len(lower) == len(line) {
			idx = strings.Index(lower, strings.ToLower(marker))
		}
		if idx < 0 {
			continue
		}
		if amount, ok := parseAmount(line[idx+len(marker):], loc.ThousandsSeparator); ok {
			return amount, true
		}
	}
	return generic.ZeroMoney(), false
}

// parseSection reads a block that has both a premium and a tax line.
func parseSection(chunk string, loc Locale) (Section, bool) {
	var (
		name               string
		premium, tax       generic.Money
		hasPremium, hasTax bool
		firstUnlabelled    string
	)

	for _, raw := range strings.Split(chunk, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		switch {
		case hasLabel(line, loc.NameLabel):
			name = strings.TrimSpace(line[len(loc.NameLabel):])
		case hasLabel(line, loc.PremiumLabel):
			premium, hasPremium = parseAmount(line[len(loc.PremiumLabel):], loc.ThousandsSeparator)
		case hasLabel(line, loc.TaxLabel):
			tax, hasTax = parseAmount(line[len(loc.TaxLabel):], loc.ThousandsSeparator)
		case firstUnlabelled == "":
			firstUnlabelled = line
		}
	}
	if !hasPremium || !hasTax {
		return Section{}, false
	}
	if name == "" {
		name = firstUnlabelled
	}

	return Section{
		Name:   name,
		Bucket: classify(name, loc),
		Amount: generic.TaxedAmount{BeforeTax: premium, AfterTax: premium.Add(tax)},
	}, true
}

func hasLabel(line, label string) bool {
	return label != "" && len(line) >= len(label) && strings.EqualFold(line[:len(label)], label)
}

// classify assigns a section to the first bucket whose keyword its name
// contains.
func classify(name string, loc Locale) Bucket {
	lower := strings.ToLower(name)
	for _, kw := range loc.LiabilityKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return BucketLiability
		}
	}
	for _, kw := range loc.PassengerKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return BucketPassenger
		}
	}
	return BucketBase
}

// parseAmount keeps digits and the separator, then drops the separator.
// "17.901.600 VND" -> 17901600.
func parseAmount(s, sep string) (generic.Money, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if strings.ContainsRune(sep, r) {
			continue
		} else if b.Len() > 0 && r != ' ' {
			break
		}
	}
	if b.Len() == 0 {
		return generic.ZeroMoney(), false
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return generic.ZeroMoney(), false
	}
	return generic.NewMoney(n), true
}

func clamp(t generic.TaxedAmount) generic.TaxedAmount {
	return generic.TaxedAmount{BeforeTax: t.BeforeTax.NonNegative(), AfterTax: t.AfterTax.NonNegative()}
}
