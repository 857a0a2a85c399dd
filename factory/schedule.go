/*
Package factory provides JSON to Go rate schedule conversion.

PURPOSE:
  Converts JSON tariff definitions into premium.Schedule values. This lets
  a market change rates, age tiers and liability brackets without code
  changes - the pricing team edits JSON, the factory builds the tables.

JSON SCHEMA:
  {
    "minimum_fee": 5500000,
    "minimum_fee_value_threshold": 500000000,
    "custom_rate_min": "0.1",
    "custom_rate_max": "10",
    "max_package_rate": "10",
    "categories": {
      "private": [
        {
          "code": "comprehensive",
          "name": "Comprehensive",
          "max_age_years": 15,
          "electric_loading": "0.10",
          "tiers": [
            {"from_age_years": 0, "rate": "1.21"},
            {"from_age_years": 3, "rate": "1.35"}
          ]
        }
      ]
    },
    "liability": [
      {"key": "private_lt6", "category": "private", "min_seats": 1, "max_seats": 5, "fee": 437000},
      {"key": "cargo_lt3", "category": "cargo", "min_weight": "0", "max_weight": "3", "fee": 853000}
    ]
  }

  Rates and weights are JSON strings so they keep their exact decimal
  value; fees are whole currency units.

KEY FEATURES:
  - Validates categories, tier rates and bracket keys
  - Fills unset bounds from premium.DefaultSchedule
  - Round-trips through ToJSON

USAGE:
  f := factory.NewScheduleFactory()
  schedule, err := f.ParseSchedule(jsonString)
  quote, err := premium.NewResolver(schedule).Resolve(profile)

SEE ALSO:
  - premium/schedule.go: Schedule type definition
  - premium/schedules.go: Go-based default schedule
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/premium"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the JSON representation of a rate schedule.
type ScheduleJSON struct {
	MinimumFee               *int64                   `json:"minimum_fee,omitempty"`
	MinimumFeeValueThreshold *int64                   `json:"minimum_fee_value_threshold,omitempty"`
	CustomRateMin            string                   `json:"custom_rate_min,omitempty"`
	CustomRateMax            string                   `json:"custom_rate_max,omitempty"`
	MaxPackageRate           string                   `json:"max_package_rate,omitempty"`
	Categories               map[string][]PackageJSON `json:"categories"`
	Liability                []BracketJSON            `json:"liability"`
}

// PackageJSON represents one coverage package.
type PackageJSON struct {
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	MaxAgeYears     int        `json:"max_age_years,omitempty"`
	MinSeats        int        `json:"min_seats,omitempty"`
	MinCargoWeight  string     `json:"min_cargo_weight,omitempty"`
	ElectricLoading string     `json:"electric_loading,omitempty"`
	Tiers           []TierJSON `json:"tiers"`
}

// TierJSON represents an age tier.
type TierJSON struct {
	FromAgeYears int    `json:"from_age_years"`
	Rate         string `json:"rate"`
}

// BracketJSON represents a mandatory-liability bracket.
type BracketJSON struct {
	Key       string `json:"key"`
	Category  string `json:"category"`
	MinSeats  int    `json:"min_seats,omitempty"`
	MaxSeats  int    `json:"max_seats,omitempty"`
	MinWeight string `json:"min_weight,omitempty"`
	MaxWeight string `json:"max_weight,omitempty"`
	Fee       int64  `json:"fee"`
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

// ScheduleFactory converts JSON schedules to Go structs.
type ScheduleFactory struct {
	// Defaults fills bounds the JSON leaves out.
	Defaults *premium.Schedule
}

// NewScheduleFactory creates a factory falling back to the default schedule.
func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{Defaults: premium.DefaultSchedule()}
}

// ParseSchedule parses a JSON string into a Schedule.
func (f *ScheduleFactory) ParseSchedule(jsonStr string) (*premium.Schedule, error) {
	var sj ScheduleJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse schedule JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON converts ScheduleJSON to a premium.Schedule.
func (f *ScheduleFactory) FromJSON(sj ScheduleJSON) (*premium.Schedule, error) {
	s := &premium.Schedule{
		Packages:                 make(map[premium.BusinessCategory][]premium.PackageDef),
		MinimumFee:               f.Defaults.MinimumFee,
		MinimumFeeValueThreshold: f.Defaults.MinimumFeeValueThreshold,
		CustomRateMin:            f.Defaults.CustomRateMin,
		CustomRateMax:            f.Defaults.CustomRateMax,
		MaxPackageRate:           f.Defaults.MaxPackageRate,
	}

	if sj.MinimumFee != nil {
		s.MinimumFee = generic.NewMoney(*sj.MinimumFee)
	}
	if sj.MinimumFeeValueThreshold != nil {
		s.MinimumFeeValueThreshold = generic.NewMoney(*sj.MinimumFeeValueThreshold)
	}

	var err error
	if s.CustomRateMin, err = optionalRate("custom_rate_min", sj.CustomRateMin, s.CustomRateMin); err != nil {
		return nil, err
	}
	if s.CustomRateMax, err = optionalRate("custom_rate_max", sj.CustomRateMax, s.CustomRateMax); err != nil {
		return nil, err
	}
	if s.MaxPackageRate, err = optionalRate("max_package_rate", sj.MaxPackageRate, s.MaxPackageRate); err != nil {
		return nil, err
	}
	if s.CustomRateMin.GreaterThan(s.CustomRateMax) {
		return nil, fmt.Errorf("custom_rate_min %s is above custom_rate_max %s", s.CustomRateMin, s.CustomRateMax)
	}

	if len(sj.Categories) == 0 {
		return nil, fmt.Errorf("schedule defines no categories")
	}
	for name, packages := range sj.Categories {
		category, err := premium.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		for _, pj := range packages {
			def, err := parsePackage(pj)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", name, err)
			}
			s.Packages[category] = append(s.Packages[category], def)
		}
	}

	seen := make(map[string]bool)
	for _, bj := range sj.Liability {
		if seen[bj.Key] {
			return nil, fmt.Errorf("duplicate liability bracket %q", bj.Key)
		}
		seen[bj.Key] = true
		b, err := parseBracket(bj)
		if err != nil {
			return nil, err
		}
		s.Liability = append(s.Liability, b)
	}

	return s, nil
}

// ToJSON converts a Schedule to ScheduleJSON.
func (f *ScheduleFactory) ToJSON(s *premium.Schedule) ScheduleJSON {
	minFee := s.MinimumFee.Int64()
	threshold := s.MinimumFeeValueThreshold.Int64()
	sj := ScheduleJSON{
		MinimumFee:               &minFee,
		MinimumFeeValueThreshold: &threshold,
		CustomRateMin:            s.CustomRateMin.String(),
		CustomRateMax:            s.CustomRateMax.String(),
		MaxPackageRate:           s.MaxPackageRate.String(),
		Categories:               make(map[string][]PackageJSON),
	}

	categories := make([]premium.BusinessCategory, 0, len(s.Packages))
	for c := range s.Packages {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	for _, c := range categories {
		for _, def := range s.Packages[c] {
			pj := PackageJSON{
				Code:        def.Code,
				Name:        def.Name,
				MaxAgeYears: def.MaxAgeYears,
				MinSeats:    def.MinSeats,
			}
			if def.MinCargoWeight.IsPositive() {
				pj.MinCargoWeight = def.MinCargoWeight.String()
			}
			if !def.ElectricLoading.IsZero() {
				pj.ElectricLoading = def.ElectricLoading.String()
			}
			for _, t := range def.Tiers {
				pj.Tiers = append(pj.Tiers, TierJSON{FromAgeYears: t.FromAgeYears, Rate: t.Rate.String()})
			}
			sj.Categories[string(c)] = append(sj.Categories[string(c)], pj)
		}
	}

	for _, b := range s.Liability {
		bj := BracketJSON{
			Key:      b.Key,
			Category: string(b.Category),
			MinSeats: b.MinSeats,
			MaxSeats: b.MaxSeats,
			Fee:      b.Fee.Int64(),
		}
		if b.Category.RequiresCargoWeight() {
			bj.MinWeight = b.MinWeight.String()
			if !b.MaxWeight.IsZero() {
				bj.MaxWeight = b.MaxWeight.String()
			}
		}
		sj.Liability = append(sj.Liability, bj)
	}

	return sj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parsePackage(pj PackageJSON) (premium.PackageDef, error) {
	if pj.Code == "" {
		return premium.PackageDef{}, fmt.Errorf("package without code")
	}
	if len(pj.Tiers) == 0 {
		return premium.PackageDef{}, fmt.Errorf("package %s has no tiers", pj.Code)
	}

	def := premium.PackageDef{
		Code:        pj.Code,
		Name:        pj.Name,
		MaxAgeYears: pj.MaxAgeYears,
		MinSeats:    pj.MinSeats,
	}
	if def.Name == "" {
		def.Name = pj.Code
	}

	var err error
	if def.MinCargoWeight, err = optionalDecimal("min_cargo_weight", pj.MinCargoWeight); err != nil {
		return premium.PackageDef{}, err
	}
	if def.ElectricLoading, err = optionalRate("electric_loading", pj.ElectricLoading, generic.Rate{}); err != nil {
		return premium.PackageDef{}, err
	}

	for _, tj := range pj.Tiers {
		r, err := generic.ParseRate(tj.Rate)
		if err != nil {
			return premium.PackageDef{}, fmt.Errorf("package %s: invalid tier rate %q: %w", pj.Code, tj.Rate, err)
		}
		if r.IsNegative() {
			return premium.PackageDef{}, fmt.Errorf("package %s: negative tier rate %s", pj.Code, r)
		}
		def.Tiers = append(def.Tiers, premium.AgeTier{FromAgeYears: tj.FromAgeYears, Rate: r})
	}
	return def, nil
}

func parseBracket(bj BracketJSON) (premium.LiabilityBracket, error) {
	if bj.Key == "" {
		return premium.LiabilityBracket{}, fmt.Errorf("liability bracket without key")
	}
	category, err := premium.ParseCategory(bj.Category)
	if err != nil {
		return premium.LiabilityBracket{}, fmt.Errorf("bracket %s: %w", bj.Key, err)
	}
	if bj.Fee < 0 {
		return premium.LiabilityBracket{}, fmt.Errorf("bracket %s: negative fee", bj.Key)
	}

	b := premium.LiabilityBracket{
		Key:      bj.Key,
		Category: category,
		MinSeats: bj.MinSeats,
		MaxSeats: bj.MaxSeats,
		Fee:      generic.NewMoney(bj.Fee),
	}
	if b.MinWeight, err = optionalDecimal("min_weight", bj.MinWeight); err != nil {
		return premium.LiabilityBracket{}, err
	}
	if b.MaxWeight, err = optionalDecimal("max_weight", bj.MaxWeight); err != nil {
		return premium.LiabilityBracket{}, err
	}
	return b, nil
}

func optionalRate(field, s string, fallback generic.Rate) (generic.Rate, error) {
	if s == "" {
		return fallback, nil
	}
	r, err := generic.ParseRate(s)
	if err != nil {
		return generic.Rate{}, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return r, nil
}

func optionalDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}
