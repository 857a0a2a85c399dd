/*
Package generic provides the product-agnostic contract engine.

PURPOSE:
  This package contains the types and algorithms shared by every insurance
  product line (vehicle, health, travel). Whatever is being insured, the
  same engine tracks the contract identity, its fee breakdown, the status
  lifecycle and the append-only status history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: An integer amount of currency units backed by decimal.Decimal
  - Rate: A percentage (1.21 means 1.21%)
  - Actor/Role: Who is acting on a contract and with which privileges
  - Contract/Product IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift
  2. Integer currency: every stored amount is rounded to whole units
  3. Type Safety: Strong typing for IDs prevents mixing contract/product IDs
  4. Auditability: Every status change records actor, time and note

USAGE:
  fee := generic.NewMoney(800_000_000).ApplyRate(generic.MustRate("1.21"))
  // fee == 9.680.000

SEE ALSO:
  - fees.go: FeeBreakdown and reconciliation snapshot types
  - lifecycle.go: Status graph and role gating
  - contract.go: The contract aggregate
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Whole currency units
// =============================================================================

// Money is an amount of currency. Stored values are always whole units;
// intermediate values may carry fractions until Round is called.
type Money struct {
	Value decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func NewMoney(units int64) Money                  { return Money{Value: decimal.NewFromInt(units)} }
func NewMoneyFromDecimal(d decimal.Decimal) Money { return Money{Value: d} }
func ZeroMoney() Money                            { return Money{Value: decimal.Zero} }

// ParseMoney parses a plain decimal string ("17901600").
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d}, nil
}

func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		return ZeroMoney()
	}
	return m
}

func (m Money) Add(o Money) Money           { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money           { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(d decimal.Decimal) Money { return Money{Value: m.Value.Mul(d)} }
func (m Money) Div(d decimal.Decimal) Money { return Money{Value: m.Value.Div(d)} }
func (m Money) Neg() Money                  { return Money{Value: m.Value.Neg()} }
func (m Money) Round() Money                { return Money{Value: m.Value.Round(0)} }
func (m Money) IsZero() bool                { return m.Value.IsZero() }
func (m Money) IsNegative() bool            { return m.Value.IsNegative() }
func (m Money) IsPositive() bool            { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool          { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool    { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool       { return m.Value.LessThan(o.Value) }
func (m Money) Int64() int64                { return m.Value.Round(0).IntPart() }
func (m Money) String() string              { return m.Value.Round(0).String() }

func (m Money) Max(o Money) Money {
	if m.GreaterThan(o) {
		return m
	}
	return o
}

// NonNegative clamps the amount at zero.
func (m Money) NonNegative() Money {
	if m.IsNegative() {
		return ZeroMoney()
	}
	return m
}

// ApplyRate returns m * rate / 100, unrounded.
func (m Money) ApplyRate(r Rate) Money {
	return Money{Value: m.Value.Mul(r.Percent).Div(hundred)}
}

// MarshalJSON renders money as a JSON number of whole units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Value.Round(0).String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return m.Value.UnmarshalJSON(b)
}

// =============================================================================
// RATE - Percentage of insured value
// =============================================================================

// Rate is a percentage. Rate{Percent: 1.21} means 1.21% of insured value.
type Rate struct {
	Percent decimal.Decimal
}

func NewRate(percent float64) Rate { return Rate{Percent: decimal.NewFromFloat(percent)} }

func ParseRate(s string) (Rate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Rate{}, err
	}
	return Rate{Percent: d}, nil
}

func MustRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		return Rate{}
	}
	return r
}

func (r Rate) Add(o Rate) Rate         { return Rate{Percent: r.Percent.Add(o.Percent)} }
func (r Rate) IsZero() bool            { return r.Percent.IsZero() }
func (r Rate) IsNegative() bool        { return r.Percent.IsNegative() }
func (r Rate) LessThan(o Rate) bool    { return r.Percent.LessThan(o.Percent) }
func (r Rate) GreaterThan(o Rate) bool { return r.Percent.GreaterThan(o.Percent) }
func (r Rate) String() string          { return r.Percent.String() }

func (r Rate) MarshalJSON() ([]byte, error)  { return r.Percent.MarshalJSON() }
func (r *Rate) UnmarshalJSON(b []byte) error { return r.Percent.UnmarshalJSON(b) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ContractID string
type ContractNumber string
type ActorID string

// ProductID identifies a product line ("vehicle", "health", "travel").
type ProductID string

// =============================================================================
// ACTOR - Who is acting on a contract
// =============================================================================

// Role is the privilege an actor holds relative to a specific contract.
type Role string

const (
	RoleAdmin Role = "admin" // Back-office administrator, may issue contracts
	RoleOwner Role = "owner" // The agent who created the contract
	RoleOther Role = "other" // Authenticated, but neither owner nor admin
)

// Actor is the authenticated caller. Authentication itself happens outside
// the engine; the engine only consumes the resolved identity.
type Actor struct {
	ID      ActorID `json:"id"`
	IsAdmin bool    `json:"is_admin"`
}

// SystemActor is used for entries created by the engine itself.
var SystemActor = Actor{ID: "system", IsAdmin: true}

// RoleFor resolves the actor's role on a contract created by owner.
// Administrators keep RoleAdmin even on their own contracts.
func (a Actor) RoleFor(owner ActorID) Role {
	switch {
	case a.IsAdmin:
		return RoleAdmin
	case a.ID != "" && a.ID == owner:
		return RoleOwner
	default:
		return RoleOther
	}
}
