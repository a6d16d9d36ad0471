/*
Package generic provides the domain-agnostic building blocks of the leave engine.

PURPOSE:
  Holds the small value types every other package shares: day amounts,
  calendar dates and inclusive date ranges, opaque identifiers and the error
  kinds the engine reports. Nothing in here knows about relief teachers or
  meetings.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity of days (e.g., 0.5 days, 3 days, 12 days quota)
  - Identifiers: Type-safe int64 ids so a teacher id can't be passed as a
    request id

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so half days never drift
  2. Type Safety: Distinct id types for every relation
  3. Opaque identity: ids are supplied by callers, never interpreted

USAGE:
  used := generic.NewAmount(0.5, generic.UnitDays)
  used = used.Add(generic.NewAmountFromInt(3, generic.UnitDays))

SEE ALSO:
  - time.go: Calendar dates
  - period.go: Inclusive date ranges and the overlap predicate
  - errors.go: Error kinds
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays Unit = "days"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// Days is shorthand for an amount in UnitDays.
func Days(value float64) Amount { return NewAmount(value, UnitDays) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) IsNegative() bool    { return a.Value.IsNegative() }
func (a Amount) IsZero() bool        { return a.Value.IsZero() }
func (a Amount) Equal(b Amount) bool { return a.Value.Equal(b.Value) }
func (a Amount) String() string      { return a.Value.String() + " " + string(a.Unit) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TeacherID int64
type RequestID int64
type CategoryID int64
type MeetingID int64
