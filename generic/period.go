package generic

// =============================================================================
// DATE RANGE - Inclusive [Start, End] calendar interval
// =============================================================================

// DateRange is inclusive on both ends. A single-day range has Start == End.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// SingleDay returns the range covering only d.
func SingleDay(d Date) DateRange { return DateRange{Start: d, End: d} }

// Year returns the calendar year as a range.
func Year(year int) DateRange { return DateRange{Start: StartOfYear(year), End: EndOfYear(year)} }

// Validate reports a malformed range (missing bound or end before start).
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return &ValidationError{Field: "date_range", Message: "start and end dates are required"}
	}
	if r.End.Before(r.Start) {
		return &ValidationError{Field: "date_range", Message: "end date is before start date"}
	}
	return nil
}

// Contains returns true if d lies within [Start, End].
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Intersects is the overlap predicate used for leave-vs-leave and
// leave-vs-meeting checks: s <= other.End AND e >= other.Start.
func (r DateRange) Intersects(other DateRange) bool {
	return r.Start.BeforeOrEqual(other.End) && r.End.AfterOrEqual(other.Start)
}

// Days is the inclusive day count (a single-day range has 1 day).
func (r DateRange) Days() int { return DaysBetween(r.Start, r.End) + 1 }

// IsSingleDay reports whether the range covers exactly one date.
func (r DateRange) IsSingleDay() bool { return r.Start.Equal(r.End) }

// String returns a string representation of the range.
func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}
