// =============================================================================
// BBOX Fuel Dispense Analyzer - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - bboxreader  (Record)
//   - extract     (LogEvent, EventKind)
//   - reconstruct (DispensingEvent)
//   - series, engine, report, validation
//
// =============================================================================

package types

import (
	"fmt"
	"time"
)

// =============================================================================
// SOURCE RECORDS
// =============================================================================

// Record is one ROW element of a BBOX log file.
type Record struct {
	// Host is the controller host identifier, e.g. "AZS012-PC01".
	Host string

	// Action is the free-text action string.
	Action string

	// DateTime is the raw timestamp text, e.g. "20240115T10:30:15".
	DateTime string

	// Line is the 1-based ordinal of the ROW element in its file.
	Line int
}

// =============================================================================
// LOG EVENTS
// =============================================================================

// EventKind classifies a routed log record.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindDoseSet
	KindDoseConfigured
	KindFuelingStarted
	KindFuelingEnded
	KindTransactionEnded
	KindOrderTransferred
)

var kindNames = [...]string{
	KindUnknown:          "Unknown",
	KindDoseSet:          "DoseSet",
	KindDoseConfigured:   "DoseConfigured",
	KindFuelingStarted:   "FuelingStarted",
	KindFuelingEnded:     "FuelingEnded",
	KindTransactionEnded: "TransactionEnded",
	KindOrderTransferred: "OrderTransferred",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return kindNames[k]
}

// LogEvent is one normalized record. The raw action text is kept so the
// reconstructor can pull the fields the router did not need.
type LogEvent struct {
	Timestamp time.Time
	Kind      EventKind

	// Station is the station identifier derived from the record host.
	Station string

	// Column is the 0-based column index. For OrderTransferred it is the
	// column the order was moved away from.
	Column int

	// ToColumn is the 0-based destination column of an OrderTransferred.
	ToColumn int

	RawAction string

	// Line is the row ordinal of the source record.
	Line int
}

// =============================================================================
// DISPENSING EVENTS
// =============================================================================

// DispensingEvent is one reconstructed, successfully closed transaction.
type DispensingEvent struct {
	Date    Date
	Station string

	// Column is the 1-based column identifier as printed in the log.
	Column int

	Fuel string

	// Hose is the hose number from the dose setup, -1 when unknown.
	Hose int

	// Volume is the counter delta after wraparound correction.
	Volume float64

	Start time.Time
	End   time.Time
}

// Duration returns End - Start. It may be negative on disordered input.
func (e DispensingEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// =============================================================================
// CALENDAR DATES
// =============================================================================

// Date is a calendar date without a time of day. The zero value means "no
// date" and is used as an open bound in ranges.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a "2006-01-02" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return other.Before(d)
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// DateRange is an inclusive date range. A zero bound is open.
type DateRange struct {
	From Date
	To   Date
}

// Contains reports whether d lies within the range.
func (r DateRange) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}
