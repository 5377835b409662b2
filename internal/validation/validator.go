// =============================================================================
// BBOX Fuel Dispense Analyzer - Plausibility Diagnostics
// =============================================================================
//
// This module flags dispensing events whose rate is outside a plausible band.
//
// DIAGNOSTICS, NOT FILTERS:
//   Implausible events stay in the model and in every report. Diagnostics
//   are logged as warnings and written to the error log so an operator can
//   look at the underlying log.
//
// RULES (checked in order, one diagnostic per row at most):
//   | Rule         | Condition                          |
//   |--------------|------------------------------------|
//   | duration     | End is not after Start             |
//   | min_rate     | rate < MinRate                     |
//   | max_rate     | rate > MaxRate                     |
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/series"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/types"
)

// Rule names.
const (
	RuleDuration = "duration"
	RuleMinRate  = "min_rate"
	RuleMaxRate  = "max_rate"
)

// SeverityWarning is the only severity diagnostics carry.
const SeverityWarning = "warning"

// Diagnostic describes one implausible event.
type Diagnostic struct {
	Severity string
	Rule     string
	Message  string

	Date   types.Date
	Column int
	Fuel   string
	Start  time.Time

	// Value is the offending rate, or the duration in minutes for the
	// duration rule.
	Value float64
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("[%s] %s column %d %s at %s: %s (value: %.2f)",
		strings.ToUpper(d.Severity),
		d.Date,
		d.Column,
		d.Fuel,
		d.Start.Format(time.TimeOnly),
		d.Message,
		d.Value,
	)
}

// Options are the plausibility bounds in volume per minute.
type Options struct {
	MinRate float64
	MaxRate float64
}

// DefaultOptions returns the default band [0, 150].
func DefaultOptions() Options {
	return Options{MinRate: 0, MaxRate: 150}
}

// CheckRates returns one diagnostic for every row outside opts, in row order.
func CheckRates(rows []series.Row, opts Options) []*Diagnostic {
	var out []*Diagnostic
	for _, row := range rows {
		if d := checkRow(row, opts); d != nil {
			out = append(out, d)
		}
	}
	return out
}

func checkRow(row series.Row, opts Options) *Diagnostic {
	diag := func(rule, msg string, value float64) *Diagnostic {
		return &Diagnostic{
			Severity: SeverityWarning,
			Rule:     rule,
			Message:  msg,
			Date:     row.Date,
			Column:   row.Column,
			Fuel:     row.Fuel,
			Start:    row.Start,
			Value:    value,
		}
	}

	if row.Duration <= 0 {
		return diag(RuleDuration, "transaction did not end after it started", row.Duration.Minutes())
	}
	switch {
	case row.Rate < opts.MinRate:
		return diag(RuleMinRate, fmt.Sprintf("rate below minimum %.2f", opts.MinRate), row.Rate)
	case row.Rate > opts.MaxRate:
		return diag(RuleMaxRate, fmt.Sprintf("rate above maximum %.2f", opts.MaxRate), row.Rate)
	}
	return nil
}

// CountByRule tallies diagnostics per rule.
func CountByRule(diags []*Diagnostic) map[string]int {
	counts := make(map[string]int)
	for _, d := range diags {
		counts[d.Rule]++
	}
	return counts
}
