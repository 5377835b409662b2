package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/series"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/types"
)

func row(volume float64, dur time.Duration) series.Row {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	r := series.Row{
		Date:     types.DateOf(start),
		Column:   3,
		Fuel:     "AI-92",
		Volume:   volume,
		Start:    start,
		End:      start.Add(dur),
		Duration: dur,
	}
	if dur != 0 {
		r.Rate = series.Rate(volume, dur)
	}
	return r
}

func TestCheckRates(t *testing.T) {
	tests := []struct {
		name     string
		row      series.Row
		wantRule string
	}{
		{"plausible", row(50, 2*time.Minute), ""},
		{"at maximum", row(150, time.Minute), ""},
		{"too fast", row(400, time.Minute), RuleMaxRate},
		{"zero duration", row(10, 0), RuleDuration},
		{"negative duration", row(10, -time.Minute), RuleDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := CheckRates([]series.Row{tt.row}, DefaultOptions())
			if tt.wantRule == "" {
				if len(diags) != 0 {
					t.Errorf("unexpected diagnostics %v", diags)
				}
				return
			}
			if len(diags) != 1 || diags[0].Rule != tt.wantRule {
				t.Fatalf("got %v, want one %s diagnostic", diags, tt.wantRule)
			}
			if diags[0].Severity != SeverityWarning {
				t.Errorf("Severity = %q", diags[0].Severity)
			}
		})
	}
}

func TestCheckRates_MinRate(t *testing.T) {
	diags := CheckRates([]series.Row{row(1, 10*time.Minute), row(100, time.Minute)}, Options{MinRate: 0.5, MaxRate: 150})
	if len(diags) != 1 || diags[0].Rule != RuleMinRate || diags[0].Value != 0.1 {
		t.Fatalf("unexpected diagnostics %v", diags)
	}
	msg := diags[0].Error()
	if !strings.Contains(msg, "[WARNING]") || !strings.Contains(msg, "column 3 AI-92") || !strings.Contains(msg, "2024-01-15") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestCountByRule(t *testing.T) {
	rows := []series.Row{row(400, time.Minute), row(500, time.Minute), row(1, 0)}
	counts := CountByRule(CheckRates(rows, DefaultOptions()))
	if counts[RuleMaxRate] != 2 || counts[RuleDuration] != 1 {
		t.Errorf("CountByRule() = %v", counts)
	}
}
