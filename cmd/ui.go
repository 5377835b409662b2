package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00CC66")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	divider      = mutedStyle.Render(strings.Repeat("─", 60))
)

// progressReporter draws a progress bar over the sources of a run and keeps
// the failures for printing once the bar is gone.
type progressReporter struct {
	bar      *progressbar.ProgressBar
	w        io.Writer
	failures []string
}

func newProgressReporter(total int, w io.Writer) *progressReporter {
	return &progressReporter{
		w: w,
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Analyzing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
			}),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (p *progressReporter) SourceDone(name, status string) {
	if strings.HasPrefix(status, "failed") {
		p.failures = append(p.failures, fmt.Sprintf("%s %s: %s", failureStyle.Render("✗"), name, status))
	}
	p.bar.Describe(name)
	_ = p.bar.Add(1)
}

func (p *progressReporter) Finished(string) {
	_ = p.bar.Finish()
	for _, f := range p.failures {
		fmt.Fprintln(p.w, "  "+f)
	}
}

// printField prints one aligned "label: value" line.
func printField(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %v\n", mutedStyle.Render(fmt.Sprintf("%-18s", label+":")), value)
}
