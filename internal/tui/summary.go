package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"squish/internal/engine"
)

type SummaryRow struct {
	Label string
	Value string
}

// BatchSummary turns the terminal batch result into display rows.
func BatchSummary(state engine.BatchState, counts engine.Counts, bytesSaved int64, elapsed time.Duration) []SummaryRow {
	return []SummaryRow{
		{Label: "Result", Value: state.String()},
		{Label: "Optimized", Value: fmt.Sprintf("%d", counts.Succeeded)},
		{Label: "Skipped", Value: fmt.Sprintf("%d", counts.Skipped)},
		{Label: "Failed", Value: fmt.Sprintf("%d", counts.Failed)},
		{Label: "Saved", Value: FormatBytes(bytesSaved)},
		{Label: "Elapsed", Value: elapsed.Round(time.Millisecond).String()},
	}
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		lines = append(lines, fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value)))
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// FormatBytes prints a byte count with a binary unit, negative values
// included since a batch can grow files when conversion is forced.
func FormatBytes(n int64) string {
	sign := ""
	v := n
	if v < 0 {
		sign = "-"
		v = -v
	}
	switch {
	case v >= 1<<20:
		return fmt.Sprintf("%s%.1f MiB", sign, float64(v)/(1<<20))
	case v >= 1<<10:
		return fmt.Sprintf("%s%.1f KiB", sign, float64(v)/(1<<10))
	default:
		return fmt.Sprintf("%s%d B", sign, v)
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
)
