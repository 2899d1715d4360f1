// Package tui renders live batch progress with bubbletea. The model is a
// pure consumer: it reads outcome records off the batch stream and never
// talks back to the engine, so closing the stream is the only shutdown
// signal it needs.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"squish/internal/engine"
)

type Model struct {
	outcomes <-chan engine.OutcomeRecord
	onCancel func()
	started  time.Time
	width    int

	total      int
	processed  int
	succeeded  int
	skipped    int
	failed     int
	bytesSaved int64
	lastPath   string
	quitting   bool
}

type doneMsg struct{}

type outcomeMsg engine.OutcomeRecord

// NewModel builds a progress view over one batch. total is the task count
// fixed at submission; onCancel is invoked once when the user interrupts and
// must be safe to call from the bubbletea goroutine.
func NewModel(outcomes <-chan engine.OutcomeRecord, total int, onCancel func()) Model {
	return Model{
		outcomes: outcomes,
		onCancel: onCancel,
		started:  time.Now(),
		total:    total,
	}
}

func (m Model) Init() tea.Cmd {
	return listenForOutcomes(m.outcomes)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case outcomeMsg:
		m.processed++
		m.lastPath = msg.Path
		switch msg.Outcome.Status {
		case engine.StatusSucceeded:
			m.succeeded++
			m.bytesSaved += msg.Outcome.BytesSaved()
		case engine.StatusSkipped:
			m.skipped++
		default:
			m.failed++
		}
		return m, listenForOutcomes(m.outcomes)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.onCancel != nil {
				m.onCancel()
				m.onCancel = nil
			}
			// Keep draining: in-flight tasks still report outcomes.
			return m, nil
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.processed) / float64(m.total)
		if ratio > 1 {
			ratio = 1
		}
	}

	bar := renderBar(barWidth, ratio)
	elapsed := time.Since(m.started).Round(time.Millisecond)

	statusLine := okStyle.Render(fmt.Sprintf("ok:%d", m.succeeded)) +
		dimStyle.Render(fmt.Sprintf("  skipped:%d", m.skipped)) +
		errStyle.Render(fmt.Sprintf("  failed:%d", m.failed))

	lines := []string{
		titleStyle.Render("squish"),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", m.processed, m.total)),
		statusLine,
		labelStyle.Render(fmt.Sprintf("Saved: %s", FormatBytes(m.bytesSaved))),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(bar),
	}
	if m.lastPath != "" {
		lines = append(lines, dimStyle.Render(truncatePath(m.lastPath, barWidth+2)))
	}

	return strings.Join(lines, "\n")
}

func listenForOutcomes(outcomes <-chan engine.OutcomeRecord) tea.Cmd {
	return func() tea.Msg {
		rec, ok := <-outcomes
		if !ok {
			return doneMsg{}
		}
		return outcomeMsg(rec)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func truncatePath(path string, width int) string {
	if len(path) <= width || width < 4 {
		return path
	}
	return "..." + path[len(path)-width+3:]
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorInk)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
	okStyle    = lipgloss.NewStyle().Foreground(ColorSuccess)
	errStyle   = lipgloss.NewStyle().Foreground(ColorError)
)
