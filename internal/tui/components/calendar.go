package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wellsgz/pingheat/internal/heatmap"
)

const calendarCell = "██"

var calendarAxisStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

// Calendar draws a month as one row per day and one two-cell block per hour,
// colored by the hour's severity
func Calendar(m *heatmap.Month) string {
	var b strings.Builder

	// Hour axis, labelled every third hour
	b.WriteString("    ")
	for h := 0; h < heatmap.HoursPerDay; h++ {
		if h%3 == 0 {
			b.WriteString(calendarAxisStyle.Render(fmt.Sprintf("%-2d", h)))
		} else {
			b.WriteString("  ")
		}
	}
	b.WriteString("\n")

	styles := make(map[string]lipgloss.Style)
	for d, row := range m.Grid() {
		b.WriteString(calendarAxisStyle.Render(fmt.Sprintf("%3d ", d+1)))
		for _, sev := range row {
			hex := heatmap.Hex(heatmap.Color(sev))
			style, ok := styles[hex]
			if !ok {
				style = lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
				styles[hex] = style
			}
			b.WriteString(style.Render(calendarCell))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// CalendarLegend explains the severity colors
func CalendarLegend() string {
	entries := []struct {
		label string
		sev   heatmap.Severity
	}{
		{"no data", heatmap.Severity{Kind: heatmap.NoData}},
		{"perfect", heatmap.Severity{Kind: heatmap.Perfect}},
		{"fair", heatmap.Severity{Kind: heatmap.Healthy, Value: 30}},
		{"poor", heatmap.Severity{Kind: heatmap.Healthy, Value: 70}},
		{"bad", heatmap.Severity{Kind: heatmap.Healthy, Value: 100}},
	}

	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(heatmap.Hex(heatmap.Color(e.sev)))).Render(calendarCell)
		parts = append(parts, swatch+" "+calendarAxisStyle.Render(e.label))
	}
	return strings.Join(parts, "  ")
}

// CPUBars draws one block per core, height and color following its usage
func CPUBars(cores []float64, level func(float64) (r, g, b uint8)) string {
	var b strings.Builder
	for _, p := range cores {
		idx := int(p / 100 * 7)
		if idx < 0 {
			idx = 0
		}
		if idx > 7 {
			idx = 7
		}
		r, g, bl := level(p)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r, g, bl)))
		b.WriteString(style.Render(string(sparkBlocks[idx])))
	}
	return b.String()
}
