package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wellsgz/pingheat/internal/storage"
	"github.com/wellsgz/pingheat/internal/sysstat"
	"github.com/wellsgz/pingheat/internal/tui/components"
)

// View renders the current view
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.currentView {
	case DetailView:
		return m.renderDetailView()
	case HeatmapView:
		return m.renderHeatmapView()
	default:
		return m.renderListView()
	}
}

// renderListView renders the main list view
func (m Model) renderListView() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(m.renderError())
		b.WriteString("\n")
	}

	b.WriteString(m.renderTable())
	b.WriteString("\n\n")

	if cpu := m.renderCPU(); cpu != "" {
		b.WriteString(cpu)
		b.WriteString("\n")
	}

	b.WriteString(renderHelp([][2]string{
		{"↑/↓", "navigate"},
		{"Enter", "details"},
		{"h", "heatmap"},
		{"r", "refresh"},
		{"q", "quit"},
	}))

	return b.String()
}

func (m Model) renderError() string {
	return ErrorStyle.Width(m.width - 2).Render("Error: " + m.err.Error())
}

// renderHeader renders the application header
func (m Model) renderHeader() string {
	title := TitleStyle.Render(" pingheat ")
	subtitle := SubtitleStyle.Render("Ping, jitter and loss monitor")
	left := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", subtitle)

	if m.apiAddr == "" {
		return left
	}

	apiInfo := MutedStyle.Render(fmt.Sprintf("API: %s", m.apiAddr))
	spacing := m.width - lipgloss.Width(left) - lipgloss.Width(apiInfo) - 2
	if spacing < 1 {
		spacing = 1
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, left, strings.Repeat(" ", spacing), apiInfo)
}

// renderTable renders the targets table
func (m Model) renderTable() string {
	columns := components.AdaptiveColumns(m.width)
	table := components.NewTable(columns)

	rows := []string{table.RenderHeader(), table.RenderSeparator()}
	for i, target := range m.targets {
		rows = append(rows, table.RenderRow(m.targetRow(target, columns), i == m.selectedIdx))
	}
	return strings.Join(rows, "\n")
}

// targetRow renders the cells of one target
func (m Model) targetRow(target TargetState, columns []components.Column) []string {
	name := target.Config.Name
	if w := columns[components.ColTarget].Width; len(name) > w {
		name = name[:w-1] + "…"
	}

	last, avg, jitter, loss := -1.0, -1.0, 0.0, 0.0
	if s := target.Stats; s != nil && s.SampleCount > 0 {
		last, jitter, loss = s.LastMs, s.JitterMs, s.LossPct
		if s.MaxMs > 0 || s.AvgMs > 0 {
			avg = s.AvgMs
		}
	}

	sparkWidth := columns[components.ColPing].Width
	return []string{
		name,
		FormatLatency(last),
		FormatLatency(avg),
		FormatJitter(jitter),
		FormatLoss(loss),
		components.Sparkline(components.Floats(target.Series.Ping), sparkWidth),
		components.SparklineWithRange(target.Series.LossPct, sparkWidth, 0, 100),
	}
}

// renderCPU renders the rolling per-core CPU usage
func (m Model) renderCPU() string {
	if len(m.cores) == 0 {
		return ""
	}
	avg := 0.0
	for _, c := range m.cores {
		avg += c
	}
	avg /= float64(len(m.cores))

	return fmt.Sprintf(" %s %s %s",
		MutedStyle.Render("CPU"),
		components.CPUBars(m.cores, sysstat.Level),
		MutedStyle.Render(fmt.Sprintf("%.0f%%", avg)))
}

// renderDetailView renders the live series of the selected target
func (m Model) renderDetailView() string {
	target := m.SelectedTarget()
	if target == nil {
		return "No target selected"
	}

	var b strings.Builder

	header := TitleStyle.Render(fmt.Sprintf(" %s (%s) - %s ",
		target.Config.Name, target.Config.Host, strings.ToUpper(target.Config.Probe)))
	b.WriteString(m.withHint(header, "[Esc] back"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(m.renderError())
		b.WriteString("\n\n")
	}

	if target.Stats != nil {
		b.WriteString(renderStats(target.Stats))
		b.WriteString("\n")
	}

	width := m.width - 14
	if width > 120 {
		width = 120
	}
	if width < 10 {
		width = 10
	}

	series := target.Series
	b.WriteString(SectionStyle.Render(fmt.Sprintf("Last %d samples", series.Len())))
	b.WriteString("\n")
	b.WriteString("  " + LabelStyle.Render("Ping:") + components.Sparkline(components.Floats(series.Ping), width) + "\n")
	b.WriteString("  " + LabelStyle.Render("Jitter:") + components.Sparkline(components.Floats(series.Jitter), width) + "\n")
	b.WriteString("  " + LabelStyle.Render("Loss:") + components.SparklineWithRange(series.LossPct, width, 0, 100) + "\n")
	b.WriteString("\n")

	b.WriteString(renderHelp([][2]string{
		{"Esc", "back"},
		{"↑/↓", "targets"},
		{"h", "heatmap"},
		{"r", "refresh"},
		{"q", "quit"},
	}))

	return b.String()
}

// renderStats renders the statistics section from storage.Stats
func renderStats(stats *storage.Stats) string {
	var b strings.Builder

	b.WriteString(SectionStyle.Render("Statistics"))
	b.WriteString(fmt.Sprintf(" (%d samples)\n", stats.SampleCount))

	b.WriteString("  ")
	b.WriteString(LabelStyle.Render("Min:") + FormatLatency(stats.MinMs) + "  ")
	b.WriteString(LabelStyle.Render("Max:") + FormatLatency(stats.MaxMs) + "  ")
	b.WriteString(LabelStyle.Render("Avg:") + FormatLatency(stats.AvgMs))
	b.WriteString("\n")

	b.WriteString("  ")
	b.WriteString(LabelStyle.Render("Median:") + FormatLatency(stats.MedianMs) + "  ")
	b.WriteString(LabelStyle.Render("P95:") + FormatLatency(stats.P95Ms) + "  ")
	b.WriteString(LabelStyle.Render("StdDev:") + fmt.Sprintf("%.2fms", stats.StdDevMs))
	b.WriteString("\n")

	b.WriteString("  ")
	b.WriteString(LabelStyle.Render("Jitter:") + FormatJitter(stats.JitterMs) + "  ")
	b.WriteString(LabelStyle.Render("Loss:") + FormatLoss(stats.LossPct))
	b.WriteString("\n")

	return b.String()
}

// renderHeatmapView renders the calendar of the selected month
func (m Model) renderHeatmapView() string {
	var b strings.Builder

	if m.store == nil || !m.heatOK {
		b.WriteString(m.withHint(TitleStyle.Render(" Heatmap "), "[Esc] back"))
		b.WriteString("\n\n")
		b.WriteString(MutedStyle.Italic(true).Render("  No heatmap data yet"))
		b.WriteString("\n")
		return b.String()
	}

	title := TitleStyle.Render(" " + m.heat.Title(m.displayName(m.heat.Identity)) + " ")
	b.WriteString(m.withHint(title, "[Esc] back"))
	b.WriteString("\n\n")

	month, ok := m.heat.Lookup(m.store.Load())
	if !ok {
		b.WriteString(MutedStyle.Italic(true).Render("  No data for this month"))
		b.WriteString("\n")
	} else {
		b.WriteString(components.Calendar(month))
	}
	b.WriteString("\n")
	b.WriteString(components.CalendarLegend())
	b.WriteString("\n\n")

	b.WriteString(renderHelp([][2]string{
		{"←/→", "month"},
		{"Tab/↑/↓", "target"},
		{"l", "latest"},
		{"Esc", "back"},
		{"q", "quit"},
	}))

	return b.String()
}

// withHint right-aligns a muted hint next to a header
func (m Model) withHint(header, hint string) string {
	h := MutedStyle.Render(hint)
	spacing := m.width - lipgloss.Width(header) - lipgloss.Width(h) - 2
	if spacing < 1 {
		spacing = 1
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, header, strings.Repeat(" ", spacing), h)
}

func renderHelp(keys [][2]string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, HelpKeyStyle.Render(k[0])+HelpStyle.Render(" "+k[1]))
	}
	return HelpStyle.Render(strings.Join(parts, "  "))
}
