package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column
type Column struct {
	Title string
	Width int
	Align lipgloss.Position
}

// Table renders the target list
type Table struct {
	Columns       []Column
	HeaderStyle   lipgloss.Style
	RowStyle      lipgloss.Style
	SelectedStyle lipgloss.Style
}

// NewTable creates a new table with the given columns
func NewTable(columns []Column) *Table {
	return &Table{
		Columns: columns,
		HeaderStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#06B6D4")).
			Padding(0, 1),
		RowStyle: lipgloss.NewStyle().
			Padding(0, 1),
		SelectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(lipgloss.Color("#F9FAFB")).
			Padding(0, 1),
	}
}

// RenderHeader renders the table header
func (t *Table) RenderHeader() string {
	cells := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		cell := lipgloss.NewStyle().
			Width(col.Width).
			Align(col.Align).
			Render(col.Title)
		cells = append(cells, t.HeaderStyle.Render(cell))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

// pad aligns an already styled value within width visible cells
func pad(value string, width int, align lipgloss.Position) string {
	padding := width - lipgloss.Width(value)
	if padding <= 0 {
		return value
	}
	switch align {
	case lipgloss.Right:
		return strings.Repeat(" ", padding) + value
	case lipgloss.Center:
		left := padding / 2
		return strings.Repeat(" ", left) + value + strings.Repeat(" ", padding-left)
	default:
		return value + strings.Repeat(" ", padding)
	}
}

// RenderRow renders a single row
func (t *Table) RenderRow(values []string, selected bool) string {
	style := t.RowStyle
	if selected {
		style = t.SelectedStyle
	}

	cells := make([]string, 0, len(t.Columns))
	for i, col := range t.Columns {
		value := ""
		if i < len(values) {
			value = values[i]
		}
		cells = append(cells, style.Render(pad(value, col.Width, col.Align)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

// RenderSeparator renders a separator line
func (t *Table) RenderSeparator() string {
	totalWidth := 0
	for _, col := range t.Columns {
		totalWidth += col.Width + 2 // +2 for padding
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Render(strings.Repeat("─", totalWidth))
}

// Column indexes of the target list
const (
	ColTarget = iota
	ColLast
	ColAvg
	ColJitter
	ColLoss
	ColPing
	ColLossHistory
)

// AdaptiveColumns lays the target list out for the terminal width. The two
// sparkline columns share whatever the fixed columns leave.
func AdaptiveColumns(width int) []Column {
	const (
		minSparkline = 10
		minTarget    = 12
		numWidth     = 7
	)

	// four numeric columns plus 2 cells of padding on each of seven columns
	remaining := width - 4*numWidth - 14

	targetWidth := remaining / 4
	if targetWidth < minTarget {
		targetWidth = minTarget
	}
	if targetWidth > 20 {
		targetWidth = 20
	}

	sparkWidth := (remaining - targetWidth) / 2
	if sparkWidth < minSparkline {
		sparkWidth = minSparkline
	}

	return []Column{
		{Title: "Target", Width: targetWidth, Align: lipgloss.Left},
		{Title: "Last", Width: numWidth, Align: lipgloss.Right},
		{Title: "Avg", Width: numWidth, Align: lipgloss.Right},
		{Title: "Jitter", Width: numWidth, Align: lipgloss.Right},
		{Title: "Loss", Width: numWidth, Align: lipgloss.Right},
		{Title: "Ping", Width: sparkWidth, Align: lipgloss.Left},
		{Title: "Loss history", Width: sparkWidth, Align: lipgloss.Left},
	}
}
