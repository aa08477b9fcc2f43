package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // Purple
	ColorSecondary = lipgloss.Color("#06B6D4") // Cyan
	ColorSuccess   = lipgloss.Color("#10B981") // Green
	ColorWarning   = lipgloss.Color("#F59E0B") // Yellow
	ColorDanger    = lipgloss.Color("#EF4444") // Red
	ColorMuted     = lipgloss.Color("#6B7280") // Gray
	ColorBgLight   = lipgloss.Color("#374151")
	ColorText      = lipgloss.Color("#F9FAFB")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Background(ColorPrimary).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 1)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Width(10)

	MutedStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	LatencyGoodStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	LatencyWarnStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	LatencyBadStyle  = lipgloss.NewStyle().Foreground(ColorDanger)
	LossStyle        = lipgloss.NewStyle().Foreground(ColorDanger)
	SuccessStyle     = lipgloss.NewStyle().Foreground(ColorSuccess)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 1)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorDanger).
			Background(lipgloss.Color("#3F1F1F")).
			Padding(0, 1)
)

// LatencyStyle returns the appropriate style based on latency value
func LatencyStyle(ms float64) lipgloss.Style {
	switch {
	case ms < 0:
		return LossStyle
	case ms < 50:
		return LatencyGoodStyle
	case ms < 200:
		return LatencyWarnStyle
	default:
		return LatencyBadStyle
	}
}

// JitterStyle colors jitter against the scale that saturates the heatmap
func JitterStyle(ms float64) lipgloss.Style {
	switch {
	case ms < 1:
		return LatencyGoodStyle
	case ms < 12:
		return LatencyWarnStyle
	default:
		return LatencyBadStyle
	}
}

// LossPercentStyle returns the appropriate style based on loss percentage
func LossPercentStyle(pct float64) lipgloss.Style {
	switch {
	case pct == 0:
		return SuccessStyle
	case pct < 5:
		return LatencyWarnStyle
	default:
		return LossStyle
	}
}

// FormatLatency formats a latency value with color; negative means unreachable
func FormatLatency(ms float64) string {
	if ms < 0 {
		return LossStyle.Render("--")
	}
	return LatencyStyle(ms).Render(formatMs(ms))
}

// FormatJitter formats a jitter value with color
func FormatJitter(ms float64) string {
	return JitterStyle(ms).Render(formatMs(ms))
}

// FormatLoss formats a loss percentage with color
func FormatLoss(pct float64) string {
	return LossPercentStyle(pct).Render(fmt.Sprintf("%.1f%%", pct))
}

func formatMs(ms float64) string {
	switch {
	case ms < 1:
		return "<1ms"
	case ms < 10:
		return fmt.Sprintf("%.1fms", ms)
	default:
		return fmt.Sprintf("%dms", int(ms))
	}
}
