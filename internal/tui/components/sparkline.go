package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline block characters from lowest to highest
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var (
	sparkNormalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	sparkLossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// Floats converts a ring buffer series for plotting
func Floats(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

// tail keeps the last width values
func tail(values []float64, width int) []float64 {
	if len(values) > width {
		return values[len(values)-width:]
	}
	return values
}

// Sparkline draws the last width values scaled to their own range.
// Negative values are unreachable samples and drawn as ×.
func Sparkline(values []float64, width int) string {
	values = tail(values, width)

	min, max := -1.0, -1.0
	for _, v := range values {
		if v < 0 {
			continue
		}
		if min < 0 || v < min {
			min = v
		}
		if max < 0 || v > max {
			max = v
		}
	}
	if min < 0 {
		min, max = 0, 1
	}
	return render(values, width, min, max)
}

// SparklineWithRange draws the last width values on a fixed scale, e.g.
// 0-100 for loss percentages
func SparklineWithRange(values []float64, width int, min, max float64) string {
	return render(tail(values, width), width, min, max)
}

func render(values []float64, width int, min, max float64) string {
	if max <= min {
		max = min + 1
	}

	var result strings.Builder
	for _, v := range values {
		if v < 0 {
			result.WriteString(sparkLossStyle.Render("×"))
			continue
		}
		scaled := (v - min) / (max - min)
		idx := int(scaled * 7)
		if idx > 7 {
			idx = 7
		}
		if idx < 0 {
			idx = 0
		}
		result.WriteString(sparkNormalStyle.Render(string(sparkBlocks[idx])))
	}

	if padding := width - len(values); padding > 0 {
		result.WriteString(strings.Repeat(" ", padding))
	}
	return result.String()
}
