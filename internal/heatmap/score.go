package heatmap

import (
	"fmt"
	"image/color"
	"math"
)

// Scoring thresholds
const (
	// MinSamples is the smallest hour that is scored at all
	MinSamples = 50
	// JitterScale is the average jitter in ms that alone saturates severity
	JitterScale = 12.0
	// LossScale is the average loss rate that alone saturates severity
	LossScale = 0.05
)

// Kind classifies a scored hour
type Kind int

const (
	NoData Kind = iota
	Perfect
	Healthy
)

func (k Kind) String() string {
	switch k {
	case NoData:
		return "no_data"
	case Perfect:
		return "perfect"
	case Healthy:
		return "healthy"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Severity is the result of scoring one hour. Value is in [0, 100] and
// only meaningful for Healthy.
type Severity struct {
	Kind  Kind
	Value float64
}

// Score maps an hour aggregate to a severity. A nil aggregate is an absent hour.
func Score(h *HourAggregate) Severity {
	if h == nil || h.SampleCount < MinSamples {
		return Severity{Kind: NoData}
	}
	// Every burst in the hour failed to launch or parse and nothing was lost
	if h.NoTiming && h.AveragePacketlossRate == 0 {
		return Severity{Kind: NoData}
	}
	if h.AveragePacketlossRate == 0 && h.AverageJitter < 1.0 {
		return Severity{Kind: Perfect}
	}

	v := (h.AverageJitter/JitterScale)*100 + (h.AveragePacketlossRate/LossScale)*100
	return Severity{Kind: Healthy, Value: math.Min(v, 100)}
}

var (
	noDataColor  = color.RGBA{0, 0, 0, 255}
	perfectColor = color.RGBA{0, 255, 0, 255}
)

// Color maps a severity to its display color
func Color(s Severity) color.RGBA {
	switch s.Kind {
	case Perfect:
		return perfectColor
	case Healthy:
		return color.RGBA{
			R: channel(s.Value * 2.55),
			G: channel(220 - 2.2*s.Value),
			B: 0,
			A: 255,
		}
	default:
		return noDataColor
	}
}

func channel(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Hex renders c as #rrggbb
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
