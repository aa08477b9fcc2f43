package heatmap

import (
	"image/color"
	"testing"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		hour *HourAggregate
		want Severity
	}{
		{"absent", nil, Severity{Kind: NoData}},
		{"too few samples", &HourAggregate{AverageJitter: 50, AveragePacketlossRate: 1, SampleCount: 49, ValidCount: 49}, Severity{Kind: NoData}},
		{"perfect", &HourAggregate{AverageJitter: 0.9, SampleCount: 50, ValidCount: 50}, Severity{Kind: Perfect}},
		{"jitter only", &HourAggregate{AverageJitter: 3, SampleCount: 60, ValidCount: 60}, Severity{Kind: Healthy, Value: 25}},
		{"loss only", &HourAggregate{AveragePacketlossRate: 0.01, SampleCount: 60, ValidCount: 60}, Severity{Kind: Healthy, Value: 20}},
		{"saturated", &HourAggregate{AverageJitter: 12, AveragePacketlossRate: 0.05, SampleCount: 60, ValidCount: 60}, Severity{Kind: Healthy, Value: 100}},
		{"nothing measured", &HourAggregate{SampleCount: 60, NoTiming: true}, Severity{Kind: NoData}},
		{"all lost", &HourAggregate{AveragePacketlossRate: 1, SampleCount: 60, NoTiming: true}, Severity{Kind: Healthy, Value: 100}},
		{"valid count unset, jitter", &HourAggregate{AverageJitter: 6, SampleCount: 60}, Severity{Kind: Healthy, Value: 50}},
		{"valid count unset, quiet", &HourAggregate{AverageJitter: 0.5, SampleCount: 60}, Severity{Kind: Perfect}},
		{"valid count unset, zero", &HourAggregate{SampleCount: 60}, Severity{Kind: Perfect}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.hour)
			if got.Kind != tt.want.Kind || !almostEqual(got.Value, tt.want.Value) {
				t.Errorf("Score() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

// rank orders severities so that worse is larger
func rank(s Severity) float64 {
	switch s.Kind {
	case Perfect:
		return -1
	case Healthy:
		return s.Value
	default:
		return -2
	}
}

func TestScoreMonotonic(t *testing.T) {
	jitters := []float64{0, 0.5, 0.99, 1, 2, 6, 11.9, 12, 30}
	losses := []float64{0, 0.001, 0.01, 0.03, 0.05, 0.2, 1}

	for _, count := range []int{50, 120, 720} {
		for _, loss := range losses {
			prev := -3.0
			for _, jitter := range jitters {
				r := rank(Score(&HourAggregate{AverageJitter: jitter, AveragePacketlossRate: loss, SampleCount: count, ValidCount: count}))
				if r < prev {
					t.Errorf("score decreased as jitter rose to %v (loss %v, count %d)", jitter, loss, count)
				}
				prev = r
			}
		}
		for _, jitter := range jitters {
			prev := -3.0
			for _, loss := range losses {
				r := rank(Score(&HourAggregate{AverageJitter: jitter, AveragePacketlossRate: loss, SampleCount: count, ValidCount: count}))
				if r < prev {
					t.Errorf("score decreased as loss rose to %v (jitter %v, count %d)", loss, jitter, count)
				}
				prev = r
			}
		}
	}

	for count := 0; count < MinSamples; count++ {
		s := Score(&HourAggregate{AverageJitter: 99, AveragePacketlossRate: 1, SampleCount: count, ValidCount: count})
		if s.Kind != NoData {
			t.Errorf("Score(count %d) = %v, want NoData", count, s.Kind)
		}
	}
}

func TestColor(t *testing.T) {
	tests := []struct {
		name string
		sev  Severity
		want color.RGBA
	}{
		{"no data", Severity{Kind: NoData}, color.RGBA{0, 0, 0, 255}},
		{"perfect", Severity{Kind: Perfect}, color.RGBA{0, 255, 0, 255}},
		{"healthy zero", Severity{Kind: Healthy, Value: 0}, color.RGBA{0, 220, 0, 255}},
		{"healthy forty", Severity{Kind: Healthy, Value: 40}, color.RGBA{102, 132, 0, 255}},
		{"healthy full", Severity{Kind: Healthy, Value: 100}, color.RGBA{255, 0, 0, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Color(tt.sev); got != tt.want {
				t.Errorf("Color(%+v) = %v, want %v", tt.sev, got, tt.want)
			}
		})
	}

	if got := Hex(color.RGBA{128, 110, 0, 255}); got != "#806e00" {
		t.Errorf("Hex() = %q, want #806e00", got)
	}
}

func TestKindString(t *testing.T) {
	if NoData.String() != "no_data" || Perfect.String() != "perfect" || Healthy.String() != "healthy" {
		t.Errorf("Kind strings = %s, %s, %s", NoData, Perfect, Healthy)
	}
}
