package storage

import (
	"time"

	"github.com/wellsgz/pingheat/internal/probe"
)

// DataPoint represents a single consolidated row of the RRD mirror
type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Latency   float64   `json:"latency"` // avg ping in ms, NaN when unreachable or no data
	Jitter    float64   `json:"jitter"`  // max-min in ms, NaN when unreachable or no data
	Loss      float64   `json:"loss"`    // loss rate 0.0-1.0, NaN for no data
}

// Series is a point-in-time copy of a target's four live ring buffers.
// All slices have the same length and are ordered oldest first.
type Series struct {
	Target  string      `json:"target"`
	Times   []time.Time `json:"times"`
	Ping    []int       `json:"ping"`    // avg ping, -1 when unreachable
	Jitter  []int       `json:"jitter"`  // max-min of the burst
	LossPct []float64   `json:"loss_pct"` // 0-100
}

// Len returns the number of samples in the series
func (s Series) Len() int {
	return len(s.Times)
}

// Stats represents statistics for a target over its live window
type Stats struct {
	Target      string    `json:"target"`
	MinMs       float64   `json:"min_ms"`
	MaxMs       float64   `json:"max_ms"`
	AvgMs       float64   `json:"avg_ms"`
	MedianMs    float64   `json:"median_ms"`
	P95Ms       float64   `json:"p95_ms"`
	StdDevMs    float64   `json:"stddev_ms"`
	JitterMs    float64   `json:"jitter_ms"`
	LossPct     float64   `json:"loss_pct"`
	SampleCount int       `json:"sample_count"`
	LastMs      float64   `json:"last_ms"`
	LastUpdate  time.Time `json:"last_update"`
}

// Mirror defines the interface for an optional persistent copy of the samples
// kept alongside the durable text logs
type Mirror interface {
	// Write stores one probe sample
	Write(sample probe.Sample) error

	// Fetch retrieves data points for a target within a time range
	Fetch(targetName string, from, to time.Time) ([]DataPoint, error)

	// Close releases storage resources
	Close() error
}

// LiveStore defines the interface for the in-memory ring buffers read by renderers
type LiveStore interface {
	// Append records a sample, evicting the oldest entry once the cap is reached
	Append(sample probe.Sample)

	// Series returns a copy of a target's ring buffers
	Series(targetName string) Series

	// GetStats returns current statistics for a target
	GetStats(targetName string) *Stats

	// GetAllStats returns statistics for all targets
	GetAllStats() map[string]*Stats
}
