package probe

import (
	"context"
	"errors"
	"time"
)

// ErrLaunch marks a probe that could not be started at all
var ErrLaunch = errors.New("probe launch failed")

// RTT holds the round-trip times of one burst in whole milliseconds
type RTT struct {
	Min int `json:"min_ms"`
	Avg int `json:"avg_ms"`
	Max int `json:"max_ms"`
}

// Sample is the result of one probe burst. Missing measurements stay nil
// and only become -1 sentinels when the sample is serialized.
type Sample struct {
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
	RTT       *RTT      `json:"rtt,omitempty"`
	Lost      *int      `json:"lost,omitempty"`
	Pings     int       `json:"pings"`
	LossRate  float64   `json:"loss_rate"`
	Error     string    `json:"error,omitempty"`
}

// AvgPing returns the average RTT, or -1 when no timing was parsed
func (s Sample) AvgPing() int {
	if s.RTT == nil {
		return -1
	}
	return s.RTT.Avg
}

// MinPing returns the minimum RTT, or -1 when no timing was parsed
func (s Sample) MinPing() int {
	if s.RTT == nil {
		return -1
	}
	return s.RTT.Min
}

// MaxPing returns the maximum RTT, or -1 when no timing was parsed
func (s Sample) MaxPing() int {
	if s.RTT == nil {
		return -1
	}
	return s.RTT.Max
}

// Jitter returns max-min for the burst
func (s Sample) Jitter() int {
	return s.MaxPing() - s.MinPing()
}

// LossPercent returns the loss rate scaled to 0-100
func (s Sample) LossPercent() float64 {
	return s.LossRate * 100
}

// Reachable reports whether the burst produced timing data
func (s Sample) Reachable() bool {
	return s.RTT != nil
}

// Probe defines the interface for all probe types
type Probe interface {
	// Name returns the target name for this probe
	Name() string

	// Host returns the target host
	Host() string

	// Type returns the probe type (exec, icmp, tcp)
	Type() string

	// Execute runs one burst. The error is non-nil only when the probe
	// could not be started; unreachable targets yield a Sample without RTT.
	Execute(ctx context.Context) (Sample, error)
}

// BaseProbe provides common fields for all probe implementations
type BaseProbe struct {
	TargetName string
	TargetHost string
	Timeout    time.Duration
	Pings      int // echo requests per burst
}

// Name returns the target name
func (b *BaseProbe) Name() string {
	return b.TargetName
}

// Host returns the target host
func (b *BaseProbe) Host() string {
	return b.TargetHost
}

// NewSample builds a Sample from parsed burst data. The loss rate is
// lost/pings when anything was lost, otherwise 0.
func (b *BaseProbe) NewSample(start time.Time, parsed Parsed) Sample {
	s := Sample{
		Target:    b.TargetName,
		Timestamp: start,
		RTT:       parsed.RTT,
		Lost:      parsed.Lost,
		Pings:     b.Pings,
	}

	if parsed.Lost != nil && *parsed.Lost > 0 && b.Pings > 0 {
		s.LossRate = float64(*parsed.Lost) / float64(b.Pings)
		if s.LossRate > 1 {
			s.LossRate = 1
		}
	}
	return s
}
