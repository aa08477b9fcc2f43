package sysstat

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

const (
	// Stability is the weight kept from the previous average on each sample
	Stability = 0.92

	// DefaultInterval is how often per-core usage is sampled
	DefaultInterval = 100 * time.Millisecond
)

// SampleFunc returns the busy percentage of every core since the previous call
type SampleFunc func(ctx context.Context) ([]float64, error)

// PerCPU samples per-core utilization with gopsutil
func PerCPU(ctx context.Context) ([]float64, error) {
	return cpu.PercentWithContext(ctx, 0, true)
}

// CPUStats keeps an exponentially weighted average of per-core CPU usage
type CPUStats struct {
	sample   SampleFunc
	interval time.Duration

	mu      sync.RWMutex
	cores   []float64
	updated time.Time
	errors  int
}

// NewCPUStats creates a sampler. A nil sample function uses PerCPU.
func NewCPUStats(sample SampleFunc, interval time.Duration) *CPUStats {
	if sample == nil {
		sample = PerCPU
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &CPUStats{sample: sample, interval: interval}
}

// Update takes one sample and folds it into the rolling average. The first
// sample seeds the average as is.
func (s *CPUStats) Update(ctx context.Context) error {
	current, err := s.sample(ctx)
	if err != nil {
		s.mu.Lock()
		s.errors++
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cores) != len(current) {
		// First sample, or the core count changed
		s.cores = append([]float64(nil), current...)
	} else {
		for i, v := range current {
			s.cores[i] = Stability*s.cores[i] + (1-Stability)*v
		}
	}
	s.updated = time.Now()
	return nil
}

// Run samples until ctx is cancelled
func (s *CPUStats) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Update(ctx); err != nil && ctx.Err() == nil && s.errorCount() == 1 {
			log.Printf("[SysStat] Failed to sample CPU usage: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *CPUStats) errorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors
}

// Snapshot is a point-in-time copy of the averages
type Snapshot struct {
	Cores   []float64 `json:"cores"`
	Average float64   `json:"average"`
	Updated time.Time `json:"updated"`
}

// Snapshot returns a copy of the current per-core averages
func (s *CPUStats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Cores:   append([]float64{}, s.cores...),
		Updated: s.updated,
	}
	for _, v := range s.cores {
		snap.Average += v
	}
	if len(s.cores) > 0 {
		snap.Average /= float64(len(s.cores))
	}
	return snap
}

// Level maps a usage percentage to a green-to-red RGB triple: pure green
// fading toward black up to 50%, then red rising while green falls.
func Level(p float64) (r, g, b uint8) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	g = uint8(math.Round(255 * (1 - p/100)))
	if p > 50 {
		r = uint8(math.Round(255 * (p / 100)))
	}
	return r, g, 0
}
