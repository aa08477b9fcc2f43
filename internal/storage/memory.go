package storage

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/wellsgz/pingheat/internal/probe"
)

// DefaultElementCount is the live window length per target
const DefaultElementCount = 400

// MemoryBuffer implements LiveStore with one fixed-size ring per target
type MemoryBuffer struct {
	bufferSize int
	targets    map[string]*targetBuffer
	mu         sync.RWMutex
}

// targetBuffer holds the four parallel series for a single target
type targetBuffer struct {
	points          []point
	head            int  // Next write position
	count           int  // Number of valid points
	lastUpdate      time.Time
	firstSuccessIdx int  // Index of first reachable sample (-1 if none yet)
	hasFirstSuccess bool // Whether we've had a reachable sample
	mu              sync.RWMutex
}

// point is one entry of the time, ping, jitter and loss% series
type point struct {
	timestamp time.Time
	ping      int // -1 when unreachable
	jitter    int
	lossPct   float64
}

// NewMemoryBuffer creates a new in-memory buffer holding at most
// elementCount samples per target
func NewMemoryBuffer(elementCount int) *MemoryBuffer {
	if elementCount <= 0 {
		elementCount = DefaultElementCount
	}
	return &MemoryBuffer{
		bufferSize: elementCount,
		targets:    make(map[string]*targetBuffer),
	}
}

// Cap returns the per-target capacity
func (m *MemoryBuffer) Cap() int {
	return m.bufferSize
}

func (m *MemoryBuffer) target(name string) *targetBuffer {
	m.mu.RLock()
	tb, exists := m.targets[name]
	m.mu.RUnlock()
	if exists {
		return tb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Double-check after acquiring write lock
	if tb, exists = m.targets[name]; !exists {
		tb = &targetBuffer{
			points:          make([]point, m.bufferSize),
			firstSuccessIdx: -1,
		}
		m.targets[name] = tb
	}
	return tb
}

// Append stores a sample in the target's ring, overwriting the oldest
// entry of all four series once the buffer is full
func (m *MemoryBuffer) Append(s probe.Sample) {
	tb := m.target(s.Target)

	tb.mu.Lock()
	defer tb.mu.Unlock()

	currentIdx := tb.head
	overwroteFirst := tb.count == m.bufferSize && tb.hasFirstSuccess && currentIdx == tb.firstSuccessIdx

	tb.points[currentIdx] = point{
		timestamp: s.Timestamp,
		ping:      s.AvgPing(),
		jitter:    s.Jitter(),
		lossPct:   s.LossPercent(),
	}

	tb.head = (tb.head + 1) % m.bufferSize
	if tb.count < m.bufferSize {
		tb.count++
	}

	if overwroteFirst {
		// Find the next reachable sample, oldest first
		tb.firstSuccessIdx = -1
		tb.hasFirstSuccess = false
		for i := 0; i < m.bufferSize; i++ {
			idx := (tb.head + i) % m.bufferSize
			if tb.points[idx].ping >= 0 {
				tb.firstSuccessIdx = idx
				tb.hasFirstSuccess = true
				break
			}
		}
	}
	if !tb.hasFirstSuccess && s.Reachable() {
		tb.firstSuccessIdx = currentIdx
		tb.hasFirstSuccess = true
	}
	tb.lastUpdate = s.Timestamp
}

// Series returns a copy of the target's ring buffers, oldest first
func (m *MemoryBuffer) Series(targetName string) Series {
	series := Series{Target: targetName}

	m.mu.RLock()
	tb, exists := m.targets[targetName]
	m.mu.RUnlock()
	if !exists {
		return series
	}

	tb.mu.RLock()
	defer tb.mu.RUnlock()

	series.Times = make([]time.Time, tb.count)
	series.Ping = make([]int, tb.count)
	series.Jitter = make([]int, tb.count)
	series.LossPct = make([]float64, tb.count)

	start := tb.head - tb.count
	if start < 0 {
		start += m.bufferSize
	}
	for i := 0; i < tb.count; i++ {
		p := tb.points[(start+i)%m.bufferSize]
		series.Times[i] = p.timestamp
		series.Ping[i] = p.ping
		series.Jitter[i] = p.jitter
		series.LossPct[i] = p.lossPct
	}
	return series
}

// GetHistory returns the last N ping values for a target (for sparklines)
func (m *MemoryBuffer) GetHistory(targetName string, count int) []float64 {
	s := m.Series(targetName)
	if count <= 0 || count > s.Len() {
		count = s.Len()
	}

	result := make([]float64, count)
	offset := s.Len() - count
	for i := range result {
		result[i] = float64(s.Ping[offset+i])
	}
	return result
}

// Targets returns the names of all targets with at least one sample
func (m *MemoryBuffer) Targets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.targets))
	for name := range m.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStats returns current statistics for a target
func (m *MemoryBuffer) GetStats(targetName string) *Stats {
	m.mu.RLock()
	tb, exists := m.targets[targetName]
	m.mu.RUnlock()

	if !exists {
		return &Stats{Target: targetName}
	}

	tb.mu.RLock()
	defer tb.mu.RUnlock()

	return calculateStats(targetName, tb, m.bufferSize)
}

// GetAllStats returns statistics for all targets
func (m *MemoryBuffer) GetAllStats() map[string]*Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*Stats, len(m.targets))
	for name, tb := range m.targets {
		tb.mu.RLock()
		result[name] = calculateStats(name, tb, m.bufferSize)
		tb.mu.RUnlock()
	}
	return result
}

// calculateStats computes statistics from a target buffer, starting at the
// first reachable sample so a slow start is not reported as total loss.
// Must be called with tb.mu held.
func calculateStats(targetName string, tb *targetBuffer, bufferSize int) *Stats {
	stats := &Stats{
		Target:     targetName,
		LastUpdate: tb.lastUpdate,
	}

	if tb.count == 0 || !tb.hasFirstSuccess {
		return stats
	}

	// Count samples from firstSuccessIdx up to head (exclusive)
	sampleCount := tb.head - tb.firstSuccessIdx
	if sampleCount <= 0 {
		sampleCount += bufferSize
	}
	if sampleCount > tb.count {
		sampleCount = tb.count
	}

	values := make([]float64, 0, sampleCount)
	lossSum := 0.0
	jitterSum := 0.0

	for i := 0; i < sampleCount; i++ {
		p := tb.points[(tb.firstSuccessIdx+i)%bufferSize]
		lossSum += p.lossPct
		if p.ping >= 0 {
			values = append(values, float64(p.ping))
			jitterSum += float64(p.jitter)
		}
	}

	stats.SampleCount = sampleCount
	stats.LossPct = lossSum / float64(sampleCount)

	lastIdx := tb.head - 1
	if lastIdx < 0 {
		lastIdx = bufferSize - 1
	}
	stats.LastMs = float64(tb.points[lastIdx].ping)

	if len(values) == 0 {
		return stats
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	stats.MinMs = sorted[0]
	stats.MaxMs = sorted[len(sorted)-1]
	stats.MedianMs = percentile(sorted, 50)
	stats.P95Ms = percentile(sorted, 95)
	stats.AvgMs = mean(values)
	stats.StdDevMs = stddev(values, stats.AvgMs)
	stats.JitterMs = jitterSum / float64(len(values))

	return stats
}

// percentile calculates the p-th percentile of sorted values
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper {
		return sorted[lower]
	}

	// Linear interpolation
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// mean calculates the arithmetic mean
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev calculates the standard deviation
func stddev(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - avg
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}
