package probe

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is one parsed line of a durable target log:
// timestamp;avg_ping;min_ping;max_ping;loss_rate
type Record struct {
	Timestamp float64
	AvgPing   int
	MinPing   int
	MaxPing   int
	LossRate  float64
}

// Valid reports whether the record carries timing data
func (r Record) Valid() bool {
	return r.AvgPing != -1
}

// Jitter returns max_ping - min_ping
func (r Record) Jitter() int {
	return r.MaxPing - r.MinPing
}

// Time converts the epoch-seconds timestamp into loc
func (r Record) Time(loc *time.Location) time.Time {
	sec, frac := math.Modf(r.Timestamp)
	t := time.Unix(int64(sec), int64(math.Round(frac*1e9)))
	if loc != nil {
		t = t.In(loc)
	}
	return t
}

// Record renders the sample as a durable log line. Missing timings become -1.
func (s Sample) Record() string {
	return FormatRecord(Record{
		Timestamp: epochSeconds(s.Timestamp),
		AvgPing:   s.AvgPing(),
		MinPing:   s.MinPing(),
		MaxPing:   s.MaxPing(),
		LossRate:  s.LossRate,
	})
}

// FormatRecord renders r without a line terminator
func FormatRecord(r Record) string {
	return fmt.Sprintf("%s;%d;%d;%d;%s",
		formatFloat(r.Timestamp), r.AvgPing, r.MinPing, r.MaxPing, formatFloat(r.LossRate))
}

// ParseRecord parses one log line. Lines that do not have exactly five
// fields, or whose fields do not parse, are rejected.
func ParseRecord(line string) (Record, error) {
	parts := strings.Split(strings.TrimSpace(line), ";")
	if len(parts) != 5 {
		return Record{}, fmt.Errorf("expected 5 fields, got %d", len(parts))
	}

	var r Record
	var err error

	if r.Timestamp, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return Record{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	if math.IsNaN(r.Timestamp) || math.IsInf(r.Timestamp, 0) {
		return Record{}, fmt.Errorf("invalid timestamp %q", parts[0])
	}
	if r.AvgPing, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return Record{}, fmt.Errorf("invalid avg_ping: %w", err)
	}
	if r.MinPing, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
		return Record{}, fmt.Errorf("invalid min_ping: %w", err)
	}
	if r.MaxPing, err = strconv.Atoi(strings.TrimSpace(parts[3])); err != nil {
		return Record{}, fmt.Errorf("invalid max_ping: %w", err)
	}
	if r.LossRate, err = strconv.ParseFloat(strings.TrimSpace(parts[4]), 64); err != nil {
		return Record{}, fmt.Errorf("invalid loss_rate: %w", err)
	}
	if math.IsNaN(r.LossRate) || math.IsInf(r.LossRate, 0) {
		return Record{}, fmt.Errorf("invalid loss_rate %q", parts[4])
	}

	return r, nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// formatFloat prints the shortest representation and keeps a decimal point
// on integral values, so 0 is written as 0.0
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
