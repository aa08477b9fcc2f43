package storage

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ziutek/rrd"

	"github.com/wellsgz/pingheat/internal/probe"
)

// Data source names, in file order
const (
	dsLatency = "latency"
	dsJitter  = "jitter"
	dsLoss    = "loss"
)

// RRDOptions configures the RRD mirror
type RRDOptions struct {
	Dir         string
	Step        time.Duration // primary data point interval, normally the probe interval
	Retention   string        // "resolution:span,..." e.g. "10s:1d,1m:7d,1h:90d"
	XFF         float64
	Aggregation string // average, min, max or last
}

// RRDStorage mirrors samples into one RRD file per target with latency,
// jitter and loss data sources
type RRDStorage struct {
	dir         string
	step        time.Duration
	heartbeat   time.Duration
	xff         float64
	aggregation string // consolidation function: AVERAGE, MIN, MAX or LAST

	// archives ordered finest resolution first
	archives []archive

	updaters map[string]*rrd.Updater
	mu       sync.Mutex
}

// archive is one round robin archive: each row consolidates steps primary
// points and the archive keeps rows of them
type archive struct {
	steps      int
	rows       int
	resolution time.Duration
}

// span is how far back the archive reaches
func (a archive) span() time.Duration {
	return time.Duration(a.rows) * a.resolution
}

// NewRRDStorage creates the mirror directory and parses the retention policy
func NewRRDStorage(opts RRDOptions) (*RRDStorage, error) {
	if opts.Step < time.Second {
		return nil, fmt.Errorf("rrd step %s is below the one second resolution of RRD", opts.Step)
	}

	archives, err := parseArchives(opts.Retention, opts.Step)
	if err != nil {
		return nil, fmt.Errorf("failed to parse retention: %w", err)
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create rrd directory: %w", err)
	}

	cf := strings.ToUpper(opts.Aggregation)
	if cf == "" {
		cf = "AVERAGE"
	}

	return &RRDStorage{
		dir:         opts.Dir,
		step:        opts.Step,
		heartbeat:   opts.Step * 3,
		xff:         opts.XFF,
		aggregation: cf,
		archives:    archives,
		updaters:    make(map[string]*rrd.Updater),
	}, nil
}

// Write mirrors one sample. Unreachable samples store NaN latency and jitter
// so the archives show a gap instead of a zero.
func (s *RRDStorage) Write(sample probe.Sample) error {
	u, err := s.updater(sample.Target)
	if err != nil {
		return err
	}

	latency, jitter := rrdValues(sample)
	if err := u.Update(sample.Timestamp, latency, jitter, sample.LossRate); err != nil {
		return fmt.Errorf("failed to update %s: %w", s.filename(sample.Target), err)
	}
	return nil
}

// updater returns the target's updater, creating the file on first use
func (s *RRDStorage) updater(target string) (*rrd.Updater, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.updaters[target]; ok {
		return u, nil
	}

	filename := s.filename(target)
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if err := s.create(filename); err != nil {
			return nil, fmt.Errorf("failed to create RRD file: %w", err)
		}
	}

	u := rrd.NewUpdater(filename)
	s.updaters[target] = u
	return u, nil
}

// rrdValues returns the latency and jitter data source values for a sample
func rrdValues(sample probe.Sample) (float64, float64) {
	if !sample.Reachable() {
		return math.NaN(), math.NaN()
	}
	return float64(sample.AvgPing()), float64(sample.Jitter())
}

// Fetch returns the consolidated points of a target between from and to,
// read from the finest archive that still covers the range
func (s *RRDStorage) Fetch(targetName string, from, to time.Time) ([]DataPoint, error) {
	filename := s.filename(targetName)
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return []DataPoint{}, nil
	}

	res, err := rrd.Fetch(filename, s.aggregation, from, to, s.resolutionFor(to.Sub(from)))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data: %w", err)
	}
	defer res.FreeValues()

	index := make(map[string]int, len(res.DsNames))
	for i, name := range res.DsNames {
		index[name] = i
	}
	for _, name := range []string{dsLatency, dsJitter, dsLoss} {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%s has no %q data source", filename, name)
		}
	}

	points := make([]DataPoint, 0, res.RowCnt)
	for row := 0; row < res.RowCnt; row++ {
		points = append(points, DataPoint{
			Timestamp: res.Start.Add(time.Duration(row) * res.Step),
			Latency:   res.ValueAt(index[dsLatency], row),
			Jitter:    res.ValueAt(index[dsJitter], row),
			Loss:      res.ValueAt(index[dsLoss], row),
		})
	}
	return points, nil
}

// resolutionFor picks the finest archive whose span covers duration, or the
// coarsest one when none does
func (s *RRDStorage) resolutionFor(duration time.Duration) time.Duration {
	if len(s.archives) == 0 {
		return s.step
	}
	for _, a := range s.archives {
		if a.span() >= duration {
			return a.resolution
		}
	}
	return s.archives[len(s.archives)-1].resolution
}

// Close forgets every updater; librrd keeps no file open between updates
func (s *RRDStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updaters = make(map[string]*rrd.Updater)
	return nil
}

// create writes a new RRD file with one archive per retention entry
func (s *RRDStorage) create(filename string) error {
	c := rrd.NewCreator(filename, time.Now().Add(-s.step), uint(s.step.Seconds()))

	for _, a := range s.archives {
		c.RRA(s.aggregation, s.xff, a.steps, a.rows)
	}

	heartbeat := int(s.heartbeat.Seconds())
	c.DS(dsLatency, "GAUGE", heartbeat, 0, "U") // ms
	c.DS(dsJitter, "GAUGE", heartbeat, 0, "U")  // ms
	c.DS(dsLoss, "GAUGE", heartbeat, 0, 1)      // burst loss rate

	return c.Create(false)
}

// filename returns the RRD file path for a target
func (s *RRDStorage) filename(targetName string) string {
	return filepath.Join(s.dir, sanitizeName(targetName)+".rrd")
}

// parseArchives turns "10s:1d,1m:7d,1h:90d" into archives relative to step,
// ordered finest resolution first
func parseArchives(retention string, step time.Duration) ([]archive, error) {
	var archives []archive

	for _, part := range strings.Split(retention, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		res, span, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid retention format: %s", part)
		}

		resolution, err := parseDuration(res)
		if err != nil {
			return nil, fmt.Errorf("invalid resolution in %s: %w", part, err)
		}
		length, err := parseDuration(span)
		if err != nil {
			return nil, fmt.Errorf("invalid duration in %s: %w", part, err)
		}

		steps := int(resolution / step)
		if steps < 1 {
			steps = 1
		}
		a := archive{steps: steps, resolution: time.Duration(steps) * step}
		a.rows = int(length / a.resolution)
		if a.rows < 1 {
			a.rows = 1
		}
		archives = append(archives, a)
	}

	if len(archives) == 0 {
		return nil, fmt.Errorf("no valid retentions found")
	}

	sort.SliceStable(archives, func(i, j int) bool { return archives[i].steps < archives[j].steps })
	return archives, nil
}

// dayUnits extends time.ParseDuration with day, week and year suffixes
var dayUnits = map[byte]time.Duration{
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
	'y': 365 * 24 * time.Hour,
}

// parseDuration parses "10s", "1m", "1h" as well as "7d", "2w" and "1y"
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if unit, ok := dayUnits[s[len(s)-1]]; ok {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * unit, nil
	}

	return time.ParseDuration(s)
}
