package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/wellsgz/pingheat/internal/heatmap"
	"github.com/wellsgz/pingheat/internal/probe"
)

// FinalBucketPolicy decides what happens to the hour still open at end of file
type FinalBucketPolicy int

const (
	// DropFinal discards the in-progress hour; it is picked up by the next
	// replay once a later record closes it
	DropFinal FinalBucketPolicy = iota
	// FlushFinal inserts the in-progress hour as if the file had closed it
	FlushFinal
)

func (p FinalBucketPolicy) String() string {
	if p == FlushFinal {
		return "flush"
	}
	return "drop"
}

// ParseFinalBucketPolicy accepts "drop" or "flush"
func ParseFinalBucketPolicy(s string) (FinalBucketPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return DropFinal, nil
	case "flush":
		return FlushFinal, nil
	default:
		return DropFinal, fmt.Errorf("invalid final bucket policy %q (must be drop or flush)", s)
	}
}

// Result counts what one replay did
type Result struct {
	Lines    int `json:"lines"`
	Parsed   int `json:"parsed"`
	Skipped  int `json:"skipped"`
	Buckets  int `json:"buckets"`
	Rejected int `json:"rejected"` // buckets the tree refused
}

// Add accumulates other into r
func (r *Result) Add(other Result) {
	r.Lines += other.Lines
	r.Parsed += other.Parsed
	r.Skipped += other.Skipped
	r.Buckets += other.Buckets
	r.Rejected += other.Rejected
}

// Aggregator rebuilds hour aggregates from durable target logs
type Aggregator struct {
	location *time.Location
	final    FinalBucketPolicy
}

// NewAggregator creates an aggregator computing hour boundaries in loc
// (local time when nil)
func NewAggregator(loc *time.Location, final FinalBucketPolicy) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{location: loc, final: final}
}

// bucket accumulates the records of one hour
type bucket struct {
	coord       heatmap.Coord
	samples     int
	invalid     int
	jitterSum   float64
	lossRateSum float64
}

func (b *bucket) add(r probe.Record) {
	if r.Valid() {
		b.jitterSum += float64(r.Jitter())
	} else {
		b.invalid++
	}
	b.lossRateSum += r.LossRate
	b.samples++
}

// aggregate reduces the bucket. When no record carried timing data the
// jitter average is 0 and NoTiming is set.
func (b *bucket) aggregate() heatmap.HourAggregate {
	agg := heatmap.HourAggregate{
		SampleCount: b.samples,
		ValidCount:  b.samples - b.invalid,
		NoTiming:    b.samples > 0 && b.invalid == b.samples,
	}
	if b.samples > 0 {
		agg.AveragePacketlossRate = b.lossRateSum / float64(b.samples)
	}
	if agg.ValidCount > 0 {
		agg.AverageJitter = b.jitterSum / float64(agg.ValidCount)
	}
	return agg
}

// Replay streams one log into tree under identity. Malformed lines are
// skipped; only read errors abort the scan.
func (a *Aggregator) Replay(r io.Reader, identity string, tree *heatmap.Tree) (Result, error) {
	var res Result
	var current *bucket

	flush := func(b *bucket) {
		if err := tree.Insert(identity, b.coord, b.aggregate()); err != nil {
			res.Rejected++
			log.Printf("[Replay] %v", err)
			return
		}
		res.Buckets++
	}

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			res.Lines++
			if rec, perr := probe.ParseRecord(line); perr != nil {
				res.Skipped++
			} else {
				res.Parsed++
				coord := heatmap.CoordOf(rec.Time(a.location))
				if current != nil && coord != current.coord {
					flush(current)
					current = nil
				}
				if current == nil {
					current = &bucket{coord: coord}
				}
				current.add(rec)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("failed to read log %s: %w", identity, err)
		}
	}

	if current != nil && a.final == FlushFinal {
		flush(current)
	}
	return res, nil
}
