package heatmap

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"
)

// ErrOutOfRange is returned when a coordinate falls outside its calendar bounds
var ErrOutOfRange = errors.New("coordinate out of range")

// HourAggregate is the reduction of every sample recorded in one calendar hour
type HourAggregate struct {
	AverageJitter         float64 `json:"average_jitter"`
	AveragePacketlossRate float64 `json:"average_packetloss_rate"`
	SampleCount           int     `json:"sample_count"`
	ValidCount            int     `json:"valid_count"`         // samples with timing data
	NoTiming              bool    `json:"no_timing,omitempty"` // set when no sample carried timing data
}

// Coord addresses one hour bucket
type Coord struct {
	Year  int
	Month int // 1-12
	Day   int // 1-31
	Hour  int // 0-23
}

// CoordOf returns the bucket containing t, in t's location
func CoordOf(t time.Time) Coord {
	return Coord{Year: t.Year(), Month: int(t.Month()), Day: t.Day(), Hour: t.Hour()}
}

func (c Coord) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:00", c.Year, c.Month, c.Day, c.Hour)
}

// IsLeap applies the Gregorian leap-year rule
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

var monthLengths = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysIn returns the number of days of month (1-12) in year
func DaysIn(year, month int) int {
	if month == 2 && IsLeap(year) {
		return 29
	}
	return monthLengths[month-1]
}

// Day maps hour-of-day to its aggregate. Hours without samples are absent.
type Day map[int]HourAggregate

// Month holds a fixed number of days and a cached color image
type Month struct {
	Number int
	Days   int

	days map[int]Day

	mu    sync.Mutex
	image *image.RGBA
}

// Set stores agg at (day, hour), replacing any previous aggregate.
// The cached image is left untouched until Recompute.
func (m *Month) Set(day, hour int, agg HourAggregate) error {
	if day < 1 || day > m.Days {
		return fmt.Errorf("%w: day %d not in 1..%d", ErrOutOfRange, day, m.Days)
	}
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d not in 0..23", ErrOutOfRange, hour)
	}

	if m.days == nil {
		m.days = make(map[int]Day)
	}
	d, ok := m.days[day]
	if !ok {
		d = make(Day)
		m.days[day] = d
	}
	d[hour] = agg
	return nil
}

// Hour returns the aggregate at (day, hour), if any
func (m *Month) Hour(day, hour int) (HourAggregate, bool) {
	agg, ok := m.days[day][hour]
	return agg, ok
}

// Day returns a copy of the given day's hours
func (m *Month) Day(day int) Day {
	src := m.days[day]
	d := make(Day, len(src))
	for h, agg := range src {
		d[h] = agg
	}
	return d
}

// HasData reports whether any hour of the month has an aggregate
func (m *Month) HasData() bool {
	for _, d := range m.days {
		if len(d) > 0 {
			return true
		}
	}
	return false
}

// Buckets returns the number of hour aggregates stored in the month
func (m *Month) Buckets() int {
	n := 0
	for _, d := range m.days {
		n += len(d)
	}
	return n
}

// Year always carries twelve months sized for that year
type Year struct {
	Number int
	Months [12]Month
}

// NewYear allocates all twelve months of year
func NewYear(number int) *Year {
	y := &Year{Number: number}
	for i := range y.Months {
		y.Months[i].Number = i + 1
		y.Months[i].Days = DaysIn(number, i+1)
	}
	return y
}

// Month returns month n (1-12)
func (y *Year) Month(n int) (*Month, error) {
	if n < 1 || n > 12 {
		return nil, fmt.Errorf("%w: month %d not in 1..12", ErrOutOfRange, n)
	}
	return &y.Months[n-1], nil
}

// Series is the aggregate history of one target log
type Series struct {
	Identity string
	years    map[int]*Year
}

func newSeries(identity string) *Series {
	return &Series{Identity: identity, years: make(map[int]*Year)}
}

// Year returns the given year if any aggregate was inserted for it
func (s *Series) Year(number int) (*Year, bool) {
	y, ok := s.years[number]
	return y, ok
}

// Insert stores agg at c, creating the year on first touch
func (s *Series) Insert(c Coord, agg HourAggregate) error {
	if c.Month < 1 || c.Month > 12 {
		return fmt.Errorf("%w: month %d not in 1..12", ErrOutOfRange, c.Month)
	}
	// Reject before creating anything so a bad coordinate leaves no empty year behind
	if days := DaysIn(c.Year, c.Month); c.Day < 1 || c.Day > days {
		return fmt.Errorf("%w: day %d not in 1..%d", ErrOutOfRange, c.Day, days)
	}
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("%w: hour %d not in 0..23", ErrOutOfRange, c.Hour)
	}

	y, ok := s.years[c.Year]
	if !ok {
		y = NewYear(c.Year)
		s.years[c.Year] = y
	}
	m, _ := y.Month(c.Month)
	return m.Set(c.Day, c.Hour, agg)
}

// Years returns the year numbers present, ascending
func (s *Series) Years() []int {
	years := make([]int, 0, len(s.years))
	for n := range s.years {
		years = append(years, n)
	}
	sort.Ints(years)
	return years
}

// Latest returns the most recent year and month holding data
func (s *Series) Latest() (year, month int, ok bool) {
	years := s.Years()
	for i := len(years) - 1; i >= 0; i-- {
		y := s.years[years[i]]
		for m := 12; m >= 1; m-- {
			if y.Months[m-1].HasData() {
				return y.Number, m, true
			}
		}
	}
	return 0, 0, false
}

// Tree maps target log identities to their series
type Tree struct {
	series map[string]*Series
}

// NewTree creates an empty tree
func NewTree() *Tree {
	return &Tree{series: make(map[string]*Series)}
}

// Insert stores agg for identity at c, creating the series on first touch
func (t *Tree) Insert(identity string, c Coord, agg HourAggregate) error {
	s, ok := t.series[identity]
	if !ok {
		s = newSeries(identity)
	}
	if err := s.Insert(c, agg); err != nil {
		return fmt.Errorf("failed to insert %s at %s: %w", identity, c, err)
	}
	t.series[identity] = s
	return nil
}

// Series returns the series for identity
func (t *Tree) Series(identity string) (*Series, bool) {
	s, ok := t.series[identity]
	return s, ok
}

// Identities returns every series identity, sorted
func (t *Tree) Identities() []string {
	ids := make([]string, 0, len(t.series))
	for id := range t.series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup returns the month of identity's series for (year, month)
func (t *Tree) Lookup(identity string, year, month int) (*Month, bool) {
	s, ok := t.series[identity]
	if !ok {
		return nil, false
	}
	y, ok := s.Year(year)
	if !ok {
		return nil, false
	}
	m, err := y.Month(month)
	if err != nil {
		return nil, false
	}
	return m, true
}
