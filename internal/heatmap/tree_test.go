package heatmap

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNewYearMonthLengths(t *testing.T) {
	tests := []struct {
		year     int
		february int
	}{
		{2000, 29},
		{1900, 28},
		{2024, 29},
		{2023, 28},
		{2100, 28},
	}

	for _, tt := range tests {
		y := NewYear(tt.year)
		if got := y.Months[1].Days; got != tt.february {
			t.Errorf("NewYear(%d) February has %d days, want %d", tt.year, got, tt.february)
		}
	}

	want := [12]int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	y := NewYear(2024)
	for i := range y.Months {
		m := &y.Months[i]
		if m.Number != i+1 || m.Days != want[i] {
			t.Errorf("2024 month %d = {Number %d, Days %d}, want {%d, %d}", i+1, m.Number, m.Days, i+1, want[i])
		}
	}
}

func TestMonthSetBounds(t *testing.T) {
	m := &NewYear(2023).Months[1] // 28 days

	tests := []struct {
		name    string
		day     int
		hour    int
		wantErr bool
	}{
		{"first hour", 1, 0, false},
		{"last hour", 28, 23, false},
		{"day zero", 0, 5, true},
		{"day after end", 29, 5, true},
		{"negative hour", 3, -1, true},
		{"hour 24", 3, 24, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Set(tt.day, tt.hour, HourAggregate{SampleCount: 1})
			if (err != nil) != tt.wantErr {
				t.Errorf("Set(%d, %d) error = %v, wantErr %v", tt.day, tt.hour, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrOutOfRange) {
				t.Errorf("Set(%d, %d) error = %v, want ErrOutOfRange", tt.day, tt.hour, err)
			}
		})
	}
}

func TestTreeInsertAndLookup(t *testing.T) {
	tree := NewTree()
	c := Coord{Year: 2024, Month: 2, Day: 29, Hour: 13}
	agg := HourAggregate{AverageJitter: 2.5, AveragePacketlossRate: 0.01, SampleCount: 60, ValidCount: 58}

	if err := tree.Insert("8_8_8_8", c, agg); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	m, ok := tree.Lookup("8_8_8_8", 2024, 2)
	if !ok {
		t.Fatal("Lookup() found nothing")
	}
	got, ok := m.Hour(29, 13)
	if !ok || got != agg {
		t.Errorf("Hour(29, 13) = %+v, %v; want %+v", got, ok, agg)
	}
	if _, ok := m.Hour(29, 14); ok {
		t.Error("Hour(29, 14) present, want absent")
	}

	// Last write wins
	agg2 := agg
	agg2.SampleCount = 61
	if err := tree.Insert("8_8_8_8", c, agg2); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if got, _ := m.Hour(29, 13); got.SampleCount != 61 {
		t.Errorf("re-insert kept SampleCount %d, want 61", got.SampleCount)
	}
	if m.Buckets() != 1 {
		t.Errorf("Buckets() = %d, want 1", m.Buckets())
	}

	if _, ok := tree.Lookup("8_8_8_8", 2023, 2); ok {
		t.Error("Lookup(2023) found a year that was never inserted")
	}
	if _, ok := tree.Lookup("missing", 2024, 2); ok {
		t.Error("Lookup(missing) found a series")
	}
	if _, ok := tree.Lookup("8_8_8_8", 2024, 13); ok {
		t.Error("Lookup(month 13) succeeded")
	}
}

func TestTreeInsertRejectsWithoutSideEffects(t *testing.T) {
	tree := NewTree()

	err := tree.Insert("x", Coord{Year: 2023, Month: 2, Day: 29, Hour: 0}, HourAggregate{})
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Insert(2023-02-29) error = %v, want ErrOutOfRange", err)
	}
	if ids := tree.Identities(); len(ids) != 0 {
		t.Errorf("Identities() = %v after rejected insert, want none", ids)
	}

	if err := tree.Insert("x", Coord{Year: 2023, Month: 0, Day: 1}, HourAggregate{}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Insert(month 0) error = %v, want ErrOutOfRange", err)
	}
}

func TestSeriesQueries(t *testing.T) {
	tree := NewTree()
	inserts := []Coord{
		{2023, 11, 2, 4},
		{2024, 3, 10, 0},
		{2022, 1, 1, 1},
	}
	for _, c := range inserts {
		if err := tree.Insert("b", c, HourAggregate{SampleCount: 50}); err != nil {
			t.Fatalf("Insert(%s) error = %v", c, err)
		}
	}
	tree.Insert("a", Coord{2024, 1, 1, 0}, HourAggregate{})

	if got, want := tree.Identities(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Identities() = %v, want %v", got, want)
	}

	s, _ := tree.Series("b")
	if got, want := s.Years(), []int{2022, 2023, 2024}; !reflect.DeepEqual(got, want) {
		t.Errorf("Years() = %v, want %v", got, want)
	}

	year, month, ok := s.Latest()
	if !ok || year != 2024 || month != 3 {
		t.Errorf("Latest() = %d, %d, %v; want 2024, 3, true", year, month, ok)
	}

	if _, _, ok := newSeries("empty").Latest(); ok {
		t.Error("Latest() on empty series reported data")
	}
}

func TestCoordOf(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, time.December, 31, 23, 30, 0, 0, time.UTC)

	if got, want := CoordOf(ts), (Coord{2024, 12, 31, 23}); got != want {
		t.Errorf("CoordOf(utc) = %v, want %v", got, want)
	}
	if got, want := CoordOf(ts.In(loc)), (Coord{2025, 1, 1, 1}); got != want {
		t.Errorf("CoordOf(+2) = %v, want %v", got, want)
	}
}

func TestStoreSwap(t *testing.T) {
	s := NewStore()
	if s.Load() == nil || s.Generation() != 0 {
		t.Fatalf("NewStore() = tree %v, generation %d", s.Load(), s.Generation())
	}

	next := NewTree()
	if gen := s.Swap(next); gen != 1 {
		t.Errorf("Swap() = %d, want 1", gen)
	}
	tree, gen := s.Snapshot()
	if tree != next || gen != 1 {
		t.Errorf("Snapshot() = %p, %d; want %p, 1", tree, gen, next)
	}
}
