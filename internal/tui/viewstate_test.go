package tui

import (
	"testing"

	"github.com/wellsgz/pingheat/internal/heatmap"
)

// testTree holds
//
//	a: 2022-06, 2024-02
//	b: 2024-11
//	c: nothing but an aggregate in 2023-03
func testTree(t *testing.T) *heatmap.Tree {
	t.Helper()
	tree := heatmap.NewTree()
	agg := heatmap.HourAggregate{SampleCount: 60, ValidCount: 60}
	inserts := []struct {
		id string
		c  heatmap.Coord
	}{
		{"a", heatmap.Coord{Year: 2022, Month: 6, Day: 1, Hour: 0}},
		{"a", heatmap.Coord{Year: 2024, Month: 2, Day: 29, Hour: 23}},
		{"b", heatmap.Coord{Year: 2024, Month: 11, Day: 5, Hour: 12}},
		{"c", heatmap.Coord{Year: 2023, Month: 3, Day: 10, Hour: 8}},
	}
	for _, in := range inserts {
		if err := tree.Insert(in.id, in.c, agg); err != nil {
			t.Fatal(err)
		}
	}
	return tree
}

func TestLatestView(t *testing.T) {
	tree := testTree(t)

	v, ok := LatestView(tree, "a")
	if !ok || v != (ViewState{"a", 2024, 2}) {
		t.Errorf("LatestView(a) = %+v, %v", v, ok)
	}
	if _, ok := LatestView(tree, "missing"); ok {
		t.Error("LatestView(missing) ok")
	}
	if v, ok := FirstView(tree); !ok || v != (ViewState{"a", 2024, 2}) {
		t.Errorf("FirstView() = %+v, %v", v, ok)
	}
	if _, ok := FirstView(heatmap.NewTree()); ok {
		t.Error("FirstView(empty) ok")
	}
}

func TestMonthNavigation(t *testing.T) {
	tree := testTree(t)

	tests := []struct {
		name string
		from ViewState
		op   func(ViewState, *heatmap.Tree) ViewState
		want ViewState
	}{
		{"next within year", ViewState{"a", 2024, 2}, ViewState.NextMonth, ViewState{"a", 2024, 3}},
		{"next rolls into next present year", ViewState{"a", 2022, 12}, ViewState.NextMonth, ViewState{"a", 2024, 1}},
		{"next stays at last year", ViewState{"a", 2024, 12}, ViewState.NextMonth, ViewState{"a", 2024, 12}},
		{"prev within year", ViewState{"a", 2024, 2}, ViewState.PrevMonth, ViewState{"a", 2024, 1}},
		{"prev rolls into previous present year", ViewState{"a", 2024, 1}, ViewState.PrevMonth, ViewState{"a", 2022, 12}},
		{"prev stays at first year", ViewState{"a", 2022, 1}, ViewState.PrevMonth, ViewState{"a", 2022, 1}},
		{"unknown series stays", ViewState{"zz", 2024, 12}, ViewState.NextMonth, ViewState{"zz", 2024, 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(tt.from, tree); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSeriesNavigation(t *testing.T) {
	tree := testTree(t)

	tests := []struct {
		name string
		from ViewState
		op   func(ViewState, *heatmap.Tree) ViewState
		want ViewState
	}{
		{"next keeps month when year is covered", ViewState{"a", 2024, 2}, ViewState.NextSeries, ViewState{"b", 2024, 2}},
		{"next jumps to latest otherwise", ViewState{"b", 2024, 11}, ViewState.NextSeries, ViewState{"c", 2023, 3}},
		{"next wraps", ViewState{"c", 2023, 3}, ViewState.NextSeries, ViewState{"a", 2024, 2}},
		{"prev wraps", ViewState{"a", 2022, 6}, ViewState.PrevSeries, ViewState{"c", 2023, 3}},
		{"prev keeps month", ViewState{"b", 2024, 7}, ViewState.PrevSeries, ViewState{"a", 2024, 7}},
		{"vanished identity moves forward", ViewState{"bb", 2024, 11}, ViewState.NextSeries, ViewState{"c", 2023, 3}},
		{"vanished identity moves back", ViewState{"bb", 2024, 11}, ViewState.PrevSeries, ViewState{"b", 2024, 11}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(tt.from, tree); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	empty := heatmap.NewTree()
	v := ViewState{"a", 2024, 1}
	if got := v.NextSeries(empty); got != v {
		t.Errorf("NextSeries on empty tree = %+v", got)
	}
}

func TestViewStateLookupAndTitle(t *testing.T) {
	tree := testTree(t)

	m, ok := ViewState{"a", 2024, 2}.Lookup(tree)
	if !ok || m.Days != 29 {
		t.Errorf("Lookup() = %v, %v", m, ok)
	}
	if _, ok := (ViewState{"a", 2023, 2}).Lookup(tree); ok {
		t.Error("Lookup() of a missing year ok")
	}

	if got := (ViewState{"a", 2024, 2}).Title("Google"); got != "Google 2024 February" {
		t.Errorf("Title() = %q", got)
	}
}
