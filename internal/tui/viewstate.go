package tui

import (
	"fmt"
	"sort"
	"time"

	"github.com/wellsgz/pingheat/internal/heatmap"
)

// ViewState selects the month shown by the heatmap view. Navigation
// returns a new value and never touches the tree.
type ViewState struct {
	Identity string
	Year     int
	Month    int
}

// LatestView selects the most recent month with data of identity's series.
// It returns false when the tree has no such series or it holds no data.
func LatestView(t *heatmap.Tree, identity string) (ViewState, bool) {
	s, ok := t.Series(identity)
	if !ok {
		return ViewState{}, false
	}
	year, month, ok := s.Latest()
	if !ok {
		return ViewState{}, false
	}
	return ViewState{Identity: identity, Year: year, Month: month}, true
}

// FirstView selects the latest month of the first series in the tree
func FirstView(t *heatmap.Tree) (ViewState, bool) {
	for _, id := range t.Identities() {
		if v, ok := LatestView(t, id); ok {
			return v, true
		}
	}
	return ViewState{}, false
}

// Lookup returns the selected month, if the tree holds it
func (v ViewState) Lookup(t *heatmap.Tree) (*heatmap.Month, bool) {
	return t.Lookup(v.Identity, v.Year, v.Month)
}

// NextMonth advances one month. Past December it moves to January of the
// next later year present in the series, or stays put when there is none.
func (v ViewState) NextMonth(t *heatmap.Tree) ViewState {
	if v.Month < 12 {
		v.Month++
		return v
	}
	if y, ok := adjacentYear(t, v.Identity, v.Year, +1); ok {
		v.Year, v.Month = y, 1
	}
	return v
}

// PrevMonth goes back one month. Before January it moves to December of
// the next earlier year present in the series, or stays put when there is none.
func (v ViewState) PrevMonth(t *heatmap.Tree) ViewState {
	if v.Month > 1 {
		v.Month--
		return v
	}
	if y, ok := adjacentYear(t, v.Identity, v.Year, -1); ok {
		v.Year, v.Month = y, 12
	}
	return v
}

// NextSeries cycles to the next series, keeping the selected month when the
// new series covers that year and jumping to its latest month otherwise
func (v ViewState) NextSeries(t *heatmap.Tree) ViewState {
	return v.cycle(t, +1)
}

// PrevSeries cycles to the previous series, see NextSeries
func (v ViewState) PrevSeries(t *heatmap.Tree) ViewState {
	return v.cycle(t, -1)
}

func (v ViewState) cycle(t *heatmap.Tree, step int) ViewState {
	ids := t.Identities()
	if len(ids) == 0 {
		return v
	}

	idx := sort.SearchStrings(ids, v.Identity)
	switch {
	case idx < len(ids) && ids[idx] == v.Identity:
		idx = (idx + step + len(ids)) % len(ids)
	case step < 0:
		// Identity vanished from the tree; idx is where it would sort
		idx = (idx - 1 + len(ids)) % len(ids)
	default:
		idx = idx % len(ids)
	}

	next := ids[idx]
	s, _ := t.Series(next)
	if _, ok := s.Year(v.Year); ok && v.Month >= 1 && v.Month <= 12 {
		return ViewState{Identity: next, Year: v.Year, Month: v.Month}
	}
	if latest, ok := LatestView(t, next); ok {
		return latest
	}
	return ViewState{Identity: next, Year: v.Year, Month: v.Month}
}

// adjacentYear finds the nearest year of the series before (dir < 0) or
// after (dir > 0) year
func adjacentYear(t *heatmap.Tree, identity string, year, dir int) (int, bool) {
	s, ok := t.Series(identity)
	if !ok {
		return 0, false
	}
	years := s.Years()
	if dir > 0 {
		for _, y := range years {
			if y > year {
				return y, true
			}
		}
		return 0, false
	}
	for i := len(years) - 1; i >= 0; i-- {
		if years[i] < year {
			return years[i], true
		}
	}
	return 0, false
}

// Title renders "<name> <year> <Month>"
func (v ViewState) Title(name string) string {
	if v.Month < 1 || v.Month > 12 {
		return fmt.Sprintf("%s %d", name, v.Year)
	}
	return fmt.Sprintf("%s %d %s", name, v.Year, time.Month(v.Month))
}
