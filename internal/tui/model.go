package tui

import (
	"github.com/wellsgz/pingheat/internal/collector"
	"github.com/wellsgz/pingheat/internal/config"
	"github.com/wellsgz/pingheat/internal/heatmap"
	"github.com/wellsgz/pingheat/internal/probe"
	"github.com/wellsgz/pingheat/internal/storage"
	"github.com/wellsgz/pingheat/internal/sysstat"
)

// View represents the current view mode
type View int

const (
	ListView View = iota
	DetailView
	HeatmapView
)

// Source is the live data the dashboard reads
type Source interface {
	GetTargets() []config.Target
	GetStats(targetName string) *storage.Stats
	Series(targetName string) storage.Series
	DisplayNames() map[string]string
}

var _ Source = (*collector.Collector)(nil)

// Model holds all application state
type Model struct {
	currentView View
	selectedIdx int

	targets []TargetState
	names   map[string]string // log identity -> target name

	source  Source
	samples <-chan probe.Sample
	store   *heatmap.Store
	cpu     *sysstat.CPUStats

	// Heatmap selection and the tree generation it was made against
	heat    ViewState
	heatOK  bool
	heatGen uint64

	cores []float64

	width  int
	height int
	ready  bool

	apiAddr string

	err error
}

// TargetState holds state for a single target
type TargetState struct {
	Config   config.Target
	Identity string
	Stats    *storage.Stats
	Series   storage.Series
}

// Options carries the optional data sources of the dashboard
type Options struct {
	Samples <-chan probe.Sample
	Store   *heatmap.Store
	CPU     *sysstat.CPUStats
	APIAddr string
}

// NewModel creates a new Model reading from src
func NewModel(src Source, opts Options) Model {
	targets := make([]TargetState, len(src.GetTargets()))
	for i, t := range src.GetTargets() {
		targets[i] = TargetState{
			Config:   t,
			Identity: storage.LogIdentity(t.Host),
		}
	}

	return Model{
		currentView: ListView,
		targets:     targets,
		names:       src.DisplayNames(),
		source:      src,
		samples:     opts.Samples,
		store:       opts.Store,
		cpu:         opts.CPU,
		apiAddr:     opts.APIAddr,
	}
}

// SelectedTarget returns the currently selected target
func (m Model) SelectedTarget() *TargetState {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.targets) {
		return &m.targets[m.selectedIdx]
	}
	return nil
}

// displayName returns the target name of a log identity
func (m Model) displayName(identity string) string {
	if name, ok := m.names[identity]; ok {
		return name
	}
	return identity
}

// refreshTarget reloads one target's stats and ring buffers
func (m *Model) refreshTarget(name string) {
	for i := range m.targets {
		if m.targets[i].Config.Name == name {
			m.targets[i].Stats = m.source.GetStats(name)
			m.targets[i].Series = m.source.Series(name)
			return
		}
	}
}

// refreshAll reloads every target, the CPU averages and, when a newer
// tree was published, revalidates the heatmap selection
func (m *Model) refreshAll() {
	for i := range m.targets {
		name := m.targets[i].Config.Name
		m.targets[i].Stats = m.source.GetStats(name)
		m.targets[i].Series = m.source.Series(name)
	}

	if m.cpu != nil {
		m.cores = m.cpu.Snapshot().Cores
	}

	if m.store != nil {
		tree, gen := m.store.Snapshot()
		if gen != m.heatGen || !m.heatOK {
			m.heatGen = gen
			if m.heatOK {
				if _, ok := tree.Series(m.heat.Identity); !ok {
					m.heatOK = false
				}
			}
			if !m.heatOK {
				m.heat, m.heatOK = m.initialHeatView(tree)
			}
		}
	}
}

// initialHeatView starts at the selected target's latest month, falling
// back to the first series in the tree
func (m Model) initialHeatView(tree *heatmap.Tree) (ViewState, bool) {
	if t := m.SelectedTarget(); t != nil {
		if v, ok := LatestView(tree, t.Identity); ok {
			return v, true
		}
	}
	return FirstView(tree)
}

// openHeatmap switches to the heatmap of the selected target
func (m Model) openHeatmap() Model {
	m.currentView = HeatmapView
	if m.store == nil {
		return m
	}
	tree, gen := m.store.Snapshot()
	m.heatGen = gen
	if t := m.SelectedTarget(); t != nil {
		if v, ok := LatestView(tree, t.Identity); ok {
			m.heat, m.heatOK = v, true
			return m
		}
	}
	if !m.heatOK {
		m.heat, m.heatOK = FirstView(tree)
	}
	return m
}

// navigateHeat applies a navigation step against the current tree
func (m Model) navigateHeat(step func(ViewState, *heatmap.Tree) ViewState) Model {
	if m.store == nil || !m.heatOK {
		return m
	}
	m.heat = step(m.heat, m.store.Load())
	return m
}
