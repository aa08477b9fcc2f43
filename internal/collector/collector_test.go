package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/wellsgz/pingheat/internal/config"
	"github.com/wellsgz/pingheat/internal/probe"
	"github.com/wellsgz/pingheat/internal/storage"
)

type fakeProbe struct {
	name  string
	delay time.Duration
	err   error

	mu    sync.Mutex
	calls []time.Time
}

func (f *fakeProbe) Name() string { return f.name }
func (f *fakeProbe) Host() string { return f.name }
func (f *fakeProbe) Type() string { return "fake" }

func (f *fakeProbe) Execute(ctx context.Context) (probe.Sample, error) {
	start := time.Now()
	f.mu.Lock()
	f.calls = append(f.calls, start)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}

	if f.err != nil {
		return probe.Sample{Target: f.name, Timestamp: start, Error: f.err.Error()}, fmt.Errorf("%w: %v", probe.ErrLaunch, f.err)
	}
	lost := 0
	return probe.Sample{Target: f.name, Timestamp: start, RTT: &probe.RTT{Min: 10, Avg: 12, Max: 15}, Lost: &lost, Pings: 5}, nil
}

func (f *fakeProbe) callTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.calls...)
}

type fakeMirror struct {
	mu      sync.Mutex
	samples int
	closed  bool
}

func (m *fakeMirror) Write(probe.Sample) error {
	m.mu.Lock()
	m.samples++
	m.mu.Unlock()
	return nil
}

func (m *fakeMirror) Fetch(string, time.Time, time.Time) ([]storage.DataPoint, error) {
	return nil, nil
}

func (m *fakeMirror) Close() error {
	m.closed = true
	return nil
}

func testConfig(interval time.Duration, hosts ...string) *config.Config {
	cfg := &config.Config{
		Global: config.GlobalConfig{
			Interval: interval,
			Timeout:  interval / 2,
			Pings:    5,
			DataDir:  "/data",
		},
		Storage: config.StorageConfig{FlushThreshold: 1 << 20},
	}
	for _, h := range hosts {
		cfg.Targets = append(cfg.Targets, config.Target{Name: h, Host: h, Probe: "fake", Interval: interval})
	}
	return cfg
}

func factoryFor(probes map[string]*fakeProbe) ProbeFactory {
	return func(t config.Target, _ config.GlobalConfig) (probe.Probe, error) {
		p, ok := probes[t.Name]
		if !ok {
			return nil, errors.New("no fake for " + t.Name)
		}
		return p, nil
	}
}

func waitForCalls(t *testing.T, p *fakeProbe, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(p.callTimes()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("probe %s called %d times, want %d", p.name, len(p.callTimes()), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readLines(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
}

func TestCollectorWritesEveryIteration(t *testing.T) {
	fs := afero.NewMemMapFs()
	probes := map[string]*fakeProbe{
		"1.1.1.1": {name: "1.1.1.1"},
		"8.8.8.8": {name: "8.8.8.8"},
	}
	mirror := &fakeMirror{}
	mem := storage.NewMemoryBuffer(400)

	c, err := NewCollector(testConfig(10*time.Millisecond, "1.1.1.1", "8.8.8.8"), mem,
		WithFs(fs), WithProbeFactory(factoryFor(probes)), WithMirror(mirror))
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	c.Start()
	waitForCalls(t, probes["1.1.1.1"], 5)
	waitForCalls(t, probes["8.8.8.8"], 5)
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	totalIterations := 0
	for _, st := range c.Status() {
		// Nothing reached the threshold, so everything was written by Stop
		lines := readLines(t, fs, st.LogPath)
		if len(lines) != st.Iterations {
			t.Errorf("%s: %d lines written, %d iterations", st.Target.Name, len(lines), st.Iterations)
		}
		if st.Writer.Flushes != 1 || st.Writer.BufferedRecords != 0 {
			t.Errorf("%s: writer stats = %+v, want a single flush on stop", st.Target.Name, st.Writer)
		}
		for _, l := range lines {
			rec, err := probe.ParseRecord(l)
			if err != nil || rec.AvgPing != 12 || rec.Jitter() != 5 {
				t.Errorf("%s: bad record %q (%v)", st.Target.Name, l, err)
			}
		}
		if got := mem.Series(st.Target.Name).Len(); got != st.Iterations {
			t.Errorf("%s: ring holds %d samples, want %d", st.Target.Name, got, st.Iterations)
		}
		totalIterations += st.Iterations
	}

	if mirror.samples != totalIterations || !mirror.closed {
		t.Errorf("mirror got %d samples (closed %v), want %d", mirror.samples, mirror.closed, totalIterations)
	}

	if got := c.Status()[0].LogPath; got != storage.LogPath("/data", "1.1.1.1") {
		t.Errorf("LogPath = %q", got)
	}
}

func TestCollectorLaunchFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	probes := map[string]*fakeProbe{"down": {name: "down", err: errors.New("ping: not found")}}

	c, err := NewCollector(testConfig(10*time.Millisecond, "down"), storage.NewMemoryBuffer(10),
		WithFs(fs), WithProbeFactory(factoryFor(probes)))
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	c.Start()
	waitForCalls(t, probes["down"], 3)
	c.Stop()

	st := c.Status()[0]
	if st.LaunchFailures != st.Iterations || st.Iterations < 3 {
		t.Errorf("status = %+v, want every iteration counted as a launch failure", st)
	}
	for _, l := range readLines(t, fs, st.LogPath) {
		rec, err := probe.ParseRecord(l)
		if err != nil || rec.Valid() || rec.MinPing != -1 || rec.MaxPing != -1 {
			t.Errorf("launch failure record %q, want sentinel timings", l)
		}
	}
}

func TestCollectorIntervalIsNotShortened(t *testing.T) {
	const interval = 40 * time.Millisecond
	p := &fakeProbe{name: "slow", delay: 15 * time.Millisecond}

	cfg := testConfig(interval, "slow")
	c, err := NewCollector(cfg, storage.NewMemoryBuffer(10), WithFs(afero.NewMemMapFs()), WithProbeFactory(factoryFor(map[string]*fakeProbe{"slow": p})))
	if err != nil {
		t.Fatal(err)
	}

	c.Start()
	waitForCalls(t, p, 4)
	c.Stop()

	calls := p.callTimes()
	for i := 1; i < len(calls); i++ {
		if gap := calls[i].Sub(calls[i-1]); gap < interval-2*time.Millisecond {
			t.Errorf("iteration %d started %s after the previous one, want at least %s", i, gap, interval)
		}
	}
}

func TestCollectorSubscribe(t *testing.T) {
	p := &fakeProbe{name: "a"}
	c, err := NewCollector(testConfig(10*time.Millisecond, "a"), storage.NewMemoryBuffer(10),
		WithFs(afero.NewMemMapFs()), WithProbeFactory(factoryFor(map[string]*fakeProbe{"a": p})))
	if err != nil {
		t.Fatal(err)
	}

	ch := c.Subscribe()
	c.Start()

	select {
	case s := <-ch:
		if s.Target != "a" || s.AvgPing() != 12 {
			t.Errorf("received %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no sample broadcast")
	}

	c.Stop()
	for range ch {
		// drain until Stop closes the channel
	}

	// Stop is idempotent
	if err := c.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestCollectorUnsubscribe(t *testing.T) {
	c, err := NewCollector(testConfig(time.Second, "a"), storage.NewMemoryBuffer(10),
		WithFs(afero.NewMemMapFs()), WithProbeFactory(factoryFor(map[string]*fakeProbe{"a": {name: "a"}})))
	if err != nil {
		t.Fatal(err)
	}

	ch := c.Subscribe()
	c.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel still open after Unsubscribe")
	}
}

func TestNewCollectorErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	// 8.8.8.8 and 8_8_8_8 map to the same log file
	cfg := testConfig(time.Second, "8.8.8.8", "8_8_8_8")
	probes := map[string]*fakeProbe{"8.8.8.8": {name: "8.8.8.8"}, "8_8_8_8": {name: "8_8_8_8"}}
	if _, err := NewCollector(cfg, storage.NewMemoryBuffer(10), WithFs(fs), WithProbeFactory(factoryFor(probes))); err == nil {
		t.Error("NewCollector() accepted targets sharing a log file")
	}

	if _, err := NewCollector(testConfig(time.Second, "x"), storage.NewMemoryBuffer(10), WithFs(fs)); err == nil {
		t.Error("NewCollector() accepted an unknown probe type")
	}

	if _, err := NewCollector(testConfig(time.Second, "a"), storage.NewMemoryBuffer(10),
		WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())), WithProbeFactory(factoryFor(map[string]*fakeProbe{"a": {name: "a"}}))); err == nil {
		t.Error("NewCollector() succeeded without a writable data directory")
	}
}

func TestNewProbe(t *testing.T) {
	global := config.GlobalConfig{Timeout: time.Second, Pings: 5}
	tests := []struct {
		probe string
		want  string
	}{
		{"", "exec"},
		{"exec", "exec"},
		{"icmp", "icmp"},
		{"tcp", "tcp"},
	}
	for _, tt := range tests {
		p, err := NewProbe(config.Target{Name: "t", Host: "example.com", Probe: tt.probe, Port: 443}, global)
		if err != nil || p.Type() != tt.want {
			t.Errorf("NewProbe(%q) = %v, %v; want type %s", tt.probe, p, err, tt.want)
		}
	}
}

func TestDisplayNames(t *testing.T) {
	cfg := testConfig(time.Second)
	cfg.Targets = []config.Target{{Name: "Google DNS", Host: "8.8.8.8", Probe: "fake", Interval: time.Second}}
	c, err := NewCollector(cfg, storage.NewMemoryBuffer(10), WithFs(afero.NewMemMapFs()),
		WithProbeFactory(factoryFor(map[string]*fakeProbe{"Google DNS": {name: "Google DNS"}})))
	if err != nil {
		t.Fatal(err)
	}
	if got := c.DisplayNames()["8_8_8_8"]; got != "Google DNS" {
		t.Errorf("DisplayNames()[8_8_8_8] = %q", got)
	}
}

// slowPing stands in for a ping command that needs took to print its summary.
// It finishes at once when the deadline leaves enough room, otherwise it runs
// until the context kills it.
type slowPing struct {
	took time.Duration
}

func (s slowPing) Run(ctx context.Context, _ string, _ []string, w io.Writer) error {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < s.took {
		<-ctx.Done()
		return ctx.Err()
	}
	io.WriteString(w, "--- 1.1.1.1 ping statistics ---\n"+
		"5 packets transmitted, 5 received, 0% packet loss, time 4005ms\n"+
		"rtt min/avg/max/mdev = 9.812/10.466/11.502/0.612 ms\n")
	return nil
}

func TestDefaultConfigExecBurstCompletes(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/c.yaml", []byte("targets:\n  - host: 1.1.1.1\n"), 0644)
	cfg, err := config.LoadFs(fs, "/c.yaml")
	if err != nil {
		t.Fatalf("LoadFs() error = %v", err)
	}

	p, err := NewProbe(cfg.Targets[0], cfg.Global)
	if err != nil {
		t.Fatal(err)
	}
	execProbe, ok := p.(*probe.ExecProbe)
	if !ok {
		t.Fatalf("default probe is %T, want *probe.ExecProbe", p)
	}
	execProbe.SetExecutor(slowPing{took: 4 * time.Second})

	s, err := execProbe.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !s.Reachable() || s.Error != "" {
		t.Errorf("sample = %+v, want a reachable burst", s)
	}
	if got := s.Record(); strings.Contains(got, ";-1;") {
		t.Errorf("record %q marks the host unreachable", got)
	}
}

func TestNewCollectorCapsTimeoutPerTarget(t *testing.T) {
	cfg := testConfig(5*time.Second, "slow", "fast")
	cfg.Global.Timeout = 3 * time.Second
	cfg.Targets[1].Interval = 2 * time.Second

	got := make(map[string]time.Duration)
	factory := func(target config.Target, _ config.GlobalConfig) (probe.Probe, error) {
		got[target.Name] = target.Timeout
		return &fakeProbe{name: target.Name}, nil
	}
	if _, err := NewCollector(cfg, storage.NewMemoryBuffer(10), WithFs(afero.NewMemMapFs()), WithProbeFactory(factory)); err != nil {
		t.Fatal(err)
	}

	want := map[string]time.Duration{"slow": 3 * time.Second, "fast": 1800 * time.Millisecond}
	for name, w := range want {
		if got[name] != w {
			t.Errorf("%s timeout = %v, want %v", name, got[name], w)
		}
	}
}
