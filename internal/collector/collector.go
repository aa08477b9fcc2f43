package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/wellsgz/pingheat/internal/config"
	"github.com/wellsgz/pingheat/internal/logging"
	"github.com/wellsgz/pingheat/internal/logwriter"
	"github.com/wellsgz/pingheat/internal/probe"
	"github.com/wellsgz/pingheat/internal/storage"
)

// launchLogInterval limits how often repeated launch failures are logged per target
const launchLogInterval = time.Minute

// ProbeFactory builds the probe for a target
type ProbeFactory func(target config.Target, global config.GlobalConfig) (probe.Probe, error)

// Option configures a Collector
type Option func(*Collector)

// WithFs sets the filesystem the target logs are written to
func WithFs(fs afero.Fs) Option {
	return func(c *Collector) { c.fs = fs }
}

// WithMirror enables an additional persistent copy of every sample
func WithMirror(m storage.Mirror) Option {
	return func(c *Collector) { c.mirror = m }
}

// WithProbeFactory replaces the default probe construction
func WithProbeFactory(f ProbeFactory) Option {
	return func(c *Collector) { c.newProbe = f }
}

// targetLoop is the state owned by one target's goroutine
type targetLoop struct {
	target  config.Target
	probe   probe.Probe
	writer  *logwriter.Writer
	limiter *rate.Limiter

	mu             sync.Mutex
	iterations     int
	launchFailures int
	lastSample     *probe.Sample
	writerStats    logwriter.Stats // copied after each write; the writer itself is loop-owned
}

// TargetStatus reports the progress of one target loop
type TargetStatus struct {
	Target         config.Target   `json:"target"`
	LogPath        string          `json:"log_path"`
	Iterations     int             `json:"iterations"`
	LaunchFailures int             `json:"launch_failures"`
	Writer         logwriter.Stats `json:"writer"`
	LastSample     *probe.Sample   `json:"last_sample,omitempty"`
}

// Collector runs one probe loop per target and fans samples out to the
// durable logs, the live ring buffers and subscribers
type Collector struct {
	config   *config.Config
	fs       afero.Fs
	memory   *storage.MemoryBuffer
	mirror   storage.Mirror
	newProbe ProbeFactory

	loops []*targetLoop

	// Event broadcasting
	subscribers map[chan probe.Sample]struct{}
	subMu       sync.RWMutex

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// NewProbe builds the default probe for a target. The target's timeout bounds
// each burst, falling back to global.timeout when unset.
func NewProbe(target config.Target, global config.GlobalConfig) (probe.Probe, error) {
	timeout := target.Timeout
	if timeout <= 0 {
		timeout = global.Timeout
	}
	switch target.Probe {
	case "", "exec":
		return probe.NewExecProbe(target.Name, target.Host, timeout, global.Pings), nil
	case "icmp":
		return probe.NewICMPProbe(target.Name, target.Host, timeout, global.Pings), nil
	case "tcp":
		return probe.NewTCPProbe(target.Name, target.Host, target.Port, timeout, global.Pings), nil
	default:
		return nil, fmt.Errorf("unknown probe type %q", target.Probe)
	}
}

// NewCollector creates a collector with one probe and log writer per target
func NewCollector(cfg *config.Config, mem *storage.MemoryBuffer, opts ...Option) (*Collector, error) {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		config:      cfg,
		fs:          afero.NewOsFs(),
		memory:      mem,
		newProbe:    NewProbe,
		subscribers: make(map[chan probe.Sample]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.fs.MkdirAll(cfg.Global.DataDir, 0755); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	paths := make(map[string]string, len(cfg.Targets))
	for _, target := range cfg.Targets {
		if target.Interval <= 0 {
			target.Interval = cfg.Global.Interval
		}
		target.Timeout = cfg.TargetTimeout(target)
		p, err := c.newProbe(target, cfg.Global)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create probe for %q: %w", target.Name, err)
		}

		path := storage.LogPath(cfg.Global.DataDir, target.Host)
		if other, dup := paths[path]; dup {
			cancel()
			return nil, fmt.Errorf("targets %q and %q would share log file %s", other, target.Name, path)
		}
		paths[path] = target.Name

		w := logwriter.New(c.fs, path, cfg.Storage.FlushThreshold)
		if cfg.Storage.MaxRetained > 0 {
			w.SetMaxRetained(cfg.Storage.MaxRetained)
		}

		c.loops = append(c.loops, &targetLoop{
			target:  target,
			probe:   p,
			writer:  w,
			limiter: rate.NewLimiter(rate.Every(launchLogInterval), 1),
		})
		log.Printf("[Collector] Created %s probe for %s (%s) every %s with %d pings, logging to %s",
			p.Type(), target.Name, target.Host, target.Interval, cfg.Global.Pings, path)
		if p.Type() == "exec" && target.Timeout < time.Duration(cfg.Global.Pings-1)*time.Second {
			log.Printf("[Collector] Warning: %s bursts are cut off after %s, shorter than %d pings one second apart",
				target.Name, target.Timeout, cfg.Global.Pings)
		}
	}

	return c, nil
}

// Start launches one loop per target
func (c *Collector) Start() {
	log.Printf("[Collector] Starting %d probe loops", len(c.loops))

	for _, l := range c.loops {
		c.wg.Add(1)
		go c.run(l)
	}
}

// Stop cancels every loop, waits for them to exit, then flushes and closes
// every log writer. It is safe to call more than once.
func (c *Collector) Stop() error {
	c.stopOnce.Do(func() {
		c.cancel()
		c.wg.Wait()

		var errs []error
		for _, l := range c.loops {
			pending := l.writer.Stats().BufferedRecords
			err := l.writer.Close()
			logging.Flush(l.target.Name, l.writer.Path(), pending, err)
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to flush %s: %w", l.target.Name, err))
			}
			l.mu.Lock()
			l.writerStats = l.writer.Stats()
			l.mu.Unlock()
		}

		if c.mirror != nil {
			if err := c.mirror.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close mirror: %w", err))
			}
		}

		// Close all subscriber channels
		c.subMu.Lock()
		for ch := range c.subscribers {
			close(ch)
			delete(c.subscribers, ch)
		}
		c.subMu.Unlock()

		c.stopErr = errors.Join(errs...)
		log.Println("[Collector] Stopped")
	})
	return c.stopErr
}

// run probes one target until the collector is stopped. Each iteration
// starts ping_delay after the previous one started, or immediately when
// the previous one overran.
func (c *Collector) run(l *targetLoop) {
	defer c.wg.Done()

	for {
		if c.ctx.Err() != nil {
			return
		}

		start := time.Now()
		c.runProbe(l)

		wait := l.target.Interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runProbe executes a single burst and records its sample
func (c *Collector) runProbe(l *targetLoop) {
	ctx, cancel := context.WithTimeout(c.ctx, l.target.Timeout)
	sample, err := l.probe.Execute(ctx)
	cancel()

	// A burst cut short by shutdown is not a measurement
	if c.ctx.Err() != nil {
		return
	}

	l.mu.Lock()
	l.iterations++
	if err != nil {
		l.launchFailures++
	}
	failures := l.launchFailures
	l.mu.Unlock()

	if err != nil && l.limiter.Allow() {
		logging.Error("Collector", fmt.Sprintf("Probe for %s could not start (%d failures so far)", l.target.Name, failures), err)
	}

	if werr := l.writer.Write(sample.Record()); werr != nil {
		logging.Flush(l.target.Name, l.writer.Path(), l.writer.Stats().BufferedRecords, werr)
	}

	c.memory.Append(sample)

	if c.mirror != nil {
		if err := c.mirror.Write(sample); err != nil {
			log.Printf("[Collector] Failed to write to mirror for %s: %v", sample.Target, err)
		}
	}

	l.mu.Lock()
	l.lastSample = &sample
	l.writerStats = l.writer.Stats()
	l.mu.Unlock()

	c.broadcast(sample)
	logging.Sample(sample)
}

// Subscribe returns a channel that receives every sample
func (c *Collector) Subscribe() <-chan probe.Sample {
	ch := make(chan probe.Sample, 100) // Buffered to prevent blocking

	c.subMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber
func (c *Collector) Unsubscribe(ch <-chan probe.Sample) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for subCh := range c.subscribers {
		if subCh == ch {
			close(subCh)
			delete(c.subscribers, subCh)
			return
		}
	}
}

// broadcast hands a sample to every subscriber without blocking
func (c *Collector) broadcast(sample probe.Sample) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for ch := range c.subscribers {
		select {
		case ch <- sample:
		default:
			// Channel buffer full, skip to prevent blocking
		}
	}
}

// Status returns the progress of every target loop, in configuration order
func (c *Collector) Status() []TargetStatus {
	out := make([]TargetStatus, 0, len(c.loops))
	for _, l := range c.loops {
		l.mu.Lock()
		st := TargetStatus{
			Target:         l.target,
			LogPath:        l.writer.Path(),
			Iterations:     l.iterations,
			LaunchFailures: l.launchFailures,
			LastSample:     l.lastSample,
			Writer:         l.writerStats,
		}
		l.mu.Unlock()
		out = append(out, st)
	}
	return out
}

// GetStats returns current statistics for a target
func (c *Collector) GetStats(targetName string) *storage.Stats {
	return c.memory.GetStats(targetName)
}

// GetAllStats returns statistics for all targets
func (c *Collector) GetAllStats() map[string]*storage.Stats {
	return c.memory.GetAllStats()
}

// Series returns a copy of a target's live ring buffers
func (c *Collector) Series(targetName string) storage.Series {
	return c.memory.Series(targetName)
}

// GetHistory returns the last N ping values for a target
func (c *Collector) GetHistory(targetName string, count int) []float64 {
	return c.memory.GetHistory(targetName, count)
}

// GetTargets returns all target configurations
func (c *Collector) GetTargets() []config.Target {
	return c.config.Targets
}

// DisplayNames maps each log identity to its target name
func (c *Collector) DisplayNames() map[string]string {
	names := make(map[string]string, len(c.config.Targets))
	for _, t := range c.config.Targets {
		names[storage.LogIdentity(t.Host)] = t.Name
	}
	return names
}

// FetchHistory retrieves historical data from the mirror, if enabled
func (c *Collector) FetchHistory(targetName string, from, to time.Time) ([]storage.DataPoint, error) {
	if c.mirror == nil {
		return []storage.DataPoint{}, nil
	}
	return c.mirror.Fetch(targetName, from, to)
}
