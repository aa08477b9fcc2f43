package api

import (
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"

	"github.com/wellsgz/pingheat/internal/collector"
	"github.com/wellsgz/pingheat/internal/config"
	"github.com/wellsgz/pingheat/internal/heatmap"
	"github.com/wellsgz/pingheat/internal/replay"
	"github.com/wellsgz/pingheat/internal/storage"
	"github.com/wellsgz/pingheat/internal/sysstat"
)

// Version is reported by the status endpoint
var Version = "dev"

// Handler holds dependencies for API handlers
type Handler struct {
	config    *config.Config
	collector *collector.Collector
	store     *heatmap.Store
	refresher *replay.Refresher
	cpu       *sysstat.CPUStats
	pngCache  *lru.Cache
	startTime time.Time
}

// NewHandler creates a new Handler with the given configuration
func NewHandler(cfg *config.Config) *Handler {
	size := cfg.Heatmap.CacheSize
	if size <= 0 {
		size = 64
	}
	// lru.New only fails for a non-positive size
	cache, _ := lru.New(size)

	return &Handler{
		config:    cfg,
		pngCache:  cache,
		startTime: time.Now(),
	}
}

// SetCollector sets the collector for the handler
func (h *Handler) SetCollector(c *collector.Collector) {
	h.collector = c
}

// SetHeatmap sets the aggregate tree store and, optionally, the refresher
// that rebuilds it
func (h *Handler) SetHeatmap(store *heatmap.Store, refresher *replay.Refresher) {
	h.store = store
	h.refresher = refresher
}

// SetCPU sets the CPU sampler reported by the system endpoint
func (h *Handler) SetCPU(cpu *sysstat.CPUStats) {
	h.cpu = cpu
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"error":   http.StatusText(status),
		"message": message,
	})
}

// findTarget looks a configured target up by name
func (h *Handler) findTarget(name string) (config.Target, bool) {
	for _, t := range h.config.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return config.Target{}, false
}

// StatusResponse represents the response for the status endpoint
type StatusResponse struct {
	Status            string            `json:"status"`
	Uptime            string            `json:"uptime"`
	UptimeSecs        float64           `json:"uptime_secs"`
	TargetCount       int               `json:"target_count"`
	Version           string            `json:"version"`
	HeatmapGeneration uint64            `json:"heatmap_generation"`
	LastReplay        *replay.DirResult `json:"last_replay,omitempty"`
}

// GetStatus returns the current system status
func (h *Handler) GetStatus(c *gin.Context) {
	uptime := time.Since(h.startTime)

	response := StatusResponse{
		Status:      "ok",
		Uptime:      uptime.Round(time.Second).String(),
		UptimeSecs:  uptime.Seconds(),
		TargetCount: len(h.config.Targets),
		Version:     Version,
	}
	if h.store != nil {
		response.HeatmapGeneration = h.store.Generation()
	}
	if h.refresher != nil {
		last := h.refresher.Last()
		response.LastReplay = &last
	}

	c.JSON(http.StatusOK, response)
}

// TargetResponse represents a monitoring target in API responses
type TargetResponse struct {
	Name      string                  `json:"name"`
	Host      string                  `json:"host"`
	Identity  string                  `json:"identity"`
	Color     string                  `json:"color,omitempty"`
	Interval  string                  `json:"interval"`
	Port      int                     `json:"port,omitempty"`
	ProbeType string                  `json:"probe_type"`
	Stats     *storage.Stats          `json:"stats,omitempty"`
	Status    *collector.TargetStatus `json:"status,omitempty"`
}

func newTargetResponse(t config.Target) TargetResponse {
	return TargetResponse{
		Name:      t.Name,
		Host:      t.Host,
		Identity:  storage.LogIdentity(t.Host),
		Color:     t.Color,
		Interval:  t.Interval.String(),
		Port:      t.Port,
		ProbeType: t.Probe,
	}
}

// GetTargets returns the list of all monitoring targets
func (h *Handler) GetTargets(c *gin.Context) {
	targets := make([]TargetResponse, len(h.config.Targets))

	var allStats map[string]*storage.Stats
	if h.collector != nil {
		allStats = h.collector.GetAllStats()
	}

	for i, t := range h.config.Targets {
		targets[i] = newTargetResponse(t)
		if allStats != nil {
			targets[i].Stats = allStats[t.Name]
		}
	}

	c.JSON(http.StatusOK, targets)
}

// GetTarget returns details and loop progress for a specific target
func (h *Handler) GetTarget(c *gin.Context) {
	name := c.Param("name")

	t, ok := h.findTarget(name)
	if !ok {
		errorResponse(c, http.StatusNotFound, "Target not found: "+name)
		return
	}

	response := newTargetResponse(t)
	if h.collector != nil {
		response.Stats = h.collector.GetStats(name)
		for _, st := range h.collector.Status() {
			if st.Target.Name == name {
				st := st
				response.Status = &st
				break
			}
		}
	}
	c.JSON(http.StatusOK, response)
}

// GetTargetStats returns statistics for a specific target
func (h *Handler) GetTargetStats(c *gin.Context) {
	name := c.Param("name")

	if _, ok := h.findTarget(name); !ok {
		errorResponse(c, http.StatusNotFound, "Target not found: "+name)
		return
	}

	if h.collector == nil {
		c.JSON(http.StatusOK, &storage.Stats{Target: name})
		return
	}

	c.JSON(http.StatusOK, h.collector.GetStats(name))
}

// GetTargetLive returns a copy of the target's live ring buffers
func (h *Handler) GetTargetLive(c *gin.Context) {
	name := c.Param("name")

	if _, ok := h.findTarget(name); !ok {
		errorResponse(c, http.StatusNotFound, "Target not found: "+name)
		return
	}

	if h.collector == nil {
		c.JSON(http.StatusOK, storage.Series{Target: name})
		return
	}

	c.JSON(http.StatusOK, h.collector.Series(name))
}

// HistoryQuery represents query parameters for historical data
type HistoryQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// DataPoint represents a single data point in history
type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Latency   *float64  `json:"latency"` // nil for NaN values
	Jitter    *float64  `json:"jitter"`
	Loss      *float64  `json:"loss"` // loss rate 0.0-1.0, nil for no data
}

// HistoryResponse contains historical data points
type HistoryResponse struct {
	Target     string      `json:"target"`
	From       time.Time   `json:"from"`
	To         time.Time   `json:"to"`
	DataPoints []DataPoint `json:"data_points"`
}

func optional(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// GetTargetHistory returns mirrored historical data for a specific target
func (h *Handler) GetTargetHistory(c *gin.Context) {
	name := c.Param("name")

	if _, ok := h.findTarget(name); !ok {
		errorResponse(c, http.StatusNotFound, "Target not found: "+name)
		return
	}

	var query HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid query parameters: "+err.Error())
		return
	}

	to := time.Now()
	from := to.Add(-1 * time.Hour)
	if query.From != "" {
		if parsed, err := time.Parse(time.RFC3339, query.From); err == nil {
			from = parsed
		}
	}
	if query.To != "" {
		if parsed, err := time.Parse(time.RFC3339, query.To); err == nil {
			to = parsed
		}
	}

	dataPoints := []DataPoint{}
	if h.collector != nil {
		points, err := h.collector.FetchHistory(name, from, to)
		if err != nil {
			errorResponse(c, http.StatusInternalServerError, "Failed to fetch history: "+err.Error())
			return
		}

		dataPoints = make([]DataPoint, len(points))
		for i, p := range points {
			dataPoints[i] = DataPoint{
				Timestamp: p.Timestamp,
				Latency:   optional(p.Latency),
				Jitter:    optional(p.Jitter),
				Loss:      optional(p.Loss),
			}
		}
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Target:     name,
		From:       from,
		To:         to,
		DataPoints: dataPoints,
	})
}

// SystemResponse reports host load next to the probe results
type SystemResponse struct {
	CPU        sysstat.Snapshot `json:"cpu"`
	Goroutines int              `json:"goroutines"`
	HeapMB     float64          `json:"heap_mb"`
}

// GetSystem returns the rolling per-core CPU usage
func (h *Handler) GetSystem(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response := SystemResponse{
		CPU:        sysstat.Snapshot{Cores: []float64{}},
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     float64(mem.Alloc) / 1024 / 1024,
	}
	if h.cpu != nil {
		response.CPU = h.cpu.Snapshot()
	}
	c.JSON(http.StatusOK, response)
}

// GetConfig returns the current configuration (read-only)
func (h *Handler) GetConfig(c *gin.Context) {
	response := gin.H{
		"server": gin.H{
			"address":    h.config.Server.Address,
			"enable_tui": h.config.Server.EnableTUI,
		},
		"global": gin.H{
			"interval":      h.config.Global.Interval.String(),
			"timeout":       h.config.Global.Timeout.String(),
			"pings":         h.config.Global.Pings,
			"data_dir":      h.config.Global.DataDir,
			"element_count": h.config.Global.ElementCount,
			"timezone":      h.config.Global.Timezone,
		},
		"storage": gin.H{
			"flush_threshold": h.config.Storage.FlushThreshold,
			"max_retained":    h.config.Storage.MaxRetained,
			"rrd_enabled":     h.config.Storage.RRD.Enabled,
		},
		"heatmap": gin.H{
			"final_bucket":     h.config.Heatmap.FinalBucket,
			"refresh_interval": h.config.Heatmap.RefreshInterval.String(),
		},
		"target_count": len(h.config.Targets),
	}

	c.JSON(http.StatusOK, response)
}
