package api

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wellsgz/pingheat/internal/heatmap"
	"github.com/wellsgz/pingheat/internal/storage"
)

const (
	defaultPNGScale = 10
	maxPNGScale     = 40
)

// HourCell is one scored hour of a heatmap grid
type HourCell struct {
	Kind    string  `json:"kind"`
	Value   float64 `json:"value"`
	Color   string  `json:"color"`
	Samples int     `json:"samples"`
	Jitter  float64 `json:"jitter_ms"`
	Loss    float64 `json:"loss_rate"`
}

// HeatmapResponse is a month of scored hours, indexed [day-1][hour]
type HeatmapResponse struct {
	Identity   string       `json:"identity"`
	Name       string       `json:"name"`
	Year       int          `json:"year"`
	Month      int          `json:"month"`
	Days       int          `json:"days"`
	Generation uint64       `json:"generation"`
	Hours      [][]HourCell `json:"hours"`
}

// HeatmapSummary lists one series of the aggregate tree
type HeatmapSummary struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Years    []int  `json:"years"`
}

// YearMonths lists the months of a year holding data
type YearMonths struct {
	Year   int   `json:"year"`
	Months []int `json:"months"`
}

// displayName returns the configured target name for a log identity, or
// the identity itself for logs of targets no longer configured
func (h *Handler) displayName(identity string) string {
	for _, t := range h.config.Targets {
		if storage.LogIdentity(t.Host) == identity {
			return t.Name
		}
	}
	return identity
}

// resolveSeries accepts a target name or a log identity
func (h *Handler) resolveSeries(tree *heatmap.Tree, name string) (*heatmap.Series, bool) {
	if t, ok := h.findTarget(name); ok {
		return tree.Series(storage.LogIdentity(t.Host))
	}
	return tree.Series(name)
}

// monthQuery reads ?year=&month=, defaulting to the latest month with data
func monthQuery(c *gin.Context, series *heatmap.Series) (year, month int, err error) {
	year, month, _ = series.Latest()

	if v := c.Query("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("invalid year %q", v)
		}
	}
	if v := c.Query("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil || month < 1 || month > 12 {
			return 0, 0, fmt.Errorf("invalid month %q", v)
		}
	}
	return year, month, nil
}

// ListHeatmaps returns every series of the current aggregate tree
func (h *Handler) ListHeatmaps(c *gin.Context) {
	if h.store == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Heatmap is not enabled")
		return
	}

	tree, gen := h.store.Snapshot()
	series := make([]HeatmapSummary, 0)
	for _, id := range tree.Identities() {
		s, _ := tree.Series(id)
		series = append(series, HeatmapSummary{
			Identity: id,
			Name:     h.displayName(id),
			Years:    s.Years(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"generation": gen,
		"series":     series,
	})
}

// GetHeatmap returns one month of a series as a JSON grid, or as a PNG
// image when the name ends in .png
func (h *Handler) GetHeatmap(c *gin.Context) {
	if h.store == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Heatmap is not enabled")
		return
	}

	name := c.Param("name")
	asPNG := strings.HasSuffix(name, ".png")
	name = strings.TrimSuffix(name, ".png")

	tree, gen := h.store.Snapshot()
	series, ok := h.resolveSeries(tree, name)
	if !ok {
		errorResponse(c, http.StatusNotFound, "No heatmap for: "+name)
		return
	}

	year, month, err := monthQuery(c, series)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	m, ok := tree.Lookup(series.Identity, year, month)
	if !ok {
		errorResponse(c, http.StatusNotFound, fmt.Sprintf("No heatmap for %s in %04d-%02d", name, year, month))
		return
	}

	if asPNG {
		h.writePNG(c, series.Identity, year, month, gen, m)
		return
	}

	grid := m.Grid()
	hours := make([][]HourCell, len(grid))
	for d, row := range grid {
		hours[d] = make([]HourCell, len(row))
		for hr, sev := range row {
			cell := HourCell{
				Kind:  sev.Kind.String(),
				Value: sev.Value,
				Color: heatmap.Hex(heatmap.Color(sev)),
			}
			if agg, ok := m.Hour(d+1, hr); ok {
				cell.Samples = agg.SampleCount
				cell.Jitter = agg.AverageJitter
				cell.Loss = agg.AveragePacketlossRate
			}
			hours[d][hr] = cell
		}
	}

	c.JSON(http.StatusOK, HeatmapResponse{
		Identity:   series.Identity,
		Name:       h.displayName(series.Identity),
		Year:       year,
		Month:      month,
		Days:       m.Days,
		Generation: gen,
		Hours:      hours,
	})
}

// writePNG encodes the month image, reusing the encoding for the same tree generation
func (h *Handler) writePNG(c *gin.Context, identity string, year, month int, gen uint64, m *heatmap.Month) {
	scale := defaultPNGScale
	if v := c.Query("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPNGScale {
			errorResponse(c, http.StatusBadRequest, fmt.Sprintf("scale must be 1..%d", maxPNGScale))
			return
		}
		scale = n
	}

	key := fmt.Sprintf("%s/%04d-%02d/x%d/g%d", identity, year, month, scale, gen)
	if cached, ok := h.pngCache.Get(key); ok {
		c.Data(http.StatusOK, "image/png", cached.([]byte))
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, heatmap.Scale(m.Image(), scale)); err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to encode heatmap: "+err.Error())
		return
	}
	h.pngCache.Add(key, buf.Bytes())
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// GetHeatmapYears lists the years and months of a series holding data
func (h *Handler) GetHeatmapYears(c *gin.Context) {
	if h.store == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Heatmap is not enabled")
		return
	}

	name := c.Param("name")
	tree := h.store.Load()
	series, ok := h.resolveSeries(tree, name)
	if !ok {
		errorResponse(c, http.StatusNotFound, "No heatmap for: "+name)
		return
	}

	years := make([]YearMonths, 0)
	for _, n := range series.Years() {
		y, _ := series.Year(n)
		ym := YearMonths{Year: n, Months: []int{}}
		for i := range y.Months {
			if y.Months[i].HasData() {
				ym.Months = append(ym.Months, i+1)
			}
		}
		years = append(years, ym)
	}

	c.JSON(http.StatusOK, gin.H{
		"identity": series.Identity,
		"name":     h.displayName(series.Identity),
		"years":    years,
	})
}
