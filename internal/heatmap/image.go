package heatmap

import (
	"image"
	"image/draw"
)

// HoursPerDay is the image width
const HoursPerDay = 24

// Grid returns the severity of every hour, indexed [day-1][hour]
func (m *Month) Grid() [][]Severity {
	grid := make([][]Severity, m.Days)
	for d := range grid {
		grid[d] = make([]Severity, HoursPerDay)
		for h := 0; h < HoursPerDay; h++ {
			if agg, ok := m.Hour(d+1, h); ok {
				grid[d][h] = Score(&agg)
			} else {
				grid[d][h] = Score(nil)
			}
		}
	}
	return grid
}

// Image returns the month's color image, 24 pixels wide (hour) by Days
// tall (day-1). It is computed on first use and cached until Recompute.
func (m *Month) Image() *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.image == nil {
		m.image = m.render()
	}
	return m.image
}

// Recompute discards the cached image and renders it again
func (m *Month) Recompute() *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.image = m.render()
	return m.image
}

func (m *Month) render() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, HoursPerDay, m.Days))
	for d, row := range m.Grid() {
		for h, sev := range row {
			img.SetRGBA(h, d, Color(sev))
		}
	}
	return img
}

// Scale enlarges img by an integer factor using nearest-neighbour blocks
func Scale(img *image.RGBA, factor int) *image.RGBA {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			cell := image.Rect((x-b.Min.X)*factor, (y-b.Min.Y)*factor, (x-b.Min.X+1)*factor, (y-b.Min.Y+1)*factor)
			draw.Draw(out, cell, &image.Uniform{C: img.RGBAAt(x, y)}, image.Point{}, draw.Src)
		}
	}
	return out
}
