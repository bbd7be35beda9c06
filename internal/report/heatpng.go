package report

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cafesense/occupancy.report/internal/vision"
)

// heatColors is the number of palette steps in the rendered heatmap.
const heatColors = 48

// frameGrid adapts a normalized intensity matrix (rows are image rows, top
// first) to plotter.GridXYZ. Rows are flipped so the rendered plot has the
// same orientation as the video frame.
type frameGrid struct {
	m    *mat.Dense
	rows int
	cols int
}

func newFrameGrid(m *mat.Dense) frameGrid {
	r, c := m.Dims()
	return frameGrid{m: m, rows: r, cols: c}
}

func (g frameGrid) Dims() (int, int)   { return g.cols, g.rows }
func (g frameGrid) Z(c, r int) float64 { return g.m.At(g.rows-1-r, c) }
func (g frameGrid) X(c int) float64    { return float64(c) }
func (g frameGrid) Y(r int) float64    { return float64(r) }

// SaveHeatmapPNG renders the accumulated visit density to a PNG.
func SaveHeatmapPNG(path string, h *vision.Heatmap) error {
	grid := newFrameGrid(h.Normalized())

	hm := plotter.NewHeatMap(grid, palette.Heat(heatColors, 1))
	hm.Min = 0
	hm.Max = vision.HeatmapDisplayMax

	p := plot.New()
	p.Title.Text = "Customer Visit Density"
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.Add(hm)

	w, ht := h.Dims()
	// Keep the output aspect ratio close to the frame's.
	width := 8 * vg.Inch
	height := width * vg.Length(float64(ht)) / vg.Length(float64(w))
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save heatmap: %w", err)
	}
	return nil
}
