package vision

import (
	"gonum.org/v1/gonum/mat"

	"github.com/cafesense/occupancy.report/internal/geo"
)

// Heatmap display bound: normalized cells lie in [0, HeatmapDisplayMax].
const HeatmapDisplayMax = 255.0

// DefaultHeatRadiusPx is the radius of the filled disc added per anchor.
const DefaultHeatRadiusPx = 30

// Heatmap accumulates visit density over a run. Every anchor point adds a
// constant-weight filled disc, regardless of identity or occupancy state.
// Cells are monotonically non-decreasing until Normalized is read at
// shutdown.
type Heatmap struct {
	width  int
	height int
	radius int
	dense  *mat.Dense // height x width, row = pixel row
	adds   int
}

// NewHeatmap creates an accumulator sized to the frame.
func NewHeatmap(width, height, radiusPx int) *Heatmap {
	if radiusPx <= 0 {
		radiusPx = DefaultHeatRadiusPx
	}
	return &Heatmap{
		width:  width,
		height: height,
		radius: radiusPx,
		dense:  mat.NewDense(height, width, nil),
	}
}

// Add stamps one unit-weight disc centered on the anchor. Points outside the
// frame are ignored; discs overlapping the frame edge are clipped.
func (h *Heatmap) Add(p geo.Point) {
	cx := int(p.X)
	cy := int(p.Y)
	if cx < 0 || cx >= h.width || cy < 0 || cy >= h.height {
		return
	}
	h.adds++

	r := h.radius
	r2 := r * r
	for dy := -r; dy <= r; dy++ {
		y := cy + dy
		if y < 0 || y >= h.height {
			continue
		}
		for dx := -r; dx <= r; dx++ {
			x := cx + dx
			if x < 0 || x >= h.width {
				continue
			}
			if dx*dx+dy*dy > r2 {
				continue
			}
			h.dense.Set(y, x, h.dense.At(y, x)+1)
		}
	}
}

// Dims returns the accumulator size as (width, height).
func (h *Heatmap) Dims() (int, int) { return h.width, h.height }

// At returns the raw accumulated value at pixel (x, y).
func (h *Heatmap) At(x, y int) float64 { return h.dense.At(y, x) }

// Adds returns how many anchor points have been stamped.
func (h *Heatmap) Adds() int { return h.adds }

// Max returns the largest accumulated cell value.
func (h *Heatmap) Max() float64 {
	return mat.Max(h.dense)
}

// Normalized returns a copy of the matrix scaled to [0, HeatmapDisplayMax].
// An empty accumulator normalizes to all zeros.
func (h *Heatmap) Normalized() *mat.Dense {
	out := mat.DenseCopyOf(h.dense)
	max := mat.Max(out)
	if max <= 0 {
		return out
	}
	out.Scale(HeatmapDisplayMax/max, out)
	return out
}
