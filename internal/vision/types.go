// Package vision implements the per-frame stabilization and occupancy stage
// that sits downstream of an external person detector/tracker. It turns raw,
// fragmenting track output into stable customer identities, validated
// table-occupancy sessions, and a visit-density heatmap.
package vision

import (
	"math"

	"github.com/cafesense/occupancy.report/internal/geo"
)

// COCO pose keypoint indices for the joints the anchor extractor uses.
// The detector emits the full 17-point vocabulary; only the shoulders matter
// here.
const (
	KeypointLeftShoulder  = 5
	KeypointRightShoulder = 6
	KeypointCount         = 17
)

// BBox is an axis-aligned bounding box in frame pixel coordinates.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the box center point.
func (b BBox) Center() geo.Point {
	return geo.Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Degenerate reports whether the box has no usable area.
func (b BBox) Degenerate() bool {
	return b.W <= 0 || b.H <= 0
}

// Keypoint is one body joint estimate with its own confidence.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Color is a mean BGR appearance sample taken from a detection region.
type Color [3]float64

// Dist returns the Euclidean distance between two appearance samples.
// This is the single scalar used by the merge appearance gate.
func (c Color) Dist(o Color) float64 {
	db := c[0] - o[0]
	dg := c[1] - o[1]
	dr := c[2] - o[2]
	return math.Sqrt(db*db + dg*dg + dr*dr)
}

// Detection is one raw per-frame observation from the external
// detector/tracker. RawTrackID is stable only while frame-to-frame
// association holds; it may vanish and reappear as a fresh number for the
// same person.
type Detection struct {
	RawTrackID int64      `json:"raw_track_id"`
	Box        BBox       `json:"box"`
	Confidence float64    `json:"confidence"`
	Keypoints  []Keypoint `json:"keypoints,omitempty"`
	MeanColor  Color      `json:"mean_color"`
}

// Frame is one decoded video frame's worth of detections. Timestamp is in
// video seconds; when the feed carries no timestamps it is derived from the
// frame index at an assumed frame rate.
type Frame struct {
	Index      int         `json:"frame"`
	Timestamp  float64     `json:"timestamp"`
	Detections []Detection `json:"detections"`
}
