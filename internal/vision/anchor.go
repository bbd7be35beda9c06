package vision

import "github.com/cafesense/occupancy.report/internal/geo"

// Anchor extraction constants. The shoulder midpoint is projected toward the
// abdomen because the torso stays visible above table height when legs and
// feet are occluded by furniture.
const (
	// ShoulderConfidenceMin is the minimum per-joint confidence for the
	// shoulder-based anchor path.
	ShoulderConfidenceMin = 0.5
	// ShoulderDropFraction of the box height is added below the shoulder
	// midpoint.
	ShoulderDropFraction = 0.25
	// BoxAnchorFraction of the box height below the top edge locates the
	// fallback anchor when shoulders are unreliable.
	BoxAnchorFraction = 0.40
)

// AnchorFor reduces one detection to the single 2-D point used for every
// geometric decision downstream. It always returns a point: detections with
// missing or low-confidence shoulders fall back to a box-derived anchor.
func AnchorFor(d Detection) geo.Point {
	if len(d.Keypoints) > KeypointRightShoulder {
		ls := d.Keypoints[KeypointLeftShoulder]
		rs := d.Keypoints[KeypointRightShoulder]
		if ls.Confidence >= ShoulderConfidenceMin && rs.Confidence >= ShoulderConfidenceMin {
			return geo.Point{
				X: (ls.X + rs.X) / 2,
				Y: (ls.Y+rs.Y)/2 + ShoulderDropFraction*d.Box.H,
			}
		}
	}
	return geo.Point{
		X: d.Box.X + d.Box.W/2,
		Y: d.Box.Y + BoxAnchorFraction*d.Box.H,
	}
}
