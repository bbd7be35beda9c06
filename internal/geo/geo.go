// Package geo provides the small amount of 2-D pixel-space geometry the
// occupancy pipeline needs: points, vectors, and polygon containment.
package geo

import "math"

// Point is a position in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec is a displacement between two points.
type Vec struct {
	X float64
	Y float64
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Vec {
	return Vec{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Norm returns the vector magnitude.
func (v Vec) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Cosine returns the cosine similarity between v and w. If either vector is
// zero the similarity is undefined and ok is false.
func Cosine(v, w Vec) (cos float64, ok bool) {
	nv := v.Norm()
	nw := w.Norm()
	if nv == 0 || nw == 0 {
		return 0, false
	}
	return (v.X*w.X + v.Y*w.Y) / (nv * nw), true
}

// Polygon is an ordered list of vertices. The edge from the last vertex back
// to the first is implicit.
type Polygon []Point

// Contains reports whether p lies inside the polygon or on its boundary.
// Uses the even-odd ray casting rule with an explicit boundary check so that
// points exactly on an edge count as inside.
func (poly Polygon) Contains(p Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}

	for i := 0; i < n; i++ {
		if onSegment(poly[i], poly[(i+1)%n], p) {
			return true
		}
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Centroid returns the arithmetic mean of the polygon's vertices. Used for
// label placement and overlap diagnostics, not for containment.
func (poly Polygon) Centroid() Point {
	var c Point
	if len(poly) == 0 {
		return c
	}
	for _, p := range poly {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= float64(len(poly))
	c.Y /= float64(len(poly))
	return c
}

const segmentEpsilon = 1e-9

// onSegment reports whether p lies on the closed segment ab.
func onSegment(a, b, p Point) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if math.Abs(cross) > segmentEpsilon*(1+a.Dist(b)) {
		return false
	}
	dot := (p.X-a.X)*(b.X-a.X) + (p.Y-a.Y)*(b.Y-a.Y)
	if dot < -segmentEpsilon {
		return false
	}
	return dot <= (b.X-a.X)*(b.X-a.X)+(b.Y-a.Y)*(b.Y-a.Y)+segmentEpsilon
}
