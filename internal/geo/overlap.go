package geo

// Overlaps reports whether two polygons share any area or boundary. Used at
// configuration load: table regions must be disjoint for containment to be
// well defined, so overlap is rejected before processing starts.
func (poly Polygon) Overlaps(other Polygon) bool {
	if len(poly) < 3 || len(other) < 3 {
		return false
	}
	// Any vertex inside the other polygon, including full containment.
	for _, p := range poly {
		if other.Contains(p) {
			return true
		}
	}
	for _, p := range other {
		if poly.Contains(p) {
			return true
		}
	}
	// Crossing edges with no vertex inside.
	n, m := len(poly), len(other)
	for i := 0; i < n; i++ {
		a1, a2 := poly[i], poly[(i+1)%n]
		for j := 0; j < m; j++ {
			if segmentsIntersect(a1, a2, other[j], other[(j+1)%m]) {
				return true
			}
		}
	}
	return false
}

// segmentsIntersect reports whether closed segments ab and cd touch.
func segmentsIntersect(a, b, c, d Point) bool {
	d1 := orient(c, d, a)
	d2 := orient(c, d, b)
	d3 := orient(a, b, c)
	d4 := orient(a, b, d)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(c, d, a)) ||
		(d2 == 0 && onSegment(c, d, b)) ||
		(d3 == 0 && onSegment(a, b, c)) ||
		(d4 == 0 && onSegment(a, b, d))
}

// orient returns the sign of the cross product (b-a) x (p-a).
func orient(a, b, p Point) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}
