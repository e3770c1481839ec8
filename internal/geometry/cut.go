package geometry

import "math"

// CutResult holds the two halves of a polygon split by a line.
type CutResult struct {
	Left  Polygon
	Right Polygon
}

// CutPolygon splits p along the infinite line through a and b. Left holds the
// part where Side is positive. Points where an edge crosses the line are
// inserted into both halves so they share the seam exactly. Each non-empty
// half is closed by repeating its first point.
func CutPolygon(p Polygon, a, b Point) CutResult {
	ring := p.Points
	if p.IsClosed() && len(ring) > 1 {
		ring = ring[:len(ring)-1]
	}
	n := len(ring)

	var left, right []Point
	for i := 0; i < n; i++ {
		p1 := ring[i]
		p2 := ring[(i+1)%n]

		det1 := Side(a, b, p1)
		points, other := &right, &left
		if det1 > 0 {
			points, other = &left, &right
		}

		if det1 == 0 {
			// A vertex on the line belongs to both halves only when it
			// continues a colinear run.
			p0 := ring[(i-1+n)%n]
			if Side(a, b, p0) == 0 {
				*points = append(*points, p1)
				*other = append(*other, p1)
			}
			continue
		}

		*points = append(*points, p1)

		det2 := Side(a, b, p2)
		if math.Signbit(det1) == math.Signbit(det2) && det2 != 0 {
			continue
		}

		// Side is linear along p1->p2, so the crossing sits at the ratio of
		// the two distances.
		t := det1 / (det1 - det2)
		cross := Point{X: p1.X + (p2.X-p1.X)*t, Y: p1.Y + (p2.Y-p1.Y)*t}
		*points = append(*points, cross)
		*other = append(*other, cross)
	}

	if len(left) > 0 {
		left = append(left, left[0])
	}
	if len(right) > 0 {
		right = append(right, right[0])
	}
	return CutResult{Left: NewPolygon(left), Right: NewPolygon(right)}
}
