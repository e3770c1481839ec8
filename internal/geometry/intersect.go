package geometry

import "math"

const (
	// parallelEpsilon is the smallest determinant treated as non-parallel.
	parallelEpsilon = 0.0001
	// vertexNudge shifts a ray off a vertex it would otherwise pass through.
	vertexNudge = 0.000001
)

// Intersection describes where segment ab meets segment cd. U is the
// parameter along ab, V along cd.
type Intersection struct {
	Point
	U float64
	V float64
}

// EdgeHit is the first polygon edge crossed by a line, with the parameter
// along the query line.
type EdgeHit struct {
	P1 Point
	P2 Point
	U  float64
}

// Side is the cross product of (b-a) and (pt-a). Positive is left of a->b,
// negative right, zero on the line.
func Side(a, b, pt Point) float64 {
	return (b.X-a.X)*(pt.Y-a.Y) - (b.Y-a.Y)*(pt.X-a.X)
}

// OnLine reports whether pt lies on segment ab.
func OnLine(a, b, pt Point) bool {
	return math.Abs(Side(a, b, pt)) < parallelEpsilon &&
		pt.X >= math.Min(a.X, b.X) && pt.X <= math.Max(a.X, b.X) &&
		pt.Y >= math.Min(a.Y, b.Y) && pt.Y <= math.Max(a.Y, b.Y)
}

// OnPolygon reports whether pt lies on any edge of p.
func OnPolygon(p Polygon, pt Point) bool {
	for _, e := range p.Edges() {
		if OnLine(e[0], e[1], pt) {
			return true
		}
	}
	return false
}

// SegmentIntersection solves a + (b-a)u = c + (d-c)v. It reports false when
// the segments are parallel or the crossing falls outside either segment.
func SegmentIntersection(a, b, c, d Point) (Intersection, bool) {
	det := (d.Y-c.Y)*(b.X-a.X) - (d.X-c.X)*(b.Y-a.Y)
	if math.Abs(det) < parallelEpsilon {
		return Intersection{}, false
	}

	u := ((d.X-c.X)*(a.Y-c.Y) - (d.Y-c.Y)*(a.X-c.X)) / det
	if u < 0 || u > 1 {
		return Intersection{}, false
	}

	// Solved independently of u so a vertical cd does not divide by zero.
	v := ((b.Y-a.Y)*(c.X-a.X) - (c.Y-a.Y)*(b.X-a.X)) / ((b.X-a.X)*(d.Y-c.Y) - (b.Y-a.Y)*(d.X-c.X))
	if v < 0 || v > 1 {
		return Intersection{}, false
	}

	return Intersection{
		Point: Point{X: a.X + (b.X-a.X)*u, Y: a.Y + (b.Y-a.Y)*u},
		U:     u,
		V:     v,
	}, true
}

// PointInPolygon casts a ray to the right of (x, y) and counts edge
// crossings. Only valid for simple polygons.
func PointInPolygon(p Polygon, x, y float64) bool {
	crossings := 0
	for _, e := range p.Edges() {
		a, b := e[0], e[1]
		for a.Y == y || b.Y == y {
			y += vertexNudge
		}
		end := Point{X: math.Max(x, p.Extents.X+p.Extents.W+1), Y: y}
		if _, ok := SegmentIntersection(a, b, Point{X: x, Y: y}, end); ok {
			crossings++
		}
	}
	return crossings%2 == 1
}

// IntersectPolygonLine returns the first edge of p crossed by segment ab.
func IntersectPolygonLine(p Polygon, a, b Point) (EdgeHit, bool) {
	for _, e := range p.Edges() {
		if hit, ok := SegmentIntersection(a, b, e[0], e[1]); ok {
			return EdgeHit{P1: e[0], P2: e[1], U: hit.U}, true
		}
	}
	return EdgeHit{}, false
}

// IntersectPolygonPolygon returns the first crossing of any edge of test with
// against.
func IntersectPolygonPolygon(test, against Polygon) (EdgeHit, bool) {
	for _, e := range test.Edges() {
		if hit, ok := IntersectPolygonLine(against, e[0], e[1]); ok {
			return hit, true
		}
	}
	return EdgeHit{}, false
}

// IsInsidePolygon reports whether every vertex of test lies inside against.
// The first vertex of a closed chain is checked through its duplicate.
func IsInsidePolygon(test, against Polygon) bool {
	for i := 1; i < len(test.Points); i++ {
		pt := test.Points[i]
		if !PointInPolygon(against, pt.X, pt.Y) {
			return false
		}
	}
	return true
}

func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// DistanceToLine is the distance from pt to the closest point of segment ab.
func DistanceToLine(a, b, pt Point) float64 {
	l2 := (b.X-a.X)*(b.X-a.X) + (b.Y-a.Y)*(b.Y-a.Y)
	if l2 == 0 {
		return Distance(a, pt)
	}
	t := ((pt.X-a.X)*(b.X-a.X) + (pt.Y-a.Y)*(b.Y-a.Y)) / l2
	switch {
	case t <= 0:
		return Distance(pt, a)
	case t >= 1:
		return Distance(pt, b)
	}
	proj := Point{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}
	return Distance(pt, proj)
}

// DistanceToPolygon is the minimum distance from pt to any edge of p.
func DistanceToPolygon(p Polygon, pt Point) float64 {
	min := math.Inf(1)
	for _, e := range p.Edges() {
		min = math.Min(min, DistanceToLine(e[0], e[1], pt))
	}
	return min
}
