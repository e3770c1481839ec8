package geometry

import (
	"log"
	"math"
)

// Scale multiplies every coordinate by its axis factor and floors the result
// onto the integer pixel grid.
func (p Polygon) Scale(xscale, yscale float64) Polygon {
	pts := make([]Point, len(p.Points))
	for i, pt := range p.Points {
		pts[i] = Point{X: math.Floor(pt.X * xscale), Y: math.Floor(pt.Y * yscale)}
	}
	return NewPolygon(pts)
}

func (p Polygon) Translate(dx, dy float64) Polygon {
	pts := make([]Point, len(p.Points))
	for i, pt := range p.Points {
		pts[i] = Point{X: pt.X + dx, Y: pt.Y + dy}
	}
	return NewPolygon(pts)
}

// Edges returns each consecutive pair of the chain.
func (p Polygon) Edges() [][2]Point {
	if len(p.Points) < 2 {
		return nil
	}
	edges := make([][2]Point, 0, len(p.Points)-1)
	for i := 0; i < len(p.Points)-1; i++ {
		edges = append(edges, [2]Point{p.Points[i], p.Points[i+1]})
	}
	return edges
}

// triples returns (previous, vertex, next) for every vertex of a closed polygon.
func (p Polygon) triples() [][3]Point {
	n := len(p.Points)
	if n < 3 {
		return nil
	}
	out := make([][3]Point, 0, n-1)
	last := p.Points[n-2]
	for j := 0; j < n-1; j++ {
		this := p.Points[j]
		next := p.Points[j+1]
		out = append(out, [3]Point{last, this, next})
		last = this
	}
	return out
}

// Angles returns the angle in degrees at each vertex of a closed polygon.
func (p Polygon) Angles() []float64 {
	tr := p.triples()
	angles := make([]float64, 0, len(tr))
	for _, t := range tr {
		angles = append(angles, vertexAngle(t[0], t[1], t[2]))
	}
	return angles
}

func vertexAngle(p1, p2, p3 Point) float64 {
	v1x, v1y := p1.X-p2.X, p1.Y-p2.Y
	v2x, v2y := p3.X-p2.X, p3.Y-p2.Y
	dot := v1x*v2x + v1y*v2y
	l1 := math.Hypot(v1x, v1y)
	l2 := math.Hypot(v2x, v2y)
	cos := dot / l1 / l2
	// Rounding can push colinear vectors just past -1.
	if cos < -1 && cos > -1-1e-9 {
		cos = -1
	}
	degs := math.Mod(math.Acos(cos)/(2*math.Pi)*360, 360)
	if math.IsNaN(degs) {
		if l1 > 0 && l2 > 0 &&
			math.Abs(v1x/l1+v2x/l2) < 0.00001 && math.Abs(v1y/l1+v2y/l2) < 0.00001 {
			return 180
		}
		log.Printf("geometry: NaN angle at (%v,%v)", p2.X, p2.Y)
	}
	return degs
}

// Area is the signed shoelace area. Its sign encodes winding direction.
func Area(p Polygon) float64 {
	sum := 0.0
	for i := 0; i < len(p.Points)-1; i++ {
		a, b := p.Points[i], p.Points[i+1]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

// Centroid is NaN for a zero-area polygon; callers must check.
func Centroid(p Polygon) Point {
	area := Area(p)
	var cx, cy float64
	for i := 0; i < len(p.Points)-1; i++ {
		a, b := p.Points[i], p.Points[i+1]
		cross := a.X*b.Y - b.X*a.Y
		cx += (a.X + b.X) * cross
		cy += (a.Y + b.Y) * cross
	}
	if area == 0 {
		return Point{X: math.NaN(), Y: math.NaN()}
	}
	return Point{X: cx / (6 * area), Y: cy / (6 * area)}
}

func IsClockwise(p Polygon) bool {
	n := len(p.Points)
	if n <= 2 {
		return true
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		a := p.Points[i%n]
		b := p.Points[(i+1)%n]
		sum += (b.X - a.X) * (a.Y + b.Y)
	}
	return sum > 0
}

func IsConvex(p Polygon) bool {
	n := len(p.Points)
	if n <= 3 {
		return true
	}
	sign := 0
	for i := 0; i < n; i++ {
		p1 := p.Points[i%n]
		p2 := p.Points[(i+1)%n]
		p3 := p.Points[(i+2)%n]
		xp := (p2.X-p1.X)*(p3.Y-p2.Y) - (p2.Y-p1.Y)*(p3.X-p2.X)
		switch {
		case sign == 0:
			if xp > 0 {
				sign = 1
			} else {
				sign = -1
			}
		case sign == 1 && xp < 0, sign == -1 && xp > 0:
			return false
		}
	}
	return true
}
