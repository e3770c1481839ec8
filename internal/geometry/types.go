package geometry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrBadRectangle is returned when a serialized rectangle cannot be parsed.
var ErrBadRectangle = errors.New("geometry: malformed rectangle")

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rectangle is an axis-aligned box in wall space.
type Rectangle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func NewRectangle(x, y, w, h float64) Rectangle {
	return Rectangle{X: x, Y: y, W: w, H: h}
}

// Intersects reports whether the two boxes overlap on both axes.
// Boxes that only share an edge do not intersect.
func (r Rectangle) Intersects(o Rectangle) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Contains is half-open: the left and top edges are inside, right and bottom are not.
func (r Rectangle) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Serialize returns the wire form "x,y,w,h".
func (r Rectangle) Serialize() string {
	return strings.Join([]string{
		strconv.FormatFloat(r.X, 'f', -1, 64),
		strconv.FormatFloat(r.Y, 'f', -1, 64),
		strconv.FormatFloat(r.W, 'f', -1, 64),
		strconv.FormatFloat(r.H, 'f', -1, 64),
	}, ",")
}

func (r Rectangle) String() string {
	return r.Serialize()
}

// ParseRectangle is the inverse of Serialize.
func ParseRectangle(s string) (Rectangle, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 4 {
		return Rectangle{}, fmt.Errorf("%w: %q", ErrBadRectangle, s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Rectangle{}, fmt.Errorf("%w: %q", ErrBadRectangle, s)
		}
		vals[i] = v
	}
	if vals[2] < 0 || vals[3] < 0 {
		return Rectangle{}, fmt.Errorf("%w: negative size in %q", ErrBadRectangle, s)
	}
	return Rectangle{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// Polygon is an ordered point chain. Closed polygons repeat their first point
// at the end. Extents always bounds Points.
type Polygon struct {
	Points  []Point   `json:"points"`
	Extents Rectangle `json:"extents"`
}

// NewPolygon copies points and folds them into the bounding extents.
func NewPolygon(points []Point) Polygon {
	pts := make([]Point, len(points))
	copy(pts, points)
	p := Polygon{Points: pts}
	if len(pts) == 0 {
		return p
	}
	ext := Rectangle{X: pts[0].X, Y: pts[0].Y}
	for _, pt := range pts {
		if pt.X < ext.X {
			ext.W += ext.X - pt.X
			ext.X = pt.X
		}
		if pt.Y < ext.Y {
			ext.H += ext.Y - pt.Y
			ext.Y = pt.Y
		}
		if pt.X > ext.X+ext.W {
			ext.W = pt.X - ext.X
		}
		if pt.Y > ext.Y+ext.H {
			ext.H = pt.Y - ext.Y
		}
	}
	p.Extents = ext
	return p
}

// IsClosed reports whether the chain ends where it started.
func (p Polygon) IsClosed() bool {
	if len(p.Points) == 0 {
		return false
	}
	first := p.Points[0]
	last := p.Points[len(p.Points)-1]
	return first == last
}
