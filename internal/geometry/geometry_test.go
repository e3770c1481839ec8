package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square() Polygon {
	return NewPolygon([]Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}})
}

func TestNewPolygon_Extents(t *testing.T) {
	p := NewPolygon([]Point{{2, 3}, {-1, 5}, {6, -2}, {2, 3}})
	assert.Equal(t, Rectangle{X: -1, Y: -2, W: 7, H: 7}, p.Extents)
	assert.True(t, p.IsClosed())
}

func TestNewPolygon_CopiesInput(t *testing.T) {
	pts := []Point{{0, 0}, {1, 0}, {0, 0}}
	p := NewPolygon(pts)
	pts[1].X = 99
	assert.Equal(t, 1.0, p.Points[1].X)
}

func TestScale_MultipliesExtents(t *testing.T) {
	for _, s := range []float64{1, 2, 2.5, 1920} {
		sq := square()
		scaled := sq.Scale(s, s)
		assert.Equal(t, math.Floor(sq.Extents.X*s), scaled.Extents.X)
		assert.Equal(t, math.Floor(sq.Extents.W*s), scaled.Extents.W, "scale %v", s)
		assert.Equal(t, math.Floor(sq.Extents.H*s), scaled.Extents.H, "scale %v", s)
	}
}

func TestScale_FloorsToGrid(t *testing.T) {
	p := NewPolygon([]Point{{0.3, 0.7}, {1.5, 0.7}, {0.3, 0.7}})
	scaled := p.Scale(3, 3)
	assert.Equal(t, Point{X: 0, Y: 2}, scaled.Points[0])
	assert.Equal(t, Point{X: 4, Y: 2}, scaled.Points[1])
}

func TestTranslate(t *testing.T) {
	moved := square().Translate(10, -1)
	assert.Equal(t, Rectangle{X: 10, Y: -1, W: 4, H: 4}, moved.Extents)
}

func TestAreaAndCentroid(t *testing.T) {
	sq := square()
	assert.Equal(t, 16.0, Area(sq))
	assert.Equal(t, Point{X: 2, Y: 2}, Centroid(sq))

	reversed := NewPolygon([]Point{{0, 0}, {0, 4}, {4, 4}, {4, 0}, {0, 0}})
	assert.Equal(t, -16.0, Area(reversed))

	flat := NewPolygon([]Point{{0, 0}, {4, 0}, {0, 0}})
	c := Centroid(flat)
	assert.True(t, math.IsNaN(c.X))
	assert.True(t, math.IsNaN(c.Y))
}

func TestOrientationAndConvexity(t *testing.T) {
	sq := square()
	reversed := NewPolygon([]Point{{0, 0}, {0, 4}, {4, 4}, {4, 0}, {0, 0}})
	assert.NotEqual(t, IsClockwise(sq), IsClockwise(reversed))
	assert.True(t, IsClockwise(NewPolygon([]Point{{0, 0}, {1, 1}})))

	assert.True(t, IsConvex(sq))
	lShape := NewPolygon([]Point{{0, 0}, {4, 0}, {4, 2}, {2, 2}, {2, 4}, {0, 4}, {0, 0}})
	assert.False(t, IsConvex(lShape))
	assert.True(t, IsConvex(NewPolygon([]Point{{0, 0}, {3, 7}, {0, 0}})))
}

func TestSide(t *testing.T) {
	a, b := Point{0, 0}, Point{4, 0}
	assert.Greater(t, Side(a, b, Point{2, 1}), 0.0)
	assert.Less(t, Side(a, b, Point{2, -1}), 0.0)
	assert.Equal(t, 0.0, Side(a, b, Point{7, 0}))
}

func TestSegmentIntersection(t *testing.T) {
	hit, ok := SegmentIntersection(Point{0, 0}, Point{4, 4}, Point{0, 4}, Point{4, 0})
	require.True(t, ok)
	assert.InDelta(t, 2.0, hit.X, 1e-9)
	assert.InDelta(t, 2.0, hit.Y, 1e-9)
	assert.InDelta(t, 0.5, hit.U, 1e-9)
	assert.InDelta(t, 0.5, hit.V, 1e-9)

	_, ok = SegmentIntersection(Point{0, 0}, Point{4, 0}, Point{0, 1}, Point{4, 1})
	assert.False(t, ok, "parallel segments")

	_, ok = SegmentIntersection(Point{0, 0}, Point{1, 1}, Point{0, 4}, Point{4, 0})
	assert.False(t, ok, "lines cross beyond the first segment")
}

func TestPointInPolygon(t *testing.T) {
	sq := square()
	assert.True(t, PointInPolygon(sq, 2, 2))
	assert.False(t, PointInPolygon(sq, 5, 5))
	assert.False(t, PointInPolygon(sq, -1, 2))
	assert.NotPanics(t, func() { _ = PointInPolygon(sq, 0, 0) })
	assert.NotPanics(t, func() { _ = PointInPolygon(sq, 4, 4) })

	lShape := NewPolygon([]Point{{0, 0}, {4, 0}, {4, 2}, {2, 2}, {2, 4}, {0, 4}, {0, 0}})
	assert.True(t, PointInPolygon(lShape, 1, 3))
	assert.False(t, PointInPolygon(lShape, 3, 3))
	// Ray passes exactly through the reflex vertex at y=2.
	assert.True(t, PointInPolygon(lShape, 1, 2))
}

func TestOnLineAndOnPolygon(t *testing.T) {
	assert.True(t, OnLine(Point{0, 0}, Point{4, 0}, Point{2, 0}))
	assert.False(t, OnLine(Point{0, 0}, Point{4, 0}, Point{5, 0}))
	assert.True(t, OnPolygon(square(), Point{4, 2}))
	assert.False(t, OnPolygon(square(), Point{2, 2}))
}

func TestCutPolygon_SquareInHalf(t *testing.T) {
	sq := square()
	cut := CutPolygon(sq, Point{2, 0}, Point{2, 4})

	for name, half := range map[string]Polygon{"left": cut.Left, "right": cut.Right} {
		assert.True(t, half.IsClosed(), name)
		assert.Len(t, half.Points, 5, "%s should be a closed quadrilateral", name)
		assert.InDelta(t, Area(sq)/2, math.Abs(Area(half)), 1e-9, name)
	}
	assert.Equal(t, Rectangle{X: 0, Y: 0, W: 2, H: 4}, cut.Left.Extents)
	assert.Equal(t, Rectangle{X: 2, Y: 0, W: 2, H: 4}, cut.Right.Extents)
}

func TestCutPolygon_SharedSeam(t *testing.T) {
	cut := CutPolygon(square(), Point{0, 1}, Point{1, 1})
	assert.Contains(t, cut.Left.Points, Point{0, 1})
	assert.Contains(t, cut.Right.Points, Point{0, 1})
	assert.Contains(t, cut.Left.Points, Point{4, 1})
	assert.Contains(t, cut.Right.Points, Point{4, 1})
	assert.InDelta(t, 16.0, math.Abs(Area(cut.Left))+math.Abs(Area(cut.Right)), 1e-9)
}

func TestCutPolygon_LineThroughVertices(t *testing.T) {
	// The diagonal passes through two vertices; each half is a triangle.
	cut := CutPolygon(square(), Point{0, 0}, Point{4, 4})
	assert.InDelta(t, 8.0, math.Abs(Area(cut.Left)), 1e-9)
	assert.InDelta(t, 8.0, math.Abs(Area(cut.Right)), 1e-9)
}

func TestCutPolygon_MissesPolygon(t *testing.T) {
	cut := CutPolygon(square(), Point{10, 0}, Point{10, 4})
	assert.Empty(t, cut.Right.Points)
	assert.InDelta(t, 16.0, math.Abs(Area(cut.Left)), 1e-9)
}

func TestDistances(t *testing.T) {
	assert.Equal(t, 5.0, Distance(Point{0, 0}, Point{3, 4}))
	assert.Equal(t, 1.0, DistanceToLine(Point{0, 0}, Point{4, 0}, Point{2, 1}))
	assert.Equal(t, 5.0, DistanceToLine(Point{0, 0}, Point{4, 0}, Point{7, 4}))
	assert.Equal(t, 5.0, DistanceToLine(Point{0, 0}, Point{4, 0}, Point{-3, -4}))
	assert.Equal(t, 1.0, DistanceToLine(Point{1, 1}, Point{1, 1}, Point{1, 2}))
	assert.Equal(t, 1.0, DistanceToPolygon(square(), Point{5, 2}))
	assert.Equal(t, 2.0, DistanceToPolygon(square(), Point{2, 2}))
}

func TestPolygonComposites(t *testing.T) {
	sq := square()
	inner := NewPolygon([]Point{{1, 1}, {3, 1}, {3, 3}, {1, 3}, {1, 1}})
	crossing := NewPolygon([]Point{{3, 1}, {6, 1}, {6, 3}, {3, 3}, {3, 1}})

	assert.True(t, IsInsidePolygon(inner, sq))
	assert.False(t, IsInsidePolygon(crossing, sq))

	_, ok := IntersectPolygonPolygon(inner, sq)
	assert.False(t, ok)
	hit, ok := IntersectPolygonPolygon(crossing, sq)
	require.True(t, ok)
	assert.Equal(t, Point{4, 0}, hit.P1)
	assert.Equal(t, Point{4, 4}, hit.P2)

	edge, ok := IntersectPolygonLine(sq, Point{2, 2}, Point{6, 2})
	require.True(t, ok)
	assert.InDelta(t, 0.5, edge.U, 1e-9)
}

func TestAngles(t *testing.T) {
	for _, a := range square().Angles() {
		assert.InDelta(t, 90.0, a, 1e-9)
	}
	straight := NewPolygon([]Point{{0, 0}, {2, 0}, {4, 0}, {4, 2}, {0, 2}, {0, 0}})
	assert.InDelta(t, 180.0, straight.Angles()[1], 1e-6)
}

func TestRectangle(t *testing.T) {
	r := NewRectangle(0, 0, 10, 10)
	cases := []struct {
		name string
		o    Rectangle
		want bool
	}{
		{"contained", NewRectangle(2, 2, 2, 2), true},
		{"containing", NewRectangle(-5, -5, 20, 20), true},
		{"partial", NewRectangle(8, 8, 5, 5), true},
		{"edge touching", NewRectangle(10, 0, 5, 5), false},
		{"corner touching", NewRectangle(10, 10, 1, 1), false},
		{"disjoint", NewRectangle(20, 20, 1, 1), false},
		{"x overlap only", NewRectangle(2, 20, 2, 2), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Intersects(tc.o))
			assert.Equal(t, tc.want, tc.o.Intersects(r))
		})
	}

	assert.True(t, r.Contains(0, 0))
	assert.False(t, r.Contains(10, 5))
}

func TestParseRectangle(t *testing.T) {
	r, err := ParseRectangle("1920,0,1920,1080.5")
	require.NoError(t, err)
	assert.Equal(t, NewRectangle(1920, 0, 1920, 1080.5), r)
	assert.Equal(t, "1920,0,1920,1080.5", r.Serialize())

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "1,2,3,4,5", "0,0,-1,5",
		"NaN,0,10,10", "0,0,Inf,10", "0,-inf,10,10", "0,0,10,+Inf"} {
		_, err := ParseRectangle(bad)
		assert.ErrorIs(t, err, ErrBadRectangle, bad)
	}
}
