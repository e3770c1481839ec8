package geometry

import (
	"errors"
	"math"
)

// MaxScreenCells bounds the number of cells a ScreenGrid may hold.
const MaxScreenCells = 1 << 16

// ErrGridTooLarge is returned for walls whose extents exceed MaxScreenCells.
var ErrGridTooLarge = errors.New("geometry: wall extents exceed screen grid limit")

// ScreenGrid lays unit cells over an unscaled wall polygon. A cell whose
// center lies inside the polygon is a screen; screens that share an edge
// belong to the same region.
type ScreenGrid struct {
	OriginX, OriginY int
	Width, Height    int
	// CellRegionIDs holds one entry per cell, row major; -1 marks cells
	// outside the wall.
	CellRegionIDs []int
	RegionsCount  int
}

// CheckScreenGrid reports whether p fits in a ScreenGrid.
func CheckScreenGrid(p Polygon) error {
	ext := p.Extents
	w := math.Ceil(ext.X+ext.W) - math.Floor(ext.X)
	h := math.Ceil(ext.Y+ext.H) - math.Floor(ext.Y)
	if !(w*h <= MaxScreenCells) {
		return ErrGridTooLarge
	}
	return nil
}

// BuildScreenGrid labels the screens of p. Polygons rejected by
// CheckScreenGrid get an empty grid.
func BuildScreenGrid(p Polygon) ScreenGrid {
	if len(p.Points) < 3 || CheckScreenGrid(p) != nil {
		return ScreenGrid{}
	}
	ext := p.Extents
	g := ScreenGrid{
		OriginX: int(math.Floor(ext.X)),
		OriginY: int(math.Floor(ext.Y)),
	}
	g.Width = int(math.Ceil(ext.X+ext.W)) - g.OriginX
	g.Height = int(math.Ceil(ext.Y+ext.H)) - g.OriginY
	if g.Width <= 0 || g.Height <= 0 {
		g.Width, g.Height = 0, 0
		return g
	}

	w, h := g.Width, g.Height
	total := w * h
	inside := make([]bool, total)
	g.CellRegionIDs = make([]int, total)
	for y := range h {
		for x := range w {
			idx := y*w + x
			g.CellRegionIDs[idx] = -1
			inside[idx] = PointInPolygon(p, float64(g.OriginX+x)+0.5, float64(g.OriginY+y)+0.5)
		}
	}

	regionID := 0
	queue := make([]int, 0, total)
	for start := range total {
		if !inside[start] || g.CellRegionIDs[start] != -1 {
			continue
		}
		g.CellRegionIDs[start] = regionID
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]
			cx, cy := idx%w, idx/w

			for _, n := range [4][2]int{{cx - 1, cy}, {cx + 1, cy}, {cx, cy - 1}, {cx, cy + 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				nidx := ny*w + nx
				if inside[nidx] && g.CellRegionIDs[nidx] == -1 {
					g.CellRegionIDs[nidx] = regionID
					queue = append(queue, nidx)
				}
			}
		}
		regionID++
	}
	g.RegionsCount = regionID
	return g
}

// Region returns the region of the screen at grid position x,y, or -1 if
// there is no screen there.
func (g ScreenGrid) Region(x, y int) int {
	cx, cy := x-g.OriginX, y-g.OriginY
	if cx < 0 || cy < 0 || cx >= g.Width || cy >= g.Height {
		return -1
	}
	return g.CellRegionIDs[cy*g.Width+cx]
}

// Screens lists the grid positions of every screen, row major.
func (g ScreenGrid) Screens() []Point {
	var out []Point
	for idx, region := range g.CellRegionIDs {
		if region < 0 {
			continue
		}
		out = append(out, Point{
			X: float64(g.OriginX + idx%g.Width),
			Y: float64(g.OriginY + idx/g.Width),
		})
	}
	return out
}

// ScreenRect is the pixel rectangle of the screen at x,y under the given
// scale.
func ScreenRect(x, y int, xscale, yscale float64) Rectangle {
	return Rectangle{X: float64(x) * xscale, Y: float64(y) * yscale, W: xscale, H: yscale}
}
