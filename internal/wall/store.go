package wall

import (
	"sync/atomic"

	"github.com/Ko-stant/tilewall/internal/geometry"
)

const (
	DefaultXScale = 1920
	DefaultYScale = 1080
)

// Geometry is an immutable pairing of the configured polygon, the active
// scale, and the polygon derived from them. Grid holds the screens of the
// unscaled polygon.
type Geometry struct {
	Unscaled geometry.Polygon
	XScale   float64
	YScale   float64
	Derived  geometry.Polygon
	Grid     geometry.ScreenGrid
}

func newGeometry(unscaled geometry.Polygon, xs, ys float64) *Geometry {
	return &Geometry{
		Unscaled: unscaled,
		XScale:   xs,
		YScale:   ys,
		Derived:  unscaled.Scale(xs, ys),
		Grid:     geometry.BuildScreenGrid(unscaled),
	}
}

// Store holds the current wall Geometry. Readers always see a matched
// polygon and scale because every update replaces the whole snapshot.
type Store struct {
	current atomic.Pointer[Geometry]
}

// NewStore returns a store with the default scale and an empty polygon.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(newGeometry(geometry.Polygon{}, DefaultXScale, DefaultYScale))
	return s
}

// UseGeo installs polygon as the unscaled wall under the current scale.
func (s *Store) UseGeo(polygon geometry.Polygon) {
	for {
		old := s.current.Load()
		next := newGeometry(polygon, old.XScale, old.YScale)
		if s.current.CompareAndSwap(old, next) {
			return
		}
	}
}

// SetScale changes the scale factors and rederives the polygon.
func (s *Store) SetScale(xscale, yscale float64) {
	for {
		old := s.current.Load()
		next := newGeometry(old.Unscaled, xscale, yscale)
		if s.current.CompareAndSwap(old, next) {
			return
		}
	}
}

// Geo returns the derived polygon in pixel space.
func (s *Store) Geo() geometry.Polygon {
	return s.current.Load().Derived
}

// Snapshot returns the full current geometry.
func (s *Store) Snapshot() *Geometry {
	return s.current.Load()
}
