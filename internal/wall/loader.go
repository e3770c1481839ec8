package wall

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ko-stant/tilewall/internal/geometry"
	"github.com/Ko-stant/tilewall/internal/protocol"
)

var (
	// ErrNotClosed is returned when a move chain does not end at its origin.
	ErrNotClosed = errors.New("wall: polygon is not closed")
	// ErrBadMove is returned for a move with zero or several directions.
	ErrBadMove = errors.New("wall: move must name exactly one direction")
)

// Move is one relative step of the wall outline. Exactly one field is set.
type Move struct {
	Right float64 `json:"right,omitempty" yaml:"right,omitempty"`
	Down  float64 `json:"down,omitempty" yaml:"down,omitempty"`
	Left  float64 `json:"left,omitempty" yaml:"left,omitempty"`
	Up    float64 `json:"up,omitempty" yaml:"up,omitempty"`
}

// Config is the on-disk wall description.
type Config struct {
	Polygon []Move `json:"polygon" yaml:"polygon"`
}

// LoadConfig reads a wall config file. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wall config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, protocol.NewError(protocol.KindConfig, "failed to parse wall config "+path, err)
	}
	return &cfg, nil
}

// Load reads a wall config file and builds its closed polygon.
func Load(path string) (geometry.Polygon, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return geometry.Polygon{}, err
	}
	return ParseMoves(cfg.Polygon)
}

// ParseMoves walks the moves from (0,0) and returns the resulting polygon.
// The chain must return to the origin.
func ParseMoves(moves []Move) (geometry.Polygon, error) {
	points := make([]geometry.Point, 0, len(moves)+1)
	last := geometry.Point{}
	points = append(points, last)

	for i, m := range moves {
		next, err := m.apply(last)
		if err != nil {
			return geometry.Polygon{}, protocol.NewError(protocol.KindConfig, fmt.Sprintf("move %d", i), err)
		}
		points = append(points, next)
		last = next
	}

	poly := geometry.NewPolygon(points)
	if !poly.IsClosed() || len(moves) == 0 {
		return geometry.Polygon{}, protocol.NewError(protocol.KindConfig,
			fmt.Sprintf("chain ends at (%v,%v)", last.X, last.Y), ErrNotClosed)
	}
	if err := geometry.CheckScreenGrid(poly); err != nil {
		return geometry.Polygon{}, protocol.NewError(protocol.KindConfig,
			fmt.Sprintf("extents %s", poly.Extents), err)
	}
	return poly, nil
}

func (m Move) apply(from geometry.Point) (geometry.Point, error) {
	set := 0
	next := from
	if m.Right != 0 {
		set++
		next.X += m.Right
	}
	if m.Down != 0 {
		set++
		next.Y += m.Down
	}
	if m.Left != 0 {
		set++
		next.X -= m.Left
	}
	if m.Up != 0 {
		set++
		next.Y -= m.Up
	}
	if set != 1 || math.IsNaN(next.X+next.Y) || math.IsInf(next.X+next.Y, 0) {
		return from, ErrBadMove
	}
	return next, nil
}
