package risk

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
)

// StaticIndex holds the world positions of fully occupied map cells and
// answers "is any static obstacle within r of p" for scan classification.
// It is built once per map and never updated incrementally.
type StaticIndex struct {
	points []Point
	tree   *quadtree.Quadtree
}

// NewStaticIndex builds the index from every cell whose value equals occupied.
// Unknown and free cells are ignored; an empty or degenerate grid yields an
// empty index.
func NewStaticIndex(g *OccupancyGrid, occupied int8) (*StaticIndex, error) {
	idx := &StaticIndex{}
	if g == nil {
		return idx, nil
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	for j := 0; j < g.Info.Height; j++ {
		for i := 0; i < g.Info.Width; i++ {
			if g.Cell(i, j) == occupied {
				idx.points = append(idx.points, g.CellToWorld(i, j))
			}
		}
	}
	if len(idx.points) == 0 {
		return idx, nil
	}

	mp := make(orb.MultiPoint, len(idx.points))
	for i, p := range idx.points {
		mp[i] = orbPoint(p)
	}
	bound := mp.Bound().Pad(g.Info.Resolution)
	idx.tree = quadtree.New(bound)
	for _, p := range mp {
		if err := idx.tree.Add(p); err != nil {
			return nil, fmt.Errorf("indexing static point %v: %w", p, err)
		}
	}
	return idx, nil
}

// Len returns the number of static obstacle points
func (s *StaticIndex) Len() int {
	if s == nil {
		return 0
	}
	return len(s.points)
}

// Points returns a copy of the static obstacle positions
func (s *StaticIndex) Points() []Point {
	if s == nil {
		return nil
	}
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Nearest returns the closest static point to p and its distance.
// ok is false when the index is empty.
func (s *StaticIndex) Nearest(p Point) (Point, float64, bool) {
	if s == nil || s.tree == nil {
		return Point{}, 0, false
	}
	found := s.tree.Find(orbPoint(p))
	if found == nil {
		return Point{}, 0, false
	}
	fp := found.Point()
	return Point{X: fp[0], Y: fp[1]}, planar.Distance(fp, orbPoint(p)), true
}

// Explains reports whether a static obstacle lies within radius of p
func (s *StaticIndex) Explains(p Point, radius float64) bool {
	_, d, ok := s.Nearest(p)
	return ok && d <= radius
}
