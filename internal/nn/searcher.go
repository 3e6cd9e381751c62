// Package nn provides nearest neighbour search over an immutable point
// set. A Searcher is built once from the target cloud and is safe for
// concurrent read-only queries; if the underlying points change, build a
// new Searcher instead of mutating this one.
package nn

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// point is a stored position together with its index in the source slice.
type point struct {
	pos r3.Vector
	idx int
}

func (p point) Dims() int { return 3 }

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	default:
		return p.pos.Z - q.pos.Z
	}
}

// Distance returns the squared Euclidean distance, which is what the
// kd-tree's pruning expects.
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	d := p.pos.Sub(q.pos)
	return d.Dot(d)
}

type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Pivot(d kdtree.Dim) int                { return plane{points: p, Dim: d}.Pivot() }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

type plane struct {
	kdtree.Dim
	points
}

func (p plane) Less(i, j int) bool { return p.points[i].Compare(p.points[j], p.Dim) < 0 }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }

// Neighbour is one nearest neighbour query result.
type Neighbour struct {
	Index int
	Dist  float64
}

// Searcher answers nearest neighbour queries over a fixed point set.
type Searcher struct {
	tree *kdtree.Tree
	n    int
}

// NewSearcher builds a kd-tree over the given points. The points are
// copied; the caller may continue to use the slice.
func NewSearcher(pts []r3.Vector) *Searcher {
	ps := make(points, len(pts))
	for i, v := range pts {
		ps[i] = point{pos: v, idx: i}
	}
	return &Searcher{tree: kdtree.New(ps, false), n: len(pts)}
}

func (s *Searcher) Len() int { return s.n }

// Nearest returns the index of the stored point closest to q and the
// Euclidean distance to it.
func (s *Searcher) Nearest(q r3.Vector) (int, float64, bool) {
	if s.n == 0 {
		return 0, 0, false
	}
	got, d := s.tree.Nearest(point{pos: q, idx: -1})
	p, ok := got.(point)
	if !ok {
		return 0, 0, false
	}
	return p.idx, math.Sqrt(d), true
}

// NearestWithin is Nearest with a maximum accepted distance.
func (s *Searcher) NearestWithin(q r3.Vector, maxDist float64) (int, float64, bool) {
	i, d, ok := s.Nearest(q)
	if !ok || d > maxDist {
		return 0, 0, false
	}
	return i, d, true
}

// NearestN returns up to n nearest neighbours of q ordered by distance.
func (s *Searcher) NearestN(q r3.Vector, n int) []Neighbour {
	if n <= 0 || s.n == 0 {
		return nil
	}
	keep := kdtree.NewNKeeper(n)
	s.tree.NearestSet(keep, point{pos: q, idx: -1})
	out := make([]Neighbour, 0, n)
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		out = append(out, Neighbour{Index: cd.Comparable.(point).idx, Dist: math.Sqrt(cd.Dist)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dist < out[j].Dist })
	return out
}
