// Package grid rasterises cloud end points into a cubic occupancy grid,
// the input to the coarse aligner's frequency domain correlation.
package grid

import (
	"math"
	"runtime"
	"sync"

	"github.com/golang/geo/r3"
)

// Density is an N x N x N voxel grid anchored at Origin. Vals is indexed
// x + N*(y + N*z).
type Density struct {
	Origin r3.Vector
	Cell   float64
	N      int
	Vals   []float64
}

func NewDensity(origin r3.Vector, cell float64, n int) *Density {
	return &Density{
		Origin: origin,
		Cell:   cell,
		N:      n,
		Vals:   make([]float64, n*n*n),
	}
}

// CellOf returns the voxel coordinates holding v, reporting false when v
// lies outside the grid. Flooring keeps points just below the origin from
// truncating into cell zero.
func (d *Density) CellOf(v r3.Vector) (x, y, z int, ok bool) {
	p := v.Sub(d.Origin)
	x = int(math.Floor(p.X / d.Cell))
	y = int(math.Floor(p.Y / d.Cell))
	z = int(math.Floor(p.Z / d.Cell))
	if x < 0 || y < 0 || z < 0 || x >= d.N || y >= d.N || z >= d.N {
		return 0, 0, 0, false
	}
	return x, y, z, true
}

func (d *Density) Index(x, y, z int) int {
	return x + d.N*(y+d.N*z)
}

// Fill marks the voxels occupied by the given points. Each worker counts
// into its own shard and the shards are merged afterwards, so the fill is
// race free. Occupancy saturates at one per voxel: correlating occupancy
// rather than raw counts stops dense patches from dominating the peak.
func (d *Density) Fill(points []r3.Vector) {
	workers := runtime.NumCPU()
	if workers > len(points) {
		workers = 1
	}
	shards := make([][]float64, workers)
	chunk := (len(points) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(points) {
			hi = len(points)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			shard := make([]float64, len(d.Vals))
			for _, p := range points[lo:hi] {
				if x, y, z, ok := d.CellOf(p); ok {
					shard[d.Index(x, y, z)] = 1
				}
			}
			shards[w] = shard
		}(w, lo, hi)
	}
	wg.Wait()

	for _, shard := range shards {
		if shard == nil {
			continue
		}
		for i, v := range shard {
			if v != 0 {
				d.Vals[i] = 1
			}
		}
	}
}

// Occupied counts the voxels with non zero density.
func (d *Density) Occupied() int {
	n := 0
	for _, v := range d.Vals {
		if v != 0 {
			n++
		}
	}
	return n
}

// Slice copies out the z-th horizontal layer, for diagnostics.
func (d *Density) Slice(z int) []float64 {
	out := make([]float64, d.N*d.N)
	copy(out, d.Vals[z*d.N*d.N:(z+1)*d.N*d.N])
	return out
}
