package alignment

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/terralidar/rayalign/internal/aligner"
	"github.com/terralidar/rayalign/internal/geometry"
	"github.com/terralidar/rayalign/internal/nn"
	"github.com/terralidar/rayalign/internal/par"
	"github.com/terralidar/rayalign/internal/raycloud"
	"github.com/terralidar/rayalign/tools"
)

// ErrInsufficientStructure is returned when a cloud does not contain two
// large, near-orthogonal planar wall clusters.
var ErrInsufficientStructure = errors.New("could not find two dominant near-orthogonal walls")

// wallCluster accumulates near-vertical surface points whose normals agree
// in azimuth and plane offset. Azimuths are averaged on the doubled angle
// so the two facing directions of one wall land in the same cluster, and
// offsets are kept in the sign frame of the first member, so a wall whose
// noisy normals straddle azimuth zero is not split into two half clusters
// with opposite offsets.
type wallCluster struct {
	refAz    float64
	count    int
	cosSum   float64
	sinSum   float64
	offSum   float64
	minAlong float64
	maxAlong float64
}

func (w *wallCluster) azimuth() float64 {
	az := math.Atan2(w.sinSum, w.cosSum) / 2
	if az < 0 {
		az += math.Pi
	}
	return az
}

func (w *wallCluster) normal() r3.Vector {
	az := w.azimuth()
	n := r3.Vector{X: math.Cos(az), Y: math.Sin(az)}
	if math.Cos(az-w.refAz) < 0 {
		return n.Mul(-1)
	}
	return n
}

func (w *wallCluster) direction() r3.Vector {
	n := w.normal()
	return r3.Vector{X: -n.Y, Y: n.X}
}

func (w *wallCluster) offset() float64 {
	return w.offSum / float64(w.count)
}

func (w *wallCluster) length() float64 {
	return w.maxAlong - w.minAlong
}

// AlignToAxes rotates and translates the cloud so its two dominant walls
// pass through the origin, with the longer wall running along Y and up
// staying Z. The cloud is mutated in place and the applied pose returned.
func AlignToAxes(c *raycloud.Cloud, tune aligner.AxisTuning) (geometry.Pose, error) {
	if c.Len() < 4*tune.NormalNeighbours {
		return geometry.Identity(), fmt.Errorf("%w: cloud has only %d points", ErrInsufficientStructure, c.Len())
	}

	stride := 1
	if tune.MaxSamples > 0 && c.Len() > tune.MaxSamples {
		stride = c.Len() / tune.MaxSamples
	}
	pts := make([]r3.Vector, 0, c.Len()/stride+1)
	for i := 0; i < c.Len(); i += stride {
		pts = append(pts, c.Ends[i])
	}

	search := nn.NewSearcher(pts)
	normals := make([]r3.Vector, len(pts))
	par.For(len(pts), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			normals[i] = estimateNormal(search, pts, pts[i], tune.NormalNeighbours)
		}
	})

	var clusters []*wallCluster
	candidates := 0
	for i, nm := range normals {
		if nm == (r3.Vector{}) || math.Abs(nm.Z) > tune.MaxNormalZ {
			continue
		}
		h := r3.Vector{X: nm.X, Y: nm.Y}
		norm := h.Norm()
		if norm == 0 {
			continue
		}
		h = h.Mul(1 / norm)
		az := math.Atan2(h.Y, h.X)
		azLine := az
		if azLine < 0 {
			azLine += math.Pi
		}
		off := h.Dot(pts[i])
		candidates++

		var target *wallCluster
		sign := 1.0
		for _, cl := range clusters {
			// A normal facing the opposite way describes the same wall
			// with its offset negated.
			s := 1.0
			if math.Cos(az-cl.refAz) < 0 {
				s = -1
			}
			if wallAngleDiff(azLine, cl.azimuth()) < tune.AngleTolerance &&
				math.Abs(s*off-cl.offset()) < tune.OffsetTolerance {
				target = cl
				sign = s
				break
			}
		}
		if target == nil {
			target = &wallCluster{refAz: az, minAlong: math.Inf(1), maxAlong: math.Inf(-1)}
			clusters = append(clusters, target)
		}
		target.count++
		target.cosSum += math.Cos(2 * az)
		target.sinSum += math.Sin(2 * az)
		target.offSum += sign * off
		along := pts[i].Dot(r3.Vector{X: -math.Sin(target.refAz), Y: math.Cos(target.refAz)})
		target.minAlong = math.Min(target.minAlong, along)
		target.maxAlong = math.Max(target.maxAlong, along)
	}
	if candidates == 0 {
		return geometry.Identity(), ErrInsufficientStructure
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].count > clusters[j].count })
	minCount := int(tune.MinWallFraction * float64(candidates))
	if minCount < 30 {
		minCount = 30
	}
	if clusters[0].count < minCount {
		return geometry.Identity(), ErrInsufficientStructure
	}
	primary := clusters[0]

	var secondary *wallCluster
	for _, cl := range clusters[1:] {
		if cl.count < minCount {
			break
		}
		if math.Abs(primary.normal().Dot(cl.normal())) < 0.25 {
			secondary = cl
			break
		}
	}
	if secondary == nil {
		return geometry.Identity(), ErrInsufficientStructure
	}
	tools.LogOutput(fmt.Sprintf("> walls found: %d and %d supporting points, lengths %.2f and %.2f",
		primary.count, secondary.count, primary.length(), secondary.length()))

	wallY, wallX := primary, secondary
	if secondary.length() > primary.length() {
		wallY, wallX = secondary, primary
	}

	nY := wallY.normal()
	dY := wallY.direction()
	nX := wallX.normal()
	det := nY.X*nX.Y - nY.Y*nX.X
	if math.Abs(det) < 1e-6 {
		return geometry.Identity(), ErrInsufficientStructure
	}
	o1, o2 := wallY.offset(), wallX.offset()
	corner := r3.Vector{
		X: (o1*nX.Y - o2*nY.Y) / det,
		Y: (nY.X*o2 - nX.X*o1) / det,
		Z: zPercentile(pts, 0.01),
	}

	pose := geometry.FromMatrix([3][3]float64{
		{nY.X, nY.Y, 0},
		{dY.X, dY.Y, 0},
		{0, 0, 1},
	})
	pose.Trans = pose.Rotate(corner).Mul(-1)
	c.Transform(pose)
	return pose, nil
}

// estimateNormal fits a plane to the point's neighbourhood and returns the
// direction of least spread, or zero when the neighbourhood is degenerate.
func estimateNormal(search *nn.Searcher, pts []r3.Vector, p r3.Vector, k int) r3.Vector {
	if k < 3 {
		k = 3
	}
	nb := search.NearestN(p, k+1)
	if len(nb) < 4 {
		return r3.Vector{}
	}

	var mean r3.Vector
	for _, m := range nb {
		mean = mean.Add(pts[m.Index])
	}
	mean = mean.Mul(1 / float64(len(nb)))

	var xx, xy, xz, yy, yz, zz float64
	for _, m := range nb {
		d := pts[m.Index].Sub(mean)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}
	sym := mat.NewSymDense(3, []float64{xx, xy, xz, xy, yy, yz, xz, yz, zz})

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return r3.Vector{}
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	// Eigenvalues come out ascending, so column 0 is the normal.
	return r3.Vector{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}
}

// wallAngleDiff compares wall azimuths modulo pi.
func wallAngleDiff(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > math.Pi {
		d -= math.Pi
	}
	if d > math.Pi/2 {
		d = math.Pi - d
	}
	return d
}

func zPercentile(pts []r3.Vector, frac float64) float64 {
	zs := make([]float64, len(pts))
	for i, p := range pts {
		zs[i] = p.Z
	}
	sort.Float64s(zs)
	i := int(frac * float64(len(zs)))
	if i >= len(zs) {
		i = len(zs) - 1
	}
	return zs[i]
}
