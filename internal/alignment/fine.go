package alignment

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/glog"
	"gonum.org/v1/gonum/mat"

	"github.com/terralidar/rayalign/internal/aligner"
	"github.com/terralidar/rayalign/internal/geometry"
	"github.com/terralidar/rayalign/internal/nn"
	"github.com/terralidar/rayalign/internal/par"
	"github.com/terralidar/rayalign/internal/raycloud"
)

// Mode selects whether fine alignment is purely rigid or also fits the
// quadratic correction. The choice is fixed for a whole run.
type Mode int

const (
	Rigid Mode = iota
	RigidPlusQuadratic
)

// Outcome tags how the iteration loop ended. Both values are normal
// terminations: running out of iterations still leaves the best pose
// found so far applied to the cloud.
type Outcome int

const (
	Converged Outcome = iota
	MaxIterationsReached
)

func (o Outcome) String() string {
	if o == Converged {
		return "converged"
	}
	return "reached iteration limit"
}

// Result reports the accumulated rigid pose and how the loop terminated.
// FieldRMS is the magnitude of the last fitted quadratic correction, zero
// in rigid mode.
type Result struct {
	Pose       geometry.Pose
	Outcome    Outcome
	Iterations int
	Matched    int
	FieldRMS   float64
}

// FineAligner iteratively refines the alignment of a moving cloud against
// a fixed one using nearest neighbour correspondences.
type FineAligner struct {
	mode Mode
	tune aligner.FineTuning
}

func NewFineAligner(mode Mode, tune aligner.FineTuning) *FineAligner {
	return &FineAligner{mode: mode, tune: tune}
}

// Align mutates a's samples in place towards b and returns the total
// rigid pose that was applied. The correspondence search structure and the
// surface normals over b are built exactly once: b never moves, only a
// does. Each iteration's rigid update minimises the point-to-plane
// residual, so pulls do not slide along flat surfaces and stall between
// the target's sample positions.
func (f *FineAligner) Align(a, b *raycloud.Cloud) (Result, error) {
	if a.Len() == 0 || b.Len() == 0 {
		return Result{Pose: geometry.Identity()}, errors.New("fine alignment needs two non-empty clouds")
	}

	search := nn.NewSearcher(b.Ends)
	boundsB := b.Bounds()

	normals := make([]r3.Vector, b.Len())
	par.For(b.Len(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			normals[i] = estimateNormal(search, b.Ends, b.Ends[i], f.tune.NormalNeighbours)
		}
	})

	maxDist := f.tune.MaxPairDistance
	if maxDist <= 0 {
		maxDist = 15 * b.PointSpacing()
	}
	if maxDist <= 0 {
		maxDist = boundsB.MaxDim()
	}
	minPairs := f.tune.MinPairs
	if minPairs < 3 {
		minPairs = 3
	}

	type match struct {
		target int
		ok     bool
	}
	matches := make([]match, a.Len())
	src := make([]r3.Vector, 0, a.Len())
	dst := make([]r3.Vector, 0, a.Len())
	nrm := make([]r3.Vector, 0, a.Len())
	moved := make([]r3.Vector, 0, a.Len())
	residuals := make([]r3.Vector, 0, a.Len())

	res := Result{Pose: geometry.Identity(), Outcome: MaxIterationsReached}
	for iter := 1; iter <= f.tune.MaxIterations; iter++ {
		res.Iterations = iter

		par.For(a.Len(), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				j, _, ok := search.NearestWithin(a.Ends[i], maxDist)
				matches[i] = match{target: j, ok: ok}
			}
		})

		src = src[:0]
		dst = dst[:0]
		nrm = nrm[:0]
		for i, m := range matches {
			if !m.ok {
				// No surface within reach; leave the point out of this
				// iteration's estimate rather than failing.
				continue
			}
			src = append(src, a.Ends[i])
			dst = append(dst, b.Ends[m.target])
			nrm = append(nrm, normals[m.target])
		}
		res.Matched = len(src)
		if len(src) < minPairs {
			glog.Warningf("fine alignment iteration %d: only %d correspondences, skipping update", iter, len(src))
			continue
		}

		inc, err := rigidFromPlanes(src, dst, nrm)
		if err != nil {
			// Degenerate normals; the point-to-point solve still works.
			inc, err = RigidBetween(src, dst)
		}
		if err != nil {
			glog.Warningf("fine alignment iteration %d: %v, skipping update", iter, err)
			continue
		}

		var field *QuadraticField
		if f.mode == RigidPlusQuadratic {
			// Extract the rigid motion first so the smooth correction
			// only explains the leftover systematic drift.
			moved = moved[:0]
			residuals = residuals[:0]
			for i := range src {
				m := inc.Apply(src[i])
				moved = append(moved, m)
				residuals = append(residuals, dst[i].Sub(m))
			}
			field = FitQuadratic(moved, residuals, boundsB.Center(), math.Max(boundsB.MaxDim()/2, 1e-6))
		}

		a.Transform(inc)
		if field != nil {
			a.Displace(field.Displacement)
			res.FieldRMS = field.RMS(moved)
		}
		res.Pose = inc.Compose(res.Pose)

		if inc.Angle() < f.tune.RotationTolerance && inc.Trans.Norm() < f.tune.TranslationTolerance {
			res.Outcome = Converged
			break
		}
	}
	return res, nil
}

// rigidFromPlanes solves the linearised point-to-plane system for the
// incremental pose: per pair one row (p x n, n) with residual n.(q - p),
// least squares over the six rotation/translation unknowns. Pairs whose
// target normal could not be estimated are left out.
func rigidFromPlanes(src, dst, normals []r3.Vector) (geometry.Pose, error) {
	rows := make([]float64, 0, 6*len(src))
	rhs := make([]float64, 0, len(src))
	for i := range src {
		n := normals[i]
		if n == (r3.Vector{}) {
			continue
		}
		p := src[i]
		c := p.Cross(n)
		rows = append(rows, c.X, c.Y, c.Z, n.X, n.Y, n.Z)
		rhs = append(rhs, n.Dot(dst[i].Sub(p)))
	}
	if len(rhs) < 12 {
		return geometry.Identity(), errors.New("too few planar correspondences")
	}

	a := mat.NewDense(len(rhs), 6, rows)
	bv := mat.NewVecDense(len(rhs), rhs)
	var x mat.VecDense
	if err := x.SolveVec(a, bv); err != nil {
		return geometry.Identity(), err
	}

	w := r3.Vector{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
	pose := geometry.Identity()
	if angle := w.Norm(); angle > 0 {
		pose = geometry.FromAxisAngle(w, angle)
	}
	pose.Trans = r3.Vector{X: x.AtVec(3), Y: x.AtVec(4), Z: x.AtVec(5)}
	return pose, nil
}
