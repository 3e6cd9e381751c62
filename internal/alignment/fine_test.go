package alignment

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terralidar/rayalign/internal/aligner"
	"github.com/terralidar/rayalign/internal/geometry"
	"github.com/terralidar/rayalign/internal/raycloud"
)

// wavySurface builds a cloud sampling a non-planar surface, so a rigid fit
// against it is fully constrained in all six degrees of freedom.
func wavySurface(nx, ny int, spacing float64) *raycloud.Cloud {
	c := raycloud.New(nx * ny)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			x := float64(i) * spacing
			y := float64(j) * spacing
			end := r3.Vector{X: x, Y: y, Z: 0.5*math.Sin(x) + 0.3*math.Cos(1.3*y)}
			c.AddRay(end.Add(r3.Vector{Z: 2}), end, float64(c.Len()), raycloud.White)
		}
	}
	return c
}

func maxEndDistance(a, b *raycloud.Cloud) float64 {
	worst := 0.0
	for i := range a.Ends {
		if d := a.Ends[i].Sub(b.Ends[i]).Norm(); d > worst {
			worst = d
		}
	}
	return worst
}

func TestFineAlignConvergesRigid(t *testing.T) {
	b := wavySurface(40, 40, 0.25)
	a := b.Clone()
	offset := geometry.FromEuler(0.01, -0.015, 0.03)
	offset.Trans = r3.Vector{X: 0.2, Y: -0.15, Z: 0.1}
	a.Transform(offset)

	f := NewFineAligner(Rigid, aligner.DefaultTuning().Fine)
	res, err := f.Align(a, b)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Outcome)
	assert.Zero(t, res.FieldRMS)
	assert.Greater(t, res.Matched, 100)

	// a has been moved back onto b.
	assert.Less(t, maxEndDistance(a, b), 0.02)

	// The reported pose is the inverse of the offset that was applied.
	round := res.Pose.Compose(offset)
	assert.Less(t, round.Angle(), 1e-2)
	assert.Less(t, round.Trans.Norm(), 5e-2)
}

func TestFineAlignAlreadyAligned(t *testing.T) {
	b := wavySurface(20, 20, 0.3)
	a := b.Clone()

	f := NewFineAligner(Rigid, aligner.DefaultTuning().Fine)
	res, err := f.Align(a, b)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Outcome)
	assert.Less(t, res.Pose.Angle(), 1e-6)
	assert.Less(t, res.Pose.Trans.Norm(), 1e-6)
}

func TestFineAlignNonRigidOnRigidPair(t *testing.T) {
	// When the misalignment is purely rigid the fitted quadratic field has
	// nothing left to explain.
	b := wavySurface(30, 30, 0.3)
	a := b.Clone()
	offset := geometry.Translation(r3.Vector{X: 0.1, Y: 0.05})
	a.Transform(offset)

	f := NewFineAligner(RigidPlusQuadratic, aligner.DefaultTuning().Fine)
	res, err := f.Align(a, b)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Outcome)
	assert.Less(t, res.FieldRMS, 0.02)
	assert.Less(t, maxEndDistance(a, b), 0.05)
}

// latticeScene samples two walls and a floor on a regular grid, the
// surface layout that point-to-point pulls stall on: any residual between
// grid positions slides along the planes instead of closing.
func latticeScene() *raycloud.Cloud {
	c := raycloud.New(0)
	add := func(end r3.Vector) {
		c.AddRay(end.Add(r3.Vector{X: 1, Y: 1, Z: 1}), end, float64(c.Len()), raycloud.White)
	}
	for y := 0.0; y < 6; y += 0.15 {
		for z := 0.0; z < 2; z += 0.15 {
			add(r3.Vector{X: 0, Y: y, Z: z})
		}
	}
	for x := 0.0; x < 4; x += 0.15 {
		for z := 0.0; z < 2; z += 0.15 {
			add(r3.Vector{X: x, Y: 0, Z: z})
		}
	}
	for x := 0.0; x < 4; x += 0.2 {
		for y := 0.0; y < 6; y += 0.2 {
			add(r3.Vector{X: x, Y: y, Z: 0})
		}
	}
	return c
}

func TestFineAlignLatticeTranslation(t *testing.T) {
	b := latticeScene()
	a := b.Clone()
	a.Transform(geometry.Translation(r3.Vector{X: 0.2}))

	f := NewFineAligner(Rigid, aligner.DefaultTuning().Fine)
	res, err := f.Align(a, b)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Outcome)
	assert.Less(t, maxEndDistance(a, b), 0.01)
	assert.InDelta(t, -0.2, res.Pose.Trans.X, 0.01)
	assert.Less(t, res.Pose.Angle(), 1e-3)
}

func TestFineAlignLatticeSmallRotation(t *testing.T) {
	b := latticeScene()
	a := b.Clone()
	offset := geometry.FromEuler(0.01, -0.008, 0.02)
	offset.Trans = r3.Vector{X: 0.15, Y: -0.1, Z: 0.05}
	a.Transform(offset)

	f := NewFineAligner(Rigid, aligner.DefaultTuning().Fine)
	res, err := f.Align(a, b)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Outcome)
	assert.Less(t, maxEndDistance(a, b), 0.02)
}

func TestFineAlignIgnoresOutlier(t *testing.T) {
	// A correspondence outside the pair distance gate must not perturb
	// the estimate: with and without a far stray point the recovered
	// pose is the same.
	b := wavySurface(30, 30, 0.25)
	control := b.Clone()
	offset := geometry.FromEuler(0.005, 0.01, -0.008)
	offset.Trans = r3.Vector{X: 0.1, Y: -0.05, Z: 0.02}
	control.Transform(offset)

	spiked := control.Clone()
	spiked.AddRay(r3.Vector{X: 500, Y: 500, Z: 2}, r3.Vector{X: 500, Y: 500}, 0, raycloud.White)

	tune := aligner.DefaultTuning().Fine
	resControl, err := NewFineAligner(Rigid, tune).Align(control, b)
	require.NoError(t, err)
	resSpiked, err := NewFineAligner(Rigid, tune).Align(spiked, b)
	require.NoError(t, err)

	assert.Equal(t, Converged, resControl.Outcome)
	assert.Equal(t, Converged, resSpiked.Outcome)
	assert.Equal(t, spiked.Len()-1, resSpiked.Matched)

	diff := resSpiked.Pose.Compose(resControl.Pose.Inverse())
	assert.Less(t, diff.Angle(), 1e-6)
	assert.Less(t, diff.Trans.Norm(), 1e-6)
}

func TestFineAlignStarvation(t *testing.T) {
	// Clouds far beyond the pair distance gate never produce enough
	// correspondences; the loop runs out of iterations without erroring.
	b := wavySurface(10, 10, 0.2)
	a := b.Clone()
	a.Transform(geometry.Translation(r3.Vector{X: 1000}))

	tune := aligner.DefaultTuning().Fine
	tune.MaxIterations = 3
	tune.MaxPairDistance = 0.5
	f := NewFineAligner(Rigid, tune)
	res, err := f.Align(a, b)
	require.NoError(t, err)
	assert.Equal(t, MaxIterationsReached, res.Outcome)
	assert.Equal(t, 3, res.Iterations)
	assert.Less(t, res.Pose.Angle()+res.Pose.Trans.Norm(), 1e-12)
}

func TestFineAlignEmptyClouds(t *testing.T) {
	f := NewFineAligner(Rigid, aligner.DefaultTuning().Fine)
	_, err := f.Align(raycloud.New(0), wavySurface(5, 5, 0.2))
	assert.Error(t, err)
	_, err = f.Align(wavySurface(5, 5, 0.2), raycloud.New(0))
	assert.Error(t, err)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "reached iteration limit", MaxIterationsReached.String())
}
