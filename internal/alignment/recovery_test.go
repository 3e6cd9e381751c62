package alignment

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terralidar/rayalign/internal/geometry"
)

func TestRigidBetweenRecoversKnownPose(t *testing.T) {
	want := geometry.FromEuler(0.2, -0.4, 1.3)
	want.Trans = r3.Vector{X: 5, Y: -2, Z: 0.75}

	rng := rand.New(rand.NewSource(7))
	src := make([]r3.Vector, 20)
	dst := make([]r3.Vector, 20)
	for i := range src {
		src[i] = r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		dst[i] = want.Apply(src[i])
	}

	got, err := RigidBetween(src, dst)
	require.NoError(t, err)
	for _, v := range src {
		w := want.Apply(v)
		g := got.Apply(v)
		assert.InDelta(t, w.X, g.X, 1e-9)
		assert.InDelta(t, w.Y, g.Y, 1e-9)
		assert.InDelta(t, w.Z, g.Z, 1e-9)
	}
}

func TestRigidBetweenThreePoints(t *testing.T) {
	want := geometry.FromAxisAngle(r3.Vector{Z: 1}, 0.9)
	want.Trans = r3.Vector{X: -3, Y: 1, Z: 2}

	src := []r3.Vector{{X: 1}, {Y: 2}, {X: -1, Y: -1, Z: 0.5}}
	dst := make([]r3.Vector, len(src))
	for i, v := range src {
		dst[i] = want.Apply(v)
	}

	got, err := RigidBetween(src, dst)
	require.NoError(t, err)
	assert.InDelta(t, 0, got.Inverse().Compose(want).Angle(), 1e-9)
	assert.InDelta(t, want.Trans.X, got.Trans.X, 1e-9)
	assert.InDelta(t, want.Trans.Y, got.Trans.Y, 1e-9)
	assert.InDelta(t, want.Trans.Z, got.Trans.Z, 1e-9)
}

func TestRigidBetweenPureTranslation(t *testing.T) {
	src := []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1}}
	dst := make([]r3.Vector, len(src))
	for i, v := range src {
		dst[i] = v.Add(r3.Vector{X: 10, Y: -5, Z: 3})
	}
	got, err := RigidBetween(src, dst)
	require.NoError(t, err)
	assert.InDelta(t, 0, got.Angle(), 1e-9)
	assert.InDelta(t, 10, got.Trans.X, 1e-9)
	assert.InDelta(t, -5, got.Trans.Y, 1e-9)
	assert.InDelta(t, 3, got.Trans.Z, 1e-9)
}

func TestRigidBetweenCollinear(t *testing.T) {
	src := []r3.Vector{{X: 0}, {X: 1}, {X: 2}}
	dst := []r3.Vector{{Y: 0}, {Y: 1}, {Y: 2}}
	_, err := RigidBetween(src, dst)
	assert.ErrorIs(t, err, ErrDegenerateLandmarks)
}

func TestRigidBetweenTooFewPoints(t *testing.T) {
	_, err := RigidBetween([]r3.Vector{{X: 1}}, []r3.Vector{{X: 2}})
	assert.Error(t, err)
	_, err = RigidBetween([]r3.Vector{{}, {}, {}}, []r3.Vector{{}, {}})
	assert.Error(t, err)
}

func TestRigidBetweenNoReflection(t *testing.T) {
	// Mirrored input must still come back as a proper rotation, not a
	// reflection: the determinant of the recovered rotation stays +1.
	src := []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}, {X: -1, Y: -1, Z: -1}}
	dst := []r3.Vector{{X: -1}, {Y: 1}, {Z: 1}, {X: 1, Y: -1, Z: -1}}
	got, err := RigidBetween(src, dst)
	require.NoError(t, err)

	m := got.Matrix()
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	assert.InDelta(t, 1, det, 1e-9)
}
