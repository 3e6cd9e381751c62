package pkg

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terralidar/rayalign/internal/aligner"
	"github.com/terralidar/rayalign/internal/geometry"
	"github.com/terralidar/rayalign/internal/ply"
	"github.com/terralidar/rayalign/internal/raycloud"
)

// sceneCloud samples two walls and a bumpy floor, enough structure for
// every stage of the pipeline to lock onto.
func sceneCloud() *raycloud.Cloud {
	c := raycloud.New(0)
	add := func(end r3.Vector) {
		c.AddRay(end.Add(r3.Vector{X: 1, Y: 1, Z: 1}), end, float64(c.Len()), raycloud.White)
	}
	for y := 0.0; y <= 8; y += 0.15 {
		for z := 0.0; z <= 2.5; z += 0.15 {
			add(r3.Vector{X: 0, Y: y, Z: z})
		}
	}
	for x := 0.0; x <= 5; x += 0.15 {
		for z := 0.0; z <= 2.5; z += 0.15 {
			add(r3.Vector{X: x, Y: 0, Z: z})
		}
	}
	for x := 0.0; x <= 5; x += 0.2 {
		for y := 0.0; y <= 8; y += 0.2 {
			add(r3.Vector{X: x, Y: y, Z: 0.1 * math.Sin(x*2+y)})
		}
	}
	return c
}

func writeScene(t *testing.T, dir, name string, c *raycloud.Cloud) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, ply.Save(path, c))
	return path
}

func TestRunAlignLocal(t *testing.T) {
	dir := t.TempDir()
	b := sceneCloud()
	a := b.Clone()
	offset := geometry.FromEuler(0.005, -0.004, 0.02)
	offset.Trans = r3.Vector{X: 0.15, Y: -0.1, Z: 0.05}
	a.Transform(offset)

	opts := &aligner.Options{
		CloudA:    writeScene(t, dir, "scanA.ply", a),
		CloudB:    writeScene(t, dir, "scanB.ply", b),
		LocalOnly: true,
		Tuning:    aligner.DefaultTuning(),
	}
	require.NoError(t, NewAligner().RunAlign(opts))

	out := filepath.Join(dir, "scanA_aligned.ply")
	got, err := ply.Load(out)
	require.NoError(t, err)
	require.Equal(t, b.Len(), got.Len())

	worst := 0.0
	for i := range got.Ends {
		if d := got.Ends[i].Sub(b.Ends[i]).Norm(); d > worst {
			worst = d
		}
	}
	assert.Less(t, worst, 0.05)
}

func TestRunAlignCoarsePlusFine(t *testing.T) {
	dir := t.TempDir()
	b := sceneCloud()
	a := b.Clone()
	offset := geometry.Translation(r3.Vector{X: 20, Y: -15, Z: 3}).
		Compose(geometry.FromAxisAngle(r3.Vector{Z: 1}, math.Pi/2))
	a.Transform(offset)

	tuning := aligner.DefaultTuning()
	tuning.Coarse.GridSize = 32
	tuning.Coarse.YawStepDegrees = 90

	opts := &aligner.Options{
		CloudA: writeScene(t, dir, "scanA.ply", a),
		CloudB: writeScene(t, dir, "scanB.ply", b),
		Tuning: tuning,
	}
	require.NoError(t, NewAligner().RunAlign(opts))

	got, err := ply.Load(filepath.Join(dir, "scanA_aligned.ply"))
	require.NoError(t, err)

	worst := 0.0
	for i := range got.Ends {
		if d := got.Ends[i].Sub(b.Ends[i]).Norm(); d > worst {
			worst = d
		}
	}
	assert.Less(t, worst, 0.1)
}

func TestRunAlignVerboseArtifacts(t *testing.T) {
	dir := t.TempDir()
	b := sceneCloud()
	a := b.Clone()
	a.Transform(geometry.Translation(r3.Vector{X: 5, Y: 2}))

	tuning := aligner.DefaultTuning()
	tuning.Coarse.GridSize = 16
	tuning.Coarse.YawStepDegrees = 180

	opts := &aligner.Options{
		CloudA:  writeScene(t, dir, "scanA.ply", a),
		CloudB:  writeScene(t, dir, "scanB.ply", b),
		Verbose: true,
		Tuning:  tuning,
	}
	require.NoError(t, NewAligner().RunAlign(opts))

	for _, name := range []string{"scanA_coarse_aligned.ply", "coarse_correlation.png", "coarse_density.png", "scanA_aligned.ply"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestRunAlignSelf(t *testing.T) {
	dir := t.TempDir()
	c := sceneCloud()
	spin := geometry.FromAxisAngle(r3.Vector{Z: 1}, 0.4)
	spin.Trans = r3.Vector{X: 12, Y: -7}
	c.Transform(spin)

	opts := &aligner.Options{
		CloudA: writeScene(t, dir, "room.ply", c),
		Tuning: aligner.DefaultTuning(),
	}
	require.NoError(t, NewAligner().RunAlign(opts))

	got, err := ply.Load(filepath.Join(dir, "room_aligned.ply"))
	require.NoError(t, err)

	// Walls end up against the axes and the floor near z=0. The longer
	// wall runs along Y, in one of the two directions.
	bounds := got.Bounds()
	assert.InDelta(t, 0, bounds.Min.Z, 0.25)
	assert.InDelta(t, 8, bounds.Size().Y, 0.3)
	assert.InDelta(t, 5, bounds.Size().X, 0.3)
	assert.Less(t, math.Min(math.Abs(bounds.Min.Y), math.Abs(bounds.Max.Y)), 0.2)
	assert.Less(t, math.Min(math.Abs(bounds.Min.X), math.Abs(bounds.Max.X)), 0.2)
}

func TestRunAlignMissingFile(t *testing.T) {
	opts := &aligner.Options{
		CloudA: filepath.Join(t.TempDir(), "absent.ply"),
		Tuning: aligner.DefaultTuning(),
	}
	assert.Error(t, NewAligner().RunAlign(opts))
}
