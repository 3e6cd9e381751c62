package aligner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTuningOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"coarse:\n  grid_size: 128\nfine:\n  max_iterations: 5\n"), 0644))

	got, err := LoadTuning(path)
	require.NoError(t, err)
	def := DefaultTuning()

	assert.Equal(t, 128, got.Coarse.GridSize)
	assert.Equal(t, 5, got.Fine.MaxIterations)
	// Everything not mentioned keeps its default.
	assert.Equal(t, def.Coarse.YawStepDegrees, got.Coarse.YawStepDegrees)
	assert.Equal(t, def.Fine.MinPairs, got.Fine.MinPairs)
	assert.Equal(t, def.Axis, got.Axis)
}

func TestLoadTuningMissingFile(t *testing.T) {
	_, err := LoadTuning(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadTuningBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coarse: [not a map"), 0644))
	_, err := LoadTuning(path)
	assert.Error(t, err)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "scan_aligned.ply", OutputName("scan.ply", "_aligned.ply"))
	assert.Equal(t, "/data/a.b/scan_aligned.ply", OutputName("/data/a.b/scan.ply", "_aligned.ply"))
	assert.Equal(t, "noext_aligned.ply", OutputName("noext", "_aligned.ply"))
	assert.Equal(t, "scan", OutputName("scan.ply", ""))
}
