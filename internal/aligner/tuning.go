package aligner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning collects the empirical parameters of the pipeline. The defaults
// work for indoor and outdoor scans at metre scale; a YAML file can
// override any subset of them.
type Tuning struct {
	Coarse CoarseTuning `yaml:"coarse"`
	Fine   FineTuning   `yaml:"fine"`
	Axis   AxisTuning   `yaml:"axis"`
}

type CoarseTuning struct {
	// GridSize is the side length of the correlation grid in voxels.
	// Half of the grid is left empty as zero padding so the circular
	// correlation does not wrap cloud structure onto itself.
	GridSize int `yaml:"grid_size"`
	// YawStepDegrees is the rotation search discretisation.
	YawStepDegrees float64 `yaml:"yaw_step_degrees"`
	// MinPeakFraction is the correlation peak height, as a fraction of
	// the smaller cloud's occupied voxel count, below which the result
	// is reported as low confidence.
	MinPeakFraction float64 `yaml:"min_peak_fraction"`
}

type FineTuning struct {
	MaxIterations int `yaml:"max_iterations"`
	// MaxPairDistance gates correspondences; zero means derive it from
	// the target cloud's point spacing.
	MaxPairDistance float64 `yaml:"max_pair_distance"`
	MinPairs        int     `yaml:"min_pairs"`
	// NormalNeighbours sets the neighbourhood size for the target cloud's
	// surface normals, which the point-to-plane residuals project onto.
	NormalNeighbours     int     `yaml:"normal_neighbours"`
	RotationTolerance    float64 `yaml:"rotation_tolerance"`    // radians
	TranslationTolerance float64 `yaml:"translation_tolerance"` // metres
}

type AxisTuning struct {
	MaxSamples       int     `yaml:"max_samples"`
	NormalNeighbours int     `yaml:"normal_neighbours"`
	MaxNormalZ       float64 `yaml:"max_normal_z"`
	AngleTolerance   float64 `yaml:"angle_tolerance"` // radians
	OffsetTolerance  float64 `yaml:"offset_tolerance"`
	MinWallFraction  float64 `yaml:"min_wall_fraction"`
}

func DefaultTuning() Tuning {
	return Tuning{
		Coarse: CoarseTuning{
			GridSize:        64,
			YawStepDegrees:  4,
			MinPeakFraction: 0.05,
		},
		Fine: FineTuning{
			MaxIterations:        30,
			MaxPairDistance:      0,
			MinPairs:             10,
			NormalNeighbours:     8,
			RotationTolerance:    1e-4,
			TranslationTolerance: 1e-4,
		},
		Axis: AxisTuning{
			MaxSamples:       50000,
			NormalNeighbours: 16,
			MaxNormalZ:       0.35,
			AngleTolerance:   0.15,
			OffsetTolerance:  0.25,
			MinWallFraction:  0.1,
		},
	}
}

// LoadTuning reads a YAML tuning file on top of the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	data, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse tuning %s: %w", path, err)
	}
	return t, nil
}
