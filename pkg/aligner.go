package pkg

import (
	"fmt"
	"path/filepath"

	"github.com/terralidar/rayalign/internal/aligner"
	"github.com/terralidar/rayalign/internal/alignment"
	"github.com/terralidar/rayalign/internal/ply"
	"github.com/terralidar/rayalign/tools"
)

type IAligner interface {
	RunAlign(opts *aligner.Options) error
}

// Aligner runs the registration pipeline: optional coarse alignment, fine
// alignment to convergence, then recovery of the net rigid transform from
// three landmark points. With a single input cloud it instead axis aligns
// the cloud to its dominant walls.
type Aligner struct{}

func NewAligner() IAligner {
	return &Aligner{}
}

func (al *Aligner) RunAlign(opts *aligner.Options) error {
	if opts.CloudB == "" {
		return al.selfAlign(opts)
	}
	return al.crossAlign(opts)
}

func (al *Aligner) selfAlign(opts *aligner.Options) error {
	tools.LogOutput("> reading cloud", filepath.Base(opts.CloudA))
	cloud, err := ply.Load(opts.CloudA)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.CloudA, err)
	}

	pose, err := alignment.AlignToAxes(cloud, opts.Tuning.Axis)
	if err != nil {
		return fmt.Errorf("axis align %s: %w", opts.CloudA, err)
	}
	roll, pitch, yaw := pose.Euler()
	fmt.Printf("Axis alignment of %s:\n", stub(opts.CloudA))
	fmt.Printf("          rotation: (%.4f, %.4f, %.4f) degrees\n",
		tools.RadiansToDegrees(roll), tools.RadiansToDegrees(pitch), tools.RadiansToDegrees(yaw))
	fmt.Printf("  then translation: (%.4f, %.4f, %.4f)\n", pose.Trans.X, pose.Trans.Y, pose.Trans.Z)

	out := aligner.OutputName(opts.CloudA, "_aligned.ply")
	if err := ply.Save(out, cloud); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	tools.LogOutput("> wrote", out)
	return nil
}

func (al *Aligner) crossAlign(opts *aligner.Options) error {
	tools.LogOutput("> reading cloud", filepath.Base(opts.CloudA))
	cloudA, err := ply.Load(opts.CloudA)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.CloudA, err)
	}
	tools.LogOutput("> reading cloud", filepath.Base(opts.CloudB))
	cloudB, err := ply.Load(opts.CloudB)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.CloudB, err)
	}

	// Three distant points, recorded up front so the total transform
	// applied by the stages below can be recovered afterwards.
	landmarks := cloudA.LandmarkIndices()
	before := cloudA.PositionsAt(landmarks)

	if !opts.LocalOnly {
		verboseDir := ""
		if opts.Verbose {
			verboseDir = filepath.Dir(opts.CloudA)
		}
		coarse, _, err := alignment.CoarseAlign(cloudA, cloudB, opts.Tuning.Coarse, verboseDir)
		if err != nil {
			return fmt.Errorf("coarse align: %w", err)
		}
		cloudA.Transform(coarse)
		if opts.Verbose {
			name := aligner.OutputName(opts.CloudA, "_coarse_aligned.ply")
			if err := ply.Save(name, cloudA); err != nil {
				return fmt.Errorf("save %s: %w", name, err)
			}
			tools.LogOutput("> wrote", name)
		}
	}

	mode := alignment.Rigid
	if opts.NonRigid {
		mode = alignment.RigidPlusQuadratic
	}
	fine := alignment.NewFineAligner(mode, opts.Tuning.Fine)
	res, err := fine.Align(cloudA, cloudB)
	if err != nil {
		return fmt.Errorf("fine align: %w", err)
	}
	tools.LogOutput(fmt.Sprintf("> fine alignment %s after %d iterations (%d correspondences)",
		res.Outcome, res.Iterations, res.Matched))

	after := cloudA.PositionsAt(landmarks)
	net, err := alignment.RigidBetween(before[:], after[:])
	if err != nil {
		return fmt.Errorf("recover net transform: %w", err)
	}
	roll, pitch, yaw := net.Euler()
	fmt.Printf("Transformation of %s:\n", stub(opts.CloudA))
	fmt.Printf("          rotation: (%.4f, %.4f, %.4f) degrees\n",
		tools.RadiansToDegrees(roll), tools.RadiansToDegrees(pitch), tools.RadiansToDegrees(yaw))
	fmt.Printf("  then translation: (%.4f, %.4f, %.4f)\n", net.Trans.X, net.Trans.Y, net.Trans.Z)
	if opts.NonRigid {
		fmt.Println("This rigid transformation is approximate as a non-rigid transformation was applied")
		tools.LogOutput(fmt.Sprintf("> quadratic correction magnitude: %.4f", res.FieldRMS))
	}

	out := aligner.OutputName(opts.CloudA, "_aligned.ply")
	if err := ply.Save(out, cloudA); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	tools.LogOutput("> wrote", out)
	return nil
}

func stub(path string) string {
	base := filepath.Base(path)
	return aligner.OutputName(base, "")
}
