package main

import (
	"fmt"
	"log"
	"os"

	"github.com/terralidar/rayalign/internal/aligner"
	"github.com/terralidar/rayalign/pkg"
	"github.com/terralidar/rayalign/tools"
)

func usage(exitCode int) {
	fmt.Println("Align cloudA onto cloudB, rigidly. Outputs the transformed version of cloudA.")
	fmt.Println("This method is for when there is more than approximately 30% overlap between the clouds.")
	fmt.Println("usage:")
	fmt.Println("rayalign cloudA.ply cloudB.ply")
	fmt.Println("                             --nonrigid|-n - nonrigid (quadratic) alignment")
	fmt.Println("                             --verbose|-v  - outputs the correlation images and the coarse alignment cloud")
	fmt.Println("                             --local|-l    - fine alignment only, assumes the clouds are already approximately aligned")
	fmt.Println("                             --tuning file - YAML file overriding the alignment tuning parameters")
	fmt.Println("rayalign cloud.ply  - axis aligns to the walls, placing the major walls at (0,0,0), biggest along y.")
	os.Exit(exitCode)
}

func main() {
	log.SetPrefix("[rayalign] ")
	log.SetFlags(0)

	flags := tools.ParseFlagsForCommandAlign(os.Args[1:])

	if *flags.Help {
		usage(0)
	}
	if *flags.Silent {
		tools.DisableLogger()
	}
	if !*flags.LogTimestamp {
		tools.DisableLoggerTimestamp()
	}

	if len(flags.Files) < 1 || len(flags.Files) > 2 {
		usage(1)
	}
	for _, f := range flags.Files {
		tools.MustStat(f)
	}

	tuning := aligner.DefaultTuning()
	if *flags.TuningFile != "" {
		var err error
		tuning, err = aligner.LoadTuning(*flags.TuningFile)
		if err != nil {
			log.Println("Error reading tuning file:", err)
			usage(1)
		}
	}

	opts := &aligner.Options{
		CloudA:    flags.Files[0],
		NonRigid:  *flags.NonRigid,
		Verbose:   *flags.Verbose,
		LocalOnly: *flags.LocalOnly,
		Tuning:    tuning,
	}
	if len(flags.Files) == 2 {
		opts.CloudB = flags.Files[1]
	}
	log.Println("options", tools.FmtJSONString(opts))

	if err := pkg.NewAligner().RunAlign(opts); err != nil {
		log.Println("Error while aligning:", err)
		usage(1)
	}
	tools.LogOutput("Alignment Completed")
}
