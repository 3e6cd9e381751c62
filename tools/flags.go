package tools

import (
	"flag"
	"strings"
)

type FlagsForCommandAlign struct {
	NonRigid     *bool
	Verbose      *bool
	LocalOnly    *bool
	TuningFile   *string
	Silent       *bool
	LogTimestamp *bool
	Help         *bool
	Files        []string
}

// ParseFlagsForCommandAlign accepts the cloud filenames before or after
// the option flags, so both "rayalign a.ply b.ply --nonrigid" and
// "rayalign --nonrigid a.ply b.ply" work.
func ParseFlagsForCommandAlign(args []string) FlagsForCommandAlign {
	var files []string
	rest := args
	for len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		files = append(files, rest[0])
		rest = rest[1:]
	}

	flagCommand := flag.NewFlagSet("command-align", flag.ExitOnError)

	nonRigid := defineBoolFlagCommand(flagCommand, "nonrigid", "n", false, "Enables the nonrigid (quadratic) correction during fine alignment.")
	verbose := defineBoolFlagCommand(flagCommand, "verbose", "v", false, "Saves the coarse correlation images and the coarsely aligned cloud.")
	localOnly := defineBoolFlagCommand(flagCommand, "local", "l", false, "Fine alignment only, assumes the clouds are already approximately aligned.")
	tuningFile := defineStringFlagCommand(flagCommand, "tuning", "", "", "YAML file overriding the alignment tuning parameters.")
	silent := defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages.")
	logTimestamp := defineBoolFlagCommand(flagCommand, "timestamp", "t", false, "Adds timestamp to log messages.")
	help := defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help.")

	flagCommand.Parse(rest)
	files = append(files, flagCommand.Args()...)

	return FlagsForCommandAlign{
		NonRigid:     nonRigid,
		Verbose:      verbose,
		LocalOnly:    localOnly,
		TuningFile:   tuningFile,
		Silent:       silent,
		LogTimestamp: logTimestamp,
		Help:         help,
		Files:        files,
	}
}

func defineStringFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue string, usage string) *string {
	var output string
	flagCommand.StringVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.StringVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineBoolFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flagCommand.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}
