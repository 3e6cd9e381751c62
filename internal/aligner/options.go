package aligner

// Options carries everything the alignment pipeline needs for one run.
type Options struct {
	CloudA string // moving cloud; the only cloud in self-align mode
	CloudB string // fixed cloud; empty selects self (axis) alignment

	NonRigid  bool // enable the quadratic correction in fine alignment
	Verbose   bool // persist diagnostic images and intermediate clouds
	LocalOnly bool // skip coarse alignment, clouds are roughly aligned

	Tuning Tuning
}

// OutputName derives the aligned cloud filename from the input name,
// replacing the extension with the given suffix.
func OutputName(input, suffix string) string {
	stub := input
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] == '/' || input[i] == '\\' {
			break
		}
		if input[i] == '.' {
			stub = input[:i]
			break
		}
	}
	return stub + suffix
}
