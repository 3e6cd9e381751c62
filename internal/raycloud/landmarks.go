package raycloud

import "github.com/golang/geo/r3"

// LandmarkIndices picks three distinct, well separated end points: minimum
// X, maximum X and minimum Y. They are tracked through the pipeline purely
// to measure the net transform afterwards; spreading them across two axes
// and never reusing an index keeps the later rigid-transform recovery away
// from degenerate input, even when one corner point is extremal on both
// axes at once.
func (c *Cloud) LandmarkIndices() [3]int {
	var idx [3]int
	pick := func(better func(a, b r3.Vector) bool, taken int) int {
		best := -1
		for i, e := range c.Ends {
			used := false
			for t := 0; t < taken; t++ {
				if idx[t] == i {
					used = true
					break
				}
			}
			if used {
				continue
			}
			if best < 0 || better(e, c.Ends[best]) {
				best = i
			}
		}
		if best < 0 {
			best = 0
		}
		return best
	}
	idx[0] = pick(func(a, b r3.Vector) bool { return a.X < b.X }, 0)
	idx[1] = pick(func(a, b r3.Vector) bool { return a.X > b.X }, 1)
	idx[2] = pick(func(a, b r3.Vector) bool { return a.Y < b.Y }, 2)
	return idx
}

// PositionsAt reads the current end positions of the given sample indices.
func (c *Cloud) PositionsAt(idx [3]int) [3]r3.Vector {
	return [3]r3.Vector{c.Ends[idx[0]], c.Ends[idx[1]], c.Ends[idx[2]]}
}
