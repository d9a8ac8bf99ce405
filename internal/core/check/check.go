// Package check evaluates dice faces against success thresholds.
package check

// MeetsThreshold reports whether a single face counts as a success.
// A face succeeds when it is greater than or equal to the threshold.
func MeetsThreshold(face, threshold int) bool {
	return face >= threshold
}

// Tally summarizes a success-counting pool.
type Tally struct {
	Successes int
	Failures  int
}

// Count tallies the faces that meet threshold.
func Count(faces []int, threshold int) Tally {
	var tally Tally
	for _, face := range faces {
		if MeetsThreshold(face, threshold) {
			tally.Successes++
		} else {
			tally.Failures++
		}
	}
	return tally
}
