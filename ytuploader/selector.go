package ytuploader

import "math/rand"

// DefaultMaxUploads is how many videos one run uploads unless configured.
const DefaultMaxUploads = 2

// SelectCandidates drops entries already in the ledger and returns a uniformly
// random subset of at most maxCount of the rest. The order of the result carries no
// meaning. A non-positive maxCount selects nothing.
func SelectCandidates(manifest []ManifestEntry, ledger LedgerRecord, maxCount int, rng *rand.Rand) []ManifestEntry {
	if maxCount <= 0 {
		return []ManifestEntry{}
	}

	uploaded := ledger.pathSet()
	available := make([]ManifestEntry, 0, len(manifest))
	for _, e := range manifest {
		if _, ok := uploaded[e.VideoPath]; ok {
			continue
		}
		available = append(available, e)
	}

	n := maxCount
	if len(available) < n {
		n = len(available)
	}

	// Partial Fisher-Yates: the first n slots end up a uniform sample.
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(available)-i)
		available[i], available[j] = available[j], available[i]
	}
	return available[:n]
}
