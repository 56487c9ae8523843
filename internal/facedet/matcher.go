package facedet

import "math"

// DefaultMaxDistance is the Euclidean distance at or above which a face is
// not considered a match for any known encoding.
const DefaultMaxDistance = 0.6

// Matcher resolves embeddings to identities by nearest-neighbor distance
// over a registry of known encodings.
type Matcher struct {
	registry    *Registry
	maxDistance float64
}

// NewMatcher creates a matcher over the given registry. maxDistance values
// at or below zero fall back to DefaultMaxDistance.
func NewMatcher(registry *Registry, maxDistance float64) *Matcher {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &Matcher{registry: registry, maxDistance: maxDistance}
}

// Match returns the name of the nearest known encoding, or ok=false when the
// registry is empty or the nearest distance reaches the threshold. A
// distance exactly at the threshold is Unknown.
func (m *Matcher) Match(embedding []float64) (name string, distance float64, ok bool) {
	if m.registry.Size() == 0 || len(embedding) == 0 {
		return "", 0, false
	}

	best := -1
	bestDist := math.Inf(1)
	for i, enc := range m.registry.Encodings {
		d := euclidean(embedding, enc)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 || bestDist >= m.maxDistance {
		return "", bestDist, false
	}
	return m.registry.Names[best], bestDist, true
}

// euclidean computes the L2 distance between two vectors. Length mismatch
// yields +Inf so a malformed enrollment can never win the nearest slot.
func euclidean(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
