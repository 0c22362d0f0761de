package anyfeat

import (
	"fmt"
	"math"
)

// An Extractor computes one feature vector per cycle.
//
// A cycle is given as a list of channels, each of which is
// a window of raw samples.
// The feature vector for a cycle is channel-major: the
// statistics of channel 0, then those of channel 1, etc.
type Extractor struct {
	// Normalize indicates whether each vector should be
	// passed through Normalize.
	Normalize bool
}

// Size returns the feature vector size for a number of
// channels.
func Size(channels int) int {
	return channels * NumFeatures
}

// Cycle computes the feature vector of a single cycle.
func (e *Extractor) Cycle(channels [][]float64) []float64 {
	res := make([]float64, 0, Size(len(channels)))
	for _, ch := range channels {
		res = append(res, Compute(ch).Vector()...)
	}
	if e.Normalize {
		res, _ = NormalizeVector(res)
	}
	return res
}

// Each lazily computes feature vectors, calling f for
// every cycle in order.
// Iteration stops early if f returns false.
//
// The input is never modified, so Each may be called any
// number of times with identical results.
func (e *Extractor) Each(cycles [][][]float64, f func(i int, vec []float64) bool) {
	for i, cycle := range cycles {
		if !f(i, e.Cycle(cycle)) {
			return
		}
	}
}

// Extract computes every feature vector at once.
//
// If e.Normalize is set, the per-vector scales are also
// returned so that Denormalize may invert them.
func (e *Extractor) Extract(cycles [][][]float64) ([][]float64, []Scale) {
	raw := (&Extractor{}).all(cycles)
	if !e.Normalize {
		return raw, nil
	}
	return Normalize(raw)
}

func (e *Extractor) all(cycles [][][]float64) [][]float64 {
	res := make([][]float64, 0, len(cycles))
	e.Each(cycles, func(_ int, vec []float64) bool {
		res = append(res, vec)
		return true
	})
	return res
}

// CheckFinite returns an error describing the first
// non-finite component of the vectors, if there is one.
func CheckFinite(vecs [][]float64) error {
	names := Names()
	for i, vec := range vecs {
		for j, x := range vec {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("cycle %d: feature %d (channel %d %s) is %f",
					i, j, j/NumFeatures, names[j%NumFeatures], x)
			}
		}
	}
	return nil
}
