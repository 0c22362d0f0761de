package anyfeat

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Scale stores the parameters needed to undo the
// normalization of one vector.
type Scale struct {
	Min   float64
	Range float64
}

// NormalizeVector shifts a vector so that its minimum is 0
// and divides it by the smallest power of ten no less than
// its spread.
//
// A vector whose components are all equal has a spread of
// zero, leading to non-finite results.
func NormalizeVector(vec []float64) ([]float64, Scale) {
	min := floats.Min(vec)
	spread := floats.Max(vec) - min
	s := Scale{
		Min:   min,
		Range: math.Pow(10, math.Ceil(math.Log10(spread))),
	}
	res := make([]float64, len(vec))
	for i, x := range vec {
		res[i] = (x - s.Min) / s.Range
	}
	return res, s
}

// Normalize normalizes every vector independently.
func Normalize(vecs [][]float64) ([][]float64, []Scale) {
	res := make([][]float64, len(vecs))
	scales := make([]Scale, len(vecs))
	for i, vec := range vecs {
		res[i], scales[i] = NormalizeVector(vec)
	}
	return res, scales
}

// Denormalize inverts Normalize.
func Denormalize(vecs [][]float64, scales []Scale) [][]float64 {
	if len(vecs) != len(scales) {
		panic("vector and scale counts differ")
	}
	res := make([][]float64, len(vecs))
	for i, vec := range vecs {
		res[i] = make([]float64, len(vec))
		for j, x := range vec {
			res[i][j] = x*scales[i].Range + scales[i].Min
		}
	}
	return res
}
