// Package anyfeat turns raw vibration windows into
// per-cycle time-domain feature vectors.
package anyfeat

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// NumFeatures is the number of statistics computed for
// each channel of a cycle.
const NumFeatures = 11

// Features stores the time-domain statistics of a single
// channel over a single cycle.
type Features struct {
	Mean       float64
	RMS        float64
	Kurtosis   float64
	Skewness   float64
	PeakToPeak float64
	Variance   float64
	Crest      float64
	Impulse    float64
	Margin     float64
	Shape      float64
	Clearance  float64
}

// Compute computes the statistics of a window.
//
// Moments are population moments.
// A window with zero variance produces non-finite
// kurtosis and skewness; these are returned as-is.
func Compute(x []float64) Features {
	n := float64(len(x))
	mean, variance := stat.PopMeanVariance(x, nil)

	var sumSq, sumAbs, sumSqrtAbs, m3, m4 float64
	for _, v := range x {
		d := v - mean
		sumSq += v * v
		sumAbs += math.Abs(v)
		sumSqrtAbs += math.Sqrt(math.Abs(v))
		m3 += d * d * d
		m4 += d * d * d * d
	}
	rms := math.Sqrt(sumSq / n)
	meanAbs := sumAbs / n
	smr := math.Pow(sumSqrtAbs/n, 2)
	maxAbs := math.Max(math.Abs(floats.Max(x)), math.Abs(floats.Min(x)))
	p2p := floats.Max(x) - floats.Min(x)

	return Features{
		Mean:       mean,
		RMS:        rms,
		Kurtosis:   m4 / (variance * variance * n),
		Skewness:   m3 / (math.Pow(variance, 1.5) * n),
		PeakToPeak: p2p,
		Variance:   variance,
		Crest:      maxAbs / rms,
		Impulse:    maxAbs / meanAbs,
		Margin:     maxAbs / smr,
		Shape:      rms / meanAbs,
		Clearance:  p2p / smr,
	}
}

// Vector returns the statistics in their canonical order.
func (f Features) Vector() []float64 {
	return []float64{
		f.Mean, f.RMS, f.Kurtosis, f.Skewness, f.PeakToPeak, f.Variance,
		f.Crest, f.Impulse, f.Margin, f.Shape, f.Clearance,
	}
}

// Names returns the names of the statistics, in the same
// order as Vector.
func Names() []string {
	return []string{
		"mean", "rms", "kurtosis", "skewness", "p2p", "variance",
		"crest", "impulse", "margin", "shape", "clearance",
	}
}
