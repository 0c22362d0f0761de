package anyfeat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	x := []float64{1, -1, 2, -2}
	f := Compute(x)

	assert.InDelta(t, 0, f.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), f.RMS, 1e-12)
	assert.InDelta(t, 2.5, f.Variance, 1e-12)
	// Fourth central moment: (1+1+16+16)/4 = 8.5.
	assert.InDelta(t, 8.5/(2.5*2.5), f.Kurtosis, 1e-12)
	assert.InDelta(t, 0, f.Skewness, 1e-12)
	assert.InDelta(t, 4, f.PeakToPeak, 1e-12)
	assert.InDelta(t, 2/math.Sqrt(2.5), f.Crest, 1e-12)
	assert.InDelta(t, 2/1.5, f.Impulse, 1e-12)

	smr := math.Pow((2+2*math.Sqrt(2))/4, 2)
	assert.InDelta(t, 2/smr, f.Margin, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5)/1.5, f.Shape, 1e-12)
	assert.InDelta(t, 4/smr, f.Clearance, 1e-12)
}

func TestComputeDegenerate(t *testing.T) {
	f := Compute([]float64{3, 3, 3})
	assert.True(t, math.IsNaN(f.Kurtosis) || math.IsInf(f.Kurtosis, 0))
	assert.True(t, math.IsNaN(f.Skewness) || math.IsInf(f.Skewness, 0))

	vecs := [][]float64{{1, 2}, f.Vector()}
	err := CheckFinite(vecs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle 1")
	assert.Contains(t, err.Error(), "kurtosis")
}

func TestExtractorLayout(t *testing.T) {
	cycles := [][][]float64{
		{{1, 2, 3, 5}, {0, -1, 4, 2}},
		{{2, 2, 1, 0}, {7, 1, 3, 3}},
	}
	e := &Extractor{}
	vecs, scales := e.Extract(cycles)
	require.Len(t, vecs, 2)
	assert.Nil(t, scales)
	for i, cycle := range cycles {
		require.Len(t, vecs[i], Size(2))
		assert.Equal(t, Compute(cycle[0]).Vector(), vecs[i][:NumFeatures])
		assert.Equal(t, Compute(cycle[1]).Vector(), vecs[i][NumFeatures:])
	}
}

func TestExtractorRestartable(t *testing.T) {
	cycles := [][][]float64{{{1, 2, 3}}, {{4, 0, 1}}, {{2, 2, 5}}}
	e := &Extractor{Normalize: true}
	var first, second [][]float64
	e.Each(cycles, func(_ int, v []float64) bool {
		first = append(first, v)
		return true
	})
	e.Each(cycles, func(_ int, v []float64) bool {
		second = append(second, v)
		return true
	})
	assert.Equal(t, first, second)

	var count int
	e.Each(cycles, func(i int, v []float64) bool {
		count++
		return i < 1
	})
	assert.Equal(t, 2, count)
}

func TestNormalize(t *testing.T) {
	vec := []float64{2, 5, 40, 3}
	norm, s := NormalizeVector(vec)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 100.0, s.Range)
	assert.InDeltaSlice(t, []float64{0, 0.03, 0.38, 0.01}, norm, 1e-12)

	_, s = NormalizeVector([]float64{0, 0.5})
	assert.InDelta(t, 1, s.Range, 1e-12)
	_, s = NormalizeVector([]float64{0, 0.02})
	assert.InDelta(t, 0.1, s.Range, 1e-12)
}

func TestNormalizeRoundTrip(t *testing.T) {
	vecs := [][]float64{
		{0.1, 17, -3, 250},
		{1e-4, 3e-4, 2e-4, 9e-5},
	}
	norm, scales := Normalize(vecs)
	back := Denormalize(norm, scales)
	for i := range vecs {
		assert.InDeltaSlice(t, vecs[i], back[i], 1e-9)
	}
}
