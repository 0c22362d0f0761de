package anydata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/anyrul/anyfeat"
)

func TestLabels(t *testing.T) {
	labels := Labels(17, 3, 8)
	require.Len(t, labels, 3)
	assert.InDelta(t, 3.0/19, labels[0][0], 1e-12)
	assert.InDelta(t, 11.0/19, labels[1][0], 1e-12)
	assert.InDelta(t, 1.0, labels[2][0], 1e-12)

	assert.Equal(t, [][]float64{{0}}, Labels(1, 0, 8))
}

func TestTranspose(t *testing.T) {
	assert.Equal(t, [][]float64{{1, 3, 5}, {2, 4, 6}},
		Transpose([][]float64{{1, 2}, {3, 4}, {5, 6}}))
	assert.Nil(t, Transpose(nil))
}

func TestPreprocessorSamples(t *testing.T) {
	mem := Memory{
		"b": {
			Cycles: [][][]float64{
				{{1, 2}, {2, -1}, {4, 3}, {-2, 1}},
				{{0.5, 1}, {1, 3}, {-1, 2}, {3, 0}},
				{{2, 2}, {7, 1}, {1, 5}, {-3, 4}},
			},
			RUL: 1,
		},
	}
	p := &Preprocessor{StrideRatio: 2, RequireFinite: true}
	res, err := p.Samples(mem, Condition{"b"})
	require.NoError(t, err)
	require.Len(t, res.Samples, 1)

	s := res.Samples[0]
	assert.Equal(t, "b", s.Name)
	require.Len(t, s.Input, 3)
	assert.Len(t, s.Input[0], anyfeat.Size(2))
	assert.Equal(t, [][]float64{{1.0 / 3}, {1}}, s.Output)

	// The first step comes from the last cycle.
	raw := res.Raw["b"]
	require.Len(t, raw, 3)
	expected := anyfeat.Compute([]float64{2, 7, 1, -3}).Vector()
	assert.Equal(t, expected, raw[0][:anyfeat.NumFeatures])

	normalized, _ := anyfeat.Normalize(raw)
	assert.Equal(t, normalized, s.Input)
}

func TestPreprocessorErrors(t *testing.T) {
	constant := Memory{"c": {Cycles: [][][]float64{{{1, 1}, {1, 1}}}}}
	p := &Preprocessor{StrideRatio: 8, RequireFinite: true}
	_, err := p.Samples(constant, Condition{"c"})
	assert.Error(t, err)

	p.RequireFinite = false
	res, err := p.Samples(constant, Condition{"c"})
	require.NoError(t, err)
	assert.Error(t, anyfeat.CheckFinite(res.Samples[0].Input))

	_, err = p.Samples(constant, Condition{"missing"})
	assert.Error(t, err)

	_, err = (&Preprocessor{}).Samples(constant, Condition{"c"})
	assert.Error(t, err)
}
