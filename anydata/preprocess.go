package anydata

import (
	"fmt"

	"github.com/unixpickle/anyrul/anyfeat"
	"github.com/unixpickle/anyrul/anys2s"
	"github.com/unixpickle/essentials"
)

// Preprocessor turns bearing records into samples.
//
// Each bearing's cycles are reversed in time, so that a
// sequence starts at the end of the recording, and every
// cycle becomes a normalized feature vector.
// Label step i is (i+RUL) divided by the largest such
// value, and only every StrideRatio-th label is kept.
type Preprocessor struct {
	// StrideRatio is the number of input steps per label
	// step.
	StrideRatio int

	// RequireFinite makes Samples fail on NaN or infinite
	// features, which come from constant channels.
	RequireFinite bool
}

// Result is the output of a Preprocessor.
type Result struct {
	Samples anys2s.SampleList

	// Raw maps sample names to unnormalized features.
	Raw map[string][][]float64
}

// Samples loads and preprocesses the selected bearings.
func (p *Preprocessor) Samples(ds DataSet, cond Condition) (*Result, error) {
	if p.StrideRatio < 1 {
		return nil, fmt.Errorf("preprocess: invalid stride ratio %d", p.StrideRatio)
	}
	data, err := ds.Value(FieldData, cond)
	if err != nil {
		return nil, essentials.AddCtx("preprocess", err)
	}
	ruls, err := ds.Value(FieldRUL, cond)
	if err != nil {
		return nil, essentials.AddCtx("preprocess", err)
	}
	res := &Result{Raw: map[string][][]float64{}}
	for i, entry := range data {
		sample, raw, err := p.sample(entry, ruls[i].RUL)
		if err != nil {
			return nil, essentials.AddCtx("preprocess "+entry.Name, err)
		}
		res.Samples = append(res.Samples, sample)
		res.Raw[entry.Name] = raw
	}
	return res, nil
}

func (p *Preprocessor) sample(e Entry, rul float64) (*anys2s.Sample, [][]float64, error) {
	if len(e.Cycles) == 0 {
		return nil, nil, fmt.Errorf("%w: no cycles", ErrInvalidSelection)
	}
	cycles := make([][][]float64, len(e.Cycles))
	for i, cycle := range e.Cycles {
		cycles[len(cycles)-1-i] = Transpose(cycle)
	}

	raw, _ := (&anyfeat.Extractor{}).Extract(cycles)
	inputs, _ := anyfeat.Normalize(raw)
	if p.RequireFinite {
		if err := anyfeat.CheckFinite(inputs); err != nil {
			return nil, nil, err
		}
	}
	return &anys2s.Sample{
		Name:   e.Name,
		Input:  inputs,
		Output: Labels(len(cycles), rul, p.StrideRatio),
	}, raw, nil
}

// Labels creates the downsampled, normalized label
// sequence for n cycles.
func Labels(n int, rul float64, strideRatio int) [][]float64 {
	maxLabel := float64(n-1) + rul
	var res [][]float64
	for i := 0; i < n; i += strideRatio {
		label := float64(i) + rul
		if maxLabel != 0 {
			label /= maxLabel
		}
		res = append(res, []float64{label})
	}
	return res
}

// Transpose converts a (samples, channels) cycle into a
// (channels, samples) one.
func Transpose(cycle [][]float64) [][]float64 {
	if len(cycle) == 0 {
		return nil
	}
	res := make([][]float64, len(cycle[0]))
	for c := range res {
		res[c] = make([]float64, len(cycle))
		for s, row := range cycle {
			res[c][s] = row[c]
		}
	}
	return res
}
