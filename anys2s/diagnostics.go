package anys2s

import (
	"encoding/json"
	"os"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// Diagnostics collects the internals of a model over
// named splits of data.
type Diagnostics struct {
	RunID  string                       `json:"run_id"`
	Splits map[string]*SplitDiagnostics `json:"splits"`
}

// SplitDiagnostics stores one entry per sample.
type SplitDiagnostics struct {
	Samples []*SampleDiagnostics `json:"samples"`
}

// SampleDiagnostics describes a single prediction.
type SampleDiagnostics struct {
	Name string `json:"name"`

	// Input is the model input, and RawInput is the same
	// features before normalization, if available.
	Input    [][]float64 `json:"input"`
	RawInput [][]float64 `json:"raw_input,omitempty"`

	Label      [][]float64 `json:"label"`
	Prediction [][]float64 `json:"prediction"`

	// Encoder is the hidden sequence, one row per step.
	Encoder [][]float64 `json:"encoder"`

	// Attention has one row per decoded step.
	Attention [][]float64 `json:"attention"`

	MSE float64 `json:"mse"`
}

// NewDiagnostics creates empty diagnostics.
func NewDiagnostics(runID string) *Diagnostics {
	return &Diagnostics{RunID: runID, Splits: map[string]*SplitDiagnostics{}}
}

// Analyse runs the model over every sample without teacher
// forcing and records the results under a split name.
//
// The raw map, which may be nil, provides unnormalized
// inputs by sample name.
func (d *Diagnostics) Analyse(c anyvec.Creator, m *Model, split string, samples SampleList,
	raw map[string][][]float64) error {
	res := &SplitDiagnostics{}
	for _, s := range samples {
		out, batch, err := Predict(c, m, s, true)
		if err != nil {
			return essentials.AddCtx("analyse "+s.Name, err)
		}
		cost := anyrul.MSE{}.Cost(anydiff.NewConst(batch.Targets), out.Output, 1)
		hidden := m.Config.Hidden
		res.Samples = append(res.Samples, &SampleDiagnostics{
			Name:       s.Name,
			Input:      s.Input,
			RawInput:   raw[s.Name],
			Label:      s.Output,
			Prediction: rows(vectorFloats(out.Output.Output()), m.Config.Output),
			Encoder:    rows(out.Trace.Encoder, hidden),
			Attention:  out.Trace.Attention,
			MSE:        vectorFloats(cost.Output())[0],
		})
	}
	d.Splits[split] = res
	return nil
}

// WriteFile writes the diagnostics as JSON.
func (d *Diagnostics) WriteFile(path string) error {
	data, err := json.Marshal(d)
	if err != nil {
		return essentials.AddCtx("write diagnostics", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("write diagnostics", err)
	}
	return nil
}

func rows(data []float64, width int) [][]float64 {
	res := make([][]float64, 0, len(data)/width)
	for i := 0; i+width <= len(data); i += width {
		res = append(res, data[i:i+width])
	}
	return res
}
