package anys2s

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var m Model
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeModel)
}

// A RatioSource provides the probability of feeding the
// ground truth back into the decoder.
type RatioSource interface {
	Ratio() float64
}

// FixedRatio is a RatioSource that never changes.
type FixedRatio float64

// Ratio returns float64(f).
func (f FixedRatio) Ratio() float64 {
	return float64(f)
}

// RatioDefault can be passed as Options.Ratio to use the
// model's RatioSource.
var RatioDefault *float64

// Ratio is a convenience for building Options.Ratio.
func Ratio(r float64) *float64 {
	return &r
}

// Options controls a single forward pass.
type Options struct {
	// Ratio overrides the RatioSource if non-nil.
	//
	// A ratio of 0 never feeds the ground truth back and
	// draws no random numbers.
	Ratio *float64

	// Trace records the attention weights of every step.
	Trace bool
}

// A Model is a sequence-to-sequence network which predicts
// a label sequence from a feature sequence.
type Model struct {
	Config  Config
	Encoder *Encoder
	Decoder *Decoder

	// RatioSource supplies the teacher forcing ratio when
	// Options do not override it.
	// If nil, Config.TeacherRatio is used.
	RatioSource RatioSource

	// Rand is used for teacher forcing decisions.
	// If nil, the global source is used.
	Rand *rand.Rand
}

// DeserializeModel deserializes a Model.
// The resulting model has no RatioSource or Rand.
func DeserializeModel(d []byte) (*Model, error) {
	var features, hidden, layers, kernel, stride, filters, output serializer.Int
	var dropout, ratio serializer.Float64
	res := &Model{}
	err := serializer.DeserializeAny(d, &features, &hidden, &layers, &dropout, &kernel,
		&stride, &filters, &output, &ratio, &res.Encoder, &res.Decoder)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	res.Config = Config{
		Features:     int(features),
		Hidden:       int(hidden),
		Layers:       int(layers),
		Dropout:      float64(dropout),
		Kernel:       int(kernel),
		Stride:       int(stride),
		Filters:      int(filters),
		Output:       int(output),
		TeacherRatio: float64(ratio),
	}
	if len(res.Encoder.Layers) != len(res.Decoder.Stack.Cells) {
		return nil, errors.New("deserialize Model: encoder and decoder depths differ")
	}
	return res, nil
}

// NewModel creates a randomized Model.
//
// The model starts in evaluation mode.
func NewModel(c anyvec.Creator, r *rand.Rand, cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{
		Config:  cfg,
		Encoder: NewEncoder(c, r, cfg),
		Decoder: NewDecoder(c, r, cfg),
		Rand:    r,
	}, nil
}

// Result is the output of a forward pass.
type Result struct {
	// Output is a time-major (Steps, Batch, Config.Output)
	// tensor of predictions.
	// The first step is always zero, since the first label
	// step seeds the decoder.
	Output anydiff.Res

	Steps int
	Batch int

	// Trace is only set if Options.Trace was set.
	Trace *Trace
}

// Trace records the internals of a forward pass.
type Trace struct {
	// Attention has one row per decoded step and sequence,
	// in temporal order.
	// Each row spans EncoderSteps columns.
	Attention [][]float64

	// Encoder is the time-major (EncoderSteps, batch,
	// hidden) output of the encoder.
	Encoder []float64

	EncoderSteps   int
	EncoderLengths []int
}

// Forward runs the model on a batch.
//
// The input is a time-major (steps, batch, features)
// tensor, and lens are the valid input lengths, which must
// be non-increasing.
// The target is a time-major (labelSteps, batch, output)
// tensor which determines the number of decoded steps.
// Its first step seeds the decoder, and later steps are
// only read when teacher forcing.
func (m *Model) Forward(in anydiff.Res, lens []int, target anyvec.Vector,
	opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	batch := len(lens)
	outSize := m.Config.Output
	if batch == 0 || target.Len() == 0 || target.Len()%(batch*outSize) != 0 {
		return nil, fmt.Errorf("forward: bad target size %d for batch %d", target.Len(), batch)
	}
	steps := target.Len() / (batch * outSize)

	enc, err := m.Encoder.Apply(in, lens)
	if err != nil {
		return nil, essentials.AddCtx("forward", err)
	}

	ratio := m.ratio(opts)
	encPool := anydiff.NewVar(enc.Combined.Output())
	hidden := enc.HiddenSeq(encPool)
	states := enc.DecoderStart(encPool, len(m.Decoder.Stack.Cells))
	var prev anydiff.Res = anydiff.NewConst(target.Slice(0, batch*outSize))
	var prevPool *anydiff.Var
	var statePools []*anydiff.Var

	res := &decodeRes{
		Enc:     enc.Combined,
		EncPool: encPool,
		Batch:   batch,
		OutSize: outSize,
	}
	var trace *Trace
	if opts.Trace {
		trace = &Trace{
			Encoder:        vectorFloats(enc.Combined.Output().Slice(0, enc.Steps*batch*enc.Hidden)),
			EncoderSteps:   enc.Steps,
			EncoderLengths: enc.Lengths,
		}
	}

	for t := 1; t < steps; t++ {
		step := m.Decoder.Step(prev, states, hidden, enc.Lengths)
		res.Steps = append(res.Steps, &decodeStep{
			Step:       step,
			PrevPool:   prevPool,
			StatePools: statePools,
		})
		if trace != nil {
			weights := vectorFloats(step.Weights)
			for b := 0; b < batch; b++ {
				trace.Attention = append(trace.Attention,
					weights[b*enc.Steps:(b+1)*enc.Steps])
			}
		}

		if ratio > 0 && m.uniform() < ratio {
			prev = anydiff.NewConst(target.Slice(t*batch*outSize, (t+1)*batch*outSize))
			prevPool = nil
		} else {
			prevPool = anydiff.NewVar(step.OutVector())
			prev = prevPool
		}
		statePools = make([]*anydiff.Var, step.Layers)
		states = make([]anydiff.Res, step.Layers)
		for l := range statePools {
			statePools[l] = anydiff.NewVar(step.StateVector(l))
			states[l] = statePools[l]
		}
	}
	res.finish()

	return &Result{
		Output: res,
		Steps:  steps,
		Batch:  batch,
		Trace:  trace,
	}, nil
}

// SetRand points every random decision of the model at r,
// including the dropout masks of both halves.
func (m *Model) SetRand(r *rand.Rand) {
	m.Rand = r
	drops := []*anyrul.Dropout{m.Encoder.Dropout, m.Decoder.Stack.Dropout}
	for _, l := range m.Encoder.Front {
		if d, ok := l.(*anyrul.Dropout); ok {
			drops = append(drops, d)
		}
	}
	for _, d := range drops {
		if d != nil {
			d.Rand = r
		}
	}
}

// SetTraining switches dropout on or off.
func (m *Model) SetTraining(training bool) {
	m.Encoder.SetTraining(training)
	m.Decoder.SetTraining(training)
}

// Parameters returns the encoder's parameters followed by
// the decoder's.
func (m *Model) Parameters() []*anydiff.Var {
	return append(m.Encoder.Parameters(), m.Decoder.Parameters()...)
}

// SerializerType returns the unique ID used to serialize
// a Model with the serializer package.
func (m *Model) SerializerType() string {
	return "github.com/unixpickle/anyrul/anys2s.Model"
}

// Serialize serializes the Model's configuration and
// layers.
func (m *Model) Serialize() ([]byte, error) {
	c := m.Config
	return serializer.SerializeAny(
		serializer.Int(c.Features),
		serializer.Int(c.Hidden),
		serializer.Int(c.Layers),
		serializer.Float64(c.Dropout),
		serializer.Int(c.Kernel),
		serializer.Int(c.Stride),
		serializer.Int(c.Filters),
		serializer.Int(c.Output),
		serializer.Float64(c.TeacherRatio),
		m.Encoder,
		m.Decoder,
	)
}

func (m *Model) ratio(opts *Options) float64 {
	if opts.Ratio != nil {
		return *opts.Ratio
	} else if m.RatioSource != nil {
		return m.RatioSource.Ratio()
	}
	return m.Config.TeacherRatio
}

func (m *Model) uniform() float64 {
	if m.Rand != nil {
		return m.Rand.Float64()
	}
	return rand.Float64()
}

func vectorFloats(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		return data
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	default:
		panic(fmt.Sprintf("unsupported data type: %T", data))
	}
}
