package anys2s

import (
	"fmt"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyrul/anyattn"
	"github.com/unixpickle/anyrul/anyrnn"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var d Decoder
	serializer.RegisterTypedDeserializer(d.SerializerType(), DeserializeDecoder)
}

// A Decoder produces one output step at a time while
// attending over an encoded sequence.
type Decoder struct {
	Attention *anyattn.Attention

	// Stack reads the previous output concatenated with the
	// attention context.
	Stack *anyrnn.Stack

	// Proj maps the top state concatenated with the context
	// to an output.
	Proj *anyrul.FC
}

// DeserializeDecoder deserializes a Decoder.
func DeserializeDecoder(d []byte) (*Decoder, error) {
	var res Decoder
	if err := serializer.DeserializeAny(d, &res.Attention, &res.Stack, &res.Proj); err != nil {
		return nil, essentials.AddCtx("deserialize Decoder", err)
	}
	return &res, nil
}

// NewDecoder creates a randomized Decoder.
//
// Dropout starts out disabled; see SetTraining.
func NewDecoder(c anyvec.Creator, r *rand.Rand, cfg Config) *Decoder {
	stack := &anyrnn.Stack{
		Dropout: &anyrul.Dropout{KeepProb: 1 - cfg.Dropout, Rand: r},
	}
	inSize := cfg.Output + cfg.Hidden
	for i := 0; i < cfg.Layers; i++ {
		stack.Cells = append(stack.Cells, anyrnn.NewGRU(c, r, inSize, cfg.Hidden))
		inSize = cfg.Hidden
	}
	return &Decoder{
		Attention: anyattn.New(c, r, cfg.Hidden),
		Stack:     stack,
		Proj:      anyrul.NewFC(c, r, cfg.Hidden*2, cfg.Output),
	}
}

// Step runs the decoder for one timestep.
//
// The previous output is a (batch, output) matrix, and
// there is one (batch, hidden) state per layer.
// The hidden sequence is a time-major (steps, batch,
// hidden) tensor, and lens are its valid lengths.
func (d *Decoder) Step(prev anydiff.Res, states []anydiff.Res, hidden anydiff.Res,
	lens []int) *DecoderStep {
	if len(states) != len(d.Stack.Cells) {
		panic(fmt.Sprintf("expected %d states but got %d", len(d.Stack.Cells), len(states)))
	}
	n := len(lens)
	weights := d.Attention.Apply(states[len(states)-1], hidden, lens)
	ctx := anyattn.Context(weights, hidden, n)
	res := anydiff.Pool(ctx, func(ctx anydiff.Res) anydiff.Res {
		newStates := d.Stack.Step(anyrul.ConcatRows(n, prev, ctx), states, n)
		last := len(newStates) - 1
		return anydiff.Pool(newStates[last], func(top anydiff.Res) anydiff.Res {
			out := d.Proj.Apply(anyrul.ConcatRows(n, top, ctx), n)
			parts := append([]anydiff.Res{out}, newStates[:last]...)
			return anydiff.Concat(append(parts, top)...)
		})
	})
	return &DecoderStep{
		Res:       res,
		Weights:   weights.Output(),
		Batch:     n,
		OutSize:   d.Proj.OutCount,
		StateSize: d.Proj.InCount / 2,
		Layers:    len(states),
	}
}

// SetTraining enables or disables dropout.
func (d *Decoder) SetTraining(training bool) {
	d.Stack.SetTraining(training)
}

// Parameters returns the decoder's parameters.
func (d *Decoder) Parameters() []*anydiff.Var {
	return anyrul.AllParameters(d.Attention, d.Stack, d.Proj)
}

// SerializerType returns the unique ID used to serialize
// a Decoder with the serializer package.
func (d *Decoder) SerializerType() string {
	return "github.com/unixpickle/anyrul/anys2s.Decoder"
}

// Serialize serializes the Decoder.
func (d *Decoder) Serialize() ([]byte, error) {
	return serializer.SerializeAny(d.Attention, d.Stack, d.Proj)
}

// DecoderStep is the result of a single decoder step.
//
// Res packs the (batch, output) prediction followed by
// every new (batch, hidden) state, from the first layer
// to the last.
type DecoderStep struct {
	Res anydiff.Res

	// Weights is the (batch, steps) attention matrix.
	Weights anyvec.Vector

	Batch     int
	OutSize   int
	StateSize int
	Layers    int
}

// Out extracts the prediction from Res.
func (d *DecoderStep) Out() anydiff.Res {
	return anydiff.Slice(d.Res, 0, d.outLen())
}

// State extracts the new state of a layer from Res.
func (d *DecoderStep) State(layer int) anydiff.Res {
	start := d.outLen() + layer*d.Batch*d.StateSize
	return anydiff.Slice(d.Res, start, start+d.Batch*d.StateSize)
}

// OutVector returns the numerical prediction.
func (d *DecoderStep) OutVector() anyvec.Vector {
	return d.Res.Output().Slice(0, d.outLen())
}

// StateVector returns the numerical new state of a layer.
func (d *DecoderStep) StateVector(layer int) anyvec.Vector {
	start := d.outLen() + layer*d.Batch*d.StateSize
	return d.Res.Output().Slice(start, start+d.Batch*d.StateSize)
}

func (d *DecoderStep) outLen() int {
	return d.Batch * d.OutSize
}
