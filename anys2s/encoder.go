package anys2s

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyrul/anyconv"
	"github.com/unixpickle/anyrul/anyrnn"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var e Encoder
	serializer.RegisterTypedDeserializer(e.SerializerType(), DeserializeEncoder)
}

// An Encoder turns ragged batches of feature sequences
// into hidden sequences and per-layer final states.
//
// The front-end is a strided convolution, which shortens
// every sequence by roughly the stride.
// Its output is fed through a stack of bidirectional GRU
// layers.
type Encoder struct {
	// Front starts with an *anyconv.Conv1D, followed by
	// per-step layers such as activations.
	Front anyrul.Net

	// Layers are applied one after another.
	// The first layer reads the convolution filters, and
	// later layers read the concatenated outputs of both
	// directions of the previous layer.
	Layers []*anyrnn.Bidir

	// Dropout is applied between layers.
	Dropout *anyrul.Dropout
}

// DeserializeEncoder deserializes an Encoder.
func DeserializeEncoder(d []byte) (*Encoder, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Encoder", err)
	}
	if len(slice) < 3 {
		return nil, errors.New("deserialize Encoder: missing layers")
	}
	res := &Encoder{}
	var ok bool
	if res.Front, ok = slice[0].(anyrul.Net); !ok {
		return nil, fmt.Errorf("deserialize Encoder: not a Net: %T", slice[0])
	}
	if len(res.Front) == 0 {
		return nil, errors.New("deserialize Encoder: empty front-end")
	}
	if _, ok = res.Front[0].(*anyconv.Conv1D); !ok {
		return nil, fmt.Errorf("deserialize Encoder: not a Conv1D: %T", res.Front[0])
	}
	if res.Dropout, ok = slice[1].(*anyrul.Dropout); !ok {
		return nil, fmt.Errorf("deserialize Encoder: not a Dropout: %T", slice[1])
	}
	for _, x := range slice[2:] {
		layer, ok := x.(*anyrnn.Bidir)
		if !ok {
			return nil, fmt.Errorf("deserialize Encoder: not a Bidir: %T", x)
		}
		res.Layers = append(res.Layers, layer)
	}
	return res, nil
}

// NewEncoder creates a randomized Encoder.
//
// Dropout starts out disabled; see SetTraining.
func NewEncoder(c anyvec.Creator, r *rand.Rand, cfg Config) *Encoder {
	conv := &anyconv.Conv1D{
		FilterCount: cfg.Filters,
		KernelSize:  cfg.Kernel,
		Stride:      cfg.Stride,
		InputDepth:  cfg.Features,
	}
	conv.InitRand(c, r, false)
	res := &Encoder{
		Front: anyrul.Net{
			conv,
			anyrul.NewPReLU(c, 0.25),
			&anyrul.Debug{ID: "encoder/conv"},
		},
		Dropout: &anyrul.Dropout{KeepProb: 1 - cfg.Dropout, Rand: r},
	}
	inSize := cfg.Filters
	for i := 0; i < cfg.Layers; i++ {
		res.Layers = append(res.Layers, &anyrnn.Bidir{
			Forward:  anyrnn.NewGRU(c, r, inSize, cfg.Hidden),
			Backward: anyrnn.NewGRU(c, r, inSize, cfg.Hidden),
		})
		inSize = cfg.Hidden * 2
	}
	return res
}

// Conv returns the convolutional layer at the start of
// the front-end.
func (e *Encoder) Conv() *anyconv.Conv1D {
	return e.Front[0].(*anyconv.Conv1D)
}

// Hidden returns the size of the recurrent states.
func (e *Encoder) Hidden() int {
	return e.Layers[0].Forward.(*anyrnn.GRU).StateSize()
}

// Apply encodes a batch.
//
// The input is a time-major (steps, batch, features)
// tensor, where steps is at least lens[0].
// The lengths must be non-increasing and positive.
func (e *Encoder) Apply(in anydiff.Res, lens []int) (*EncoderOutput, error) {
	if len(lens) == 0 {
		return nil, errors.New("encode: empty batch")
	}
	if err := anyrnn.CheckLengths(lens); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	conv := e.Conv()
	batch := len(lens)
	depth := conv.InputDepth
	if in.Output().Len()%(batch*depth) != 0 {
		return nil, fmt.Errorf("encode: input size %d not divisible by %d", in.Output().Len(),
			batch*depth)
	}
	steps := in.Output().Len() / (batch * depth)
	if steps < lens[0] {
		return nil, fmt.Errorf("encode: %d steps cannot hold sequence of length %d", steps,
			lens[0])
	}

	features, outSteps, encLens := e.frontEnd(in, lens, steps)
	combined := anydiff.Pool(features, func(features anydiff.Res) anydiff.Res {
		return e.applyLayer(0, features, encLens, conv.FilterCount)
	})
	return &EncoderOutput{
		Combined: combined,
		Steps:    outSteps,
		Batch:    batch,
		Hidden:   e.Hidden(),
		Lengths:  encLens,
		Layers:   len(e.Layers),
	}, nil
}

// frontEnd pads the input to a whole number of strides,
// applies the convolutional front-end, and returns its
// time-major output along with the downsampled lengths.
func (e *Encoder) frontEnd(in anydiff.Res, lens []int, steps int) (features anydiff.Res,
	outSteps int, encLens []int) {
	conv := e.Conv()
	batch := len(lens)
	pad := anyconv.StridePadding(steps, conv.KernelSize, conv.Stride)
	padded := anyconv.PadBatchMajor(in, steps, batch, conv.InputDepth, pad)
	outSteps = conv.OutputWidth(steps + pad)
	features = anyrul.TimeMajor(e.Front.Apply(padded, batch), batch, outSteps,
		conv.FilterCount)
	encLens = anyconv.DownsampledLens(lens, conv.KernelSize, conv.Stride)
	return
}

func (e *Encoder) applyLayer(i int, in anydiff.Res, lens []int, inWidth int) anydiff.Res {
	hidden := e.Hidden()
	forward, backward := e.Layers[i].Apply(in, lens, inWidth, hidden)
	return anydiff.Pool(forward, func(forward anydiff.Res) anydiff.Res {
		return anydiff.Pool(backward, func(backward anydiff.Res) anydiff.Res {
			forwFinal, backFinal := anyrnn.FinalStates(forward, backward, lens, hidden)
			final := anydiff.Concat(forwFinal, backFinal)
			if i == len(e.Layers)-1 {
				return anydiff.Concat(anydiff.Add(forward, backward), final)
			}
			rows := forward.Output().Len() / hidden
			next := anyrnn.Interleave(forward, backward, rows)
			if e.Dropout != nil {
				next = e.Dropout.Apply(next, rows)
			}
			rest := anydiff.Pool(next, func(next anydiff.Res) anydiff.Res {
				return e.applyLayer(i+1, next, lens, hidden*2)
			})
			return anydiff.Concat(rest, final)
		})
	})
}

// SetTraining enables or disables dropout.
func (e *Encoder) SetTraining(training bool) {
	e.Front.SetTraining(training)
	if e.Dropout != nil {
		e.Dropout.SetTraining(training)
	}
}

// Parameters returns the parameters of the front-end
// followed by those of every layer.
func (e *Encoder) Parameters() []*anydiff.Var {
	res := e.Front.Parameters()
	for _, l := range e.Layers {
		res = append(res, l.Parameters()...)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// an Encoder with the serializer package.
func (e *Encoder) SerializerType() string {
	return "github.com/unixpickle/anyrul/anys2s.Encoder"
}

// Serialize serializes the Encoder.
func (e *Encoder) Serialize() ([]byte, error) {
	drop := e.Dropout
	if drop == nil {
		drop = &anyrul.Dropout{KeepProb: 1}
	}
	slice := []serializer.Serializer{e.Front, drop}
	for _, l := range e.Layers {
		slice = append(slice, l)
	}
	return serializer.SerializeSlice(slice)
}

// EncoderOutput is the result of encoding a batch.
//
// Combined packs every output into one vector:
// the time-major (Steps, Batch, Hidden) hidden sequence,
// followed by the final states of every layer starting
// with the last layer.
// Each layer contributes its forward final state (taken
// at the end of each sequence) followed by its backward
// final state (taken at the start), each (Batch, Hidden).
// The hidden sequence is the sum of both directions of
// the last layer, and it is zero past each sequence's
// length.
type EncoderOutput struct {
	Combined anydiff.Res

	Steps  int
	Batch  int
	Hidden int
	Layers int

	// Lengths are the downsampled sequence lengths.
	Lengths []int
}

// HiddenSeq extracts the hidden sequence from a result
// shaped like Combined, such as a pooled copy of it.
func (e *EncoderOutput) HiddenSeq(combined anydiff.Res) anydiff.Res {
	return anydiff.Slice(combined, 0, e.hiddenSize())
}

// Final extracts one final state of a layer from a result
// shaped like Combined.
func (e *EncoderOutput) Final(combined anydiff.Res, layer int, backward bool) anydiff.Res {
	if layer < 0 || layer >= e.Layers {
		panic(fmt.Sprintf("layer %d out of range [0, %d)", layer, e.Layers))
	}
	size := e.Batch * e.Hidden
	start := e.hiddenSize() + (e.Layers-1-layer)*2*size
	if backward {
		start += size
	}
	return anydiff.Slice(combined, start, start+size)
}

// DecoderStart picks the initial states of an n-layer
// decoder from a result shaped like Combined.
//
// The final states are enumerated layer by layer, forward
// before backward, and the first n of them are used:
// with two layers, the decoder starts from both
// directions of the first encoder layer.
func (e *EncoderOutput) DecoderStart(combined anydiff.Res, n int) []anydiff.Res {
	if n > 2*e.Layers {
		panic(fmt.Sprintf("%d decoder layers but only %d final states", n, 2*e.Layers))
	}
	res := make([]anydiff.Res, n)
	for i := range res {
		res[i] = e.Final(combined, i/2, i%2 == 1)
	}
	return res
}

func (e *EncoderOutput) hiddenSize() int {
	return e.Steps * e.Batch * e.Hidden
}
