package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var b Bidir
	serializer.RegisterTypedDeserializer(b.SerializerType(), DeserializeBidir)
}

// Bidir implements a bi-directional RNN over dense,
// time-major tensors of ragged sequences.
//
// The forward block is mapped over each sequence, while
// the backward block is mapped over each sequence's valid
// prefix in reverse.
type Bidir struct {
	Forward  Block
	Backward Block
}

// DeserializeBidir deserializes a Bidir.
func DeserializeBidir(d []byte) (*Bidir, error) {
	var res Bidir
	err := serializer.DeserializeAny(d, &res.Forward, &res.Backward)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Bidir", err)
	}
	return &res, nil
}

// Apply applies both directions to a (steps, batch,
// inWidth) tensor.
//
// It returns dense (steps, batch, outWidth) tensors for
// each direction, aligned with the input timesteps and
// zero past the end of each sequence.
//
// The input is propagated through twice, so it should
// typically be a pooled variable.
// The lengths must satisfy CheckLengths.
func (b *Bidir) Apply(in anydiff.Res, lens []int, inWidth, outWidth int) (forward,
	backward anydiff.Res) {
	steps := denseSteps(in.Output().Len(), len(lens), inWidth)
	forwSeq := Map(Pack(in, lens, inWidth, false), b.Forward)
	backSeq := Map(Pack(in, lens, inWidth, true), b.Backward)
	forward = Unpack(forwSeq, lens, steps, outWidth, false)
	backward = Unpack(backSeq, lens, steps, outWidth, true)
	return
}

// FinalStates gathers the last state of each direction
// from the outputs of Apply.
// For the forward direction this is the step at the end
// of each sequence; for the backward direction it is the
// first step.
func FinalStates(forward, backward anydiff.Res, lens []int,
	width int) (forwFinal, backFinal anydiff.Res) {
	last := make([]int, len(lens))
	first := make([]int, len(lens))
	for i, l := range lens {
		last[i] = l - 1
	}
	return SelectSteps(forward, last, width), SelectSteps(backward, first, width)
}

// Parameters returns the parameters of the blocks if they
// implement anyrul.Parameterizer.
func (b *Bidir) Parameters() []*anydiff.Var {
	return anyrul.AllParameters(b.Forward, b.Backward)
}

// SerializerType returns the unique ID used to serialize
// a Bidir with the serializer package.
func (b *Bidir) SerializerType() string {
	return "github.com/unixpickle/anyrul/anyrnn.Bidir"
}

// Serialize serializes the Bidir.
func (b *Bidir) Serialize() ([]byte, error) {
	return serializer.SerializeAny(b.Forward, b.Backward)
}
