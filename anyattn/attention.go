// Package anyattn implements additive attention over
// batches of variable-length encoder sequences.
package anyattn

import (
	"fmt"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Attention
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeAttention)
}

// Attention scores every encoder timestep against a query
// vector.
//
// The energy of encoder state e for query h is
//
//     v . relu(W_s h + W_e e + b)
//
// Energies are normalized with a softmax over the valid
// prefix of each sequence; padded timesteps always get a
// weight of exactly zero.
type Attention struct {
	Query   *anyrul.FC
	Encoder *anyrul.FC
	Score   *anyrul.FC
}

// DeserializeAttention deserializes an Attention.
func DeserializeAttention(d []byte) (*Attention, error) {
	var res Attention
	if err := serializer.DeserializeAny(d, &res.Query, &res.Encoder, &res.Score); err != nil {
		return nil, essentials.AddCtx("deserialize Attention", err)
	}
	return &res, nil
}

// New creates a randomized Attention for queries and
// encoder states of the given size.
func New(c anyvec.Creator, r *rand.Rand, hidden int) *Attention {
	return &Attention{
		Query:   anyrul.NewFC(c, r, hidden, hidden),
		Encoder: anyrul.NewFCNoBias(c, r, hidden, hidden),
		Score:   anyrul.NewFCNoBias(c, r, hidden, 1),
	}
}

// Apply computes attention weights.
//
// The query is a (batch, hidden) matrix, and enc is a
// time-major (steps, batch, hidden) tensor.
// The result is a (batch, steps) matrix in which row b
// sums to 1 over its first lens[b] entries and is zero
// elsewhere.
//
// Every length must be in [1, steps].
func (a *Attention) Apply(query, enc anydiff.Res, lens []int) anydiff.Res {
	batch := len(lens)
	hidden := a.Encoder.InCount
	if query.Output().Len() != batch*hidden {
		panic(fmt.Sprintf("query should have %d components but has %d", batch*hidden,
			query.Output().Len()))
	}
	if enc.Output().Len()%(batch*hidden) != 0 {
		panic("encoder size not divisible by batch and hidden sizes")
	}
	steps := enc.Output().Len() / (batch * hidden)
	for i, l := range lens {
		if l < 1 || l > steps {
			panic(fmt.Sprintf("length %d of sequence %d out of range [1, %d]", l, i, steps))
		}
	}

	energy := anydiff.ClipPos(anydiff.AddRepeated(
		a.Encoder.Apply(enc, steps*batch),
		a.Query.Apply(query, batch),
	))
	scores := a.Score.Apply(energy, steps*batch)
	rows := anydiff.Transpose(&anydiff.Matrix{Data: scores, Rows: steps, Cols: batch})

	c := query.Output().Creator()
	return anydiff.Pool(rows.Data, func(rows anydiff.Res) anydiff.Res {
		parts := make([]anydiff.Res, 0, batch*2)
		for b, l := range lens {
			row := anydiff.Slice(rows, b*steps, b*steps+l)
			parts = append(parts, anydiff.Exp(anydiff.LogSoftmax(row, l)))
			if l < steps {
				parts = append(parts, anydiff.NewConst(c.MakeVector(steps-l)))
			}
		}
		return anydiff.Concat(parts...)
	})
}

// Parameters returns the parameters of the projections.
func (a *Attention) Parameters() []*anydiff.Var {
	return anyrul.AllParameters(a.Query, a.Encoder, a.Score)
}

// SerializerType returns the unique ID used to serialize
// an Attention with the serializer package.
func (a *Attention) SerializerType() string {
	return "github.com/unixpickle/anyrul/anyattn.Attention"
}

// Serialize serializes the Attention.
func (a *Attention) Serialize() ([]byte, error) {
	return serializer.SerializeAny(a.Query, a.Encoder, a.Score)
}

// Context computes the attention-weighted sum of encoder
// states for each sequence.
//
// The weights are a (batch, steps) matrix and enc is a
// time-major (steps, batch, hidden) tensor.
// The result is a (batch, hidden) matrix.
func Context(weights, enc anydiff.Res, batch int) anydiff.Res {
	steps := weights.Output().Len() / batch
	hidden := enc.Output().Len() / (steps * batch)
	encRows := anyrul.BatchMajor(enc, steps, batch, hidden)
	return anydiff.Pool(weights, func(weights anydiff.Res) anydiff.Res {
		return anydiff.Pool(encRows, func(encRows anydiff.Res) anydiff.Res {
			parts := make([]anydiff.Res, batch)
			for b := range parts {
				w := &anydiff.Matrix{
					Data: anydiff.Slice(weights, b*steps, (b+1)*steps),
					Rows: 1,
					Cols: steps,
				}
				e := &anydiff.Matrix{
					Data: anydiff.Slice(encRows, b*steps*hidden, (b+1)*steps*hidden),
					Rows: steps,
					Cols: hidden,
				}
				parts[b] = anydiff.MatMul(false, false, w, e).Data
			}
			return anydiff.Concat(parts...)
		})
	})
}
