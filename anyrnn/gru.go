package anyrnn

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var g GRUGate
	serializer.RegisterTypedDeserializer(g.SerializerType(), DeserializeGRUGate)
	var gru GRU
	serializer.RegisterTypedDeserializer(gru.SerializerType(), DeserializeGRU)
}

// GRU is a gated recurrent unit.
//
// For an input x and a previous state h, it computes
//
//     r  = sigmoid(W_r x + U_r h + b_r)
//     z  = sigmoid(W_z x + U_z h + b_z)
//     n  = tanh(W_n x + b_n + r*(U_n h + c_n))
//     h' = (1-z)*n + z*h
//
// The output of the block at each timestep is h'.
// The start state is all zeros.
type GRU struct {
	Reset     *GRUGate
	Update    *GRUGate
	Candidate *GRUGate
}

// DeserializeGRU deserializes a GRU.
func DeserializeGRU(d []byte) (*GRU, error) {
	var res GRU
	if err := serializer.DeserializeAny(d, &res.Reset, &res.Update, &res.Candidate); err != nil {
		return nil, essentials.AddCtx("deserialize GRU", err)
	}
	return &res, nil
}

// NewGRU creates a new, randomized GRU.
// If r is nil, the global source is used.
func NewGRU(c anyvec.Creator, r *rand.Rand, in, hidden int) *GRU {
	return &GRU{
		Reset:     NewGRUGate(c, r, in, hidden, anyrul.Sigmoid),
		Update:    NewGRUGate(c, r, in, hidden, anyrul.Sigmoid),
		Candidate: NewGRUGate(c, r, in, hidden, anyrul.Tanh),
	}
}

// InCount returns the input size.
func (g *GRU) InCount() int {
	return g.Reset.Input.InCount
}

// StateSize returns the size of the hidden state.
func (g *GRU) StateSize() int {
	return g.Reset.State.OutCount
}

// Cell applies the GRU to a batch of inputs and states,
// producing the new states.
func (g *GRU) Cell(in, state anydiff.Res, n int) anydiff.Res {
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		return anydiff.Pool(state, func(state anydiff.Res) anydiff.Res {
			reset := g.Reset.Apply(in, state, n)
			update := g.Update.Apply(in, state, n)
			cand := g.Candidate.Activation.Apply(anydiff.Add(
				g.Candidate.Input.Apply(in, n),
				anydiff.Mul(reset, g.Candidate.State.Apply(state, n)),
			), n)
			return anydiff.Pool(update, func(update anydiff.Res) anydiff.Res {
				return anydiff.Pool(cand, func(cand anydiff.Res) anydiff.Res {
					return anydiff.Add(cand, anydiff.Mul(update, anydiff.Sub(state, cand)))
				})
			})
		})
	})
}

// Start produces a zero start state.
func (g *GRU) Start(n int) State {
	return g.block().Start(n)
}

// PropagateStart does nothing, since the start state is
// constant.
func (g *GRU) PropagateStart(s StateGrad, grad anydiff.Grad) {
	g.block().PropagateStart(s, grad)
}

// Step applies the block for a single timestep.
func (g *GRU) Step(s State, in anyvec.Vector) Res {
	return g.block().Step(s, in)
}

func (g *GRU) block() *FuncBlock {
	return &FuncBlock{
		Func: func(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
			newState = g.Cell(in, state, n)
			return newState, newState
		},
		MakeStart: func(n int) anydiff.Res {
			c := g.Reset.State.Weights.Vector.Creator()
			return anydiff.NewConst(c.MakeVector(n * g.StateSize()))
		},
	}
}

// Parameters returns the parameters of every gate.
func (g *GRU) Parameters() []*anydiff.Var {
	return anyrul.AllParameters(g.Reset, g.Update, g.Candidate)
}

// SerializerType returns the unique ID used to serialize
// a GRU with the serializer package.
func (g *GRU) SerializerType() string {
	return "github.com/unixpickle/anyrul/anyrnn.GRU"
}

// Serialize serializes the GRU.
func (g *GRU) Serialize() ([]byte, error) {
	return serializer.SerializeAny(g.Reset, g.Update, g.Candidate)
}

// A GRUGate computes a value from the input and the
// previous state.
type GRUGate struct {
	Input      *anyrul.FC
	State      *anyrul.FC
	Activation anyrul.Activation
}

// DeserializeGRUGate deserializes a GRUGate.
func DeserializeGRUGate(d []byte) (*GRUGate, error) {
	var res GRUGate
	if err := serializer.DeserializeAny(d, &res.Input, &res.State, &res.Activation); err != nil {
		return nil, essentials.AddCtx("deserialize GRUGate", err)
	}
	return &res, nil
}

// NewGRUGate creates a randomized gate.
func NewGRUGate(c anyvec.Creator, r *rand.Rand, in, hidden int,
	activation anyrul.Activation) *GRUGate {
	return &GRUGate{
		Input:      anyrul.NewFC(c, r, in, hidden),
		State:      anyrul.NewFC(c, r, hidden, hidden),
		Activation: activation,
	}
}

// Apply computes the activated gate value.
func (g *GRUGate) Apply(in, state anydiff.Res, n int) anydiff.Res {
	return g.Activation.Apply(anydiff.Add(g.Input.Apply(in, n), g.State.Apply(state, n)), n)
}

// Parameters returns the parameters of the gate.
func (g *GRUGate) Parameters() []*anydiff.Var {
	return append(g.Input.Parameters(), g.State.Parameters()...)
}

// SerializerType returns the unique ID used to serialize
// a GRUGate with the serializer package.
func (g *GRUGate) SerializerType() string {
	return "github.com/unixpickle/anyrul/anyrnn.GRUGate"
}

// Serialize serializes the gate.
func (g *GRUGate) Serialize() ([]byte, error) {
	return serializer.SerializeAny(g.Input, g.State, g.Activation)
}
