package anyrul

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var p PReLU
	serializer.RegisterTypedDeserializer(p.SerializerType(), DeserializePReLU)
}

// PReLU is a parametric rectifier with a single learnable
// negative slope shared by every component.
//
// For every component x[i], it computes
//
//     max(0, x[i]) + a*min(0, x[i])
type PReLU struct {
	Slope *anydiff.Var
}

// NewPReLU creates a PReLU with the given initial slope.
func NewPReLU(c anyvec.Creator, slope float64) *PReLU {
	return &PReLU{
		Slope: anydiff.NewVar(c.MakeVectorData(c.MakeNumericList([]float64{slope}))),
	}
}

// DeserializePReLU deserializes a PReLU layer.
func DeserializePReLU(d []byte) (*PReLU, error) {
	var s *anyvecsave.S
	if err := serializer.DeserializeAny(d, &s); err != nil {
		return nil, essentials.AddCtx("deserialize PReLU", err)
	}
	if s.Vector.Len() != 1 {
		return nil, errors.New("deserialize PReLU: expected exactly one slope")
	}
	return &PReLU{Slope: anydiff.NewVar(s.Vector)}, nil
}

// Apply applies the layer to a batch of inputs.
func (p *PReLU) Apply(in anydiff.Res, n int) anydiff.Res {
	c := in.Output().Creator()
	minusOne := c.MakeNumeric(-1)
	zero := anydiff.NewConst(c.MakeVector(1))
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		pos := anydiff.ClipPos(in)
		neg := anydiff.ClipPos(anydiff.Scale(in, minusOne))
		scaledNeg := anydiff.ScaleAddRepeated(neg, p.Slope, zero)
		return anydiff.Sub(pos, scaledNeg)
	})
}

// Parameters returns the slope.
func (p *PReLU) Parameters() []*anydiff.Var {
	return []*anydiff.Var{p.Slope}
}

// SerializerType returns the unique ID used to serialize
// a PReLU with the serializer package.
func (p *PReLU) SerializerType() string {
	return "github.com/unixpickle/anyrul.PReLU"
}

// Serialize serializes the layer.
func (p *PReLU) Serialize() ([]byte, error) {
	return serializer.SerializeAny(&anyvecsave.S{Vector: p.Slope.Vector})
}
