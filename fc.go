package anyrul

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var f FC
	serializer.RegisterTypedDeserializer(f.SerializerType(), DeserializeFC)
}

// FC is a fully-connected layer.
//
// Biases may be nil, in which case the layer is a pure
// linear map.
type FC struct {
	InCount  int
	OutCount int
	Weights  *anydiff.Var
	Biases   *anydiff.Var
}

// DeserializeFC attempts to deserialize an FC.
func DeserializeFC(d []byte) (*FC, error) {
	var inCount, outCount, hasBias serializer.Int
	var weights, biases *anyvecsave.S
	err := serializer.DeserializeAny(d, &inCount, &outCount, &hasBias, &weights, &biases)
	if err != nil {
		return nil, essentials.AddCtx("deserialize FC", err)
	}
	if int(inCount*outCount) != weights.Vector.Len() {
		return nil, errors.New("deserialize FC: invalid matrix dimensions")
	}
	res := &FC{
		InCount:  int(inCount),
		OutCount: int(outCount),
		Weights:  anydiff.NewVar(weights.Vector),
	}
	if hasBias == 1 {
		if biases.Vector.Len() != res.OutCount {
			return nil, errors.New("deserialize FC: invalid bias count")
		}
		res.Biases = anydiff.NewVar(biases.Vector)
	}
	return res, nil
}

// NewFC creates a new, randomized FC.
//
// Weights and biases are drawn uniformly from
// [-1/sqrt(in), 1/sqrt(in)].
// If r is nil, the global source is used.
func NewFC(c anyvec.Creator, r *rand.Rand, in, out int) *FC {
	res := NewFCZero(c, in, out)
	bound := 1 / math.Sqrt(float64(in))
	uniformInit(res.Weights.Vector, r, bound)
	uniformInit(res.Biases.Vector, r, bound)
	return res
}

// NewFCNoBias is like NewFC, but the result has no
// biases.
func NewFCNoBias(c anyvec.Creator, r *rand.Rand, in, out int) *FC {
	res := NewFC(c, r, in, out)
	res.Biases = nil
	return res
}

// NewFCZero creates a new, zero'd out FC.
func NewFCZero(c anyvec.Creator, in, out int) *FC {
	return &FC{
		InCount:  in,
		OutCount: out,
		Weights:  anydiff.NewVar(c.MakeVector(in * out)),
		Biases:   anydiff.NewVar(c.MakeVector(out)),
	}
}

// Apply applies the fully-connected layer to a batch of
// inputs.
func (f *FC) Apply(in anydiff.Res, batch int) anydiff.Res {
	if batch*f.InCount != in.Output().Len() {
		panic(fmt.Sprintf("input length should be %d, but got %d",
			batch*f.InCount, in.Output().Len()))
	}
	weightMat := &anydiff.Matrix{
		Data: f.Weights,
		Rows: f.OutCount,
		Cols: f.InCount,
	}
	inMat := &anydiff.Matrix{
		Data: in,
		Rows: batch,
		Cols: f.InCount,
	}
	weighted := anydiff.MatMul(false, true, inMat, weightMat)
	if f.Biases == nil {
		return weighted.Data
	}
	return anydiff.AddRepeated(weighted.Data, f.Biases)
}

// Parameters returns a slice containing the weights
// and the biases, in that order.
func (f *FC) Parameters() []*anydiff.Var {
	if f.Biases == nil {
		return []*anydiff.Var{f.Weights}
	}
	return []*anydiff.Var{f.Weights, f.Biases}
}

// SerializerType returns the unique ID used to serialize
// an FC with the serializer package.
func (f *FC) SerializerType() string {
	return "github.com/unixpickle/anyrul.FC"
}

// Serialize serializes the FC.
func (f *FC) Serialize() ([]byte, error) {
	hasBias := serializer.Int(1)
	biases := f.Biases
	if biases == nil {
		hasBias = 0
		biases = anydiff.NewVar(f.Weights.Vector.Creator().MakeVector(0))
	}
	return serializer.SerializeAny(
		serializer.Int(f.InCount),
		serializer.Int(f.OutCount),
		hasBias,
		&anyvecsave.S{Vector: f.Weights.Vector},
		&anyvecsave.S{Vector: biases.Vector},
	)
}

func uniformInit(v anyvec.Vector, r *rand.Rand, bound float64) {
	c := v.Creator()
	anyvec.Rand(v, anyvec.Uniform, r)
	v.Scale(c.MakeNumeric(2 * bound))
	v.AddScalar(c.MakeNumeric(-bound))
}
