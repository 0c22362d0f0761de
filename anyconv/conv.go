// Package anyconv implements strided one-dimensional
// convolutions over batches of sequences.
package anyconv

import (
	"errors"
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c Conv1D
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeConv1D)
}

// Conv1D is a convolutional layer that slides a window
// along the time axis.
//
// Input tensors are (width, depth) matrices laid out
// row-major, one after another in the batch.
// The width of the input may differ between calls to
// Apply; it is inferred from the input length.
type Conv1D struct {
	FilterCount int
	KernelSize  int
	Stride      int
	InputDepth  int

	Filters *anydiff.Var

	// Biases may be nil for a bias-free convolution.
	Biases *anydiff.Var

	Conver Conver
}

// DeserializeConv1D deserialize a Conv1D.
//
// The Conver is automatically set.
func DeserializeConv1D(d []byte) (*Conv1D, error) {
	var inD, k, s, hasBias serializer.Int
	var f, b *anyvecsave.S
	err := serializer.DeserializeAny(d, &inD, &k, &s, &hasBias, &f, &b)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Conv1D", err)
	}
	res := Conv1D{
		FilterCount: f.Vector.Len() / int(k*inD),
		KernelSize:  int(k),
		Stride:      int(s),
		InputDepth:  int(inD),
		Filters:     anydiff.NewVar(f.Vector),
	}
	if res.FilterCount*res.KernelSize*res.InputDepth != f.Vector.Len() {
		return nil, errors.New("deserialize Conv1D: invalid filter size")
	}
	if hasBias == 1 {
		res.Biases = anydiff.NewVar(b.Vector)
	}
	res.Conver = CurrentConverMaker()(res)
	return &res, nil
}

// InitRand initializes the filters uniformly in
// [-1/sqrt(fanIn), 1/sqrt(fanIn)] and sets the Conver.
//
// If bias is false, the layer has no biases.
// If r is nil, the global source is used.
func (c *Conv1D) InitRand(cr anyvec.Creator, r *rand.Rand, bias bool) {
	c.InitZero(cr, bias)
	bound := 1 / math.Sqrt(float64(c.KernelSize*c.InputDepth))
	for _, v := range c.Parameters() {
		anyvec.Rand(v.Vector, anyvec.Uniform, r)
		v.Vector.Scale(cr.MakeNumeric(2 * bound))
		v.Vector.AddScalar(cr.MakeNumeric(-bound))
	}
}

// InitZero initializes the layer to zero and sets the
// Conver.
func (c *Conv1D) InitZero(cr anyvec.Creator, bias bool) {
	c.Filters = anydiff.NewVar(cr.MakeVector(c.KernelSize * c.InputDepth * c.FilterCount))
	if bias {
		c.Biases = anydiff.NewVar(cr.MakeVector(c.FilterCount))
	} else {
		c.Biases = nil
	}
	c.Conver = CurrentConverMaker()(*c)
}

// OutputWidth returns the width of the output tensor for
// an input of the given width.
func (c *Conv1D) OutputWidth(inWidth int) int {
	w := 1 + (inWidth-c.KernelSize)/c.Stride
	if inWidth < c.KernelSize || w < 0 {
		return 0
	}
	return w
}

// Apply applies the layer to an input tensor using the
// Conver.
//
// The layer must have been initialized.
func (c *Conv1D) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	return c.Conver.Apply(in, batchSize)
}

// Parameters returns the layer's parameters.
// The filters come before the biases in the resulting
// slice.
//
// If the layer is uninitialized, the result is nil.
func (c *Conv1D) Parameters() []*anydiff.Var {
	if c.Filters == nil {
		return nil
	}
	if c.Biases == nil {
		return []*anydiff.Var{c.Filters}
	}
	return []*anydiff.Var{c.Filters, c.Biases}
}

// SerializerType returns the unique ID used to serialize
// a Conv1D with the serializer package.
func (c *Conv1D) SerializerType() string {
	return "github.com/unixpickle/anyrul/anyconv.Conv1D"
}

// Serialize serializes the layer.
//
// If the layer was not yet initialized, this fails.
func (c *Conv1D) Serialize() ([]byte, error) {
	if c.Filters == nil {
		return nil, errors.New("cannot serialize uninitialized Conv1D")
	}
	hasBias := serializer.Int(0)
	biases := c.Filters.Vector.Creator().MakeVector(0)
	if c.Biases != nil {
		hasBias = 1
		biases = c.Biases.Vector
	}
	return serializer.SerializeAny(
		serializer.Int(c.InputDepth),
		serializer.Int(c.KernelSize),
		serializer.Int(c.Stride),
		hasBias,
		&anyvecsave.S{Vector: c.Filters.Vector},
		&anyvecsave.S{Vector: biases},
	)
}
