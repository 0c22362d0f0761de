package anyconv

import (
	"fmt"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyvec"
)

// A Conver implements a specific convolution operation,
// where the filter sizes are already determined.
type Conver interface {
	anyrul.Layer
}

// A ConverMaker constructs new Convers for a given set of
// layer parameters.
//
// Different ConverMakers may use different convolution
// algorithms.
type ConverMaker func(info Conv1D) Conver

var converMakerLock sync.RWMutex
var converMaker ConverMaker = MakeDefaultConver

// SetConverMaker sets the function which should be used
// to create new Convers.
// The maker is used when deserializing Conv1D layers.
func SetConverMaker(f ConverMaker) {
	converMakerLock.Lock()
	converMaker = f
	converMakerLock.Unlock()
}

// CurrentConverMaker returns the current function for
// creating Convers.
func CurrentConverMaker() ConverMaker {
	converMakerLock.RLock()
	defer converMakerLock.RUnlock()
	return converMaker
}

// MakeDefaultConver is the default ConverMaker.
// It returns Convers that use anyvec primitives to
// perform convolution.
func MakeDefaultConver(c Conv1D) Conver {
	if c.Filters == nil {
		panic("nil parameters")
	}
	return &conver{conv: c, im2rows: map[int]*Im2Row{}}
}

// MakeParallelConver is similar to MakeDefaultConver,
// except that the resulting Conver will parallelize
// convolutions across the batch.
func MakeParallelConver(c Conv1D) Conver {
	res := MakeDefaultConver(c).(*conver)
	res.parallel = true
	return res
}

// conver is the default Conver implementation.
//
// It uses the classic "im2col technique", where input
// sequences are converted to matrices.
// One Im2Row is cached per input width.
type conver struct {
	conv Conv1D

	lock    sync.Mutex
	im2rows map[int]*Im2Row

	parallel bool
}

// Apply applies the layer to a batch of sequences.
//
// After you apply a Conv1D, you should not modify
// its fields again.
func (c *conver) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	inLen := in.Output().Len()
	if inLen%(batchSize*c.conv.InputDepth) != 0 {
		panic(fmt.Sprintf("input length %d not divisible by batch %d and depth %d",
			inLen, batchSize, c.conv.InputDepth))
	}
	inWidth := inLen / (batchSize * c.conv.InputDepth)
	outWidth := c.conv.OutputWidth(inWidth)
	if outWidth == 0 {
		return anydiff.NewConst(in.Output().Creator().MakeVector(0))
	}
	im2row := c.im2row(inWidth)

	filterMatrix := c.filterMatrix()
	outSize := outWidth * c.conv.FilterCount

	cr := in.Output().Creator()
	productResults := make([]anyvec.Vector, batchSize)
	im2row.Map(in.Output(), c.parallel, func(i int, imgMatrix *anyvec.Matrix) {
		prodMat := &anyvec.Matrix{
			Data: cr.MakeVector(outSize),
			Rows: outWidth,
			Cols: c.conv.FilterCount,
		}
		prodMat.Product(false, true, cr.MakeNumeric(1), imgMatrix, filterMatrix,
			cr.MakeNumeric(0))
		productResults[i] = prodMat.Data
	})

	outData := cr.Concat(productResults...)
	ourVars := anydiff.VarSet{}
	ourVars.Add(c.conv.Filters)
	if c.conv.Biases != nil {
		anyvec.AddRepeated(outData, c.conv.Biases.Vector)
		ourVars.Add(c.conv.Biases)
	}

	return &convRes{
		Conver:   c,
		Layer:    &c.conv,
		Im2Row:   im2row,
		OutWidth: outWidth,
		N:        batchSize,
		In:       in,
		OutVec:   outData,
		V:        anydiff.MergeVarSets(in.Vars(), ourVars),
	}
}

func (c *conver) im2row(width int) *Im2Row {
	c.lock.Lock()
	defer c.lock.Unlock()
	if m, ok := c.im2rows[width]; ok {
		return m
	}
	m := &Im2Row{
		Window:     c.conv.KernelSize,
		Stride:     c.conv.Stride,
		InputWidth: width,
		InputDepth: c.conv.InputDepth,
	}
	c.im2rows[width] = m
	return m
}

func (c *conver) filterMatrix() *anyvec.Matrix {
	return &anyvec.Matrix{
		Data: c.conv.Filters.Vector,
		Rows: c.conv.FilterCount,
		Cols: c.conv.KernelSize * c.conv.InputDepth,
	}
}

type convRes struct {
	Conver   *conver
	Layer    *Conv1D
	Im2Row   *Im2Row
	OutWidth int
	N        int
	In       anydiff.Res
	OutVec   anyvec.Vector
	V        anydiff.VarSet
}

func (c *convRes) Output() anyvec.Vector {
	return c.OutVec
}

func (c *convRes) Vars() anydiff.VarSet {
	return c.V
}

func (c *convRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	doIn := g.Intersects(c.In.Vars())

	outSize := u.Len() / c.N
	inSize := c.In.Output().Len() / c.N

	filterMat := c.Conver.filterMatrix()

	one := u.Creator().MakeNumeric(1)
	zero := u.Creator().MakeNumeric(0)

	if c.Layer.Biases != nil {
		if biasGrad, ok := g[c.Layer.Biases]; ok {
			c.propagateBiases(biasGrad, u)
		}
	}

	inputUpstreams := make([]anyvec.Vector, c.N)
	var updateLock sync.Mutex
	c.loopImageMatrix(g, func(i int, imgMat *anyvec.Matrix) {
		uMat := &anyvec.Matrix{
			Data: u.Slice(outSize*i, outSize*(i+1)),
			Rows: c.OutWidth,
			Cols: c.Layer.FilterCount,
		}
		if filterGrad, ok := g[c.Layer.Filters]; ok {
			fgMat := *filterMat
			fgMat.Data = filterGrad.Creator().MakeVector(filterGrad.Len())
			fgMat.Product(true, false, one, uMat, imgMat, zero)
			updateLock.Lock()
			filterGrad.Add(fgMat.Data)
			updateLock.Unlock()
		}
		if doIn {
			imgMat.Product(false, false, one, uMat, filterMat, zero)
			inUp := u.Creator().MakeVector(inSize)
			c.Im2Row.Mapper(u.Creator()).MapTranspose(imgMat.Data, inUp)
			inputUpstreams[i] = inUp
		}
	})

	if doIn {
		totalUp := u.Creator().Concat(inputUpstreams...)
		c.In.Propagate(totalUp, g)
	}
}

func (c *convRes) loopImageMatrix(g anydiff.Grad, f func(i int, m *anyvec.Matrix)) {
	parallel := c.Conver.parallel
	if _, ok := g[c.Layer.Filters]; ok {
		c.Im2Row.Map(c.In.Output(), parallel, f)
	} else {
		c.Im2Row.Each(c.In.Output().Creator(), c.N, parallel, f)
	}
}

func (c *convRes) propagateBiases(biasGrad, upstream anyvec.Vector) {
	biasGrad.Add(anyvec.SumRows(upstream, c.Layer.FilterCount))
}
