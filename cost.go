package anyrul

import (
	"fmt"

	"github.com/unixpickle/anydiff"
)

// A Cost provides a way to measure the amount of error
// from the output of a neural network.
//
// Just like regular Layers, a Cost function is batched.
// It takes a packed batch of desired outputs and actual
// outputs, and produces a batch of costs.
type Cost interface {
	Cost(desired, actual anydiff.Res, n int) anydiff.Res
}

// MSE evaluates cost as the squared Euclidean distance
// between the actual and desired output.
type MSE struct{}

// Cost computes, for each output, the mean squared
// distance between the actual and desired output value.
func (m MSE) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	diff := anydiff.Sub(desired, actual)
	sq := anydiff.Square(diff)
	numComps := sq.Output().Len() / n
	sum := anydiff.SumCols(&anydiff.Matrix{
		Data: sq,
		Rows: n,
		Cols: numComps,
	})
	normalizer := 1.0 / float64(numComps)
	return anydiff.Scale(sum, sum.Output().Creator().MakeNumeric(normalizer))
}

// MaskedMSE evaluates the mean squared error of ragged,
// time-major sequences.
//
// Inputs are laid out as (steps, n, width), where steps
// is the largest length and step t of sequence b is only
// counted if t < Lengths[b].
// Padded components are never read, so they do not
// influence the cost even if they are NaN or infinite.
type MaskedMSE struct {
	Lengths []int
}

// Cost produces one cost per sequence: the mean squared
// error over that sequence's valid steps and components.
func (m MaskedMSE) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	if len(m.Lengths) != n {
		panic(fmt.Sprintf("expected %d lengths but got %d", n, len(m.Lengths)))
	}
	total := actual.Output().Len()
	if total != desired.Output().Len() {
		panic("desired and actual lengths differ")
	}
	maxLen := 0
	for _, l := range m.Lengths {
		if l > maxLen {
			maxLen = l
		}
	}
	if maxLen == 0 || total%(maxLen*n) != 0 {
		panic("output size must be divisible by batch size and max length")
	}
	steps := maxLen
	width := total / (steps * n)

	c := actual.Output().Creator()
	var valid, rows []int
	var weights []float64
	for b, l := range m.Lengths {
		for t := 0; t < l && t < steps; t++ {
			for w := 0; w < width; w++ {
				valid = append(valid, (t*n+b)*width+w)
				rows = append(rows, (b*steps+t)*width+w)
				weights = append(weights, 1/float64(l*width))
			}
		}
	}
	validMap := MakeMapper(c, total, valid)
	weightVec := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(weights)))

	diff := anydiff.Sub(Gather(desired, validMap, total), Gather(actual, validMap, total))
	weighted := anydiff.Mul(anydiff.Square(diff), weightVec)
	batchMajor := Scatter(weighted, MakeMapper(c, total, rows), total)
	return anydiff.SumCols(&anydiff.Matrix{
		Data: batchMajor,
		Rows: n,
		Cols: steps * width,
	})
}

// L2Reg wraps a Cost and adds an L2 penalty.
//
// The L2 penalty is computed by squaring the parameters,
// summing the squares, then multiplying the sum by
// Penalty / 2.
type L2Reg struct {
	Penalty float64
	Params  []*anydiff.Var
	Wrapped Cost
}

// Cost computes the cost from l.Wrapped and adds the L2
// penalty to each component.
func (l *L2Reg) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	var sum anydiff.Res
	sum = anydiff.NewConst(actual.Output().Creator().MakeVector(1))
	for _, p := range l.Params {
		sum = anydiff.Add(sum, anydiff.Sum(anydiff.Square(p)))
	}
	sum = anydiff.Scale(sum, sum.Output().Creator().MakeNumeric(l.Penalty/2))
	return anydiff.AddRepeated(l.Wrapped.Cost(desired, actual, n), sum)
}
