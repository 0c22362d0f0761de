package anyconv

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
)

// StridePadding returns the number of zero steps appended
// to a sequence of n steps before convolving it.
//
// The result is always at least kernel-stride+1, so that
// every input step is covered by some window.
func StridePadding(n, kernel, stride int) int {
	return kernel - n%stride
}

// DownsampledLen returns the number of valid output steps
// for an input sequence of n steps, assuming that the
// sequence is padded with StridePadding.
func DownsampledLen(n, kernel, stride int) int {
	padded := n + StridePadding(n, kernel, stride)
	return (padded-kernel+stride-1)/stride + 1
}

// DownsampledLens applies DownsampledLen to each length.
func DownsampledLens(lens []int, kernel, stride int) []int {
	res := make([]int, len(lens))
	for i, l := range lens {
		res[i] = DownsampledLen(l, kernel, stride)
	}
	return res
}

// PadBatchMajor converts a time-major (steps, batch,
// depth) tensor into a batch-major (batch, steps+pad,
// depth) tensor, filling the extra steps with zeros.
func PadBatchMajor(in anydiff.Res, steps, batch, depth, pad int) anydiff.Res {
	if in.Output().Len() != steps*batch*depth {
		panic(fmt.Sprintf("expected %d components but got %d", steps*batch*depth,
			in.Output().Len()))
	}
	newSteps := steps + pad
	table := make([]int, 0, steps*batch*depth)
	for t := 0; t < steps; t++ {
		for b := 0; b < batch; b++ {
			offset := (b*newSteps + t) * depth
			for z := 0; z < depth; z++ {
				table = append(table, offset+z)
			}
		}
	}
	outSize := batch * newSteps * depth
	m := anyrul.MakeMapper(in.Output().Creator(), outSize, table)
	return anyrul.Scatter(in, m, outSize)
}
