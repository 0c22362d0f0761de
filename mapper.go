package anyrul

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Gather selects components of a large vector.
//
// The i-th output component is in[table[i]], where table
// is the lookup table of m.
// The input must have bigSize components.
func Gather(in anydiff.Res, m anyvec.Mapper, bigSize int) anydiff.Res {
	if in.Output().Len() != bigSize {
		panic(fmt.Sprintf("gather input should have length %d, but got %d",
			bigSize, in.Output().Len()))
	}
	out := in.Output().Creator().MakeVector(m.OutSize())
	m.Map(in.Output(), out)
	return &gatherRes{In: in, Mapper: m, BigSize: bigSize, OutVec: out}
}

// Scatter is the transpose of Gather.
//
// The input has m.OutSize() components, and each one is
// added into component table[i] of a zero vector with
// bigSize components.
func Scatter(in anydiff.Res, m anyvec.Mapper, bigSize int) anydiff.Res {
	if in.Output().Len() != m.OutSize() {
		panic(fmt.Sprintf("scatter input should have length %d, but got %d",
			m.OutSize(), in.Output().Len()))
	}
	out := in.Output().Creator().MakeVector(bigSize)
	m.MapTranspose(in.Output(), out)
	return &scatterRes{In: in, Mapper: m, OutVec: out}
}

// MakeMapper creates a Mapper for Gather or Scatter.
func MakeMapper(c anyvec.Creator, bigSize int, table []int) anyvec.Mapper {
	return c.MakeMapper(bigSize, table)
}

type gatherRes struct {
	In      anydiff.Res
	Mapper  anyvec.Mapper
	BigSize int
	OutVec  anyvec.Vector
}

func (g *gatherRes) Output() anyvec.Vector {
	return g.OutVec
}

func (g *gatherRes) Vars() anydiff.VarSet {
	return g.In.Vars()
}

func (g *gatherRes) Propagate(u anyvec.Vector, grad anydiff.Grad) {
	down := u.Creator().MakeVector(g.BigSize)
	g.Mapper.MapTranspose(u, down)
	g.In.Propagate(down, grad)
}

type scatterRes struct {
	In     anydiff.Res
	Mapper anyvec.Mapper
	OutVec anyvec.Vector
}

func (s *scatterRes) Output() anyvec.Vector {
	return s.OutVec
}

func (s *scatterRes) Vars() anydiff.VarSet {
	return s.In.Vars()
}

func (s *scatterRes) Propagate(u anyvec.Vector, grad anydiff.Grad) {
	down := u.Creator().MakeVector(s.Mapper.OutSize())
	s.Mapper.Map(u, down)
	s.In.Propagate(down, grad)
}

// TimeMajor converts a batch-major (batch, steps, depth)
// tensor into a time-major (steps, batch, depth) tensor.
func TimeMajor(in anydiff.Res, batch, steps, depth int) anydiff.Res {
	size := batch * steps * depth
	table := make([]int, 0, size)
	for t := 0; t < steps; t++ {
		for b := 0; b < batch; b++ {
			offset := (b*steps + t) * depth
			for z := 0; z < depth; z++ {
				table = append(table, offset+z)
			}
		}
	}
	m := MakeMapper(in.Output().Creator(), size, table)
	return Gather(in, m, size)
}

// BatchMajor is the inverse of TimeMajor.
func BatchMajor(in anydiff.Res, steps, batch, depth int) anydiff.Res {
	size := batch * steps * depth
	table := make([]int, 0, size)
	for b := 0; b < batch; b++ {
		for t := 0; t < steps; t++ {
			offset := (t*batch + b) * depth
			for z := 0; z < depth; z++ {
				table = append(table, offset+z)
			}
		}
	}
	m := MakeMapper(in.Output().Creator(), size, table)
	return Gather(in, m, size)
}
