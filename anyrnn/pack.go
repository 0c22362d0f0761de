package anyrnn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyvec"
)

// Pack converts a dense time-major tensor into a Seq.
//
// The dense tensor is laid out as (steps, batch, width),
// where steps is at least lens[0].
// In the resulting Seq, sequence b is present for its
// first lens[b] timesteps, and padded steps are dropped.
//
// If reverse is set, every sequence is reversed within
// its own valid prefix, so that timestep t of sequence b
// in the Seq comes from dense step lens[b]-1-t.
//
// The lengths must satisfy CheckLengths.
func Pack(in anydiff.Res, lens []int, width int, reverse bool) anyseq.Seq {
	if err := CheckLengths(lens); err != nil {
		panic(err)
	}
	steps := denseSteps(in.Output().Len(), len(lens), width)
	if steps < lens[0] {
		panic(fmt.Sprintf("dense tensor has %d steps but longest sequence has %d",
			steps, lens[0]))
	}
	p := newPacking(in.Output().Creator(), lens, steps, width, reverse)
	packed := in.Output().Creator().MakeVector(p.Mapper.OutSize())
	p.Mapper.Map(in.Output(), packed)
	return &packRes{In: in, Packing: p, Out: p.Split(packed)}
}

// Unpack is the inverse of Pack.
//
// It produces a dense (steps, batch, width) tensor which
// is zero at every padded position.
// The arguments should match the ones used with Pack,
// except that width is the width of the Seq's vectors.
func Unpack(s anyseq.Seq, lens []int, steps, width int, reverse bool) anydiff.Res {
	if err := CheckLengths(lens); err != nil {
		panic(err)
	}
	c := seqCreator(s)
	p := newPacking(c, lens, steps, width, reverse)
	var vecs []anyvec.Vector
	for _, b := range s.Output() {
		vecs = append(vecs, b.Packed)
	}
	out := c.MakeVector(p.DenseSize)
	p.Mapper.MapTranspose(c.Concat(vecs...), out)
	return &unpackRes{In: s, Packing: p, OutVec: out}
}

// SelectSteps gathers one timestep per sequence from a
// dense (steps, batch, width) tensor, producing a
// (batch, width) matrix.
func SelectSteps(in anydiff.Res, idxs []int, width int) anydiff.Res {
	batch := len(idxs)
	steps := denseSteps(in.Output().Len(), batch, width)
	table := make([]int, 0, batch*width)
	for b, t := range idxs {
		if t < 0 || t >= steps {
			panic(fmt.Sprintf("step %d out of range [0, %d)", t, steps))
		}
		for w := 0; w < width; w++ {
			table = append(table, (t*batch+b)*width+w)
		}
	}
	return gather(in, table)
}

// Interleave concatenates two dense tensors along their
// innermost dimension, giving rows like [in1[i], in2[i]].
func Interleave(in1, in2 anydiff.Res, rows int) anydiff.Res {
	w1 := in1.Output().Len() / rows
	w2 := in2.Output().Len() / rows
	offset := in1.Output().Len()
	table := make([]int, 0, offset+in2.Output().Len())
	for i := 0; i < rows; i++ {
		for j := 0; j < w1; j++ {
			table = append(table, i*w1+j)
		}
		for j := 0; j < w2; j++ {
			table = append(table, offset+i*w2+j)
		}
	}
	return gather(anydiff.Concat(in1, in2), table)
}

func gather(in anydiff.Res, table []int) anydiff.Res {
	size := in.Output().Len()
	return anyrul.Gather(in, anyrul.MakeMapper(in.Output().Creator(), size, table), size)
}

type packing struct {
	Present   []PresentMap
	Sizes     []int
	DenseSize int
	Mapper    anyvec.Mapper
}

func newPacking(c anyvec.Creator, lens []int, steps, width int, reverse bool) *packing {
	batch := len(lens)
	res := &packing{DenseSize: steps * batch * width}
	var table []int
	for t := 0; t < lens[0]; t++ {
		pres := make(PresentMap, batch)
		var size int
		for b, l := range lens {
			if l <= t {
				continue
			}
			pres[b] = true
			step := t
			if reverse {
				step = l - 1 - t
			}
			for w := 0; w < width; w++ {
				table = append(table, (step*batch+b)*width+w)
			}
			size += width
		}
		res.Present = append(res.Present, pres)
		res.Sizes = append(res.Sizes, size)
	}
	res.Mapper = c.MakeMapper(res.DenseSize, table)
	return res
}

// Split splits a packed vector into timesteps.
func (p *packing) Split(packed anyvec.Vector) []*anyseq.Batch {
	var res []*anyseq.Batch
	var offset int
	for i, size := range p.Sizes {
		res = append(res, &anyseq.Batch{
			Packed:  packed.Slice(offset, offset+size),
			Present: p.Present[i],
		})
		offset += size
	}
	return res
}

type packRes struct {
	In      anydiff.Res
	Packing *packing
	Out     []*anyseq.Batch
}

func (p *packRes) Output() []*anyseq.Batch {
	return p.Out
}

func (p *packRes) Creator() anyvec.Creator {
	return p.In.Output().Creator()
}

func (p *packRes) Vars() anydiff.VarSet {
	return p.In.Vars()
}

func (p *packRes) Propagate(u []*anyseq.Batch, g anydiff.Grad) {
	if !g.Intersects(p.In.Vars()) {
		return
	}
	var vecs []anyvec.Vector
	for _, b := range u {
		vecs = append(vecs, b.Packed)
	}
	c := p.In.Output().Creator()
	down := c.MakeVector(p.Packing.DenseSize)
	p.Packing.Mapper.MapTranspose(c.Concat(vecs...), down)
	p.In.Propagate(down, g)
}

type unpackRes struct {
	In      anyseq.Seq
	Packing *packing
	OutVec  anyvec.Vector
}

func (u *unpackRes) Output() anyvec.Vector {
	return u.OutVec
}

func (u *unpackRes) Vars() anydiff.VarSet {
	return u.In.Vars()
}

func (u *unpackRes) Propagate(up anyvec.Vector, g anydiff.Grad) {
	packed := up.Creator().MakeVector(u.Packing.Mapper.OutSize())
	u.Packing.Mapper.Map(up, packed)
	u.In.Propagate(u.Packing.Split(packed), g)
}

func denseSteps(size, batch, width int) int {
	if size%(batch*width) != 0 {
		panic(fmt.Sprintf("dense size %d not divisible by batch %d and width %d",
			size, batch, width))
	}
	return size / (batch * width)
}

func seqCreator(s anyseq.Seq) anyvec.Creator {
	out := s.Output()
	if len(out) == 0 {
		panic("cannot unpack an empty sequence")
	}
	return out[0].Packed.Creator()
}
