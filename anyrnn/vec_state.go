package anyrnn

import (
	"github.com/unixpickle/anyvec"
)

// A VecState is a State and StateGrad stored as one packed
// vector holding an equal-sized chunk for each present
// sequence.
type VecState struct {
	Vector     anyvec.Vector
	PresentMap PresentMap
}

// Present returns the PresentMap.
func (v *VecState) Present() PresentMap {
	return v.PresentMap
}

// Reduce keeps only the chunks of the sequences present in
// p, which must be a subset of v's sequences.
func (v *VecState) Reduce(p PresentMap) State {
	chunks := v.chunks()
	var kept []anyvec.Vector
	for i, pres := range p {
		if !pres {
			continue
		}
		chunk := chunks[i]
		if chunk == nil {
			panic("argument to Reduce must be a subset")
		}
		kept = append(kept, chunk)
	}
	return &VecState{
		Vector:     v.Vector.Creator().Concat(kept...),
		PresentMap: p,
	}
}

// Expand inserts zero chunks for the sequences in p that
// v does not cover; p must be a superset of v's sequences.
func (v *VecState) Expand(p PresentMap) StateGrad {
	chunks := v.chunks()
	zero := v.Vector.Creator().MakeVector(v.chunkSize())
	var all []anyvec.Vector
	for i, pres := range p {
		chunk := chunks[i]
		if !pres {
			if chunk != nil {
				panic("argument to Expand must be a superset")
			}
			continue
		}
		if chunk == nil {
			chunk = zero
		}
		all = append(all, chunk)
	}
	return &VecState{
		Vector:     v.Vector.Creator().Concat(all...),
		PresentMap: p,
	}
}

func (v *VecState) chunkSize() int {
	return v.Vector.Len() / v.PresentMap.NumPresent()
}

// chunks maps each sequence index to its chunk, or nil for
// absent sequences.
func (v *VecState) chunks() map[int]anyvec.Vector {
	size := v.chunkSize()
	res := map[int]anyvec.Vector{}
	var offset int
	for i, pres := range v.PresentMap {
		if pres {
			res[i] = v.Vector.Slice(offset, offset+size)
			offset += size
		}
	}
	return res
}
