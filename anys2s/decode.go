package anys2s

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// decodeStep records a decoder step along with the pooled
// variables it read from the previous step.
type decodeStep struct {
	Step *DecoderStep

	// PrevPool is nil if the step read a constant input.
	PrevPool *anydiff.Var

	// StatePools is nil for the first step, which reads
	// slices of the encoder output directly.
	StatePools []*anydiff.Var
}

// decodeRes ties a decode loop together.
//
// Every step is its own graph which reads pooled copies of
// the previous step's outputs, so back-propagation runs
// through the steps in reverse, carrying gradients from
// each step's pools into the step before it.
// All of the steps read from a single pool of the encoder
// output, which is propagated through the encoder once at
// the end.
type decodeRes struct {
	Enc     anydiff.Res
	EncPool *anydiff.Var
	Steps   []*decodeStep
	Batch   int
	OutSize int

	OutVec anyvec.Vector
	V      anydiff.VarSet
}

func (d *decodeRes) finish() {
	c := d.EncPool.Vector.Creator()
	outs := []anyvec.Vector{c.MakeVector(d.outLen())}
	d.V = anydiff.MergeVarSets(d.Enc.Vars())
	for _, s := range d.Steps {
		outs = append(outs, s.Step.OutVector())
		d.V = anydiff.MergeVarSets(d.V, s.Step.Res.Vars())
	}
	d.V.Del(d.EncPool)
	for _, s := range d.Steps {
		if s.PrevPool != nil {
			d.V.Del(s.PrevPool)
		}
		for _, p := range s.StatePools {
			d.V.Del(p)
		}
	}
	d.OutVec = c.Concat(outs...)
}

func (d *decodeRes) Output() anyvec.Vector {
	return d.OutVec
}

func (d *decodeRes) Vars() anydiff.VarSet {
	return d.V
}

func (d *decodeRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	if !g.Intersects(d.V) {
		return
	}
	c := u.Creator()
	outLen := d.outLen()
	g[d.EncPool] = c.MakeVector(d.EncPool.Vector.Len())

	var outGrad anyvec.Vector
	var stateGrads []anyvec.Vector
	for i := len(d.Steps) - 1; i >= 0; i-- {
		s := d.Steps[i]
		t := i + 1

		up := u.Slice(t*outLen, (t+1)*outLen)
		if outGrad != nil {
			up.Add(outGrad)
		}
		parts := []anyvec.Vector{up}
		for l := 0; l < s.Step.Layers; l++ {
			if stateGrads != nil {
				parts = append(parts, stateGrads[l])
			} else {
				parts = append(parts, c.MakeVector(d.Batch*s.Step.StateSize))
			}
		}

		if s.PrevPool != nil {
			g[s.PrevPool] = c.MakeVector(s.PrevPool.Vector.Len())
		}
		for _, p := range s.StatePools {
			g[p] = c.MakeVector(p.Vector.Len())
		}

		s.Step.Res.Propagate(c.Concat(parts...), g)

		outGrad = nil
		if s.PrevPool != nil {
			outGrad = g[s.PrevPool]
			delete(g, s.PrevPool)
		}
		stateGrads = nil
		for _, p := range s.StatePools {
			stateGrads = append(stateGrads, g[p])
			delete(g, p)
		}
	}

	encGrad := g[d.EncPool]
	delete(g, d.EncPool)
	d.Enc.Propagate(encGrad, g)
}

func (d *decodeRes) outLen() int {
	return d.Batch * d.OutSize
}
