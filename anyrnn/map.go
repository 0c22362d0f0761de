package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
)

// Map runs a Block over every timestep of a packed
// sequence batch, starting from the block's own start
// state.
//
// Sequences drop out of the state as they end, so the
// input must be length-sorted the way Pack produces it.
func Map(s anyseq.Seq, b Block) anyseq.Seq {
	steps := s.Output()
	if len(steps) == 0 {
		return &mapRes{}
	}

	start := b.Start(len(steps[0].Present))
	res := &mapRes{
		in:        s,
		block:     b,
		startPres: start.Present(),
		vars:      s.Vars(),
	}
	state := start
	for _, step := range steps {
		if step.NumPresent() != state.Present().NumPresent() {
			state = state.Reduce(step.Present)
		}
		blockRes := b.Step(state, step.Packed)
		res.steps = append(res.steps, blockRes)
		res.vars = anydiff.MergeVarSets(res.vars, blockRes.Vars())
		res.out = append(res.out, &anyseq.Batch{
			Packed:  blockRes.Output(),
			Present: step.Present,
		})
		state = blockRes.State()
	}
	return res
}

type mapRes struct {
	in        anyseq.Seq
	block     Block
	startPres PresentMap
	steps     []Res
	out       []*anyseq.Batch
	vars      anydiff.VarSet
}

func (m *mapRes) Output() []*anyseq.Batch {
	return m.out
}

func (m *mapRes) Creator() anyvec.Creator {
	if m.in == nil {
		return nil
	}
	return m.in.Creator()
}

func (m *mapRes) Vars() anydiff.VarSet {
	return m.vars
}

func (m *mapRes) Propagate(u []*anyseq.Batch, g anydiff.Grad) {
	if len(u) == 0 {
		return
	}

	var down []*anyseq.Batch
	if g.Intersects(m.in.Vars()) {
		down = make([]*anyseq.Batch, len(u))
	}

	// Walk backwards in time, re-growing the state gradient
	// whenever an earlier step had more sequences present.
	var stateGrad StateGrad
	for t := len(m.steps) - 1; t >= 0; t-- {
		step := m.steps[t]
		if stateGrad != nil {
			stateGrad = expandTo(stateGrad, step.State().Present())
		}
		inGrad, prevGrad := step.Propagate(u[t].Packed, stateGrad, g)
		if down != nil {
			down[t] = &anyseq.Batch{Packed: inGrad, Present: u[t].Present}
		}
		stateGrad = prevGrad
	}
	if stateGrad != nil {
		m.block.PropagateStart(expandTo(stateGrad, m.startPres), g)
	}

	if down != nil {
		m.in.Propagate(down, g)
	}
}

func expandTo(s StateGrad, p PresentMap) StateGrad {
	if s.Present().NumPresent() == p.NumPresent() {
		return s
	}
	return s.Expand(p)
}
