package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A FuncBlock builds a Block out of a step function on
// packed vectors.
//
// Func may return the same Res as both the output and the
// new state; the two upstream gradients are then summed
// before a single back-propagation.
type FuncBlock struct {
	Func      func(in, state anydiff.Res, n int) (out, newState anydiff.Res)
	MakeStart func(n int) anydiff.Res
}

// Start evaluates MakeStart for n sequences.
func (f *FuncBlock) Start(n int) State {
	start := f.MakeStart(n)
	present := make(PresentMap, n)
	for i := range present {
		present[i] = true
	}
	return &funcState{
		VecState: VecState{Vector: start.Output(), PresentMap: present},
		start:    start,
		vars:     start.Vars(),
	}
}

// PropagateStart back-propagates into the Res produced by
// MakeStart.
func (f *FuncBlock) PropagateStart(s StateGrad, g anydiff.Grad) {
	fs := s.(*funcState)
	fs.start.Propagate(fs.Vector, g)
}

// Step evaluates Func on pooled copies of the input and
// the state, so that gradients for both can be read back
// during propagation.
func (f *FuncBlock) Step(s State, in anyvec.Vector) Res {
	prev := s.(*funcState)
	inVar := anydiff.NewVar(in)
	stateVar := anydiff.NewVar(prev.Vector)
	out, next := f.Func(inVar, stateVar, prev.PresentMap.NumPresent())

	stateVars := anydiff.MergeVarSets(prev.vars, next.Vars())
	allVars := anydiff.MergeVarSets(stateVars, out.Vars())
	for _, set := range []anydiff.VarSet{stateVars, allVars} {
		set.Del(inVar)
		set.Del(stateVar)
	}

	return &funcStepRes{
		inVar:    inVar,
		stateVar: stateVar,
		out:      out,
		next:     next,
		state:    prev.withVector(next.Output(), stateVars),
		vars:     allVars,
	}
}

// funcState is both the State and StateGrad of a
// FuncBlock.
type funcState struct {
	VecState
	start anydiff.Res
	vars  anydiff.VarSet
}

func (f *funcState) Reduce(p PresentMap) State {
	reduced := f.VecState.Reduce(p).(*VecState)
	return &funcState{VecState: *reduced, start: f.start, vars: f.vars}
}

func (f *funcState) Expand(p PresentMap) StateGrad {
	expanded := f.VecState.Expand(p).(*VecState)
	return &funcState{VecState: *expanded, start: f.start, vars: f.vars}
}

func (f *funcState) withVector(v anyvec.Vector, vars anydiff.VarSet) *funcState {
	return &funcState{
		VecState: VecState{Vector: v, PresentMap: f.PresentMap},
		start:    f.start,
		vars:     vars,
	}
}

type funcStepRes struct {
	inVar    *anydiff.Var
	stateVar *anydiff.Var
	out      anydiff.Res
	next     anydiff.Res
	state    *funcState
	vars     anydiff.VarSet
}

func (f *funcStepRes) State() State {
	return f.state
}

func (f *funcStepRes) Output() anyvec.Vector {
	return f.out.Output()
}

func (f *funcStepRes) Vars() anydiff.VarSet {
	return f.vars
}

func (f *funcStepRes) Propagate(u anyvec.Vector, s StateGrad,
	g anydiff.Grad) (anyvec.Vector, StateGrad) {
	c := f.inVar.Vector.Creator()
	g[f.inVar] = c.MakeVector(f.inVar.Vector.Len())
	g[f.stateVar] = c.MakeVector(f.stateVar.Vector.Len())
	defer delete(g, f.inVar)
	defer delete(g, f.stateVar)

	var upState anyvec.Vector
	if s != nil {
		upState = s.(*funcState).Vector
	}
	switch {
	case f.out == f.next:
		if upState != nil {
			u.Add(upState)
		}
		f.out.Propagate(u, g)
	default:
		f.out.Propagate(u, g)
		if upState != nil {
			f.next.Propagate(upState, g)
		}
	}

	return g[f.inVar], f.state.withVector(g[f.stateVar], nil)
}
