package anyrnn

import (
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestStackProp(t *testing.T) {
	c := anyvec64.CurrentCreator()
	s := &Stack{
		Cells:   []*GRU{NewGRU(c, nil, 3, 2), NewGRU(c, nil, 2, 2)},
		Dropout: &anyrul.Dropout{KeepProb: 0.5},
	}
	in := anydiff.NewVar(c.MakeVector(3 * 2))
	s1 := anydiff.NewVar(c.MakeVector(2 * 2))
	s2 := anydiff.NewVar(c.MakeVector(2 * 2))
	for _, v := range []*anydiff.Var{in, s1, s2} {
		anyvec.Rand(v.Vector, anyvec.Normal, nil)
	}
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			states := s.Step(in, []anydiff.Res{s1, s2}, 2)
			return anydiff.Concat(states...)
		},
		V: append([]*anydiff.Var{in, s1, s2}, s.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestStackTraining(t *testing.T) {
	c := anyvec64.CurrentCreator()
	s := &Stack{
		Cells:   []*GRU{NewGRU(c, nil, 1, 1)},
		Dropout: &anyrul.Dropout{KeepProb: 0.5},
	}
	s.SetTraining(true)
	if !s.Dropout.Enabled {
		t.Error("dropout should be enabled")
	}
	s.SetTraining(false)
	if s.Dropout.Enabled {
		t.Error("dropout should be disabled")
	}
}
