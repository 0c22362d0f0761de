package anyrul

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestConcatRowsOutput(t *testing.T) {
	a := anydiff.NewConst(anyvec64.MakeVectorData([]float64{1, 2, 3, 4}))
	b := anydiff.NewConst(anyvec64.MakeVectorData([]float64{5, 6}))
	c := anydiff.NewConst(anyvec64.MakeVectorData([]float64{7, 8, 9, 10, 11, 12}))
	actual := ConcatRows(2, a, b, c).Output().Data().([]float64)
	expected := []float64{1, 2, 5, 7, 8, 9, 3, 4, 6, 10, 11, 12}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}

func TestConcatRowsProp(t *testing.T) {
	a := anydiff.NewVar(anyvec64.MakeVectorData([]float64{1, -2, 3, 0.5}))
	b := anydiff.NewVar(anyvec64.MakeVectorData([]float64{0.25, 2}))
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return anydiff.Square(ConcatRows(2, a, b))
		},
		V: []*anydiff.Var{a, b},
	}
	checker.FullCheck(t)
}
