package anyrul

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestGatherOutput(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	in := anydiff.NewConst(anyvec64.MakeVectorData([]float64{1, 2, 3, 4, 5}))
	m := MakeMapper(c, 5, []int{4, 0, 0, 2})
	actual := Gather(in, m, 5).Output().Data().([]float64)
	expected := []float64{5, 1, 1, 3}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}

func TestScatterOutput(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	in := anydiff.NewConst(anyvec64.MakeVectorData([]float64{1, 2, 3}))
	m := MakeMapper(c, 5, []int{4, 0, 2})
	actual := Scatter(in, m, 5).Output().Data().([]float64)
	expected := []float64{2, 0, 3, 0, 1}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}

func TestGatherScatterProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	v := anydiff.NewVar(anyvec64.MakeVectorData([]float64{1, -2, 3, 0.5, 2}))
	m := MakeMapper(c, 5, []int{4, 1, 0})
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return anydiff.Square(Scatter(Gather(v, m, 5), m, 5))
		},
		V: []*anydiff.Var{v},
	}
	checker.FullCheck(t)
}

func TestMajorRoundTrip(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	in := anydiff.NewConst(anyvec64.MakeVectorData(data))
	tm := TimeMajor(in, 2, 3, 2)
	expected := []float64{1, 2, 7, 8, 3, 4, 9, 10, 5, 6, 11, 12}
	if actual := tm.Output().Data().([]float64); !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
	back := BatchMajor(tm, 3, 2, 2).Output().Data().([]float64)
	if !reflect.DeepEqual(back, data) {
		t.Errorf("expected %v but got %v", data, back)
	}
}
