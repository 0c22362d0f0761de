package anyrul

import (
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestDropoutDisabled(t *testing.T) {
	d := &Dropout{KeepProb: 0.5}
	in := anydiff.NewConst(anyvec64.MakeVectorData([]float64{1, 2, 3}))
	if d.Apply(in, 1) != in {
		t.Error("disabled dropout should be the identity")
	}
}

func TestDropoutScaling(t *testing.T) {
	d := &Dropout{Enabled: true, KeepProb: 0.25, Rand: rand.New(rand.NewSource(3))}
	data := make([]float64, 1000)
	for i := range data {
		data[i] = 1
	}
	out := d.Apply(anydiff.NewConst(anyvec64.MakeVectorData(data)), 1)
	for i, x := range out.Output().Data().([]float64) {
		if x != 0 && math.Abs(x-4) > 1e-12 {
			t.Fatalf("component %d: unexpected value %f", i, x)
		}
	}
}
