package anyattn

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestAttentionMasking(t *testing.T) {
	c := anyvec64.CurrentCreator()
	a := New(c, rand.New(rand.NewSource(1)), 4)
	lens := []int{6, 6, 3, 1}
	query, enc := randomInputs(len(lens), 6, 4)

	weights := a.Apply(query, enc, lens).Output().Data().([]float64)
	if len(weights) != 6*len(lens) {
		t.Fatalf("expected %d weights but got %d", 6*len(lens), len(weights))
	}
	for b, l := range lens {
		row := weights[b*6 : (b+1)*6]
		var sum float64
		for i, w := range row {
			if i >= l {
				if w != 0 {
					t.Errorf("row %d: weight %d should be exactly zero, got %g", b, i, w)
				}
				continue
			}
			if w <= 0 {
				t.Errorf("row %d: weight %d should be positive, got %g", b, i, w)
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d sums to %f", b, sum)
		}
	}
}

func TestAttentionEnergy(t *testing.T) {
	c := anyvec64.CurrentCreator()
	a := New(c, nil, 1)
	a.Query.Weights.Vector.SetData([]float64{2})
	a.Query.Biases.Vector.SetData([]float64{-1})
	a.Encoder.Weights.Vector.SetData([]float64{1})
	a.Score.Weights.Vector.SetData([]float64{0.5})

	query := anydiff.NewConst(c.MakeVectorData([]float64{1}))
	enc := anydiff.NewConst(c.MakeVectorData([]float64{3, -4, 0.5}))
	actual := a.Apply(query, enc, []int{3}).Output().Data().([]float64)

	energies := []float64{0.5 * 4, 0, 0.5 * 1.5}
	var total float64
	for _, e := range energies {
		total += math.Exp(e)
	}
	for i, e := range energies {
		expected := math.Exp(e) / total
		if math.Abs(actual[i]-expected) > 1e-12 {
			t.Errorf("weight %d: expected %f but got %f", i, expected, actual[i])
		}
	}
}

func TestAttentionProp(t *testing.T) {
	c := anyvec64.CurrentCreator()
	a := New(c, nil, 3)
	lens := []int{4, 2}
	query, enc := randomInputs(len(lens), 4, 3)
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return a.Apply(query, enc, lens)
		},
		V: append([]*anydiff.Var{query, enc}, a.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestContext(t *testing.T) {
	c := anyvec64.CurrentCreator()
	weights := anydiff.NewConst(c.MakeVectorData([]float64{
		0.25, 0.75,
		1, 0,
	}))
	// Two steps, two sequences, hidden size 2.
	enc := anydiff.NewConst(c.MakeVectorData([]float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}))
	actual := Context(weights, enc, 2).Output().Data().([]float64)
	expected := []float64{
		0.25*1 + 0.75*5, 0.25*2 + 0.75*6,
		3, 4,
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}

func TestContextProp(t *testing.T) {
	c := anyvec64.CurrentCreator()
	a := New(c, nil, 2)
	lens := []int{3, 1}
	query, enc := randomInputs(len(lens), 3, 2)
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return Context(a.Apply(query, enc, lens), enc, len(lens))
		},
		V: append([]*anydiff.Var{query, enc}, a.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestAttentionSerialize(t *testing.T) {
	a := New(anyvec64.CurrentCreator(), nil, 3)
	data, err := serializer.SerializeAny(a)
	if err != nil {
		t.Fatal(err)
	}
	var a1 *Attention
	if err := serializer.DeserializeAny(data, &a1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, a1) {
		t.Fatal("incorrect result")
	}
}

func randomInputs(batch, steps, hidden int) (query, enc *anydiff.Var) {
	c := anyvec64.CurrentCreator()
	query = anydiff.NewVar(c.MakeVector(batch * hidden))
	enc = anydiff.NewVar(c.MakeVector(steps * batch * hidden))
	anyvec.Rand(query.Vector, anyvec.Normal, nil)
	anyvec.Rand(enc.Vector, anyvec.Normal, nil)
	return
}
