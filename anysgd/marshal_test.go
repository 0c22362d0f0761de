package anysgd

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestGradientMarshal(t *testing.T) {
	vars := randomVars(anyvec64.CurrentCreator())
	grad := randomGrad(vars)

	data, err := marshalGradient(vars, grad)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := unmarshalGradient(vars, data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(grad, decoded) {
		t.Error("gradient mismatch")
	}
}

func TestStateMarshal(t *testing.T) {
	tests := []struct {
		name string
		make func() StateMarshaler
	}{
		{"Adam", func() StateMarshaler { return &Adam{} }},
		{"RMSProp", func() StateMarshaler { return &RMSProp{} }},
		{"Momentum", func() StateMarshaler { return &Momentum{Momentum: 0.5} }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			vars := randomVars(anyvec64.CurrentCreator())
			trained := test.make()
			for i := 0; i < 3; i++ {
				trained.Transform(randomGrad(vars))
			}

			data, err := trained.MarshalState(vars)
			if err != nil {
				t.Fatal(err)
			}
			resumed := test.make()
			if err := resumed.UnmarshalState(vars, data); err != nil {
				t.Fatal(err)
			}

			in := randomGrad(vars)
			expected := copyGrad(trained.Transform(copyGrad(in)))
			actual := resumed.Transform(copyGrad(in))
			if !reflect.DeepEqual(expected, actual) {
				t.Error("resumed optimizer diverged")
			}
		})
	}
}

func TestStateMarshalEmpty(t *testing.T) {
	vars := randomVars(anyvec64.CurrentCreator())
	fresh := &Adam{}
	data, err := fresh.MarshalState(vars)
	if err != nil {
		t.Fatal(err)
	}
	resumed := &Adam{}
	if err := resumed.UnmarshalState(vars, data); err != nil {
		t.Fatal(err)
	}
	in := randomGrad(vars)
	expected := copyGrad(fresh.Transform(copyGrad(in)))
	if !reflect.DeepEqual(expected, resumed.Transform(copyGrad(in))) {
		t.Error("fresh state did not round trip")
	}
}

func randomVars(c anyvec.Creator) []*anydiff.Var {
	var vars []*anydiff.Var
	for i := 0; i < 12; i++ {
		vec := c.MakeVector(1 + rand.Intn(5))
		anyvec.Rand(vec, anyvec.Normal, nil)
		vars = append(vars, anydiff.NewVar(vec))
	}
	return vars
}

func randomGrad(vars []*anydiff.Var) anydiff.Grad {
	res := anydiff.Grad{}
	for _, v := range vars {
		vec := v.Vector.Creator().MakeVector(v.Vector.Len())
		anyvec.Rand(vec, anyvec.Normal, nil)
		res[v] = vec
	}
	return res
}
