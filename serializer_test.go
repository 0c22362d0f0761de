package anyrul

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestActivationSerialize(t *testing.T) {
	acts := []Activation{Tanh, Sigmoid, ReLU}
	for _, a := range acts {
		data, err := serializer.SerializeAny(a)
		if err != nil {
			t.Fatal(err)
		}
		var newA Activation
		if err := serializer.DeserializeAny(data, &newA); err != nil {
			t.Fatal(err)
		}
		if newA != a {
			t.Errorf("activation %s failed", a)
		}
	}
	if _, err := serializer.SerializeAny(Activation(7)); err == nil {
		t.Error("expected error for unknown activation")
	}
}

func TestFCSerialize(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, fc := range []*FC{
		NewFC(anyvec64.DefaultCreator{}, r, 7, 5),
		NewFCNoBias(anyvec64.DefaultCreator{}, r, 3, 1),
	} {
		data, err := serializer.SerializeAny(fc)
		if err != nil {
			t.Fatal(err)
		}
		var newFC *FC
		if err := serializer.DeserializeAny(data, &newFC); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(fc, newFC) {
			t.Fatal("incorrect result")
		}
	}
}

func TestPReLUSerialize(t *testing.T) {
	p := NewPReLU(anyvec64.DefaultCreator{}, 0.3)
	data, err := serializer.SerializeAny(p)
	if err != nil {
		t.Fatal(err)
	}
	var p1 *PReLU
	if err := serializer.DeserializeAny(data, &p1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p, p1) {
		t.Fatal("incorrect result")
	}
}

func TestDropoutSerialize(t *testing.T) {
	do := &Dropout{Enabled: true, KeepProb: 0.335}
	data, err := serializer.SerializeAny(do)
	if err != nil {
		t.Fatal(err)
	}
	var do1 *Dropout
	if err := serializer.DeserializeAny(data, &do1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(do, do1) {
		t.Fatal("incorrect result")
	}
}

func TestNetSerialize(t *testing.T) {
	net := Net{Tanh, &Debug{ID: "x"}, ReLU}
	data, err := serializer.SerializeAny(net)
	if err != nil {
		t.Fatal(err)
	}
	var net1 Net
	if err := serializer.DeserializeAny(data, &net1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(net, net1) {
		t.Fatal("networks not equal")
	}
}
