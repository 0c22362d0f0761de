package anyrnn

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestGRUGateSerialize(t *testing.T) {
	g := NewGRUGate(anyvec64.CurrentCreator(), nil, 3, 2, anyrul.Sigmoid)
	testSerialize(t, g)
}

func TestGRUSerialize(t *testing.T) {
	testSerialize(t, NewGRU(anyvec64.CurrentCreator(), nil, 3, 2))
}

func TestBidirSerialize(t *testing.T) {
	c := anyvec64.CurrentCreator()
	testSerialize(t, &Bidir{
		Forward:  NewGRU(c, nil, 5, 3),
		Backward: NewGRU(c, nil, 5, 3),
	})
}

func TestStackSerialize(t *testing.T) {
	c := anyvec64.CurrentCreator()
	testSerialize(t, &Stack{
		Cells:   []*GRU{NewGRU(c, nil, 4, 3), NewGRU(c, nil, 3, 3)},
		Dropout: &anyrul.Dropout{KeepProb: 0.5},
	})
}

func testSerialize(t *testing.T, obj serializer.Serializer) {
	data, err := serializer.SerializeWithType(obj)
	if err != nil {
		t.Fatal(err)
	}
	newObj, err := serializer.DeserializeWithType(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(obj, newObj) {
		t.Errorf("expected %v but got %v", obj, newObj)
	}
}
