package anyrnn

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var s Stack
	serializer.RegisterTypedDeserializer(s.SerializerType(), DeserializeStack)
}

// A Stack composes GRU cells for step-by-step use.
// The first cell's new state is fed as input to the next
// cell, etc.
//
// Dropout, if non-nil, is applied to the input of every
// cell but the first.
//
// An empty Stack is invalid.
type Stack struct {
	Cells   []*GRU
	Dropout *anyrul.Dropout
}

// DeserializeStack deserializes a Stack.
func DeserializeStack(d []byte) (*Stack, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Stack", err)
	}
	if len(slice) < 2 {
		return nil, errors.New("deserialize Stack: missing cells")
	}
	res := &Stack{}
	if drop, ok := slice[0].(*anyrul.Dropout); ok {
		res.Dropout = drop
	} else {
		return nil, fmt.Errorf("deserialize Stack: not a Dropout: %T", slice[0])
	}
	for _, x := range slice[1:] {
		if cell, ok := x.(*GRU); ok {
			res.Cells = append(res.Cells, cell)
		} else {
			return nil, fmt.Errorf("deserialize Stack: not a GRU: %T", x)
		}
	}
	return res, nil
}

// Step applies every cell for a single timestep.
//
// There is one state per cell, and the new states are
// returned in the same order.
// The output of the stack is the last new state.
func (s *Stack) Step(in anydiff.Res, states []anydiff.Res, n int) []anydiff.Res {
	s.assertNonEmpty()
	if len(states) != len(s.Cells) {
		panic(fmt.Sprintf("expected %d states but got %d", len(s.Cells), len(states)))
	}
	res := make([]anydiff.Res, len(s.Cells))
	for i, cell := range s.Cells {
		if i > 0 && s.Dropout != nil {
			in = s.Dropout.Apply(in, n)
		}
		res[i] = cell.Cell(in, states[i], n)
		in = res[i]
	}
	return res
}

// SetTraining enables or disables dropout.
func (s *Stack) SetTraining(training bool) {
	if s.Dropout != nil {
		s.Dropout.SetTraining(training)
	}
}

// Parameters returns the parameters of every cell.
func (s *Stack) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, c := range s.Cells {
		res = append(res, c.Parameters()...)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a Stack with the serializer package.
func (s *Stack) SerializerType() string {
	return "github.com/unixpickle/anyrul/anyrnn.Stack"
}

// Serialize serializes the Stack.
func (s *Stack) Serialize() ([]byte, error) {
	drop := s.Dropout
	if drop == nil {
		drop = &anyrul.Dropout{KeepProb: 1}
	}
	slice := []serializer.Serializer{drop}
	for _, c := range s.Cells {
		slice = append(slice, c)
	}
	return serializer.SerializeSlice(slice)
}

func (s *Stack) assertNonEmpty() {
	if len(s.Cells) == 0 {
		panic("empty Stack is invalid")
	}
}
