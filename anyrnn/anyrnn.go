// Package anyrnn implements recurrent blocks and the
// plumbing needed to run them over batches of sequences
// with differing lengths.
package anyrnn

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// ErrUnsortedLengths is returned when a batch of sequence
// lengths is not in non-increasing order.
var ErrUnsortedLengths = errors.New("sequence lengths are not sorted in descending order")

// CheckLengths verifies that lengths can be packed: every
// length is at least one and no length exceeds the one
// before it.
func CheckLengths(lens []int) error {
	for i, l := range lens {
		if l < 1 {
			return fmt.Errorf("sequence %d has invalid length %d", i, l)
		}
		if i > 0 && l > lens[i-1] {
			return fmt.Errorf("sequence %d (length %d) follows length %d: %w",
				i, l, lens[i-1], ErrUnsortedLengths)
		}
	}
	return nil
}

// A PresentMap indicates which sequences in a batch are
// still running.
// A true value indicates present.
type PresentMap []bool

// NumPresent counts the present sequences.
func (p PresentMap) NumPresent() int {
	var i int
	for _, x := range p {
		if x {
			i++
		}
	}
	return i
}

// A State stores a batch of internal Block states, one
// for each present sequence.
type State interface {
	// Present indicates which sequences have states.
	Present() PresentMap

	// Reduce creates a copy of the State with a new
	// PresentMap, which must be a subset of Present().
	// It is used to drop sequences that have ended.
	Reduce(PresentMap) State
}

// A StateGrad is an upstream gradient for a State.
type StateGrad interface {
	// Present indicates which sequences have gradients.
	Present() PresentMap

	// Expand inserts zero gradients so that the result
	// covers the passed PresentMap.
	// It is the inverse of State.Reduce().
	Expand(PresentMap) StateGrad
}

// A Block is a differentiable unit in an RNN.
// It receives an input/state batch and produces a batch
// of outputs and new states.
type Block interface {
	// Start produces the start state with a batch size of n.
	Start(n int) State

	// PropagateStart back-propagates through the start
	// state.
	PropagateStart(s StateGrad, g anydiff.Grad)

	// Step applies the block for a single timestep.
	Step(s State, in anyvec.Vector) Res
}

// A Res is the output of a Block for one timestep.
type Res interface {
	State() State
	Output() anyvec.Vector

	// Vars returns the variables upon which the output
	// depends, including variables from previous states.
	Vars() anydiff.VarSet

	// Propagate takes an upstream vector for the output
	// and an upstream StateGrad (nil for zero), and
	// returns downstream gradients for the input and the
	// previous state.
	//
	// The upstream arguments may be modified.
	Propagate(u anyvec.Vector, s StateGrad, g anydiff.Grad) (anyvec.Vector, StateGrad)
}
