package anysgd

import "github.com/unixpickle/anydiff"

// A SampleList is an ordered, lazily materialized list of
// training samples.
type SampleList interface {
	Len() int
	Swap(i, j int)

	// Slice returns a shallow copy of the samples in the
	// range [i, j).
	Slice(i, j int) SampleList
}

// A PostShuffler is a SampleList that wants to regroup its
// samples after every shuffle, for instance to place
// samples of similar length in the same mini-batch.
type PostShuffler interface {
	PostShuffle()
}

// A Batch is a materialized mini-batch, produced by a
// Fetcher right before it is needed.
type Batch interface{}

// A Fetcher materializes a Batch for a slice of samples.
type Fetcher interface {
	Fetch(s SampleList) (Batch, error)
}

// A Gradienter computes the gradient of the training
// objective for a Batch.
// The returned gradient may be reused between calls.
type Gradienter interface {
	Gradient(b Batch) anydiff.Grad
}

// A Coster computes the scalar training objective for a
// Batch without taking its gradient.
type Coster interface {
	TotalCost(b Batch) anydiff.Res
}

// A Transformer rewrites raw gradients before they are
// applied, as optimizers like Adam do.
//
// The input gradient belongs to the caller; it may be
// modified and returned, but no reference to it may be
// kept once Transform returns.
// The output is valid until the next call, and every call
// must pass gradients over the same variables.
type Transformer interface {
	Transform(g anydiff.Grad) anydiff.Grad
}

// A StateMarshaler is a Transformer that can checkpoint
// its internal state.
// The state is laid out according to vars, which must be
// the same list when the state is restored.
type StateMarshaler interface {
	Transformer
	MarshalState(vars []*anydiff.Var) ([]byte, error)
	UnmarshalState(vars []*anydiff.Var, data []byte) error
}

// A Rater maps a (possibly fractional) epoch to a step
// size.
type Rater interface {
	Rate(epoch float64) float64
}

// A Stopper tells SGD.Run when to return.
type Stopper interface {
	Done() bool
}
