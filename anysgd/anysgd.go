// Package anysgd provides tools for Stochastic Gradient
// Descent.
package anysgd

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
)

// SGD performs stochastic gradient descent.
type SGD struct {
	// Fetcher converts each mini-batch of samples into a
	// Batch for the Gradienter.
	Fetcher Fetcher

	// Gradienter is used to compute initial, untransformed
	// gradients for each mini-batch.
	Gradienter Gradienter

	// Transformer, if non-nil, is used to transform each
	// gradient before the step.
	Transformer Transformer

	// Samples is the list of training samples to use for
	// training.
	// It will be shuffled and re-shuffled as needed.
	//
	// The list may not be empty.
	Samples SampleList

	// Rater determines the learning rate for each step.
	Rater Rater

	// Rand is used to shuffle the samples.
	// If nil, the global source is used.
	Rand *rand.Rand

	// StatusFunc, if non-nil, is called before every
	// iteration with the next mini-batch.
	StatusFunc func(batch SampleList)

	// ClipNorm, if non-zero, bounds the Euclidean norm of
	// each raw gradient before it is transformed.
	ClipNorm float64

	// BatchSize is the mini-batch size.
	// If it is 0, then the entire sample list is used at
	// every iteration.
	BatchSize int

	// NumProcessed keeps track of the number of samples that
	// have been passed to Gradienter so far.
	// It is used to compute the epoch for Rater.
	NumProcessed int
}

// Epoch shuffles the samples and performs one step for
// every mini-batch.
func (s *SGD) Epoch() error {
	if s.Samples.Len() == 0 {
		panic("cannot run SGD with empty sample list")
	}
	Shuffle(s.Rand, s.Samples)
	for idx := 0; idx < s.Samples.Len(); {
		batchSize := s.batchSize(s.Samples.Len() - idx)
		batch := s.Samples.Slice(idx, idx+batchSize)
		idx += batchSize
		if err := s.step(batch); err != nil {
			return err
		}
	}
	return nil
}

// Run runs SGD until the stopper indicates to stop.
func (s *SGD) Run(stopper Stopper) error {
	if s.Samples.Len() == 0 {
		panic("cannot run SGD with empty sample list")
	}
	idx := s.Samples.Len()
	for !stopper.Done() {
		remaining := s.Samples.Len() - idx
		if remaining == 0 {
			Shuffle(s.Rand, s.Samples)
			idx = 0
			remaining = s.Samples.Len()
		}
		batchSize := s.batchSize(remaining)
		batch := s.Samples.Slice(idx, idx+batchSize)
		idx += batchSize

		if s.StatusFunc != nil {
			s.StatusFunc(batch)
			if stopper.Done() {
				break
			}
		}
		if err := s.step(batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *SGD) step(samples SampleList) error {
	var batch Batch = samples
	if s.Fetcher != nil {
		var err error
		batch, err = s.Fetcher.Fetch(samples)
		if err != nil {
			return err
		}
	}

	grad := s.Gradienter.Gradient(batch)
	if s.ClipNorm != 0 {
		ClipGrad(grad, s.ClipNorm)
	}
	if s.Transformer != nil {
		grad = s.Transformer.Transform(grad)
	}

	epoch := float64(s.NumProcessed) / float64(s.Samples.Len())
	scaleGrad(grad, -s.Rater.Rate(epoch))
	grad.AddToVars()

	s.NumProcessed += samples.Len()
	return nil
}

func (s *SGD) batchSize(remaining int) int {
	if s.BatchSize == 0 || s.BatchSize > remaining {
		return remaining
	} else {
		return s.BatchSize
	}
}

func scaleGrad(g anydiff.Grad, s float64) {
	for _, v := range g {
		g.Scale(v.Creator().MakeNumeric(s))
		return
	}
}
