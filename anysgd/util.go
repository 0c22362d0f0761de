package anysgd

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Shuffle shuffles a list of samples using r, or the
// global source if r is nil.
// If the list implements PostShuffler, then PostShuffle
// is called after the shuffle completes.
func Shuffle(r *rand.Rand, s SampleList) {
	intn := rand.Intn
	if r != nil {
		intn = r.Intn
	}
	for i := 0; i < s.Len(); i++ {
		j := i + intn(s.Len()-i)
		s.Swap(i, j)
	}
	if p, ok := s.(PostShuffler); ok {
		p.PostShuffle()
	}
}

// A ConstRater is a Rater which always returns the same
// constant learning rate.
type ConstRater float64

// Rate returns float64(c).
func (c ConstRater) Rate(epoch float64) float64 {
	return float64(c)
}

// GradNorm computes the Euclidean norm of the gradient
// across all of its variables.
func GradNorm(g anydiff.Grad) float64 {
	var sum float64
	for _, v := range g {
		n := numToFloat(anyvec.Norm(v))
		sum += n * n
	}
	return math.Sqrt(sum)
}

// ClipGrad scales down g in place so that its norm is at
// most maxNorm.
// It returns the norm before clipping.
func ClipGrad(g anydiff.Grad, maxNorm float64) float64 {
	norm := GradNorm(g)
	if norm > maxNorm {
		scaleGrad(g, maxNorm/norm)
	}
	return norm
}

func copyGrad(g anydiff.Grad) anydiff.Grad {
	res := anydiff.Grad{}
	for v, x := range g {
		res[v] = x.Copy()
	}
	return res
}

func valueOrDefault(value, def float64) float64 {
	if value == 0 {
		return def
	}
	return value
}

func numToFloat(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		panic("unsupported numeric type")
	}
}
