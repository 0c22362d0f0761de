package anysgd

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

const (
	adamDefaultDecayRate1 = 0.9
	adamDefaultDecayRate2 = 0.999
	adamDefaultDamping    = 1e-8

	rmspropDefaultDecayRate = 0.9
	rmspropDefaultDamping   = 1e-8
)

// Adam scales each gradient component by running
// estimates of its first and second moments; see
// https://arxiv.org/pdf/1412.6980.pdf.
//
// None of the transformers in this package are
// thread-safe.
type Adam struct {
	// DecayRate1 and DecayRate2 control the first and
	// second moment averages.
	// Zero values select 0.9 and 0.999.
	DecayRate1, DecayRate2 float64

	// Damping is added to the second moment before taking
	// its square root.
	// A zero value selects 1e-8.
	Damping float64

	first  anydiff.Grad
	second anydiff.Grad
	steps  float64
}

// Transform replaces the gradient with its bias-corrected
// first moment divided by the root of its second moment.
func (a *Adam) Transform(g anydiff.Grad) anydiff.Grad {
	d1 := valueOrDefault(a.DecayRate1, adamDefaultDecayRate1)
	d2 := valueOrDefault(a.DecayRate2, adamDefaultDecayRate2)
	a.first = movingAverage(a.first, g, d1, false, true)
	a.second = movingAverage(a.second, g, d2, true, true)
	a.steps++

	correction := math.Sqrt(1-math.Pow(d2, a.steps)) / (1 - math.Pow(d1, a.steps))
	for v, vec := range g {
		vec.Set(a.first[v])
		vec.Scale(vec.Creator().MakeNumeric(correction))
		vec.Div(dampedRoot(a.second[v], valueOrDefault(a.Damping, adamDefaultDamping)))
	}
	return g
}

// RMSProp divides each gradient component by the root of
// a running average of its square.
type RMSProp struct {
	// DecayRate controls the running average.
	// A zero value selects 0.9.
	DecayRate float64

	// Damping is added to the average before taking its
	// square root.
	// A zero value selects 1e-8.
	Damping float64

	moment anydiff.Grad
}

// Transform scales the gradient in place.
func (r *RMSProp) Transform(g anydiff.Grad) anydiff.Grad {
	decay := valueOrDefault(r.DecayRate, rmspropDefaultDecayRate)
	r.moment = movingAverage(r.moment, g, decay, true, false)
	damping := valueOrDefault(r.Damping, rmspropDefaultDamping)
	for v, vec := range g {
		vec.Div(dampedRoot(r.moment[v], damping))
	}
	return g
}

// Momentum accumulates a velocity
//
//     v := Momentum*v + g
//
// and uses it in place of the gradient.
type Momentum struct {
	Momentum float64

	velocity anydiff.Grad
}

// Transform replaces the gradient with the new velocity.
func (m *Momentum) Transform(g anydiff.Grad) anydiff.Grad {
	if m.velocity == nil {
		m.velocity = copyGrad(g)
		return g
	}
	for v, vel := range m.velocity {
		vel.Scale(vel.Creator().MakeNumeric(m.Momentum))
		vel.Add(g[v])
		g[v].Set(vel)
	}
	return g
}

// movingAverage folds g, or its element-wise square, into
// an exponential moving average and returns the average.
//
// A nil average starts from zero if zeroStart is set, and
// from the first value otherwise.
func movingAverage(avg, g anydiff.Grad, decay float64, square, zeroStart bool) anydiff.Grad {
	values := copyGrad(g)
	if square {
		for _, vec := range values {
			anyvec.Pow(vec, vec.Creator().MakeNumeric(2))
		}
	}
	if avg == nil {
		if zeroStart {
			scaleGrad(values, 1-decay)
		}
		return values
	}
	for v, vec := range values {
		vec.Sub(avg[v])
		vec.Scale(vec.Creator().MakeNumeric(1 - decay))
		avg[v].Add(vec)
	}
	return avg
}

func dampedRoot(vec anyvec.Vector, damping float64) anyvec.Vector {
	res := vec.Copy()
	res.AddScalar(res.Creator().MakeNumeric(damping))
	anyvec.Pow(res, res.Creator().MakeNumeric(0.5))
	return res
}
