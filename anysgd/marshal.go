package anysgd

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

var errVarsGradMismatch = errors.New("variable list does not match gradients")

// MarshalState saves the moment estimates and iteration
// count.
func (a *Adam) MarshalState(vars []*anydiff.Var) ([]byte, error) {
	first, err := marshalGradient(vars, a.first)
	if err != nil {
		return nil, essentials.AddCtx("marshal Adam", err)
	}
	second, err := marshalGradient(vars, a.second)
	if err != nil {
		return nil, essentials.AddCtx("marshal Adam", err)
	}
	return serializer.SerializeAny(serializer.Float64(a.steps), serializer.Bytes(first),
		serializer.Bytes(second))
}

// UnmarshalState restores the result of MarshalState.
func (a *Adam) UnmarshalState(vars []*anydiff.Var, data []byte) error {
	var iteration serializer.Float64
	var first, second serializer.Bytes
	if err := serializer.DeserializeAny(data, &iteration, &first, &second); err != nil {
		return essentials.AddCtx("unmarshal Adam", err)
	}
	firstGrad, err := unmarshalGradient(vars, first)
	if err != nil {
		return essentials.AddCtx("unmarshal Adam", err)
	}
	secondGrad, err := unmarshalGradient(vars, second)
	if err != nil {
		return essentials.AddCtx("unmarshal Adam", err)
	}
	a.steps = float64(iteration)
	a.first = firstGrad
	a.second = secondGrad
	return nil
}

// MarshalState saves the running average of squared
// gradients.
func (r *RMSProp) MarshalState(vars []*anydiff.Var) ([]byte, error) {
	data, err := marshalGradient(vars, r.moment)
	if err != nil {
		return nil, essentials.AddCtx("marshal RMSProp", err)
	}
	return data, nil
}

// UnmarshalState restores the result of MarshalState.
func (r *RMSProp) UnmarshalState(vars []*anydiff.Var, data []byte) error {
	moment, err := unmarshalGradient(vars, data)
	if err != nil {
		return essentials.AddCtx("unmarshal RMSProp", err)
	}
	r.moment = moment
	return nil
}

// MarshalState saves the rolling velocity.
func (m *Momentum) MarshalState(vars []*anydiff.Var) ([]byte, error) {
	data, err := marshalGradient(vars, m.velocity)
	if err != nil {
		return nil, essentials.AddCtx("marshal Momentum", err)
	}
	return data, nil
}

// UnmarshalState restores the result of MarshalState.
func (m *Momentum) UnmarshalState(vars []*anydiff.Var, data []byte) error {
	rolling, err := unmarshalGradient(vars, data)
	if err != nil {
		return essentials.AddCtx("unmarshal Momentum", err)
	}
	m.velocity = rolling
	return nil
}

func marshalGradient(vars []*anydiff.Var, grad anydiff.Grad) ([]byte, error) {
	if grad == nil {
		return []byte{}, nil
	}
	if len(vars) != len(grad) {
		return nil, errVarsGradMismatch
	}

	var vecObjs []interface{}
	for _, v := range vars {
		vec, ok := grad[v]
		if !ok {
			return nil, errVarsGradMismatch
		}
		vecObjs = append(vecObjs, &anyvecsave.S{Vector: vec})
	}

	return serializer.SerializeAny(vecObjs...)
}

func unmarshalGradient(vars []*anydiff.Var, data []byte) (anydiff.Grad, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var dests []interface{}
	for range vars {
		dests = append(dests, new(*anyvecsave.S))
	}
	if err := serializer.DeserializeAny(data, dests...); err != nil {
		return nil, err
	}

	res := anydiff.Grad{}
	for i, v := range vars {
		vec := (*dests[i].(**anyvecsave.S)).Vector
		if vec.Len() != v.Vector.Len() {
			return nil, errors.New("bad vector length")
		} else if vec.Creator() != v.Vector.Creator() {
			return nil, errors.New("bad vector creator")
		}
		res[v] = vec
	}

	return res, nil
}
