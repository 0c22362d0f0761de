package anyrul

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
}

// An Activation is an element-wise nonlinearity usable as
// a Layer.
type Activation int

// Supported activations.
const (
	Tanh Activation = iota
	Sigmoid
	ReLU
)

var activationNames = map[Activation]string{
	Tanh:    "tanh",
	Sigmoid: "sigmoid",
	ReLU:    "relu",
}

// ParseActivation looks up an activation by name.
func ParseActivation(name string) (Activation, error) {
	for a, n := range activationNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown activation: %q", name)
}

// DeserializeActivation deserializes an Activation from
// its name.
func DeserializeActivation(d []byte) (Activation, error) {
	a, err := ParseActivation(string(d))
	if err != nil {
		return 0, fmt.Errorf("deserialize Activation: %w", err)
	}
	return a, nil
}

// String returns the activation's name.
func (a Activation) String() string {
	if name, ok := activationNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Activation(%d)", int(a))
}

// Apply applies the activation to every component.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	switch a {
	case Tanh:
		return anydiff.Tanh(in)
	case Sigmoid:
		return anydiff.Sigmoid(in)
	case ReLU:
		return anydiff.ClipPos(in)
	}
	panic("unknown activation: " + a.String())
}

// SerializerType returns the unique ID used to serialize
// an Activation.
func (a Activation) SerializerType() string {
	return "github.com/unixpickle/anyrul.Activation"
}

// Serialize stores the activation's name.
func (a Activation) Serialize() ([]byte, error) {
	if _, ok := activationNames[a]; !ok {
		return nil, fmt.Errorf("serialize Activation: unknown activation %d", int(a))
	}
	return []byte(a.String()), nil
}
