package anys2s

import (
	"errors"
	"fmt"
)

// Config stores the hyper-parameters of a Model.
type Config struct {
	// Features is the number of input features per step.
	Features int `mapstructure:"features" yaml:"features"`

	// Hidden is the size of every recurrent state.
	Hidden int `mapstructure:"hidden" yaml:"hidden"`

	// Layers is the number of recurrent layers in both the
	// encoder and the decoder.
	Layers int `mapstructure:"layers" yaml:"layers"`

	// Dropout is the probability of dropping a component
	// between recurrent layers.
	Dropout float64 `mapstructure:"dropout" yaml:"dropout"`

	Kernel  int `mapstructure:"kernel" yaml:"kernel"`
	Stride  int `mapstructure:"stride" yaml:"stride"`
	Filters int `mapstructure:"filters" yaml:"filters"`

	// Output is the number of values predicted per step.
	Output int `mapstructure:"output" yaml:"output"`

	// TeacherRatio is the initial probability of feeding
	// ground truth to the decoder.
	TeacherRatio float64 `mapstructure:"teacher_ratio" yaml:"teacher_ratio"`
}

// DefaultConfig returns the default hyper-parameters for
// inputs with the given number of features.
func DefaultConfig(features int) Config {
	return Config{
		Features:     features,
		Hidden:       200,
		Layers:       2,
		Dropout:      0.5,
		Kernel:       64,
		Stride:       8,
		Filters:      64,
		Output:       1,
		TeacherRatio: 0.3,
	}
}

// Validate checks that the hyper-parameters describe a
// buildable model.
func (c Config) Validate() error {
	for _, x := range []struct {
		name  string
		value int
	}{
		{"features", c.Features},
		{"hidden", c.Hidden},
		{"layers", c.Layers},
		{"kernel", c.Kernel},
		{"stride", c.Stride},
		{"filters", c.Filters},
		{"output", c.Output},
	} {
		if x.value < 1 {
			return fmt.Errorf("config: %s must be positive, got %d", x.name, x.value)
		}
	}
	if c.Stride > c.Kernel {
		return errors.New("config: stride may not exceed kernel size")
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("config: dropout %f out of range [0, 1)", c.Dropout)
	}
	if c.TeacherRatio < 0 || c.TeacherRatio > 1 {
		return fmt.Errorf("config: teacher ratio %f out of range [0, 1]", c.TeacherRatio)
	}
	return nil
}
