package anyrul

import (
	"math"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer((&Debug{}).SerializerType(), DeserializeDebug)
}

// Debug is a layer which logs statistics about its
// inputs.
// Besides logging, the Debug layer does nothing to
// interfere with the flow of values in a network.
type Debug struct {
	// Logger receives the statistics at debug level.
	// If nil, the standard logrus logger is used.
	Logger *logrus.Logger

	ID string
}

// DeserializeDebug deserializes a Debug layer.
// The Logger will be nil.
func DeserializeDebug(d []byte) (*Debug, error) {
	var res Debug
	if err := serializer.DeserializeAny(d, &res.ID); err != nil {
		return nil, err
	}
	return &res, nil
}

// Apply logs the mean, variance, and non-finite count of
// its input.
// The input is returned, untouched.
func (d *Debug) Apply(in anydiff.Res, n int) anydiff.Res {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return in
	}
	mean, variance, bad := Summarize(in.Output().Data())
	logger.WithFields(logrus.Fields{
		"layer":     d.ID,
		"batch":     n,
		"mean":      mean,
		"variance":  variance,
		"nonFinite": bad,
	}).Debug("activation statistics")
	return in
}

// SerializerType returns the unique ID used to serialize
// a Debug layer with the serializer package.
func (d *Debug) SerializerType() string {
	return "github.com/unixpickle/anyrul.Debug"
}

// Serialize serializes the layer.
func (d *Debug) Serialize() ([]byte, error) {
	return serializer.SerializeAny(d.ID)
}

// Summarize computes the mean and variance of the finite
// entries of a float32 or float64 slice, along with the
// number of non-finite entries.
func Summarize(data interface{}) (mean, variance float64, nonFinite int) {
	var vals []float64
	switch data := data.(type) {
	case []float64:
		vals = data
	case []float32:
		vals = make([]float64, len(data))
		for i, x := range data {
			vals[i] = float64(x)
		}
	default:
		panic("unsupported numeric list type")
	}
	var count int
	for _, x := range vals {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			nonFinite++
			continue
		}
		mean += x
		variance += x * x
		count++
	}
	if count > 0 {
		mean /= float64(count)
		variance = variance/float64(count) - mean*mean
	}
	return
}
