package anys2s

import (
	"bytes"
	"errors"
	"os"

	"github.com/unixpickle/anyrul/anysgd"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// Checkpoint file names within a model directory.
const (
	BestCheckpoint   = "best"
	LatestCheckpoint = "latest"
)

// A Checkpoint is everything needed to pick a training run
// back up where it left off.
type Checkpoint struct {
	Model    *Model
	Schedule ScheduleState

	// Log is the history of the run up to and including the
	// epoch that produced the checkpoint.
	Log TrainingLog
}

// SaveCheckpoint writes a checkpoint and optionally the
// state of an optimizer.
//
// The optimizer state is only saved if opt implements
// anysgd.StateMarshaler.
func SaveCheckpoint(path string, ck *Checkpoint, opt anysgd.Transformer) error {
	var optState []byte
	if sm, ok := opt.(anysgd.StateMarshaler); ok {
		var err error
		optState, err = sm.MarshalState(ck.Model.Parameters())
		if err != nil {
			return essentials.AddCtx("save checkpoint", err)
		}
	}
	var logData bytes.Buffer
	if err := ck.Log.WriteCSV(&logData); err != nil {
		return essentials.AddCtx("save checkpoint", err)
	}
	data, err := serializer.SerializeAny(
		ck.Model,
		serializer.Float64(ck.Schedule.Ratio),
		serializer.Int(ck.Schedule.Consecutive),
		serializer.Int(ck.Schedule.Epochs),
		serializer.Bytes(logData.Bytes()),
		serializer.Bytes(optState),
	)
	if err != nil {
		return essentials.AddCtx("save checkpoint", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("save checkpoint", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by
// SaveCheckpoint.
//
// The model's RatioSource is fixed at the saved ratio.
// If opt is a non-nil anysgd.StateMarshaler and the
// checkpoint has optimizer state, the state is restored
// into opt.
func LoadCheckpoint(path string, opt anysgd.Transformer) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load checkpoint", err)
	}
	var m *Model
	var ratio serializer.Float64
	var consecutive, epochs serializer.Int
	var logData, optState serializer.Bytes
	err = serializer.DeserializeAny(data, &m, &ratio, &consecutive, &epochs, &logData,
		&optState)
	if err != nil {
		return nil, essentials.AddCtx("load checkpoint", err)
	}
	if m == nil {
		return nil, errors.New("load checkpoint: missing model")
	}
	log, err := ReadCSV(bytes.NewReader(logData))
	if err != nil {
		return nil, essentials.AddCtx("load checkpoint", err)
	}
	m.RatioSource = FixedRatio(ratio)
	if sm, ok := opt.(anysgd.StateMarshaler); ok && len(optState) > 0 {
		if err := sm.UnmarshalState(m.Parameters(), optState); err != nil {
			return nil, essentials.AddCtx("load checkpoint", err)
		}
	}
	return &Checkpoint{
		Model: m,
		Schedule: ScheduleState{
			Ratio:       float64(ratio),
			Consecutive: int(consecutive),
			Epochs:      int(epochs),
		},
		Log: log,
	}, nil
}
