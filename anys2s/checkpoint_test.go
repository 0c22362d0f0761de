package anys2s

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/anyrul/anysgd"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestCheckpointRoundTrip(t *testing.T) {
	c := anyvec64.CurrentCreator()
	m := tinyModel(t, tinyConfig(), 1)
	path := filepath.Join(t.TempDir(), BestCheckpoint)

	// Give the optimizer some state.
	trainer, err := NewTrainer(c, m, testTrainConfig(), tinySamples(), nil, nil)
	require.NoError(t, err)
	_, err = trainer.Epoch()
	require.NoError(t, err)
	adam := trainer.Transformer.(*anysgd.Adam)

	state := ScheduleState{Ratio: 0.125, Consecutive: 2, Epochs: 17}
	ck := &Checkpoint{Model: m, Schedule: state, Log: testLog()}
	require.NoError(t, SaveCheckpoint(path, ck, adam))

	var restored anysgd.Adam
	ck1, err := LoadCheckpoint(path, &restored)
	require.NoError(t, err)
	assert.Equal(t, state, ck1.Schedule)
	assert.Equal(t, testLog(), ck1.Log)
	m1 := ck1.Model
	assert.Equal(t, 0.125, m1.RatioSource.Ratio())
	assert.Equal(t, m.Config, m1.Config)

	require.Len(t, m1.Parameters(), len(m.Parameters()))
	for i, p := range m.Parameters() {
		assert.Equal(t, vectorFloats(p.Vector), vectorFloats(m1.Parameters()[i].Vector))
	}

	expected, err := adam.MarshalState(m.Parameters())
	require.NoError(t, err)
	actual, err := restored.MarshalState(m1.Parameters())
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestCheckpointWithoutOptimizer(t *testing.T) {
	m := tinyModel(t, tinyConfig(), 1)
	path := filepath.Join(t.TempDir(), LatestCheckpoint)
	ck := &Checkpoint{Model: m, Schedule: ScheduleState{Ratio: 0.3}}
	require.NoError(t, SaveCheckpoint(path, ck, nil))

	ck1, err := LoadCheckpoint(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.3, ck1.Schedule.Ratio)
	assert.Empty(t, ck1.Log)
	assert.Equal(t, m.Config, ck1.Model.Config)
}

func TestCheckpointMissing(t *testing.T) {
	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "nothing"), nil)
	assert.Error(t, err)
}
