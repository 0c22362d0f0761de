package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	// Six run-to-failure bearings for training, and the
	// other eleven for testing.
	assert.Len(t, s.Data.Train, 6)
	assert.Len(t, s.Data.Test, 11)
	assert.Equal(t, []string{"Bearing1_1", "Bearing1_2", "Bearing2_1", "Bearing2_2",
		"Bearing3_1", "Bearing3_2"}, s.Data.Train)
	assert.Contains(t, s.Data.Test, "Bearing1_7")
	assert.Contains(t, s.Data.Test, "Bearing2_7")
	assert.Contains(t, s.Data.Test, "Bearing3_3")
	assert.Equal(t, s.Model.Stride, s.Train.StrideRatio)
}

func TestLoadSettingsLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  hidden: 32
train:
  epochs: 7
  optimizer: rmsprop
data:
  train: [Bearing2_1]
`), 0644))
	t.Setenv("ANYRUL_TRAIN_LEARNING_RATE", "0.01")
	t.Setenv("ANYRUL_TRAIN_EPOCHS", "9")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("model-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--model-dir", "/tmp/models"}))

	s, err := LoadSettings(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 32, s.Model.Hidden)
	assert.Equal(t, 2, s.Model.Layers)
	assert.Equal(t, 9, s.Train.Epochs)
	assert.Equal(t, "rmsprop", s.Train.Optimizer)
	assert.Equal(t, 0.01, s.Train.LearningRate)
	assert.Equal(t, "/tmp/models", s.Train.ModelDir)
	assert.Equal(t, []string{"Bearing2_1"}, s.Data.Train)
	assert.Equal(t, DefaultSettings().Data.Test, s.Data.Test)
}

func TestWriteSettings(t *testing.T) {
	expected := DefaultSettings()
	expected.Model.Features = 22
	expected.Train.Seed = 3
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteSettings(path, expected))

	actual, err := LoadSettings(path, nil)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())
	require.NoError(t, SetupLogging(LogConfig{Level: "debug", Format: "json"}))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.Error(t, SetupLogging(LogConfig{Level: "loud"}))
	assert.Error(t, SetupLogging(LogConfig{Level: "info", Format: "xml"}))
}
