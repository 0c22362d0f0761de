package anys2s

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyrul/anysgd"
	"github.com/unixpickle/anyvec/anyvec64"
)

func testTrainConfig() TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.Epochs = 2
	cfg.StrideRatio = 2
	cfg.ModelDir = ""
	cfg.Seed = 7
	return cfg
}

// tinySamples have two input steps per label step, plus
// one extra input step for some samples.
func tinySamples() SampleList {
	r := rand.New(rand.NewSource(5))
	return SampleList{
		randomSample(r, "a", 9, 4, 2),
		randomSample(r, "b", 6, 3, 2),
		randomSample(r, "c", 11, 5, 2),
	}
}

func TestTrainerEpochs(t *testing.T) {
	c := anyvec64.CurrentCreator()
	m := tinyModel(t, tinyConfig(), 1)
	cfg := testTrainConfig()
	cfg.ModelDir = t.TempDir()
	cfg.BatchSize = 2

	samples := tinySamples()
	trainer, err := NewTrainer(c, m, cfg, samples, samples, samples[:1])
	require.NoError(t, err)
	logger, hook := test.NewNullLogger()
	trainer.Logger = logger
	csvPath := filepath.Join(cfg.ModelDir, "log.csv")
	trainer.Sinks = []LogSink{&CSVSink{Path: csvPath}}

	require.NoError(t, trainer.Run())
	require.Len(t, trainer.Log, 2)
	for i, e := range trainer.Log {
		assert.Equal(t, i+1, e.Epoch)
		assert.False(t, math.IsNaN(e.TrainLoss) || math.IsInf(e.TrainLoss, 0))
		assert.True(t, e.ValLoss > 0)
		assert.True(t, e.TestLoss > 0)
		assert.Equal(t, 0.3, e.TeacherRatio)
	}
	assert.Same(t, trainer.Schedule, m.RatioSource)

	for _, name := range []string{BestCheckpoint, LatestCheckpoint, "log.csv"} {
		_, err := os.Stat(filepath.Join(cfg.ModelDir, name))
		assert.NoError(t, err, name)
	}
	assert.NotEmpty(t, hook.AllEntries())

	best, err := LoadCheckpoint(filepath.Join(cfg.ModelDir, BestCheckpoint), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.3, best.Schedule.Ratio)
	assert.Equal(t, trainer.Log[:len(best.Log)], best.Log)
	valLoss, err := Evaluate(c, best.Model, samples)
	require.NoError(t, err)
	assert.InDelta(t, trainer.Log.BestValLoss(), valLoss, 1e-9)

	// Run does nothing once the epochs are done.
	require.NoError(t, trainer.Run())
	assert.Len(t, trainer.Log, 2)
}

func TestTrainerL2(t *testing.T) {
	c := anyvec64.CurrentCreator()
	m := tinyModel(t, tinyConfig(), 1)
	cfg := testTrainConfig()
	cfg.L2 = 0.5
	cfg.Truncation = 0
	trainer, err := NewTrainer(c, m, cfg, tinySamples(), nil, nil)
	require.NoError(t, err)
	batch, err := trainer.Fetch(tinySamples())
	require.NoError(t, err)

	m.RatioSource = FixedRatio(0)
	withL2 := vectorFloats(trainer.TotalCost(batch).Output())[0]
	trainer.Config.L2 = 0
	without := vectorFloats(trainer.TotalCost(batch).Output())[0]

	var penalty float64
	for _, p := range m.Parameters() {
		for _, x := range vectorFloats(p.Vector) {
			penalty += x * x
		}
	}
	assert.InDelta(t, without+0.25*penalty, withL2, 1e-6)
}

func TestTrainerConfigErrors(t *testing.T) {
	c := anyvec64.CurrentCreator()
	m := tinyModel(t, tinyConfig(), 1)

	_, err := NewTrainer(c, m, testTrainConfig(), nil, nil, nil)
	assert.Error(t, err)

	cfg := testTrainConfig()
	cfg.Optimizer = "lbfgs"
	_, err = NewTrainer(c, m, cfg, tinySamples(), nil, nil)
	assert.Error(t, err)

	cfg = testTrainConfig()
	cfg.StrideRatio = 0
	_, err = NewTrainer(c, m, cfg, tinySamples(), nil, nil)
	assert.Error(t, err)

	cfg = testTrainConfig()
	cfg.StrideRatio = 4
	_, err = NewTrainer(c, m, cfg, tinySamples(), nil, nil)
	assert.ErrorContains(t, err, "model stride")
}

func TestTrainerResume(t *testing.T) {
	c := anyvec64.CurrentCreator()
	cfg := testTrainConfig()
	cfg.ModelDir = t.TempDir()
	cfg.Epochs = 1
	cfg.Trigger = 0
	samples := tinySamples()

	first, err := NewTrainer(c, tinyModel(t, tinyConfig(), 1), cfg, samples, samples, nil)
	require.NoError(t, err)
	first.Logger, _ = test.NewNullLogger()
	require.NoError(t, first.Run())
	bestPath := filepath.Join(cfg.ModelDir, BestCheckpoint)
	bestBefore, err := os.ReadFile(bestPath)
	require.NoError(t, err)

	// Pretend the first run already reached an unbeatable
	// validation loss.
	latest := filepath.Join(cfg.ModelDir, LatestCheckpoint)
	ck, err := LoadCheckpoint(latest, nil)
	require.NoError(t, err)
	ck.Log[0].ValLoss = 1e-12
	ck.Schedule.Epochs = 49
	require.NoError(t, SaveCheckpoint(latest, ck, first.Transformer))

	cfg.Epochs = 3
	resumed, err := ResumeTrainer(c, latest, cfg, samples, samples, nil)
	require.NoError(t, err)
	resumed.Logger, _ = test.NewNullLogger()
	csvPath := filepath.Join(cfg.ModelDir, "log.csv")
	resumed.Sinks = []LogSink{&CSVSink{Path: csvPath}}
	assert.Equal(t, ScheduleState{Ratio: 0.3, Epochs: 49}, resumed.Schedule.State())
	assert.Same(t, resumed.Schedule, resumed.Model.RatioSource)
	assert.NotNil(t, resumed.Model.Encoder.Dropout.Rand)
	assert.NotNil(t, resumed.Model.Decoder.Stack.Dropout.Rand)

	require.NoError(t, resumed.Run())
	require.Len(t, resumed.Log, 3)
	assert.Equal(t, 1e-12, resumed.Log[0].ValLoss)
	for i, e := range resumed.Log {
		assert.Equal(t, i+1, e.Epoch)
	}

	// The period count carried over, so the first resumed
	// epoch finished the period.
	assert.Equal(t, 0.3, resumed.Log[1].TeacherRatio)
	assert.InDelta(t, 0.21, resumed.Log[2].TeacherRatio, 1e-12)

	bestAfter, err := os.ReadFile(bestPath)
	require.NoError(t, err)
	assert.Equal(t, bestBefore, bestAfter, "best checkpoint was overwritten")

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	log, err := ReadCSV(f)
	require.NoError(t, err)
	assert.Len(t, log, 3)
	assert.Equal(t, 1e-12, log[0].ValLoss)
}

func TestTrainConfigRand(t *testing.T) {
	cfg := testTrainConfig()
	first := map[int]int64{}
	for _, stream := range []int{InitStream, TrainStream, ModelStream} {
		x := cfg.Rand(stream).Int63()
		assert.Equal(t, x, cfg.Rand(stream).Int63())
		for other, y := range first {
			assert.NotEqual(t, y, x, "streams %d and %d", other, stream)
		}
		first[stream] = x
	}

	m := tinyModel(t, tinyConfig(), 1)
	trainer, err := NewTrainer(anyvec64.CurrentCreator(), m, cfg, tinySamples(), nil, nil)
	require.NoError(t, err)
	assert.NotSame(t, trainer.Rand, m.Rand)
	assert.Same(t, m.Rand, m.Encoder.Dropout.Rand)
	assert.Same(t, m.Rand, m.Decoder.Stack.Dropout.Rand)
	assert.Equal(t, first[TrainStream], trainer.Rand.Int63())
	assert.Equal(t, first[ModelStream], m.Rand.Int63())
}

func TestTrainConfigTransformer(t *testing.T) {
	cfg := DefaultTrainConfig()
	for name, expected := range map[string]anysgd.Transformer{
		OptimizerAdam:     &anysgd.Adam{},
		OptimizerRMSProp:  &anysgd.RMSProp{},
		OptimizerMomentum: &anysgd.Momentum{Momentum: 0.5},
	} {
		cfg.Optimizer = name
		tr, err := cfg.Transformer()
		require.NoError(t, err)
		assert.IsType(t, expected, tr)
	}
}

func TestTrainConfigSplitSamples(t *testing.T) {
	var train, testSet SampleList
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		train = append(train, randomSample(r, fmt.Sprintf("train%d", i), 2, 1, 1))
	}
	testSet = SampleList{randomSample(r, "test", 2, 1, 1)}

	cfg := DefaultTrainConfig()
	newTrain, val, err := cfg.SplitSamples(train, testSet)
	require.NoError(t, err)
	assert.Equal(t, train, newTrain)
	assert.Equal(t, train, val)

	cfg.Validation = ValidateTest
	newTrain, val, err = cfg.SplitSamples(train, testSet)
	require.NoError(t, err)
	assert.Equal(t, train, newTrain)
	assert.Equal(t, testSet, val)

	cfg.Validation = ValidateHoldout
	cfg.HoldoutRatio = 0.5
	newTrain, val, err = cfg.SplitSamples(train, testSet)
	require.NoError(t, err)
	assert.Equal(t, 20, len(newTrain)+len(val))
	assert.NotEmpty(t, newTrain)
	assert.NotEmpty(t, val)
	names := map[string]bool{}
	for _, s := range newTrain {
		names[s.Name] = true
	}
	for _, s := range val {
		assert.False(t, names[s.Name], "%s is on both sides", s.Name)
	}

	// The split is deterministic.
	again, _, err := cfg.SplitSamples(train, testSet)
	require.NoError(t, err)
	assert.ElementsMatch(t, newTrain, again)

	cfg.Validation = "bogus"
	_, _, err = cfg.SplitSamples(train, testSet)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	c := anyvec64.CurrentCreator()
	m := tinyModel(t, tinyConfig(), 1)
	samples := tinySamples()

	loss, err := Evaluate(c, m, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, loss)

	loss, err = Evaluate(c, m, samples)
	require.NoError(t, err)
	var expected float64
	for _, s := range samples {
		res, batch, err := Predict(c, m, s, false)
		require.NoError(t, err)
		cost := anyrul.MSE{}.Cost(anydiff.NewConst(batch.Targets), res.Output, 1)
		expected += vectorFloats(cost.Output())[0]
	}
	assert.InDelta(t, expected/3, loss, 1e-12)
}

func TestTrainerRunUntil(t *testing.T) {
	c := anyvec64.CurrentCreator()
	m := tinyModel(t, tinyConfig(), 1)
	trainer, err := NewTrainer(c, m, testTrainConfig(), tinySamples(), nil, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	close(done)
	require.NoError(t, trainer.RunUntil(done))
	assert.Empty(t, trainer.Log)
}

var (
	_ anysgd.Fetcher    = &Trainer{}
	_ anysgd.Gradienter = &Trainer{}
	_ anysgd.Coster     = &Trainer{}
)
