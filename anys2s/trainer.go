package anys2s

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrul"
	"github.com/unixpickle/anyrul/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// Validation sources.
const (
	ValidateTrain   = "train"
	ValidateTest    = "test"
	ValidateHoldout = "holdout"
)

// Optimizers.
const (
	OptimizerAdam     = "adam"
	OptimizerRMSProp  = "rmsprop"
	OptimizerMomentum = "momentum"
)

// TrainConfig stores the settings of a training run.
type TrainConfig struct {
	Epochs       int     `mapstructure:"epochs" yaml:"epochs"`
	LearningRate float64 `mapstructure:"learning_rate" yaml:"learning_rate"`

	// BatchSize is the number of samples per step.
	// If it is 0, every epoch is a single step over all of
	// the training samples.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`

	// Teacher forcing schedule.
	Decay       float64 `mapstructure:"decay" yaml:"decay"`
	Floor       float64 `mapstructure:"floor" yaml:"floor"`
	Trigger     float64 `mapstructure:"trigger" yaml:"trigger"`
	Consecutive int     `mapstructure:"consecutive" yaml:"consecutive"`
	Period      int     `mapstructure:"period" yaml:"period"`

	// Truncation is the largest fraction of a label
	// sequence dropped from the start of a sample.
	Truncation float64 `mapstructure:"truncation" yaml:"truncation"`

	// StrideRatio is the number of input steps per label
	// step.
	StrideRatio int `mapstructure:"stride_ratio" yaml:"stride_ratio"`

	Optimizer string  `mapstructure:"optimizer" yaml:"optimizer"`
	Momentum  float64 `mapstructure:"momentum" yaml:"momentum"`
	ClipNorm  float64 `mapstructure:"clip_norm" yaml:"clip_norm"`
	L2        float64 `mapstructure:"l2" yaml:"l2"`

	Seed int64 `mapstructure:"seed" yaml:"seed"`

	// Validation selects the samples for the validation
	// loss: train, test, or holdout.
	Validation   string  `mapstructure:"validation" yaml:"validation"`
	HoldoutRatio float64 `mapstructure:"holdout_ratio" yaml:"holdout_ratio"`

	// ModelDir, if non-empty, receives checkpoints.
	ModelDir string `mapstructure:"model_dir" yaml:"model_dir"`
}

// DefaultTrainConfig returns the default training
// settings.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       500,
		LearningRate: 1e-3,
		Decay:        0.7,
		Floor:        1e-5,
		Trigger:      0.2,
		Consecutive:  3,
		Period:       50,
		Truncation:   0.3,
		StrideRatio:  8,
		Optimizer:    OptimizerAdam,
		Momentum:     0.5,
		Validation:   ValidateTrain,
		HoldoutRatio: 0.2,
		ModelDir:     "model",
	}
}

// Transformer creates the gradient transformer named by
// the config.
func (t TrainConfig) Transformer() (anysgd.Transformer, error) {
	switch t.Optimizer {
	case OptimizerAdam, "":
		return &anysgd.Adam{}, nil
	case OptimizerRMSProp:
		return &anysgd.RMSProp{}, nil
	case OptimizerMomentum:
		return &anysgd.Momentum{Momentum: t.Momentum}, nil
	default:
		return nil, fmt.Errorf("unknown optimizer: %s", t.Optimizer)
	}
}

// Random streams derived from TrainConfig.Seed.
const (
	// InitStream initializes new models.
	InitStream = iota

	// TrainStream drives shuffling and truncation.
	TrainStream

	// ModelStream drives dropout masks and teacher
	// forcing decisions.
	ModelStream
)

// Rand returns a generator for one of the random streams
// derived from the seed.
// Different streams never share a seed.
func (t TrainConfig) Rand(stream int) *rand.Rand {
	seeds := rand.New(rand.NewSource(t.Seed))
	seed := seeds.Int63()
	for i := 0; i < stream; i++ {
		seed = seeds.Int63()
	}
	return rand.New(rand.NewSource(seed))
}

// Schedule creates the teacher forcing schedule described
// by the config.
func (t TrainConfig) Schedule(ratio float64) *Schedule {
	s := NewSchedule(ratio)
	s.Decay = t.Decay
	s.Floor = t.Floor
	s.Trigger = t.Trigger
	s.Consecutive = t.Consecutive
	s.Period = t.Period
	return s
}

// SplitSamples picks the training and validation samples.
//
// For the holdout source, training samples are split by a
// hash of their names, and the training set shrinks.
func (t TrainConfig) SplitSamples(train, test SampleList) (newTrain, val SampleList,
	err error) {
	switch t.Validation {
	case ValidateTrain, "":
		return train, train, nil
	case ValidateTest:
		return train, test, nil
	case ValidateHoldout:
		left, right := anysgd.HashSplit(append(SampleList{}, train...), t.HoldoutRatio)
		if left.Len() == 0 || right.Len() == 0 {
			return nil, nil, errors.New("holdout split left a side empty")
		}
		return right.(SampleList), left.(SampleList), nil
	default:
		return nil, nil, fmt.Errorf("unknown validation source: %s", t.Validation)
	}
}

// A Trainer fits a Model to a set of samples one epoch at
// a time.
type Trainer struct {
	Model  *Model
	Config TrainConfig

	Creator     anyvec.Creator
	Schedule    *Schedule
	Transformer anysgd.Transformer

	Train      SampleList
	Validation SampleList
	Test       SampleList

	Log   TrainingLog
	Sinks []LogSink

	// Logger receives checkpoint events.
	// If nil, the standard logger is used.
	Logger *logrus.Logger

	// Rand drives shuffling and truncation.
	// If nil, the global source is used.
	Rand *rand.Rand

	// LastCost is the cost of the most recent batch.
	LastCost float64

	sgd       *anysgd.SGD
	costSum   float64
	costCount int
}

// NewTrainer creates a Trainer whose schedule starts at
// the model's teacher ratio.
//
// The stride ratio must match the model's stride, since
// both describe how many input steps make a label step.
// The model's random decisions are pointed at the model
// stream of the seed.
func NewTrainer(c anyvec.Creator, m *Model, cfg TrainConfig, train, val,
	test SampleList) (*Trainer, error) {
	if len(train) == 0 {
		return nil, errors.New("new trainer: no training samples")
	}
	tr, err := cfg.Transformer()
	if err != nil {
		return nil, essentials.AddCtx("new trainer", err)
	}
	if cfg.StrideRatio < 1 {
		return nil, errors.New("new trainer: stride ratio must be positive")
	}
	if cfg.StrideRatio != m.Config.Stride {
		return nil, fmt.Errorf("new trainer: stride ratio %d does not match model stride %d",
			cfg.StrideRatio, m.Config.Stride)
	}
	r := cfg.Rand(TrainStream)
	sched := cfg.Schedule(m.Config.TeacherRatio)
	m.RatioSource = sched
	m.SetRand(cfg.Rand(ModelStream))
	return &Trainer{
		Model:       m,
		Config:      cfg,
		Creator:     c,
		Schedule:    sched,
		Transformer: tr,
		Train:       train,
		Validation:  val,
		Test:        test,
		Rand:        r,
	}, nil
}

// ResumeTrainer creates a Trainer from a checkpoint saved
// by an earlier run.
//
// The trainer continues the log, schedule, and optimizer
// state of the checkpoint, so cfg.Epochs counts the epochs
// of the earlier run as well.
func ResumeTrainer(c anyvec.Creator, path string, cfg TrainConfig, train, val,
	test SampleList) (*Trainer, error) {
	opt, err := cfg.Transformer()
	if err != nil {
		return nil, essentials.AddCtx("resume trainer", err)
	}
	ck, err := LoadCheckpoint(path, opt)
	if err != nil {
		return nil, essentials.AddCtx("resume trainer", err)
	}
	t, err := NewTrainer(c, ck.Model, cfg, train, val, test)
	if err != nil {
		return nil, essentials.AddCtx("resume trainer", err)
	}
	t.Transformer = opt
	t.Schedule.SetState(ck.Schedule)
	t.Log = ck.Log
	return t, nil
}

// Fetch truncates a random prefix off of every sample and
// packs the samples into a *Batch.
func (t *Trainer) Fetch(s anysgd.SampleList) (anysgd.Batch, error) {
	var samples []*Sample
	for _, sample := range s.(SampleList) {
		samples = append(samples, sample.RandomTruncate(t.Rand, t.Config.Truncation,
			t.Config.StrideRatio))
	}
	return NewBatch(t.Creator, samples)
}

// TotalCost runs the model with teacher forcing and
// computes the mean sequence cost of the batch, plus the
// L2 penalty if there is one.
func (t *Trainer) TotalCost(b anysgd.Batch) anydiff.Res {
	batch := b.(*Batch)
	res, err := t.Model.Forward(anydiff.NewConst(batch.Inputs), batch.InputLens,
		batch.Targets, nil)
	if err != nil {
		panic(err)
	}
	var cost anyrul.Cost = SequenceCost{Lengths: batch.LabelLens}
	if t.Config.L2 != 0 {
		cost = &anyrul.L2Reg{
			Penalty: t.Config.L2,
			Params:  t.Model.Parameters(),
			Wrapped: cost,
		}
	}
	return cost.Cost(anydiff.NewConst(batch.Targets), res.Output, batch.Size())
}

// Gradient computes the gradient of TotalCost and sets
// LastCost.
func (t *Trainer) Gradient(b anysgd.Batch) anydiff.Grad {
	res := anydiff.NewGrad(t.Model.Parameters()...)
	cost := t.TotalCost(b)
	t.LastCost = vectorFloats(cost.Output())[0]
	t.costSum += t.LastCost * float64(b.(*Batch).Size())
	t.costCount += b.(*Batch).Size()

	c := cost.Output().Creator()
	upstream := c.MakeVectorData(c.MakeNumericList([]float64{1}))
	cost.Propagate(upstream, res)
	return res
}

// Epoch trains for one epoch, evaluates, updates the
// schedule, writes the log, and finally saves checkpoints.
//
// The entry records the ratio the epoch was trained with.
func (t *Trainer) Epoch() (*LogEntry, error) {
	if t.sgd == nil {
		t.sgd = &anysgd.SGD{
			Fetcher:     t,
			Gradienter:  t,
			Transformer: t.Transformer,
			Samples:     append(SampleList{}, t.Train...),
			Rater:       anysgd.ConstRater(t.Config.LearningRate),
			Rand:        t.Rand,
			ClipNorm:    t.Config.ClipNorm,
			BatchSize:   t.Config.BatchSize,
		}
	}

	t.costSum, t.costCount = 0, 0
	t.Model.SetTraining(true)
	err := t.sgd.Epoch()
	t.Model.SetTraining(false)
	if err != nil {
		return nil, essentials.AddCtx("epoch", err)
	}

	entry := LogEntry{
		Epoch:        len(t.Log) + 1,
		TrainLoss:    t.costSum / float64(t.costCount),
		TeacherRatio: t.Schedule.Ratio(),
	}
	if entry.ValLoss, err = Evaluate(t.Creator, t.Model, t.Validation); err != nil {
		return nil, essentials.AddCtx("epoch", err)
	}
	if entry.TestLoss, err = Evaluate(t.Creator, t.Model, t.Test); err != nil {
		return nil, essentials.AddCtx("epoch", err)
	}

	if t.Schedule.Update(entry.TrainLoss, entry.ValLoss) {
		t.logger().WithFields(logrus.Fields{
			"epoch":         entry.Epoch,
			"teacher_ratio": t.Schedule.Ratio(),
		}).Info("decayed teacher forcing ratio")
	}

	best := t.Log.IsBest(entry.ValLoss)
	t.Log = append(t.Log, entry)
	for _, sink := range t.Sinks {
		if err := sink.Write(t.Log); err != nil {
			return nil, essentials.AddCtx("epoch", err)
		}
	}
	if err := t.saveCheckpoints(best); err != nil {
		return nil, essentials.AddCtx("epoch", err)
	}
	return &entry, nil
}

// Run trains for the configured number of epochs.
func (t *Trainer) Run() error {
	return t.RunUntil(nil)
}

// RunUntil is like Run, but it also stops after the
// current epoch once done is closed.
func (t *Trainer) RunUntil(done <-chan struct{}) error {
	for len(t.Log) < t.Config.Epochs {
		select {
		case <-done:
			return nil
		default:
		}
		if _, err := t.Epoch(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trainer) saveCheckpoints(best bool) error {
	if t.Config.ModelDir == "" {
		return nil
	}
	ck := &Checkpoint{Model: t.Model, Schedule: t.Schedule.State(), Log: t.Log}
	latest := filepath.Join(t.Config.ModelDir, LatestCheckpoint)
	if err := SaveCheckpoint(latest, ck, t.Transformer); err != nil {
		return err
	}
	if best {
		path := filepath.Join(t.Config.ModelDir, BestCheckpoint)
		if err := SaveCheckpoint(path, ck, t.Transformer); err != nil {
			return err
		}
		t.logger().WithFields(logrus.Fields{
			"epoch":    len(t.Log),
			"val_loss": t.Log[len(t.Log)-1].ValLoss,
			"path":     path,
		}).Info("saved best model")
	}
	return nil
}

func (t *Trainer) logger() *logrus.Logger {
	if t.Logger == nil {
		return logrus.StandardLogger()
	}
	return t.Logger
}

// SequenceCost averages the MSE of every sequence over its
// valid prefix, giving every sequence equal weight.
type SequenceCost struct {
	Lengths []int
}

// Cost returns a single-component mean cost.
func (s SequenceCost) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	costs := anyrul.MaskedMSE{Lengths: s.Lengths}.Cost(desired, actual, n)
	c := costs.Output().Creator()
	return anydiff.Scale(anydiff.Sum(costs), c.MakeNumeric(1/float64(n)))
}

// Evaluate runs the model on every sample alone, without
// truncation or teacher forcing, and averages the MSE of
// the samples.
//
// The model should be in evaluation mode.
func Evaluate(c anyvec.Creator, m *Model, samples SampleList) (float64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	var sum float64
	for _, s := range samples {
		res, batch, err := Predict(c, m, s, false)
		if err != nil {
			return 0, essentials.AddCtx("evaluate "+s.Name, err)
		}
		cost := anyrul.MSE{}.Cost(anydiff.NewConst(batch.Targets), res.Output, 1)
		sum += vectorFloats(cost.Output())[0]
	}
	return sum / float64(len(samples)), nil
}

// Predict runs the model on a single sample without
// teacher forcing.
func Predict(c anyvec.Creator, m *Model, s *Sample, trace bool) (*Result, *Batch, error) {
	batch, err := NewBatch(c, []*Sample{s})
	if err != nil {
		return nil, nil, err
	}
	res, err := m.Forward(anydiff.NewConst(batch.Inputs), batch.InputLens, batch.Targets,
		&Options{Ratio: Ratio(0), Trace: trace})
	if err != nil {
		return nil, nil, err
	}
	return res, batch, nil
}
