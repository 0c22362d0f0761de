package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/unixpickle/anyrul/anys2s"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/essentials"
)

func newTrainCmd() *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model",
		Long: `Train a model on the training bearings, saving the latest and
best checkpoints to the model directory after every epoch.
Press Ctrl+C once to stop after the current epoch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(settings, resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "continue from the latest checkpoint")
	cmd.Flags().Int("epochs", 0, "number of epochs")
	cmd.Flags().Int64("seed", 0, "random seed")
	cmd.Flags().String("metrics-addr", "", "address for a Prometheus endpoint")
	return cmd
}

func runTrain(s *Settings, resume bool) error {
	runID := uuid.NewString()
	log := logrus.WithField("run_id", runID)

	train, test, err := LoadSplits(s)
	if err != nil {
		return err
	}
	trainSet, valSet, err := s.Train.SplitSamples(train.Samples, test.Samples)
	if err != nil {
		return err
	}
	modelDir := s.Train.ModelDir
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return essentials.AddCtx("train", err)
	}

	c := anyvec64.CurrentCreator()
	var trainer *anys2s.Trainer
	if resume {
		path := filepath.Join(modelDir, anys2s.LatestCheckpoint)
		trainer, err = anys2s.ResumeTrainer(c, path, s.Train, trainSet, valSet, test.Samples)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"path":  path,
			"epoch": len(trainer.Log),
		}).Info("resuming from checkpoint")
	} else {
		s.Model.Features = len(trainSet[0].Input[0])
		r := s.Train.Rand(anys2s.InitStream)
		model, err := anys2s.NewModel(c, r, s.Model)
		if err != nil {
			return err
		}
		trainer, err = anys2s.NewTrainer(c, model, s.Train, trainSet, valSet, test.Samples)
		if err != nil {
			return err
		}
	}
	model := trainer.Model
	trainer.Logger = logrus.StandardLogger()
	trainer.Sinks = []anys2s.LogSink{
		&anys2s.CSVSink{Path: filepath.Join(modelDir, "log.csv")},
		&anys2s.LogrusSink{Fields: logrus.Fields{"run_id": runID}},
	}
	if s.MetricsAddr != "" {
		sink, err := serveMetrics(s.MetricsAddr, runID)
		if err != nil {
			return err
		}
		trainer.Sinks = append(trainer.Sinks, sink)
	}
	s.Model = model.Config
	if err := WriteSettings(filepath.Join(modelDir, "config.yaml"), s); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	log.WithFields(logrus.Fields{
		"train":      len(trainSet),
		"validation": len(valSet),
		"parameters": len(model.Parameters()),
	}).Info("press ctrl+c once to stop after the current epoch")
	if err := trainer.RunUntil(ctx.Done()); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"epochs":   len(trainer.Log),
		"val_loss": trainer.Log.BestValLoss(),
	}).Info("training finished")
	return nil
}

func serveMetrics(addr, runID string) (*anys2s.MetricsSink, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	sink, err := anys2s.NewMetricsSink(reg, prometheus.Labels{"run_id": runID})
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		logrus.WithField("address", addr).Info("starting metrics server")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logrus.WithError(err).Error("metrics server failed")
		}
	}()
	return sink, nil
}
