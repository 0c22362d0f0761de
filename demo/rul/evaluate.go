package main

import (
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/unixpickle/anyrul/anydata"
	"github.com/unixpickle/anyrul/anys2s"
	"github.com/unixpickle/anyvec/anyvec64"
)

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Report the MSE of the best model on every split",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(settings)
		},
	}
}

func newAnalyseCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "analyse",
		Short: "Export the internals of the best model as JSON",
		Long: `Run the best model over the training and test bearings without
teacher forcing, and export inputs, labels, predictions, encoder
outputs and attention weights.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = filepath.Join(settings.Train.ModelDir, "diagnostics.json")
			}
			return runAnalyse(settings, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}

func runTest(s *Settings) error {
	model, train, test, err := loadBest(s)
	if err != nil {
		return err
	}
	c := anyvec64.CurrentCreator()
	for _, split := range []struct {
		name string
		data *anydata.Result
	}{{"train", train}, {"test", test}} {
		loss, err := anys2s.Evaluate(c, model, split.data.Samples)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"split":   split.name,
			"samples": len(split.data.Samples),
			"mse":     loss,
		}).Info("evaluated")
	}
	return nil
}

func runAnalyse(s *Settings, output string) error {
	model, train, test, err := loadBest(s)
	if err != nil {
		return err
	}
	c := anyvec64.CurrentCreator()
	d := anys2s.NewDiagnostics(uuid.NewString())
	if err := d.Analyse(c, model, "train", train.Samples, train.Raw); err != nil {
		return err
	}
	if err := d.Analyse(c, model, "test", test.Samples, test.Raw); err != nil {
		return err
	}
	if err := d.WriteFile(output); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"run_id": d.RunID,
		"path":   output,
	}).Info("wrote diagnostics")
	return nil
}

func loadBest(s *Settings) (*anys2s.Model, *anydata.Result, *anydata.Result, error) {
	path := filepath.Join(s.Train.ModelDir, anys2s.BestCheckpoint)
	ck, err := anys2s.LoadCheckpoint(path, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	train, test, err := LoadSplits(s)
	if err != nil {
		return nil, nil, nil, err
	}
	return ck.Model, train, test, nil
}
