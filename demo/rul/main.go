// Command rul trains and evaluates a sequence-to-sequence
// model that estimates the remaining useful life of
// bearings from vibration recordings.
package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/unixpickle/anyrul/anyconv"
)

var (
	cfgFile  string
	settings *Settings
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rul",
		Short: "Remaining useful life estimation for bearings",
		Long: `Train an attention-based sequence-to-sequence model on PHM-2012
style bearing recordings, evaluate it, and export its internals.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			settings = s
			if s.ParallelConv {
				anyconv.SetConverMaker(anyconv.MakeParallelConver)
			}
			return SetupLogging(s.Log)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.String("data-root", "", "directory of bearing recordings")
	flags.String("model-dir", "", "directory for checkpoints and logs")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("parallel", false, "parallelize convolutions across the batch")

	rootCmd.AddCommand(newTrainCmd(), newTestCmd(), newAnalyseCmd())

	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}
