package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/unixpickle/anyrul/anys2s"
	"github.com/unixpickle/essentials"
	"gopkg.in/yaml.v3"
)

// Settings holds every option of the command.
type Settings struct {
	Model anys2s.Config      `mapstructure:"model" yaml:"model"`
	Train anys2s.TrainConfig `mapstructure:"train" yaml:"train"`
	Data  DataConfig         `mapstructure:"data" yaml:"data"`
	Log   LogConfig          `mapstructure:"log" yaml:"log"`

	// ParallelConv spreads convolutions across goroutines.
	ParallelConv bool `mapstructure:"parallel_conv" yaml:"parallel_conv"`

	// MetricsAddr, if set, is the address of a Prometheus
	// endpoint served during training.
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// DataConfig selects the recordings to use.
type DataConfig struct {
	Root     string   `mapstructure:"root" yaml:"root"`
	Train    []string `mapstructure:"train" yaml:"train"`
	Test     []string `mapstructure:"test" yaml:"test"`
	Channels int      `mapstructure:"channels" yaml:"channels"`
	Workers  int      `mapstructure:"workers" yaml:"workers"`

	// RequireFinite rejects recordings which produce NaN or
	// infinite features.
	RequireFinite bool `mapstructure:"require_finite" yaml:"require_finite"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultSettings returns the settings used when nothing
// is overridden.
func DefaultSettings() *Settings {
	return &Settings{
		Model: anys2s.DefaultConfig(0),
		Train: anys2s.DefaultTrainConfig(),
		Data: DataConfig{
			Root:     "data",
			Channels: 2,
			Workers:  4,
			Train: []string{
				"Bearing1_1", "Bearing1_2",
				"Bearing2_1", "Bearing2_2",
				"Bearing3_1", "Bearing3_2",
			},
			Test: []string{
				"Bearing1_3", "Bearing1_4", "Bearing1_5", "Bearing1_6", "Bearing1_7",
				"Bearing2_3", "Bearing2_4", "Bearing2_5", "Bearing2_6", "Bearing2_7",
				"Bearing3_3",
			},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

var flagKeys = map[string]string{
	"data-root":    "data.root",
	"model-dir":    "train.model_dir",
	"log-level":    "log.level",
	"epochs":       "train.epochs",
	"seed":         "train.seed",
	"metrics-addr": "metrics_addr",
	"parallel":     "parallel_conv",
}

// LoadSettings combines the defaults, an optional YAML
// file, ANYRUL_* environment variables, and flags, in
// increasing order of priority.
func LoadSettings(path string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	defaults, err := yaml.Marshal(DefaultSettings())
	if err != nil {
		return nil, essentials.AddCtx("load settings", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, essentials.AddCtx("load settings", err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, essentials.AddCtx("load settings", err)
		}
	}

	v.SetEnvPrefix("ANYRUL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, essentials.AddCtx("load settings", err)
				}
			}
		}
	}

	var res Settings
	if err := v.Unmarshal(&res); err != nil {
		return nil, essentials.AddCtx("load settings", err)
	}
	return &res, nil
}

// WriteSettings saves settings as YAML, so that a run can
// be reproduced with --config.
func WriteSettings(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return essentials.AddCtx("write settings", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("write settings", err)
	}
	return nil
}

// SetupLogging configures the standard logrus logger.
func SetupLogging(c LogConfig) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return essentials.AddCtx("setup logging", err)
	}
	logrus.SetLevel(level)
	switch c.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("setup logging: unknown format %q", c.Format)
	}
	return nil
}
