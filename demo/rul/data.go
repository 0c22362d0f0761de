package main

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anyrul/anydata"
	"github.com/unixpickle/essentials"
)

// LoadSplits loads and preprocesses the training and test
// bearings.
// The test result is empty if no test bearings are set.
func LoadSplits(s *Settings) (train, test *anydata.Result, err error) {
	if len(s.Data.Train) == 0 {
		return nil, nil, errors.New("load splits: no training bearings")
	}
	dir := &anydata.Directory{
		Root:     s.Data.Root,
		Channels: s.Data.Channels,
		Workers:  s.Data.Workers,
		Logger:   logrus.StandardLogger(),
	}
	names := append(append(anydata.Condition{}, s.Data.Train...), s.Data.Test...)
	mem, err := dir.Load(names)
	if err != nil {
		return nil, nil, essentials.AddCtx("load splits", err)
	}

	p := &anydata.Preprocessor{
		StrideRatio:   s.Train.StrideRatio,
		RequireFinite: s.Data.RequireFinite,
	}
	if train, err = p.Samples(mem, s.Data.Train); err != nil {
		return nil, nil, essentials.AddCtx("load splits", err)
	}
	test = &anydata.Result{}
	if len(s.Data.Test) > 0 {
		if test, err = p.Samples(mem, s.Data.Test); err != nil {
			return nil, nil, essentials.AddCtx("load splits", err)
		}
	}
	logrus.WithFields(logrus.Fields{
		"train": len(train.Samples),
		"test":  len(test.Samples),
	}).Info("loaded bearings")
	return train, test, nil
}
