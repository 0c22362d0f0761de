package anys2s

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/essentials"
)

// A LogEntry summarizes one training epoch.
type LogEntry struct {
	Epoch        int
	TrainLoss    float64
	ValLoss      float64
	TestLoss     float64
	TeacherRatio float64
}

// A TrainingLog is the append-only history of a run.
type TrainingLog []LogEntry

// BestValLoss returns the smallest validation loss in the
// log, or +Inf for an empty log.
func (t TrainingLog) BestValLoss() float64 {
	res := math.Inf(1)
	for _, e := range t {
		res = math.Min(res, e.ValLoss)
	}
	return res
}

// IsBest checks if a validation loss would be a strict new
// minimum of the log.
func (t TrainingLog) IsBest(valLoss float64) bool {
	return valLoss < t.BestValLoss()
}

// A LogSink receives the log after every epoch.
type LogSink interface {
	Write(log TrainingLog) error
}

// CSVSink rewrites a CSV table of the full log after every
// epoch.
type CSVSink struct {
	Path string
}

// Write writes the log to the file.
func (c *CSVSink) Write(log TrainingLog) error {
	f, err := os.Create(c.Path)
	if err != nil {
		return essentials.AddCtx("write CSV log", err)
	}
	defer f.Close()
	if err := log.WriteCSV(f); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return essentials.AddCtx("write CSV log", err)
	}
	return nil
}

var csvHeader = []string{"train_loss", "val_loss", "test_loss", "teacher_ratio"}

// WriteCSV writes the log as a CSV table with a header
// row and one row per epoch.
func (t TrainingLog) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Write(csvHeader)
	for _, e := range t {
		cw.Write([]string{
			formatFloat(e.TrainLoss),
			formatFloat(e.ValLoss),
			formatFloat(e.TestLoss),
			formatFloat(e.TeacherRatio),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return essentials.AddCtx("write CSV log", err)
	}
	return nil
}

// ReadCSV parses a table written by WriteCSV.
// Epochs are numbered by row, starting at 1.
func ReadCSV(r io.Reader) (TrainingLog, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, essentials.AddCtx("read CSV log", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("read CSV log: missing header")
	}
	var res TrainingLog
	for i, row := range rows[1:] {
		if len(row) != len(csvHeader) {
			return nil, fmt.Errorf("read CSV log: row %d has %d fields", i+1, len(row))
		}
		var nums [4]float64
		for j, field := range row {
			if nums[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("read CSV log: row %d: %w", i+1, err)
			}
		}
		res = append(res, LogEntry{
			Epoch:        i + 1,
			TrainLoss:    nums[0],
			ValLoss:      nums[1],
			TestLoss:     nums[2],
			TeacherRatio: nums[3],
		})
	}
	return res, nil
}

// LogrusSink logs the latest entry as a structured line.
type LogrusSink struct {
	Logger *logrus.Logger

	// Fields are attached to every line, such as a run ID.
	Fields logrus.Fields
}

// Write logs the last entry of the log.
func (l *LogrusSink) Write(log TrainingLog) error {
	if len(log) == 0 {
		return nil
	}
	logger := l.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	e := log[len(log)-1]
	logger.WithFields(l.Fields).WithFields(logrus.Fields{
		"epoch":         e.Epoch,
		"train_loss":    e.TrainLoss,
		"val_loss":      e.ValLoss,
		"test_loss":     e.TestLoss,
		"teacher_ratio": e.TeacherRatio,
	}).Info("epoch complete")
	return nil
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
