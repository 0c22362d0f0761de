package anys2s

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/unixpickle/essentials"
)

// MetricsSink exports the latest log entry as Prometheus
// gauges.
type MetricsSink struct {
	TrainLoss    prometheus.Gauge
	ValLoss      prometheus.Gauge
	TestLoss     prometheus.Gauge
	TeacherRatio prometheus.Gauge
	Epochs       prometheus.Counter
}

// NewMetricsSink creates the metrics and registers them
// with reg.
func NewMetricsSink(reg prometheus.Registerer, labels prometheus.Labels) (*MetricsSink, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "anyrul",
			Subsystem:   "train",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	res := &MetricsSink{
		TrainLoss:    gauge("loss", "Training loss of the latest epoch."),
		ValLoss:      gauge("validation_loss", "Validation loss of the latest epoch."),
		TestLoss:     gauge("test_loss", "Test loss of the latest epoch."),
		TeacherRatio: gauge("teacher_ratio", "Teacher forcing ratio of the latest epoch."),
		Epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "anyrul",
			Subsystem:   "train",
			Name:        "epochs_total",
			Help:        "Number of completed epochs.",
			ConstLabels: labels,
		}),
	}
	for _, c := range []prometheus.Collector{res.TrainLoss, res.ValLoss, res.TestLoss,
		res.TeacherRatio, res.Epochs} {
		if err := reg.Register(c); err != nil {
			return nil, essentials.AddCtx("register metrics", err)
		}
	}
	return res, nil
}

// Write updates the metrics from the last log entry.
func (m *MetricsSink) Write(log TrainingLog) error {
	if len(log) == 0 {
		return nil
	}
	e := log[len(log)-1]
	m.TrainLoss.Set(e.TrainLoss)
	m.ValLoss.Set(e.ValLoss)
	m.TestLoss.Set(e.TestLoss)
	m.TeacherRatio.Set(e.TeacherRatio)
	m.Epochs.Inc()
	return nil
}
