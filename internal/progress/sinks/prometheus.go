package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/catalog-crawler/internal/progress"
)

// PrometheusSink exports crawl progress via Prometheus. It owns collectors for
// phase task totals, task outcomes, and per-attempt fetch results.
type PrometheusSink struct {
	phaseTasks    *prometheus.GaugeVec
	tasksDone     *prometheus.CounterVec
	fetchAttempts *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	phaseRuntime  *prometheus.GaugeVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		phaseTasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "catalog_phase_tasks",
			Help: "Sub-tasks announced for the current run of each phase.",
		}, []string{"phase"}),
		tasksDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_tasks_completed_total",
			Help: "Completed sub-tasks partitioned by phase and outcome.",
		}, []string{"phase", "outcome"}),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_fetch_attempts_total",
			Help: "Fetch attempts partitioned by phase and status class.",
		}, []string{"phase", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_fetch_bytes_total",
			Help: "Bytes downloaded per phase.",
		}, []string{"phase"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_fetch_duration_seconds",
			Help:    "Fetch attempt latency partitioned by phase.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"phase"}),
		phaseRuntime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "catalog_phase_runtime_seconds",
			Help: "Wall time of the last completed run of each phase.",
		}, []string{"phase"}),
	}
	for _, collector := range []prometheus.Collector{
		s.phaseTasks,
		s.tasksDone,
		s.fetchAttempts,
		s.fetchBytes,
		s.fetchDuration,
		s.phaseRuntime,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		phase := string(evt.Phase)
		switch evt.Stage {
		case progress.StagePhaseStart:
			s.phaseTasks.WithLabelValues(phase).Set(float64(evt.Total))
		case progress.StageTaskDone:
			s.tasksDone.WithLabelValues(phase, string(evt.Outcome)).Inc()
		case progress.StageFetchDone:
			s.fetchAttempts.WithLabelValues(phase, string(evt.StatusClass)).Inc()
			if evt.Bytes > 0 {
				s.fetchBytes.WithLabelValues(phase).Add(float64(evt.Bytes))
			}
			if evt.Dur > 0 {
				s.fetchDuration.WithLabelValues(phase).Observe(evt.Dur.Seconds())
			}
		case progress.StagePhaseDone:
			s.phaseRuntime.WithLabelValues(phase).Set(evt.Dur.Seconds())
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
