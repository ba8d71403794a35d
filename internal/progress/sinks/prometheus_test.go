package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	phase := catalog.PhaseDetails
	batch := []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StagePhaseStart, Phase: phase, Total: 2},
		{RunID: runID, TS: time.Now(), Stage: progress.StageFetchDone, Phase: phase, Attempt: 1,
			StatusClass: progress.Status5xx, Dur: 100 * time.Millisecond},
		{RunID: runID, TS: time.Now(), Stage: progress.StageFetchDone, Phase: phase, Attempt: 2,
			StatusClass: progress.Status2xx, Bytes: 2048, Dur: 200 * time.Millisecond},
		{RunID: runID, TS: time.Now(), Stage: progress.StageTaskDone, Phase: phase, Outcome: catalog.OutcomeExtracted},
		{RunID: runID, TS: time.Now(), Stage: progress.StageTaskDone, Phase: phase, Outcome: catalog.OutcomeAbsent},
		{RunID: runID, TS: time.Now(), Stage: progress.StagePhaseDone, Phase: phase, Dur: 3 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.InDelta(t, 2.0, testutil.ToFloat64(sink.phaseTasks.WithLabelValues("details")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.tasksDone.WithLabelValues("details", "extracted")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.tasksDone.WithLabelValues("details", "absent")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.fetchAttempts.WithLabelValues("details", "5xx")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.fetchAttempts.WithLabelValues("details", "2xx")), 1e-9)
	require.InDelta(t, 2048.0, testutil.ToFloat64(sink.fetchBytes.WithLabelValues("details")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "catalog_fetch_duration_seconds"))
	require.InDelta(t, 3.0, testutil.ToFloat64(sink.phaseRuntime.WithLabelValues("details")), 1e-9)
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
