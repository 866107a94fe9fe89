package report_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/trackoor/pkg/analytics"
	"github.com/ethpandaops/trackoor/pkg/config"
	"github.com/ethpandaops/trackoor/pkg/report"
	"github.com/ethpandaops/trackoor/pkg/store"
)

func setupBuilder(t *testing.T) (*report.Builder, store.Store, int64) {
	t.Helper()

	cfg := config.Default()
	cfg.Tracker.Database.SQLite.Path = ":memory:"

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := store.NewStore(log, &cfg.Tracker.Database)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	engine := analytics.NewEngine(log, s)
	builder := report.NewBuilder(log, s, engine, &cfg.Tracker)

	runID, err := s.StartRun(context.Background(), "runner-1.0", "linux")
	require.NoError(t, err)

	return builder, s, runID
}

func record(
	t *testing.T,
	s store.Store,
	runID int64,
	testID string,
	status store.Status,
	duration float64,
) {
	t.Helper()

	require.NoError(t, s.RecordResult(context.Background(), &store.Result{
		RunID:    runID,
		TestID:   testID,
		Status:   status,
		Duration: duration,
	}))
}

func TestBuilder_IncludesNeverFailedTests(t *testing.T) {
	builder, s, runID := setupBuilder(t)
	ctx := context.Background()

	record(t, s, runID, "test_green", store.StatusPassed, 0.1)
	record(t, s, runID, "test_green", store.StatusPassed, 0.2)

	reports, err := builder.Build(ctx)
	require.NoError(t, err)
	require.Contains(t, reports, "test_green")

	r := reports["test_green"]
	assert.Equal(t, int64(2), r.Passes)
	assert.Equal(t, int64(0), r.Failures)
	assert.Nil(t, r.LastFailure)
	assert.False(t, r.Analytics.IsFlaky)
	assert.Nil(t, r.Analytics.FlakyDetails)
	require.NotNil(t, r.Analytics.Performance)
	assert.InDelta(t, 0.15, r.Analytics.Performance.AvgDuration, 1e-9)
}

func TestBuilder_HistoryIsLimitedAndNewestFirst(t *testing.T) {
	builder, s, runID := setupBuilder(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		record(t, s, runID, "test_a", store.StatusPassed, float64(i))
	}

	reports, err := builder.Build(ctx)
	require.NoError(t, err)

	history := reports["test_a"].History
	require.Len(t, history, config.DefaultReportHistoryLimit)
	assert.Equal(t, 7.0, history[0].Duration)
	assert.Equal(t, 3.0, history[4].Duration)
}

func TestBuilder_FlakyAndLastFailureBlocks(t *testing.T) {
	builder, s, runID := setupBuilder(t)
	ctx := context.Background()

	message := "expected 1, got 2"
	traceback := "frame one\nframe two\nframe three"

	record(t, s, runID, "test_flaky", store.StatusPassed, 0.1)
	require.NoError(t, s.RecordResult(ctx, &store.Result{
		RunID: runID, TestID: "test_flaky", Status: store.StatusFailed,
		Duration: 0.2, ErrorMessage: &message, ErrorTraceback: &traceback,
	}))
	record(t, s, runID, "test_flaky", store.StatusPassed, 0.3)

	reports, err := builder.Build(ctx)
	require.NoError(t, err)

	r := reports["test_flaky"]
	assert.True(t, r.Analytics.IsFlaky)
	require.NotNil(t, r.Analytics.FlakyDetails)
	assert.Equal(t, int64(1), r.Analytics.FlakyDetails.TotalFailures)
	assert.Equal(t, int64(3), r.Analytics.FlakyDetails.TotalRuns)
	assert.InDelta(t, 0.333, r.Analytics.FlakyDetails.FailureRate, 0.001)

	require.NotNil(t, r.LastFailure)
	require.NotNil(t, r.LastFailure.ErrorMessage)
	assert.Equal(t, message, *r.LastFailure.ErrorMessage)
	assert.Equal(t, []string{"frame one", "frame two", "frame three"},
		r.LastFailure.Traceback)
}

func TestBuilder_SingleFailureIsNotFlakyButHasLastFailure(t *testing.T) {
	builder, s, runID := setupBuilder(t)
	ctx := context.Background()

	message := "boom"
	require.NoError(t, s.RecordResult(ctx, &store.Result{
		RunID: runID, TestID: "test_b", Status: store.StatusFailed,
		Duration: 0.1, ErrorMessage: &message,
	}))

	reports, err := builder.Build(ctx)
	require.NoError(t, err)

	r := reports["test_b"]
	assert.False(t, r.Analytics.IsFlaky)
	require.NotNil(t, r.LastFailure)
	require.NotNil(t, r.LastFailure.ErrorMessage)
	assert.Equal(t, message, *r.LastFailure.ErrorMessage)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	builder, s, runID := setupBuilder(t)
	ctx := context.Background()

	record(t, s, runID, "test_a", store.StatusPassed, 0.1)
	record(t, s, runID, "test_a", store.StatusFailed, 0.2)

	reports, err := builder.Build(ctx)
	require.NoError(t, err)

	snap := report.NewSnapshot(reports)
	require.Contains(t, snap.Tests, "test_a")
	assert.Equal(t, int64(1), snap.Tests["test_a"].Passes)
	assert.Equal(t, int64(1), snap.Tests["test_a"].Failures)
	assert.InDelta(t, 0.5, snap.Tests["test_a"].FailureRate, 1e-9)

	path := filepath.Join(t.TempDir(), "artifacts", "snapshot.json")
	require.NoError(t, report.WriteSnapshot(path, snap))

	loaded, err := report.ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snap.Tests, loaded.Tests)
}

func TestGenerateMarkdown(t *testing.T) {
	builder, s, runID := setupBuilder(t)
	ctx := context.Background()

	message := "boom"
	record(t, s, runID, "test_flaky", store.StatusPassed, 0.1)
	require.NoError(t, s.RecordResult(ctx, &store.Result{
		RunID: runID, TestID: "test_flaky", Status: store.StatusFailed,
		Duration: 0.2, ErrorMessage: &message,
	}))

	reports, err := builder.Build(ctx)
	require.NoError(t, err)

	md := report.GenerateMarkdown(reports)

	assert.True(t, strings.HasPrefix(md, "# Test Tracking Summary"))
	assert.Contains(t, md, "## Results")
	assert.Contains(t, md, "test_flaky")
	assert.Contains(t, md, "## Flaky Tests")
	assert.Contains(t, md, "## Recent Failures")
	assert.Contains(t, md, "boom")
}
