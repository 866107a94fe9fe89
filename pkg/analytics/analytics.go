package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/trackoor/pkg/store"
)

// Engine computes derived statistics over the result log. All operations
// are pure reads; each one is answered by a single grouped pass over the
// store rather than a round trip per test.
type Engine struct {
	log   logrus.FieldLogger
	store store.Store
}

// NewEngine creates a new aggregation engine over the given store.
func NewEngine(log logrus.FieldLogger, st store.Store) *Engine {
	return &Engine{
		log:   log.WithField("component", "analytics"),
		store: st,
	}
}

// TestSummary is the per-test aggregate exposed to callers.
type TestSummary struct {
	TestID      string        `json:"test_id"`
	TotalRuns   int64         `json:"total_runs"`
	Passes      int64         `json:"passes"`
	Failures    int64         `json:"failures"`
	Skips       int64         `json:"skips"`
	FailureRate float64       `json:"failure_rate"`
	LastFailure *store.Result `json:"last_failure,omitempty"`
}

// FlakyTest describes one test classified as flaky.
type FlakyTest struct {
	TestID      string  `json:"test_id"`
	TotalRuns   int64   `json:"total_runs"`
	Passes      int64   `json:"passes"`
	Failures    int64   `json:"failures"`
	FailureRate float64 `json:"failure_rate"`
}

// Performance holds duration statistics across all recorded results for
// a test, regardless of status.
type Performance struct {
	AvgDuration float64 `json:"avg_duration"`
	MinDuration float64 `json:"min_duration"`
	MaxDuration float64 `json:"max_duration"`
}

// Summarize returns counts, failure rate and the most recent failure for
// one test. A never-exercised test yields zero counts and a 0.0 failure
// rate, not an error.
func (e *Engine) Summarize(
	ctx context.Context, testID string,
) (*TestSummary, error) {
	summary, err := e.store.Summary(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("summarizing %s: %w", testID, err)
	}

	lastFailure, err := e.store.LastFailure(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("fetching last failure for %s: %w", testID, err)
	}

	return &TestSummary{
		TestID:      testID,
		TotalRuns:   summary.TotalRuns,
		Passes:      summary.Passes,
		Failures:    summary.Failures,
		Skips:       summary.Skips,
		FailureRate: summary.FailureRate(),
		LastFailure: lastFailure,
	}, nil
}

// Summaries returns the aggregate for every known test in one pass.
func (e *Engine) Summaries(ctx context.Context) ([]store.Summary, error) {
	return e.store.Summaries(ctx)
}

// FlakyTests classifies tests that both passed and failed across their
// history, with a failure rate at or above the threshold, over at least
// minRuns recorded results. A test that always fails is not flaky. The
// result is sorted by failure rate descending.
func (e *Engine) FlakyTests(
	ctx context.Context, minRuns int, minFailureRate float64,
) ([]FlakyTest, error) {
	summaries, err := e.store.Summaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing summaries: %w", err)
	}

	flaky := make([]FlakyTest, 0)

	for _, s := range summaries {
		rate := s.FailureRate()

		if s.TotalRuns < int64(minRuns) ||
			s.Passes == 0 ||
			s.Failures == 0 ||
			rate < minFailureRate {
			continue
		}

		flaky = append(flaky, FlakyTest{
			TestID:      s.TestID,
			TotalRuns:   s.TotalRuns,
			Passes:      s.Passes,
			Failures:    s.Failures,
			FailureRate: rate,
		})
	}

	sort.SliceStable(flaky, func(i, j int) bool {
		return flaky[i].FailureRate > flaky[j].FailureRate
	})

	e.log.WithField("candidates", len(summaries)).
		WithField("flaky", len(flaky)).
		Debug("Flaky classification computed")

	return flaky, nil
}

// PerformanceStats returns duration statistics for one test across all
// its recorded results, passed, failed and skipped alike.
func (e *Engine) PerformanceStats(
	ctx context.Context, testID string,
) (*Performance, error) {
	summary, err := e.store.Summary(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("fetching performance for %s: %w", testID, err)
	}

	return &Performance{
		AvgDuration: summary.AvgDuration,
		MinDuration: summary.MinDuration,
		MaxDuration: summary.MaxDuration,
	}, nil
}
