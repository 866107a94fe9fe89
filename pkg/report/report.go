package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/trackoor/pkg/analytics"
	"github.com/ethpandaops/trackoor/pkg/config"
	"github.com/ethpandaops/trackoor/pkg/store"
)

// TestReport is the composite per-test report entry.
type TestReport struct {
	Passes      int64          `json:"passes"`
	Failures    int64          `json:"failures"`
	Skips       int64          `json:"skips"`
	FailureRate float64        `json:"failure_rate"`
	LastFailure *LastFailure   `json:"last_failure"`
	History     []HistoryEntry `json:"history"`
	Analytics   Analytics      `json:"analytics"`
}

// LastFailure describes the most recent failed result of a test.
type LastFailure struct {
	Timestamp    time.Time `json:"timestamp"`
	Traceback    []string  `json:"traceback"`
	ErrorMessage *string   `json:"error_message"`
}

// HistoryEntry is one recent result of a test.
type HistoryEntry struct {
	Timestamp    time.Time    `json:"timestamp"`
	Status       store.Status `json:"status"`
	Duration     float64      `json:"duration"`
	ErrorMessage *string      `json:"error_message"`
}

// Analytics is the derived-statistics block of a test report.
type Analytics struct {
	TotalRuns    int64                  `json:"total_runs"`
	IsFlaky      bool                   `json:"is_flaky"`
	FlakyDetails *FlakyDetails          `json:"flaky_details,omitempty"`
	Performance  *analytics.Performance `json:"performance"`
}

// FlakyDetails carries the flaky classification inputs for a flaky test.
type FlakyDetails struct {
	FailureRate   float64 `json:"failure_rate"`
	TotalFailures int64   `json:"total_failures"`
	TotalRuns     int64   `json:"total_runs"`
}

// Builder assembles one composite report keyed by test id from the
// aggregation engine's outputs.
type Builder struct {
	log    logrus.FieldLogger
	store  store.Store
	engine *analytics.Engine
	cfg    *config.TrackerConfig
}

// NewBuilder creates a new report builder.
func NewBuilder(
	log logrus.FieldLogger,
	st store.Store,
	engine *analytics.Engine,
	cfg *config.TrackerConfig,
) *Builder {
	return &Builder{
		log:    log.WithField("component", "report"),
		store:  st,
		engine: engine,
		cfg:    cfg,
	}
}

// Build assembles the report for every test that has at least one
// recorded result, including tests that have never failed. The four
// grouped queries behind it run concurrently; none mutates the log.
func (b *Builder) Build(ctx context.Context) (map[string]TestReport, error) {
	var (
		summaries    []store.Summary
		flaky        []analytics.FlakyTest
		lastFailures map[string]store.Result
		histories    map[string][]store.Result
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		summaries, err = b.engine.Summaries(gctx)

		return err
	})

	g.Go(func() error {
		var err error
		flaky, err = b.engine.FlakyTests(
			gctx, b.cfg.Flaky.MinRuns, b.cfg.Flaky.MinFailureRate,
		)

		return err
	})

	g.Go(func() error {
		var err error
		lastFailures, err = b.store.LastFailures(gctx)

		return err
	})

	g.Go(func() error {
		var err error
		histories, err = b.store.RecentHistories(gctx, b.cfg.ReportHistoryLimit)

		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building report: %w", err)
	}

	flakyByTest := make(map[string]analytics.FlakyTest, len(flaky))
	for _, f := range flaky {
		flakyByTest[f.TestID] = f
	}

	reports := make(map[string]TestReport, len(summaries))

	for _, s := range summaries {
		entry := TestReport{
			Passes:      s.Passes,
			Failures:    s.Failures,
			Skips:       s.Skips,
			FailureRate: s.FailureRate(),
			History:     historyEntries(histories[s.TestID]),
			Analytics: Analytics{
				TotalRuns: s.TotalRuns,
				Performance: &analytics.Performance{
					AvgDuration: s.AvgDuration,
					MinDuration: s.MinDuration,
					MaxDuration: s.MaxDuration,
				},
			},
		}

		if failure, ok := lastFailures[s.TestID]; ok {
			entry.LastFailure = newLastFailure(failure)
		}

		if f, ok := flakyByTest[s.TestID]; ok {
			entry.Analytics.IsFlaky = true
			entry.Analytics.FlakyDetails = &FlakyDetails{
				FailureRate:   f.FailureRate,
				TotalFailures: f.Failures,
				TotalRuns:     f.TotalRuns,
			}
		}

		reports[s.TestID] = entry
	}

	b.log.WithField("tests", len(reports)).Debug("Report assembled")

	return reports, nil
}

func historyEntries(results []store.Result) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(results))

	for _, r := range results {
		entries = append(entries, HistoryEntry{
			Timestamp:    r.RecordedAt,
			Status:       r.Status,
			Duration:     r.Duration,
			ErrorMessage: r.ErrorMessage,
		})
	}

	return entries
}

func newLastFailure(r store.Result) *LastFailure {
	failure := &LastFailure{
		Timestamp:    r.RecordedAt,
		ErrorMessage: r.ErrorMessage,
	}

	if r.ErrorTraceback != nil {
		failure.Traceback = strings.Split(*r.ErrorTraceback, "\n")
	}

	return failure
}
