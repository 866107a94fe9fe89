package tracker

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/trackoor/pkg/analytics"
	"github.com/ethpandaops/trackoor/pkg/config"
	"github.com/ethpandaops/trackoor/pkg/report"
	"github.com/ethpandaops/trackoor/pkg/store"
)

// Tracker is the explicit handle over the results store and its derived
// views. The host runner opens it once at session start, passes it by
// reference, and closes it at session end. A failed Start aborts the
// session's tracking capability; whether that also fails the suite is
// the host's call.
type Tracker struct {
	log     logrus.FieldLogger
	cfg     *config.TrackerConfig
	store   store.Store
	engine  *analytics.Engine
	builder *report.Builder
}

// New creates a new tracker from configuration.
func New(log logrus.FieldLogger, cfg *config.TrackerConfig) *Tracker {
	t := &Tracker{
		log: log.WithField("component", "tracker"),
		cfg: cfg,
	}

	t.store = store.NewStore(log, &cfg.Database)
	t.engine = analytics.NewEngine(log, t.store)
	t.builder = report.NewBuilder(log, t.store, t.engine, cfg)

	return t
}

// Start opens the store and provisions the schema if absent.
func (t *Tracker) Start(ctx context.Context) error {
	if err := t.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	return nil
}

// Stop closes the store.
func (t *Tracker) Stop() error {
	return t.store.Stop()
}

// Store exposes the raw storage engine.
func (t *Tracker) Store() store.Store {
	return t.store
}

// Engine exposes the aggregation engine.
func (t *Tracker) Engine() *analytics.Engine {
	return t.engine
}

// FlakyTests runs flaky classification with the configured thresholds.
func (t *Tracker) FlakyTests(ctx context.Context) ([]analytics.FlakyTest, error) {
	return t.engine.FlakyTests(
		ctx, t.cfg.Flaky.MinRuns, t.cfg.Flaky.MinFailureRate,
	)
}

// BuildReport assembles the composite report over all known tests.
func (t *Tracker) BuildReport(ctx context.Context) (map[string]report.TestReport, error) {
	return t.builder.Build(ctx)
}

// StartRun records a new suite run and returns the session that reports
// into it.
func (t *Tracker) StartRun(
	ctx context.Context, runnerVersion, platformVersion string,
) (*Session, error) {
	runID, err := t.store.StartRun(ctx, runnerVersion, platformVersion)
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}

	t.log.WithField("run_id", runID).Debug("Run started")

	return &Session{
		tracker: t,
		runID:   runID,
	}, nil
}

// Session scopes result recording to one run. The host invokes Record
// once per completed check; calls are expected to arrive serialized.
type Session struct {
	tracker *Tracker
	runID   int64
}

// RunID returns the run identifier assigned at session start.
func (s *Session) RunID() int64 {
	return s.runID
}

// Record appends one result for the session's run. errorMessage and
// errorTraceback are stored only when non-empty.
func (s *Session) Record(
	ctx context.Context,
	testID string,
	status store.Status,
	duration float64,
	errorMessage, errorTraceback string,
) error {
	result := &store.Result{
		RunID:    s.runID,
		TestID:   testID,
		Status:   status,
		Duration: duration,
	}

	if errorMessage != "" {
		result.ErrorMessage = &errorMessage
	}

	if errorTraceback != "" {
		result.ErrorTraceback = &errorTraceback
	}

	return s.tracker.store.RecordResult(ctx, result)
}

// Close finishes the session. When the snapshot artifact is enabled it
// is written here, from a fresh report over the full history.
func (s *Session) Close(ctx context.Context) error {
	if !s.tracker.cfg.Snapshot.Enabled {
		return nil
	}

	reports, err := s.tracker.BuildReport(ctx)
	if err != nil {
		return fmt.Errorf("building session report: %w", err)
	}

	snap := report.NewSnapshot(reports)

	if err := report.WriteSnapshot(s.tracker.cfg.Snapshot.Path, snap); err != nil {
		return fmt.Errorf("writing session snapshot: %w", err)
	}

	s.tracker.log.WithField("path", s.tracker.cfg.Snapshot.Path).
		WithField("tests", len(snap.Tests)).
		Info("Session snapshot written")

	return nil
}
