package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ethpandaops/trackoor/pkg/config"
)

// Store is the single writer of the append-only run and result logs and
// the raw query surface the aggregation layer builds on. All reads are
// pure; no update or delete operation is exposed for recorded rows.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	StartRun(ctx context.Context, runnerVersion, platformVersion string) (int64, error)
	RecordResult(ctx context.Context, result *Result) error

	TestHistory(ctx context.Context, testID string, limit int) ([]Result, error)
	RecentHistories(ctx context.Context, limit int) (map[string][]Result, error)

	Summaries(ctx context.Context) ([]Summary, error)
	Summary(ctx context.Context, testID string) (Summary, error)
	LastFailures(ctx context.Context) (map[string]Result, error)
	LastFailure(ctx context.Context, testID string) (*Result, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new results Store backed by the configured database
// driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and idempotently provisions the
// schema. Safe to call on every process start against the same location:
// existing rows and identifier sequences are left untouched.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		path := s.cfg.SQLite.Path
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("%w: creating database directory: %v", ErrInit, err)
			}
		}

		dialector = sqlite.Open(path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("%w: unsupported database driver: %s", ErrInit, s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("%w: opening results database: %v", ErrInit, err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Run{},
		&Result{},
	); err != nil {
		return fmt.Errorf("%w: migrating results schema: %v", ErrInit, err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Results database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// StartRun inserts one run row with the current timestamp and returns
// the newly assigned run id. Ids are strictly increasing and never
// reused, since run rows are never deleted.
func (s *store) StartRun(
	ctx context.Context, runnerVersion, platformVersion string,
) (int64, error) {
	run := &Run{
		StartedAt:       time.Now().UTC(),
		RunnerVersion:   runnerVersion,
		PlatformVersion: platformVersion,
	}

	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return 0, fmt.Errorf("%w: inserting run: %v", ErrStorage, err)
	}

	return run.RunID, nil
}

// RecordResult appends one result row. The caller sets RunID, TestID,
// Status, Duration and the optional error fields; the store assigns
// ResultID and RecordedAt. Every call appends a new row, even when
// identical to a previous one: each call represents one distinct
// execution.
func (s *store) RecordResult(ctx context.Context, result *Result) error {
	if result.TestID == "" {
		return fmt.Errorf("%w: test id is required", ErrConstraint)
	}

	if !result.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", ErrConstraint, result.Status)
	}

	if result.Duration < 0 {
		return fmt.Errorf("%w: negative duration %f", ErrConstraint, result.Duration)
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&Run{}).
		Where("run_id = ?", result.RunID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("%w: checking run: %v", ErrStorage, err)
	}

	if count == 0 {
		return fmt.Errorf("%w: run %d does not exist", ErrConstraint, result.RunID)
	}

	result.ResultID = 0
	result.RecordedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("%w: inserting result: %v", ErrStorage, err)
	}

	return nil
}

// TestHistory returns at most limit results for a test, newest first by
// recorded time with ties broken by result id. Unknown test ids yield an
// empty slice, not an error.
func (s *store) TestHistory(
	ctx context.Context, testID string, limit int,
) ([]Result, error) {
	q := s.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("recorded_at DESC, result_id DESC")

	if limit > 0 {
		q = q.Limit(limit)
	}

	var results []Result
	if err := q.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("%w: querying test history: %v", ErrStorage, err)
	}

	return results, nil
}

// RecentHistories returns the last limit results for every known test in
// a single windowed query, keyed by test id and ordered newest first.
// Used by the report assembler to avoid one round trip per test.
func (s *store) RecentHistories(
	ctx context.Context, limit int,
) (map[string][]Result, error) {
	var results []Result
	if err := s.db.WithContext(ctx).Raw(`
		SELECT result_id, run_id, test_id, status, duration,
		       error_message, error_traceback, recorded_at
		FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY test_id
				ORDER BY recorded_at DESC, result_id DESC
			) AS row_num
			FROM test_results
		) ranked
		WHERE row_num <= ?
		ORDER BY test_id, recorded_at DESC, result_id DESC`,
		limit,
	).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("%w: querying recent histories: %v", ErrStorage, err)
	}

	histories := make(map[string][]Result, len(results))
	for _, r := range results {
		histories[r.TestID] = append(histories[r.TestID], r)
	}

	return histories, nil
}

// summaryColumns computes counts and duration stats in one grouped pass.
const summaryColumns = `test_id,
	COUNT(*) AS total_runs,
	SUM(CASE WHEN status = 'passed' THEN 1 ELSE 0 END) AS passes,
	SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failures,
	SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END) AS skips,
	AVG(duration) AS avg_duration,
	MIN(duration) AS min_duration,
	MAX(duration) AS max_duration`

// Summaries returns the aggregate for every test that has at least one
// recorded result, in one grouped query over the result log.
func (s *store) Summaries(ctx context.Context) ([]Summary, error) {
	var summaries []Summary
	if err := s.db.WithContext(ctx).
		Model(&Result{}).
		Select(summaryColumns).
		Group("test_id").
		Order("test_id").
		Scan(&summaries).Error; err != nil {
		return nil, fmt.Errorf("%w: querying summaries: %v", ErrStorage, err)
	}

	return summaries, nil
}

// Summary returns the aggregate for one test. A test with no recorded
// results yields a zero summary, not an error.
func (s *store) Summary(ctx context.Context, testID string) (Summary, error) {
	var summaries []Summary
	if err := s.db.WithContext(ctx).
		Model(&Result{}).
		Select(summaryColumns).
		Where("test_id = ?", testID).
		Group("test_id").
		Scan(&summaries).Error; err != nil {
		return Summary{}, fmt.Errorf("%w: querying summary: %v", ErrStorage, err)
	}

	if len(summaries) == 0 {
		return Summary{TestID: testID}, nil
	}

	return summaries[0], nil
}

// LastFailures returns the most recent failed result per test id.
// Result ids follow insertion order, so the max id among failures is the
// newest failure and doubles as the tiebreak on equal timestamps.
func (s *store) LastFailures(ctx context.Context) (map[string]Result, error) {
	var results []Result
	if err := s.db.WithContext(ctx).Raw(`
		SELECT r.* FROM test_results r
		JOIN (
			SELECT MAX(result_id) AS result_id
			FROM test_results
			WHERE status = 'failed'
			GROUP BY test_id
		) latest ON r.result_id = latest.result_id`,
	).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("%w: querying last failures: %v", ErrStorage, err)
	}

	failures := make(map[string]Result, len(results))
	for _, r := range results {
		failures[r.TestID] = r
	}

	return failures, nil
}

// LastFailure returns the most recent failed result for one test, or nil
// if the test has never failed.
func (s *store) LastFailure(
	ctx context.Context, testID string,
) (*Result, error) {
	var results []Result
	if err := s.db.WithContext(ctx).
		Where("test_id = ? AND status = ?", testID, StatusFailed).
		Order("recorded_at DESC, result_id DESC").
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("%w: querying last failure: %v", ErrStorage, err)
	}

	if len(results) == 0 {
		return nil, nil
	}

	return &results[0], nil
}
