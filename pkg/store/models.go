package store

import "time"

// Status is the closed set of result outcomes.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Valid reports whether s is one of the three permitted outcomes.
func (s Status) Valid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Run represents one invocation of the full test suite. Rows are
// append-only: created once at session start, never updated or deleted.
type Run struct {
	RunID           int64     `gorm:"column:run_id;primaryKey;autoIncrement" json:"run_id"`
	StartedAt       time.Time `gorm:"not null" json:"started_at"`
	RunnerVersion   string    `gorm:"not null" json:"runner_version"`
	PlatformVersion string    `gorm:"not null" json:"platform_version"`
}

// TableName overrides the gorm default.
func (Run) TableName() string { return "test_runs" }

// Result represents one recorded outcome of one named check within one
// run. Rows are append-only; every call records a distinct execution,
// even when identical to a previous one.
type Result struct {
	ResultID       int64     `gorm:"column:result_id;primaryKey;autoIncrement" json:"result_id"`
	RunID          int64     `gorm:"not null;index" json:"run_id"`
	TestID         string    `gorm:"not null;index" json:"test_id"`
	Status         Status    `gorm:"type:text;not null" json:"status"`
	Duration       float64   `gorm:"not null" json:"duration"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	ErrorTraceback *string   `json:"error_traceback,omitempty"`
	RecordedAt     time.Time `gorm:"not null;index" json:"recorded_at"`
}

// TableName overrides the gorm default.
func (Result) TableName() string { return "test_results" }

// Summary holds the per-test aggregate computed in a single grouped pass
// over the result log.
type Summary struct {
	TestID      string  `json:"test_id"`
	TotalRuns   int64   `json:"total_runs"`
	Passes      int64   `json:"passes"`
	Failures    int64   `json:"failures"`
	Skips       int64   `json:"skips"`
	AvgDuration float64 `json:"avg_duration"`
	MinDuration float64 `json:"min_duration"`
	MaxDuration float64 `json:"max_duration"`
}

// FailureRate returns failures divided by total recorded results, or 0
// when the test has never been exercised.
func (s Summary) FailureRate() float64 {
	if s.TotalRuns == 0 {
		return 0
	}

	return float64(s.Failures) / float64(s.TotalRuns)
}
