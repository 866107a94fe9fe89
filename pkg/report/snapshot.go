package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is the lightweight session-end artifact: per-test counts
// without history or tracebacks, a strict subset of the full report,
// intended for inter-session diffing.
type Snapshot struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Tests       map[string]SnapshotCounts `json:"tests"`
}

// SnapshotCounts holds the per-test counts carried by a snapshot.
type SnapshotCounts struct {
	Passes      int64   `json:"passes"`
	Failures    int64   `json:"failures"`
	Skips       int64   `json:"skips"`
	FailureRate float64 `json:"failure_rate"`
}

// NewSnapshot derives a snapshot from a full report.
func NewSnapshot(reports map[string]TestReport) *Snapshot {
	snap := &Snapshot{
		GeneratedAt: time.Now().UTC(),
		Tests:       make(map[string]SnapshotCounts, len(reports)),
	}

	for testID, r := range reports {
		snap.Tests[testID] = SnapshotCounts{
			Passes:      r.Passes,
			Failures:    r.Failures,
			Skips:       r.Skips,
			FailureRate: r.FailureRate,
		}
	}

	return snap
}

// WriteSnapshot writes the snapshot as indented JSON, creating parent
// directories if missing.
func WriteSnapshot(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot file: %w", err)
	}

	return nil
}

// ReadSnapshot loads a previously written snapshot file.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot file: %w", err)
	}

	return &snap, nil
}
