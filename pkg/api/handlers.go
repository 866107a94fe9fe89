package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethpandaops/trackoor/pkg/config"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReport returns the full composite report keyed by test id.
func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	reports, err := s.tracker.BuildReport(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to build report")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"building report"})

		return
	}

	writeJSON(w, http.StatusOK, reports)
}

// handleTests returns the per-test aggregates for all known tests.
func (s *server) handleTests(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.tracker.Engine().Summaries(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to list summaries")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing tests"})

		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

// handleSummary returns counts, failure rate, last failure and duration
// stats for one test, selected by the test_id query parameter. Unknown
// tests yield a zero summary, not a 404.
func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	testID := r.URL.Query().Get("test_id")
	if testID == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"test_id query parameter is required"})

		return
	}

	summary, err := s.tracker.Engine().Summarize(r.Context(), testID)
	if err != nil {
		s.log.WithError(err).Error("Failed to summarize test")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"summarizing test"})

		return
	}

	perf, err := s.tracker.Engine().PerformanceStats(r.Context(), testID)
	if err != nil {
		s.log.WithError(err).Error("Failed to fetch performance stats")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"fetching performance stats"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":     summary,
		"performance": perf,
	})
}

// handleHistory returns the recent results of one test, newest first.
func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	testID := r.URL.Query().Get("test_id")
	if testID == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"test_id query parameter is required"})

		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"limit must be a positive integer"})

			return
		}

		limit = parsed
	}

	history, err := s.tracker.Store().TestHistory(r.Context(), testID, limit)
	if err != nil {
		s.log.WithError(err).Error("Failed to fetch test history")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"fetching test history"})

		return
	}

	writeJSON(w, http.StatusOK, history)
}

// handleFlaky returns flaky tests sorted by failure rate descending.
// min_runs and min_failure_rate default to the configured thresholds.
func (s *server) handleFlaky(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("min_runs") == "" && q.Get("min_failure_rate") == "" {
		flaky, err := s.tracker.FlakyTests(r.Context())
		if err != nil {
			s.log.WithError(err).Error("Failed to detect flaky tests")
			writeJSON(w, http.StatusInternalServerError,
				errorResponse{"detecting flaky tests"})

			return
		}

		writeJSON(w, http.StatusOK, flaky)

		return
	}

	minRuns := config.DefaultFlakyMinRuns
	if v := q.Get("min_runs"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"min_runs must be a positive integer"})

			return
		}

		minRuns = parsed
	}

	minRate := config.DefaultFlakyMinFailureRate
	if v := q.Get("min_failure_rate"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"min_failure_rate must be between 0 and 1"})

			return
		}

		minRate = parsed
	}

	flaky, err := s.tracker.Engine().FlakyTests(r.Context(), minRuns, minRate)
	if err != nil {
		s.log.WithError(err).Error("Failed to detect flaky tests")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"detecting flaky tests"})

		return
	}

	writeJSON(w, http.StatusOK, flaky)
}
