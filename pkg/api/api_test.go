package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ethpandaops/trackoor/pkg/analytics"
	"github.com/ethpandaops/trackoor/pkg/config"
	"github.com/ethpandaops/trackoor/pkg/report"
	"github.com/ethpandaops/trackoor/pkg/store"
	"github.com/ethpandaops/trackoor/pkg/tracker"
)

func setupTestServer(t *testing.T, apiCfg *config.APIConfig) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Tracker.Database.SQLite.Path = ":memory:"

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	trk := tracker.New(log, &cfg.Tracker)
	require.NoError(t, trk.Start(context.Background()))

	t.Cleanup(func() { _ = trk.Stop() })

	seedResults(t, trk)

	srv := &server{
		log:     log,
		cfg:     apiCfg,
		tracker: trk,
	}

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return ts
}

func seedResults(t *testing.T, trk *tracker.Tracker) {
	t.Helper()

	ctx := context.Background()

	session, err := trk.StartRun(ctx, "runner-1.0", "linux")
	require.NoError(t, err)

	require.NoError(t, session.Record(
		ctx, "test_flaky", store.StatusPassed, 0.1, "", ""))
	require.NoError(t, session.Record(
		ctx, "test_flaky", store.StatusFailed, 0.2, "boom", "frame"))
	require.NoError(t, session.Record(
		ctx, "test_green", store.StatusPassed, 0.3, "", ""))
}

func testAPIConfig() *config.APIConfig {
	return &config.APIConfig{
		Listen:          ":0",
		ShutdownTimeout: config.DefaultAPIShutdownTimeout,
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)

	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

func TestAPI_Health(t *testing.T) {
	ts := setupTestServer(t, testAPIConfig())

	var body map[string]string
	status := getJSON(t, ts.URL+"/api/v1/health", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_Report(t *testing.T) {
	ts := setupTestServer(t, testAPIConfig())

	var reports map[string]report.TestReport
	status := getJSON(t, ts.URL+"/api/v1/report", &reports)

	require.Equal(t, http.StatusOK, status)
	require.Contains(t, reports, "test_flaky")
	require.Contains(t, reports, "test_green")

	assert.True(t, reports["test_flaky"].Analytics.IsFlaky)
	require.NotNil(t, reports["test_flaky"].LastFailure)
	assert.False(t, reports["test_green"].Analytics.IsFlaky)
}

func TestAPI_Tests(t *testing.T) {
	ts := setupTestServer(t, testAPIConfig())

	var summaries []store.Summary
	status := getJSON(t, ts.URL+"/api/v1/tests", &summaries)

	require.Equal(t, http.StatusOK, status)
	require.Len(t, summaries, 2)
}

func TestAPI_SummaryRequiresTestID(t *testing.T) {
	ts := setupTestServer(t, testAPIConfig())

	status := getJSON(t, ts.URL+"/api/v1/summary", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_Summary(t *testing.T) {
	ts := setupTestServer(t, testAPIConfig())

	var body struct {
		Summary     analytics.TestSummary `json:"summary"`
		Performance analytics.Performance `json:"performance"`
	}

	status := getJSON(t, ts.URL+"/api/v1/summary?test_id=test_flaky", &body)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(2), body.Summary.TotalRuns)
	assert.InDelta(t, 0.5, body.Summary.FailureRate, 1e-9)
	assert.InDelta(t, 0.2, body.Performance.MaxDuration, 1e-9)
}

func TestAPI_History(t *testing.T) {
	ts := setupTestServer(t, testAPIConfig())

	var history []store.Result
	status := getJSON(t, ts.URL+"/api/v1/history?test_id=test_flaky&limit=1", &history)

	require.Equal(t, http.StatusOK, status)
	require.Len(t, history, 1)
	assert.Equal(t, store.StatusFailed, history[0].Status)
}

func TestAPI_Flaky(t *testing.T) {
	ts := setupTestServer(t, testAPIConfig())

	var flaky []analytics.FlakyTest
	status := getJSON(t, ts.URL+"/api/v1/flaky", &flaky)

	require.Equal(t, http.StatusOK, status)
	require.Len(t, flaky, 1)
	assert.Equal(t, "test_flaky", flaky[0].TestID)

	// Raising min_runs filters it out.
	flaky = nil
	status = getJSON(t, ts.URL+"/api/v1/flaky?min_runs=10", &flaky)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, flaky)
}

func TestAPI_BasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := testAPIConfig()
	cfg.Auth.Basic = config.BasicAuthConfig{
		Enabled: true,
		Users: []config.BasicAuthUser{
			{Username: "ops", PasswordHash: string(hash)},
		},
	}

	ts := setupTestServer(t, cfg)

	// Health stays public.
	status := getJSON(t, ts.URL+"/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, status)

	// Report requires credentials.
	status = getJSON(t, ts.URL+"/api/v1/report", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/report", nil)
	require.NoError(t, err)
	req.SetBasicAuth("ops", "hunter2")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Wrong password is rejected.
	req.SetBasicAuth("ops", "wrong")

	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp2.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}
