package report

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/meshrender/internal/logging"
)

func TestResultSummary(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewResult("run-1", 4242, 3, start, start.Add(90*time.Second))
	r.SetStartup("changed", "created")

	assert.Equal(t, 90*time.Second, r.Duration)
	assert.Equal(t,
		"RUN run-1 | exit=3 | signaled=false | forwarded=none | hostname=changed | config=created | runtime=90s | pid=4242",
		r.Summary())

	r.ForwardedSignal = "terminated"
	assert.Contains(t, r.Summary(), "forwarded=terminated")
}

func TestMetricsRecording(t *testing.T) {
	m := NewMetrics()

	m.RecordDetection(false, 0)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.hostnameChanges))

	m.RecordDetection(true, 10)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.hostnameChanges))
	assert.Equal(t, float64(10), testutil.ToFloat64(m.artifactsPurged))

	m.RecordReconcile("merged")
	m.RecordReconcile("merged")
	m.RecordReconcile("created")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.configReconciles.WithLabelValues("merged")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.configReconciles.WithLabelValues("created")))

	m.ChildStarted()
	assert.True(t, m.ChildUp())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.childUp))

	m.SignalForwarded()
	m.RecordResult(&Result{ExitCode: 7})
	assert.False(t, m.ChildUp())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.childUp))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.childExitCode))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.signalsForwarded))
}

func TestServerRoutes(t *testing.T) {
	m := NewMetrics()
	m.ChildStarted()
	m.RecordReconcile("created")

	logger := logging.Discard()
	s := NewServer("127.0.0.1:0", m, logger)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, true, health["child_up"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `meshrender_config_reconciles_total{mode="created"} 1`)
	assert.Contains(t, string(body), "meshrender_child_up 1")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/metrics", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
