package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	return rr.Body.String()
}

func TestHandlerReportsCycles(t *testing.T) {
	m := New()
	m.RecordCycle(1500*time.Millisecond, 2, 5, 4, 17)
	m.RecordCycleError(time.Second)
	m.RecordCommandError()
	m.RecordPublish()
	m.RecordPublish()
	m.RecordNotifierError()
	m.SetESLState("ready")

	body := scrape(t, m)

	for _, want := range []string{
		"rtmetrics_poll_cycles_total 2\n",
		"rtmetrics_poll_errors_total 1\n",
		"rtmetrics_command_errors_total 1\n",
		"rtmetrics_poll_duration_seconds 1.000000\n",
		"rtmetrics_publishes_total 2\n",
		"rtmetrics_notifier_errors_total 1\n",
		"rtmetrics_queues 2\n",
		"rtmetrics_agents 5\n",
		"rtmetrics_agents_online 4\n",
		"rtmetrics_calls_handled 17\n",
		`rtmetrics_esl_connection_info{state="ready"} 1` + "\n",
		"rtmetrics_last_success_timestamp_seconds ",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in output:\n%s", want, body)
		}
	}
}

func TestHandlerOmitsLastSuccessBeforeFirstCycle(t *testing.T) {
	body := scrape(t, New())
	if strings.Contains(body, "rtmetrics_last_success_timestamp_seconds") {
		t.Error("expected no last success timestamp before the first cycle")
	}
	if !strings.Contains(body, `state="disconnected"`) {
		t.Error("expected initial state disconnected")
	}
}

func TestWebSocketConnections(t *testing.T) {
	m := New()
	m.RecordWebSocketConnect()
	m.RecordWebSocketConnect()
	m.RecordWebSocketDisconnect()

	if got := m.GetActiveConnections(); got != 1 {
		t.Errorf("expected 1 active connection, got %d", got)
	}
}

func TestHTTPRequestsSorted(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("/health", 200)
	m.RecordHTTPRequest("/api/snapshot/queues", 404)
	m.RecordHTTPRequest("/api/snapshot/queues", 200)
	m.RecordHTTPRequest("/api/snapshot/queues", 200)

	body := scrape(t, m)

	first := strings.Index(body, `rtmetrics_http_requests_total{endpoint="/api/snapshot/queues",status="200"} 2`)
	second := strings.Index(body, `rtmetrics_http_requests_total{endpoint="/api/snapshot/queues",status="404"} 1`)
	third := strings.Index(body, `rtmetrics_http_requests_total{endpoint="/health",status="200"} 1`)
	if first < 0 || second < 0 || third < 0 {
		t.Fatalf("missing http series:\n%s", body)
	}
	if !(first < second && second < third) {
		t.Errorf("expected series sorted by endpoint and status:\n%s", body)
	}
}

func TestGetIsSingleton(t *testing.T) {
	if Get() != Get() {
		t.Error("expected the same instance")
	}
}
