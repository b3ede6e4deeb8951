package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Metrics holds all process metrics
type Metrics struct {
	mu sync.RWMutex

	// Poll metrics
	PollCyclesTotal    int64
	PollErrorsTotal    int64
	CommandErrorsTotal int64
	lastCycleDuration  time.Duration
	lastSuccess        time.Time

	// Publish metrics
	PublishesTotal      int64
	PublishErrorsTotal  int64
	NotifierErrorsTotal int64
	lastPublishedQueues int
	lastPublishedAgents int
	lastOnlineAgents    int
	lastCallsHandled    int

	// Switch connection
	eslState string

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	activeConnections            int64

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // endpoint -> status -> count

	startTime time.Time
}

var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates an independent metrics instance
func New() *Metrics {
	return &Metrics{
		httpRequestsTotal: make(map[string]map[int]int64),
		eslState:          "disconnected",
		startTime:         time.Now(),
	}
}

// RecordCycle records a successful poll cycle and the size of its snapshot
func (m *Metrics) RecordCycle(duration time.Duration, queues, agents, online, handled int) {
	m.mu.Lock()
	m.PollCyclesTotal++
	m.lastCycleDuration = duration
	m.lastSuccess = time.Now()
	m.lastPublishedQueues = queues
	m.lastPublishedAgents = agents
	m.lastOnlineAgents = online
	m.lastCallsHandled = handled
	m.mu.Unlock()
}

// RecordCycleError records a failed poll cycle
func (m *Metrics) RecordCycleError(duration time.Duration) {
	m.mu.Lock()
	m.PollCyclesTotal++
	m.PollErrorsTotal++
	m.lastCycleDuration = duration
	m.mu.Unlock()
}

// RecordCommandError increments the failed switch command counter
func (m *Metrics) RecordCommandError() {
	m.mu.Lock()
	m.CommandErrorsTotal++
	m.mu.Unlock()
}

// RecordPublish increments the store publish counter
func (m *Metrics) RecordPublish() {
	m.mu.Lock()
	m.PublishesTotal++
	m.mu.Unlock()
}

// RecordPublishError increments the store publish error counter
func (m *Metrics) RecordPublishError() {
	m.mu.Lock()
	m.PublishErrorsTotal++
	m.mu.Unlock()
}

// RecordNotifierError increments the notifier error counter
func (m *Metrics) RecordNotifierError() {
	m.mu.Lock()
	m.NotifierErrorsTotal++
	m.mu.Unlock()
}

// SetESLState records the switch connection state
func (m *Metrics) SetESLState(state string) {
	m.mu.Lock()
	m.eslState = state
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// LastSuccess returns the time of the last successful cycle
func (m *Metrics) LastSuccess() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSuccess
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		var b strings.Builder
		write := func(name string, value interface{}, labels ...string) {
			b.WriteString(name)
			if len(labels) > 0 {
				b.WriteByte('{')
				for i := 0; i+1 < len(labels); i += 2 {
					if i > 0 {
						b.WriteByte(',')
					}
					b.WriteString(labels[i] + "=\"" + labels[i+1] + "\"")
				}
				b.WriteByte('}')
			}
			b.WriteByte(' ')

			switch v := value.(type) {
			case int:
				b.WriteString(strconv.Itoa(v))
			case int64:
				b.WriteString(strconv.FormatInt(v, 10))
			case float64:
				b.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
			}
			b.WriteByte('\n')
		}

		write("rtmetrics_uptime_seconds", time.Since(m.startTime).Seconds())

		write("rtmetrics_poll_cycles_total", m.PollCyclesTotal)
		write("rtmetrics_poll_errors_total", m.PollErrorsTotal)
		write("rtmetrics_command_errors_total", m.CommandErrorsTotal)
		write("rtmetrics_poll_duration_seconds", m.lastCycleDuration.Seconds())
		if !m.lastSuccess.IsZero() {
			write("rtmetrics_last_success_timestamp_seconds", m.lastSuccess.Unix())
		}

		write("rtmetrics_publishes_total", m.PublishesTotal)
		write("rtmetrics_publish_errors_total", m.PublishErrorsTotal)
		write("rtmetrics_notifier_errors_total", m.NotifierErrorsTotal)
		write("rtmetrics_queues", m.lastPublishedQueues)
		write("rtmetrics_agents", m.lastPublishedAgents)
		write("rtmetrics_agents_online", m.lastOnlineAgents)
		write("rtmetrics_calls_handled", m.lastCallsHandled)

		write("rtmetrics_esl_connection_info", 1, "state", m.eslState)

		write("rtmetrics_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("rtmetrics_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("rtmetrics_websocket_active_connections", m.activeConnections)
		write("rtmetrics_websocket_messages_total", m.WebSocketMessagesTotal)

		endpoints := make([]string, 0, len(m.httpRequestsTotal))
		for endpoint := range m.httpRequestsTotal {
			endpoints = append(endpoints, endpoint)
		}
		sort.Strings(endpoints)
		for _, endpoint := range endpoints {
			statusCodes := m.httpRequestsTotal[endpoint]
			codes := make([]int, 0, len(statusCodes))
			for status := range statusCodes {
				codes = append(codes, status)
			}
			sort.Ints(codes)
			for _, status := range codes {
				write("rtmetrics_http_requests_total", statusCodes[status], "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}

		w.Write([]byte(b.String()))
	}
}
