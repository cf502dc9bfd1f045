package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Webhook metrics
	WebhooksReceivedTotal   int64
	WebhooksProcessedTotal  int64
	WebhookProcessingErrors int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Queue metrics
	QueueEnqueuedTotal        int64
	QueueAcceptedTotal        int64
	QueueAcceptConflictsTotal int64
	QueueExpiredTotal         int64

	// Transfer metrics
	TransfersRequestedTotal int64
	TransfersFailedTotal    int64

	// Call metrics
	CallsPlacedTotal int64

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			httpRequestsTotal:    make(map[string]map[int]int64),
			httpRequestDurations: make(map[string][]float64),
			startTime:            time.Now(),
		}
	})
	return instance
}

// RecordWebhookReceived increments the webhooks received counter
func (m *Metrics) RecordWebhookReceived() {
	m.mu.Lock()
	m.WebhooksReceivedTotal++
	m.mu.Unlock()
}

// RecordWebhookProcessed increments the webhooks processed counter
func (m *Metrics) RecordWebhookProcessed() {
	m.mu.Lock()
	m.WebhooksProcessedTotal++
	m.mu.Unlock()
}

// RecordWebhookError increments the webhook processing error counter
func (m *Metrics) RecordWebhookError() {
	m.mu.Lock()
	m.WebhookProcessingErrors++
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

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordEnqueue increments the queue admission counter
func (m *Metrics) RecordEnqueue() {
	m.mu.Lock()
	m.QueueEnqueuedTotal++
	m.mu.Unlock()
}

// RecordAccept increments the successful accept counter
func (m *Metrics) RecordAccept() {
	m.mu.Lock()
	m.QueueAcceptedTotal++
	m.mu.Unlock()
}

// RecordAcceptConflict increments the lost-race counter
func (m *Metrics) RecordAcceptConflict() {
	m.mu.Lock()
	m.QueueAcceptConflictsTotal++
	m.mu.Unlock()
}

// RecordExpiry increments the expired-entry counter
func (m *Metrics) RecordExpiry() {
	m.mu.Lock()
	m.QueueExpiredTotal++
	m.mu.Unlock()
}

// RecordTransferRequested increments the transfer request counter
func (m *Metrics) RecordTransferRequested() {
	m.mu.Lock()
	m.TransfersRequestedTotal++
	m.mu.Unlock()
}

// RecordTransferFailed increments the failed transfer counter
func (m *Metrics) RecordTransferFailed() {
	m.mu.Lock()
	m.TransfersFailedTotal++
	m.mu.Unlock()
}

// RecordCallPlaced increments the outbound call counter
func (m *Metrics) RecordCallPlaced() {
	m.mu.Lock()
	m.CallsPlacedTotal++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("ivr_uptime_seconds", time.Since(m.startTime).Seconds())

		// Webhook metrics
		write("ivr_webhooks_received_total", m.WebhooksReceivedTotal)
		write("ivr_webhooks_processed_total", m.WebhooksProcessedTotal)
		write("ivr_webhook_processing_errors_total", m.WebhookProcessingErrors)

		// Calculate webhooks per second
		uptimeSeconds := time.Since(m.startTime).Seconds()
		if uptimeSeconds > 0 {
			write("ivr_webhooks_per_second", float64(m.WebhooksReceivedTotal)/uptimeSeconds)
		}

		// WebSocket metrics
		write("ivr_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("ivr_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("ivr_websocket_active_connections", m.activeConnections)
		write("ivr_websocket_messages_total", m.WebSocketMessagesTotal)
		write("ivr_websocket_errors_total", m.WebSocketErrorsTotal)

		// Queue metrics
		write("ivr_queue_enqueued_total", m.QueueEnqueuedTotal)
		write("ivr_queue_accepted_total", m.QueueAcceptedTotal)
		write("ivr_queue_accept_conflicts_total", m.QueueAcceptConflictsTotal)
		write("ivr_queue_expired_total", m.QueueExpiredTotal)

		// Transfer metrics
		write("ivr_transfers_requested_total", m.TransfersRequestedTotal)
		write("ivr_transfers_failed_total", m.TransfersFailedTotal)

		// Call metrics
		write("ivr_calls_placed_total", m.CallsPlacedTotal)

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("ivr_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
