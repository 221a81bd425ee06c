// Package queue defines message payloads exchanged over the message broker.
package queue

// UsageQueueName is the durable queue carrying per-request usage events.
const UsageQueueName = "usage.recorded"

// UsageRecordedEvent is published after each authenticated request.  It
// carries enough for downstream consumers to log, bill or alert without
// querying the primary database.
type UsageRecordedEvent struct {
	UserID     uint64 `json:"user_id"`
	Endpoint   string `json:"endpoint"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	RecordedAt string `json:"recorded_at"`
}
