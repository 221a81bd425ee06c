package model

import "time"

// UsageRecord is one row in the append-only `usage_records` table.  A record
// is written after every authenticated request; rows are never updated or
// deleted by the service (retention is an operational concern).
type UsageRecord struct {
	ID         uint64    // usage_records.id
	UserID     uint64    // usage_records.user_id
	Endpoint   string    // usage_records.endpoint ("METHOD /path")
	StatusCode int       // usage_records.status_code
	DurationMs int64     // usage_records.duration_ms
	RecordedAt time.Time // usage_records.recorded_at
}

// EndpointStat is an aggregate over usage_records for one endpoint,
// returned by the admin usage-stats endpoint.
type EndpointStat struct {
	Endpoint      string  `json:"endpoint"`
	Calls         int64   `json:"calls"`
	Errors        int64   `json:"errors"` // responses with status >= 400
	AvgDurationMs float64 `json:"avg_duration_ms"`
}
