package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/reviewlens/reviewlens/internal/model"
)

// UsageRepo appends per-request usage rows and aggregates them for the
// admin stats endpoint.  Rows are append-only; nothing here updates or
// deletes them.
type UsageRepo struct{ DB *sql.DB }

func NewUsageRepo(db *sql.DB) *UsageRepo { return &UsageRepo{DB: db} }

// Insert appends one usage record.
func (r *UsageRepo) Insert(ctx context.Context, rec model.UsageRecord) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO usage_records (user_id, endpoint, status_code, duration_ms, recorded_at) VALUES (?,?,?,?,?)",
		rec.UserID, rec.Endpoint, rec.StatusCode, rec.DurationMs, rec.RecordedAt.UTC())
	return mapErr(err)
}

// StatsSince aggregates usage per endpoint for records at or after the
// given instant, most-called endpoints first.
func (r *UsageRepo) StatsSince(ctx context.Context, since time.Time) ([]model.EndpointStat, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT endpoint, COUNT(*), COALESCE(SUM(status_code >= 400),0), COALESCE(AVG(duration_ms),0)
		 FROM usage_records WHERE recorded_at >= ?
		 GROUP BY endpoint ORDER BY COUNT(*) DESC`,
		since.UTC())
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var stats []model.EndpointStat
	for rows.Next() {
		var s model.EndpointStat
		var avg sql.NullFloat64
		if err := rows.Scan(&s.Endpoint, &s.Calls, &s.Errors, &avg); err != nil {
			return nil, mapErr(err)
		}
		s.AvgDurationMs = avg.Float64
		stats = append(stats, s)
	}
	return stats, mapErr(rows.Err())
}
