package store

import (
	"context"
	"fmt"
	"time"
)

// Sample is one raw telemetry reading taken from the robot's reported state.
type Sample struct {
	ID             int64
	At             time.Time
	BatteryPercent int
	BinFull        bool
	Phase          string
	ErrorCode      int
}

// HourlyAggregate is a downsampled telemetry bucket.
type HourlyAggregate struct {
	Hour            time.Time
	BatteryMin      int
	BatteryMax      int
	BatteryAvg      float64
	Samples         int
	CleaningSamples int
}

// InsertSample appends one raw telemetry reading.
func (s *Store) InsertSample(ctx context.Context, sample Sample) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO telemetry_samples (at, battery_percent, bin_full, phase, error_code)
		VALUES (?, ?, ?, ?, ?)
	`, sample.At.UTC().Format(time.RFC3339Nano), sample.BatteryPercent,
		boolToInt(sample.BinFull), sample.Phase, sample.ErrorCode)
	if err != nil {
		return fmt.Errorf("insert telemetry sample: %w", err)
	}
	return nil
}

// ListSamples returns raw samples taken at or after since, newest first.
func (s *Store) ListSamples(ctx context.Context, since time.Time, limit int) ([]*Sample, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, at, battery_percent, bin_full, phase, error_code
		FROM telemetry_samples
		WHERE at >= ?
		ORDER BY at DESC
		LIMIT ?
	`, since.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("list telemetry samples: %w", err)
	}
	defer rows.Close()
	var samples []*Sample
	for rows.Next() {
		var (
			sample  Sample
			at      string
			binFull int
		)
		if err := rows.Scan(&sample.ID, &at, &sample.BatteryPercent, &binFull, &sample.Phase, &sample.ErrorCode); err != nil {
			return nil, fmt.Errorf("scan telemetry sample: %w", err)
		}
		sample.BinFull = binFull != 0
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			sample.At = t
		}
		samples = append(samples, &sample)
	}
	return samples, rows.Err()
}

// ListHourly returns hourly aggregates for buckets at or after since,
// oldest first.
func (s *Store) ListHourly(ctx context.Context, since time.Time) ([]*HourlyAggregate, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT hour, battery_min, battery_max, battery_avg, samples, cleaning_samples
		FROM telemetry_hourly
		WHERE hour >= ?
		ORDER BY hour ASC
	`, since.UTC().Truncate(time.Hour).Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("list hourly telemetry: %w", err)
	}
	defer rows.Close()
	var aggregates []*HourlyAggregate
	for rows.Next() {
		var (
			agg  HourlyAggregate
			hour string
		)
		if err := rows.Scan(&hour, &agg.BatteryMin, &agg.BatteryMax, &agg.BatteryAvg, &agg.Samples, &agg.CleaningSamples); err != nil {
			return nil, fmt.Errorf("scan hourly telemetry: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, hour); err == nil {
			agg.Hour = t
		}
		aggregates = append(aggregates, &agg)
	}
	return aggregates, rows.Err()
}

// RollupHourly downsamples raw samples older than cutoff into hourly
// min/max/avg buckets and deletes the raw rows it consumed. Buckets are
// upserted so re-running over an already rolled-up window is harmless.
func (s *Store) RollupHourly(ctx context.Context, cutoff time.Time) error {
	boundary := cutoff.UTC().Format(time.RFC3339Nano)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rollup: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO telemetry_hourly (hour, battery_min, battery_max, battery_avg, samples, cleaning_samples)
		SELECT strftime('%Y-%m-%dT%H:00:00Z', at) AS bucket,
		       MIN(battery_percent),
		       MAX(battery_percent),
		       AVG(battery_percent),
		       COUNT(1),
		       SUM(CASE WHEN phase = 'run' THEN 1 ELSE 0 END)
		FROM telemetry_samples
		WHERE at < ?
		GROUP BY bucket
		ON CONFLICT(hour) DO UPDATE SET
		       battery_min = MIN(battery_min, excluded.battery_min),
		       battery_max = MAX(battery_max, excluded.battery_max),
		       battery_avg = (battery_avg * samples + excluded.battery_avg * excluded.samples) / (samples + excluded.samples),
		       samples = samples + excluded.samples,
		       cleaning_samples = cleaning_samples + excluded.cleaning_samples
	`, boundary); err != nil {
		return fmt.Errorf("aggregate samples: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM telemetry_samples WHERE at < ?`, boundary); err != nil {
		return fmt.Errorf("prune samples: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rollup: %w", err)
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
