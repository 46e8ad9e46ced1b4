package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lucasjlepore/ridestats"
	"github.com/lucasjlepore/ridestats/ledger"
)

type pgTx struct {
	tx *sql.Tx
}

const bucketColumns = `user_id, period_type, period_id, distance, moving_time, elapsed_time,
	elevation_gain, total_work, activity_count, max_distance, max_moving_time,
	max_elevation_gain, max_power, max_speed, last_updated`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBucket(row rowScanner) (ledger.Bucket, error) {
	var (
		b          ledger.Bucket
		periodType string
	)
	err := row.Scan(
		&b.UserID, &periodType, &b.Key.ID,
		&b.Distance, &b.MovingTime, &b.ElapsedTime,
		&b.ElevationGain, &b.TotalWork, &b.ActivityCount,
		&b.MaxDistance, &b.MaxMovingTime, &b.MaxElevationGain,
		&b.MaxPower, &b.MaxSpeed, &b.LastUpdated,
	)
	b.Key.Type = ledger.PeriodType(periodType)
	return b, err
}

func (t *pgTx) Bucket(ctx context.Context, userID int64, key ledger.PeriodKey) (ledger.Bucket, bool, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+bucketColumns+` FROM historical_stats
		WHERE user_id = $1 AND period_type = $2 AND period_id = $3`,
		userID, string(key.Type), key.ID,
	)
	b, err := scanBucket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Bucket{}, false, nil
	}
	if err != nil {
		return ledger.Bucket{}, false, fmt.Errorf("get bucket %s: %w", key, err)
	}
	return b, true, nil
}

func (t *pgTx) Buckets(ctx context.Context, userID int64) ([]ledger.Bucket, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+bucketColumns+` FROM historical_stats WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	var out []ledger.Bucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *pgTx) PutBucket(ctx context.Context, b ledger.Bucket) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO historical_stats (`+bucketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, period_type, period_id) DO UPDATE SET
			distance = EXCLUDED.distance,
			moving_time = EXCLUDED.moving_time,
			elapsed_time = EXCLUDED.elapsed_time,
			elevation_gain = EXCLUDED.elevation_gain,
			total_work = EXCLUDED.total_work,
			activity_count = EXCLUDED.activity_count,
			max_distance = EXCLUDED.max_distance,
			max_moving_time = EXCLUDED.max_moving_time,
			max_elevation_gain = EXCLUDED.max_elevation_gain,
			max_power = EXCLUDED.max_power,
			max_speed = EXCLUDED.max_speed,
			last_updated = EXCLUDED.last_updated`,
		b.UserID, string(b.Key.Type), b.Key.ID,
		b.Distance, b.MovingTime, b.ElapsedTime,
		b.ElevationGain, b.TotalWork, b.ActivityCount,
		b.MaxDistance, b.MaxMovingTime, b.MaxElevationGain,
		b.MaxPower, b.MaxSpeed, b.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upsert bucket %s: %w", b.Key, err)
	}
	return nil
}

func (t *pgTx) DeleteBuckets(ctx context.Context, userID int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM historical_stats WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete buckets: %w", err)
	}
	return nil
}

const activityColumns = `activity_id, owner_id, name, activity_type, date, distance,
	active_time, elapsed_time, elevation_gain, total_work, max_power,
	average_power, data, data_key, laps_data, last_modified`

func scanActivity(row rowScanner) (ledger.Activity, error) {
	var (
		a            ledger.Activity
		date         sql.NullTime
		elapsed      sql.NullFloat64
		totalWork    sql.NullInt64
		maxPower     sql.NullInt64
		averagePower sql.NullInt64
	)
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.Name, &a.Type, &date, &a.Distance,
		&a.ActiveTime, &elapsed, &a.ElevationGain, &totalWork, &maxPower,
		&averagePower, &a.Data, &a.DataKey, &a.LapsData, &a.LastModified,
	)
	if err != nil {
		return ledger.Activity{}, err
	}
	if date.Valid {
		a.Date = date.Time.UTC()
	}
	if elapsed.Valid {
		a.ElapsedTime = &elapsed.Float64
	}
	if totalWork.Valid {
		a.TotalWork = &totalWork.Int64
	}
	a.MaxPower = intPtr(maxPower)
	a.AveragePower = intPtr(averagePower)
	return a, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func (t *pgTx) Activities(ctx context.Context, userID int64) ([]ledger.Activity, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities
		WHERE owner_id = $1 ORDER BY date, activity_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []ledger.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) Activity(ctx context.Context, userID int64, activityID string) (ledger.Activity, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities
		WHERE owner_id = $1 AND activity_id = $2`,
		userID, activityID,
	)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Activity{}, fmt.Errorf("activity %s: %w", activityID, ledger.ErrNotFound)
	}
	if err != nil {
		return ledger.Activity{}, fmt.Errorf("get activity %s: %w", activityID, err)
	}
	return a, nil
}

func (t *pgTx) SaveActivity(ctx context.Context, a ledger.Activity) error {
	var date sql.NullTime
	if !a.Date.IsZero() {
		date = sql.NullTime{Time: a.Date.UTC(), Valid: true}
	}
	modified := a.LastModified
	if modified.IsZero() {
		modified = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO activities (`+activityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (activity_id) DO UPDATE SET
			name = EXCLUDED.name,
			activity_type = EXCLUDED.activity_type,
			date = EXCLUDED.date,
			distance = EXCLUDED.distance,
			active_time = EXCLUDED.active_time,
			elapsed_time = EXCLUDED.elapsed_time,
			elevation_gain = EXCLUDED.elevation_gain,
			total_work = EXCLUDED.total_work,
			max_power = EXCLUDED.max_power,
			average_power = EXCLUDED.average_power,
			data = EXCLUDED.data,
			data_key = EXCLUDED.data_key,
			laps_data = EXCLUDED.laps_data,
			last_modified = EXCLUDED.last_modified
		WHERE activities.owner_id = EXCLUDED.owner_id`,
		a.ID, a.OwnerID, a.Name, a.Type, date, a.Distance,
		a.ActiveTime, a.ElapsedTime, a.ElevationGain, a.TotalWork, a.MaxPower,
		a.AveragePower, a.Data, a.DataKey, a.LapsData, modified,
	)
	if err != nil {
		return fmt.Errorf("save activity %s: %w", a.ID, err)
	}
	return nil
}

func (t *pgTx) DeleteActivity(ctx context.Context, userID int64, activityID string) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM activities WHERE owner_id = $1 AND activity_id = $2`,
		userID, activityID,
	)
	if err != nil {
		return fmt.Errorf("delete activity %s: %w", activityID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete activity %s: %w", activityID, err)
	}
	if n == 0 {
		return fmt.Errorf("activity %s: %w", activityID, ledger.ErrNotFound)
	}
	return nil
}

func (t *pgTx) Curves(ctx context.Context, userID int64) (ridestats.CurveSet, error) {
	var raw []byte
	err := t.tx.QueryRowContext(ctx,
		`SELECT curves FROM user_power_curves WHERE user_id = $1`,
		userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ridestats.CurveSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get curves: %w", err)
	}
	set := ridestats.CurveSet{}
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode curves: %w", err)
	}
	return set, nil
}

func (t *pgTx) PutCurves(ctx context.Context, userID int64, set ridestats.CurveSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode curves: %w", err)
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO user_power_curves (user_id, curves, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET curves = EXCLUDED.curves, updated_at = now()`,
		userID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("store curves: %w", err)
	}
	return nil
}
