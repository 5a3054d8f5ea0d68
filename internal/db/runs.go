package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/climategrid/internal/export"
	"github.com/banshee-data/climategrid/internal/idw"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("db: run not found")

// Run describes one interpolation run.
type Run struct {
	ID              string         `json:"run_id"`
	CreatedAt       time.Time      `json:"created_at"`
	StationsPath    string         `json:"stations_path"`
	StationsCleaned bool           `json:"stations_cleaned"`
	StationCount    int            `json:"station_count"`
	SkippedStations int            `json:"skipped_stations"`
	ValueField      string         `json:"value_field"`
	SRSID           int32          `json:"srs_id"`
	Config          idw.Config     `json:"config"`
	Summary         export.Summary `json:"summary"`
	Duration        time.Duration  `json:"duration"`
}

// Estimate is one stored grid point.
type Estimate struct {
	Index     int
	X, Y      float64
	Value     float64
	Neighbors int
}

// EstimatesOf flattens a result into rows for RecordRun.
func EstimatesOf(r *export.Result) []Estimate {
	out := make([]Estimate, len(r.Values))
	for i, p := range r.Grid.Points {
		out[i] = Estimate{Index: i, X: p.X, Y: p.Y, Value: r.Values[i].Estimate, Neighbors: r.Values[i].NeighborCount}
	}
	return out
}

// nullable maps NaN, which SQLite cannot store, to NULL.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// RecordRun stores run and its estimates in one transaction and returns
// the run id. A new UUID is assigned when run.ID is empty.
func (db *DB) RecordRun(ctx context.Context, run Run, estimates []Estimate) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	c, s := run.Config, run.Summary
	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
			run_id, created_at, stations_path, stations_cleaned, station_count, skipped_stations,
			value_field, srs_id, power, max_distance_m, min_neighbors, max_neighbors, batch_size,
			point_count, fallback_count, mean_estimate, min_estimate, max_estimate, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.StationsPath, run.StationsCleaned,
		run.StationCount, run.SkippedStations, run.ValueField, run.SRSID,
		c.Power, c.MaxDistance, c.MinNeighbors, c.MaxNeighbors, c.BatchSize,
		s.Count, s.Fallback, nullable(s.Mean), nullable(s.Min), nullable(s.Max),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO estimates (run_id, point_idx, x, y, estimate, neighbors) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare estimates: %w", err)
	}
	defer stmt.Close()
	for _, e := range estimates {
		if _, err := stmt.ExecContext(ctx, run.ID, e.Index, e.X, e.Y, nullable(e.Value), e.Neighbors); err != nil {
			return "", fmt.Errorf("insert estimate %d: %w", e.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return run.ID, nil
}

const runColumns = `run_id, created_at, stations_path, stations_cleaned, station_count, skipped_stations,
	value_field, srs_id, power, max_distance_m, min_neighbors, max_neighbors, batch_size,
	point_count, fallback_count, mean_estimate, min_estimate, max_estimate, duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var created string
	var mean, lo, hi sql.NullFloat64
	var durationMs int64
	err := row.Scan(&run.ID, &created, &run.StationsPath, &run.StationsCleaned, &run.StationCount,
		&run.SkippedStations, &run.ValueField, &run.SRSID,
		&run.Config.Power, &run.Config.MaxDistance, &run.Config.MinNeighbors, &run.Config.MaxNeighbors,
		&run.Config.BatchSize, &run.Summary.Count, &run.Summary.Fallback, &mean, &lo, &hi, &durationMs)
	if err != nil {
		return Run{}, err
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Run{}, fmt.Errorf("run %s created_at: %w", run.ID, err)
	}
	run.Summary.Mean = fromNullable(mean)
	run.Summary.Min = fromNullable(lo)
	run.Summary.Max = fromNullable(hi)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return run, nil
}

// Run returns the run with the given id.
func (db *DB) Run(ctx context.Context, runID string) (Run, error) {
	run, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// Runs lists stored runs, newest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunEstimates returns the stored estimates of a run in grid order.
func (db *DB) RunEstimates(ctx context.Context, runID string) ([]Estimate, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT point_idx, x, y, estimate, neighbors FROM estimates WHERE run_id = ? ORDER BY point_idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Estimate
	for rows.Next() {
		var e Estimate
		var v sql.NullFloat64
		if err := rows.Scan(&e.Index, &e.X, &e.Y, &v, &e.Neighbors); err != nil {
			return nil, err
		}
		e.Value = fromNullable(v)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its estimates.
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM estimates WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete estimates: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}
