// Package storage persists drift runs and particle trajectories in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Run describes one simulation run.
type Run struct {
	ID         int64
	ObjectType string
	Seed       uint64
	Start      time.Time
	TimeStep   time.Duration
	Particles  int
}

// Point is one particle position at one step.
type Point struct {
	Step       int
	Time       time.Time
	ParticleID uint32
	Status     string
	Lon, Lat   float64
}

// Store is a SQLite-backed trajectory store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
// ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening trajectory database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	_, _ = db.Exec("PRAGMA synchronous=NORMAL")

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			object_type TEXT NOT NULL,
			seed INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			time_step_ns INTEGER NOT NULL,
			particles INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS points (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			step INTEGER NOT NULL,
			time TEXT NOT NULL,
			particle_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			longitude REAL NOT NULL,
			latitude REAL NOT NULL,
			PRIMARY KEY (run_id, step, particle_id)
		);
		CREATE INDEX IF NOT EXISTS idx_points_particle ON points(run_id, particle_id, step);
	`)
	if err != nil {
		return fmt.Errorf("creating trajectory tables: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts a run and returns its ID.
func (s *Store) CreateRun(ctx context.Context, r Run) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (object_type, seed, start_time, time_step_ns, particles) VALUES (?, ?, ?, ?, ?)`,
		r.ObjectType, int64(r.Seed), r.Start.UTC().Format(time.RFC3339Nano), int64(r.TimeStep), r.Particles)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}
	return id, nil
}

// Runs returns all runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, object_type, seed, start_time, time_step_ns, particles FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			seed, step int64
			start      string
		)
		if err := rows.Scan(&r.ID, &r.ObjectType, &seed, &start, &step, &r.Particles); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Seed = uint64(seed)
		r.TimeStep = time.Duration(step)
		if r.Start, err = time.Parse(time.RFC3339Nano, start); err != nil {
			return nil, fmt.Errorf("run %d start time: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// InsertPoints stores points for a run in one transaction.
func (s *Store) InsertPoints(ctx context.Context, runID int64, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (run_id, step, time, particle_id, status, longitude, latitude) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing point insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, runID, p.Step, p.Time.UTC().Format(time.RFC3339Nano), int64(p.ParticleID), p.Status, p.Lon, p.Lat); err != nil {
			return fmt.Errorf("inserting point (step %d, particle %d): %w", p.Step, p.ParticleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing points: %w", err)
	}
	return nil
}

// Trajectory returns one particle's points ordered by step.
func (s *Store) Trajectory(ctx context.Context, runID int64, particleID uint32) ([]Point, error) {
	return s.queryPoints(ctx,
		`SELECT step, time, particle_id, status, longitude, latitude FROM points
		 WHERE run_id = ? AND particle_id = ? ORDER BY step`,
		runID, int64(particleID))
}

// Snapshot returns all particle points at step ordered by particle.
func (s *Store) Snapshot(ctx context.Context, runID int64, step int) ([]Point, error) {
	return s.queryPoints(ctx,
		`SELECT step, time, particle_id, status, longitude, latitude FROM points
		 WHERE run_id = ? AND step = ? ORDER BY particle_id`,
		runID, step)
}

// StatusCounts returns the number of particles per status at step.
func (s *Store) StatusCounts(ctx context.Context, runID int64, step int) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM points WHERE run_id = ? AND step = ? GROUP BY status`, runID, step)
	if err != nil {
		return nil, fmt.Errorf("querying status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *Store) queryPoints(ctx context.Context, query string, args ...any) ([]Point, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var (
			p  Point
			ts string
			id int64
		)
		if err := rows.Scan(&p.Step, &ts, &id, &p.Status, &p.Lon, &p.Lat); err != nil {
			return nil, fmt.Errorf("scanning point: %w", err)
		}
		p.ParticleID = uint32(id)
		if p.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("point time: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
