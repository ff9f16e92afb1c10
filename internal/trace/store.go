package trace

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const maxRuns = 200

// Store persists trace data to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to a PostgreSQL trace database at connStr.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("trace open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTaskRun inserts a new run and prunes old ones beyond maxRuns.
func (s *Store) CreateTaskRun(id, taskID string) error {
	_, err := s.db.Exec(
		`INSERT INTO task_runs (id, task_id, started_at, status) VALUES ($1, $2, $3, 'running')`,
		id, taskID, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`DELETE FROM task_runs WHERE id NOT IN (SELECT id FROM task_runs ORDER BY started_at DESC LIMIT $1)`,
		maxRuns,
	)
	return err
}

// EndTaskRun sets the run's final fields.
func (s *Store) EndTaskRun(id string, durationMs float64, status, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE task_runs SET ended_at = $1, duration_ms = $2, status = $3, error = $4 WHERE id = $5`,
		time.Now().UTC(), durationMs, status, errMsg, id,
	)
	return err
}

// CreateSpan inserts a span.
func (s *Store) CreateSpan(sp Span) error {
	_, err := s.db.Exec(
		`INSERT INTO spans (id, run_id, name, started_at, duration_ms, batch_count, status, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sp.ID, sp.RunID, sp.Name, sp.StartedAt.UTC(),
		sp.DurationMs, sp.BatchCount, sp.Status, sp.Error,
	)
	return err
}

// ListTaskRuns returns runs ordered newest first, with span counts.
func (s *Store) ListTaskRuns(limit, offset int) ([]TaskRun, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM task_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT r.id, r.task_id, r.started_at, r.ended_at, r.duration_ms, r.status, r.error, COUNT(sp.id) as span_count
		FROM task_runs r
		LEFT JOIN spans sp ON sp.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []TaskRun
	for rows.Next() {
		var r TaskRun
		var endedAt sql.NullTime
		var durationMs sql.NullFloat64
		var errMsg sql.NullString
		if err = rows.Scan(&r.ID, &r.TaskID, &r.StartedAt, &endedAt, &durationMs, &r.Status, &errMsg, &r.SpanCount); err != nil {
			return nil, 0, err
		}
		if endedAt.Valid {
			r.EndedAt = &endedAt.Time
		}
		r.DurationMs = durationMs.Float64
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, total, rows.Err()
}

// GetTaskRun returns a single run with its spans.
func (s *Store) GetTaskRun(id string) (*TaskRun, []Span, error) {
	var r TaskRun
	var endedAt sql.NullTime
	var durationMs sql.NullFloat64
	var errMsg sql.NullString
	err := s.db.QueryRow(
		`SELECT id, task_id, started_at, ended_at, duration_ms, status, error FROM task_runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.TaskID, &r.StartedAt, &endedAt, &durationMs, &r.Status, &errMsg)
	if err != nil {
		return nil, nil, err
	}
	if endedAt.Valid {
		r.EndedAt = &endedAt.Time
	}
	r.DurationMs = durationMs.Float64
	r.Error = errMsg.String

	rows, err := s.db.Query(
		`SELECT id, run_id, name, started_at, duration_ms, batch_count, status, error FROM spans WHERE run_id = $1 ORDER BY started_at ASC`,
		id,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var spans []Span
	for rows.Next() {
		var sp Span
		if err = rows.Scan(&sp.ID, &sp.RunID, &sp.Name, &sp.StartedAt, &sp.DurationMs, &sp.BatchCount, &sp.Status, &sp.Error); err != nil {
			return nil, nil, err
		}
		spans = append(spans, sp)
	}
	return &r, spans, rows.Err()
}
