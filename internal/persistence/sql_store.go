package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/petrijr/seqflow/pkg/api"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name   string
	schema []string
	// positional turns "?" placeholders into "$1", "$2", ...
	positional bool
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			state TEXT NOT NULL,
			params TEXT NOT NULL DEFAULT '',
			value_count INTEGER NOT NULL DEFAULT 0,
			last_value TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_task ON runs(task, started_at)`,
		`CREATE TABLE IF NOT EXISTS worker_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			worker_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			task TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_worker_events_worker_id ON worker_events(worker_id, id)`,
	},
}

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			state TEXT NOT NULL,
			params TEXT NOT NULL DEFAULT '',
			value_count BIGINT NOT NULL DEFAULT 0,
			last_value TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			started_at BIGINT NOT NULL,
			finished_at BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_task ON runs(task, started_at)`,
		`CREATE TABLE IF NOT EXISTS worker_events (
			id BIGSERIAL PRIMARY KEY,
			worker_id TEXT NOT NULL,
			at BIGINT NOT NULL,
			type TEXT NOT NULL,
			task TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_worker_events_worker_id ON worker_events(worker_id, id)`,
	},
	positional: true,
}

// SQLStore is a Store backed by database/sql.
//
// It expects an *sql.DB opened with a matching driver. The caller is
// responsible for importing it, e.g.:
//
//	import _ "modernc.org/sqlite"
//	import _ "github.com/jackc/pgx/v5/stdlib"
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

var _ Store = (*SQLStore)(nil)

// NewSQLiteStore initializes the schema in a SQLite database and returns
// a store using it.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	return newSQLStore(ctx, db, sqliteDialect)
}

// NewPostgresStore initializes the schema in a PostgreSQL database and
// returns a store using it.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	return newSQLStore(ctx, db, postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s schema: %w", d.name, err)
		}
	}
	return s, nil
}

func (s *SQLStore) q(query string) string {
	if !s.dialect.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) SaveRun(ctx context.Context, run *api.Run) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO runs (id, task, state, params, value_count, last_value, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID,
		run.Task,
		run.State.String(),
		run.Params,
		run.Values,
		run.LastValue,
		run.Err,
		unixNano(run.StartedAt),
		unixNano(run.FinishedAt),
	)
	return err
}

func (s *SQLStore) UpdateRun(ctx context.Context, run *api.Run) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE runs
		SET task = ?, state = ?, params = ?, value_count = ?, last_value = ?, error = ?, started_at = ?, finished_at = ?
		WHERE id = ?`),
		run.Task,
		run.State.String(),
		run.Params,
		run.Values,
		run.LastValue,
		run.Err,
		unixNano(run.StartedAt),
		unixNano(run.FinishedAt),
		run.ID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

const runColumns = `id, task, state, params, value_count, last_value, error, started_at, finished_at`

func (s *SQLStore) GetRun(ctx context.Context, id string) (*api.Run, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

func (s *SQLStore) ListRuns(ctx context.Context, opts api.RunListOptions) ([]*api.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var clauses []string
	var args []any

	if opts.Task != "" {
		clauses = append(clauses, "task = ?")
		args = append(args, opts.Task)
	}
	if opts.OnlyState != nil {
		clauses = append(clauses, "state = ?")
		args = append(args, opts.OnlyState.String())
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*api.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*api.Run, error) {
	var (
		run        api.Run
		state      string
		startedAt  int64
		finishedAt int64
	)
	if err := sc.Scan(&run.ID, &run.Task, &state, &run.Params, &run.Values,
		&run.LastValue, &run.Err, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	st, ok := api.ParseWorkerState(state)
	if !ok {
		return nil, fmt.Errorf("run %s: unknown state %q", run.ID, state)
	}
	run.State = st
	run.StartedAt = fromUnixNano(startedAt)
	run.FinishedAt = fromUnixNano(finishedAt)
	return &run, nil
}

func (s *SQLStore) AppendEvent(ctx context.Context, ev api.WorkerEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO worker_events (worker_id, at, type, task, seq, detail)
		VALUES (?, ?, ?, ?, ?, ?)`),
		ev.WorkerID,
		at.UnixNano(),
		string(ev.Type),
		ev.Task,
		ev.Seq,
		ev.Detail,
	)
	return err
}

func (s *SQLStore) ListEvents(ctx context.Context, workerID string) ([]api.WorkerEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT worker_id, at, type, task, seq, detail
		FROM worker_events
		WHERE worker_id = ?
		ORDER BY id ASC`), workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.WorkerEvent
	for rows.Next() {
		var (
			ev  api.WorkerEvent
			atN int64
			typ string
		)
		if err := rows.Scan(&ev.WorkerID, &atN, &typ, &ev.Task, &ev.Seq, &ev.Detail); err != nil {
			return nil, err
		}
		ev.At = time.Unix(0, atN)
		ev.Type = api.EventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
