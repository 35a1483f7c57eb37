package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"taskmap-backend/core"
)

const taskColumns = `id, title, description, reward::text, location, category, deadline, contact, poster_email, latitude, longitude, image_url, poster_wallet, worker_wallet, status, submission_url, submission_notes, review_notes, payout_tx, created_at`

// PGStore persists task rows in Postgres. Guarded UPDATE ... RETURNING is
// the compare-and-swap: the WHERE clause carries the guard, so a lost race
// reads back as zero rows, not an error.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects, initializes schema, and optionally seeds fixtures.
func NewPGStore(ctx context.Context, dsn string, seed bool) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if seed {
		if err := s.seedFixtures(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS tasks (
  id BIGSERIAL PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT,
  reward NUMERIC(38,18) NOT NULL CHECK (reward > 0),
  location TEXT,
  category TEXT,
  deadline TIMESTAMPTZ,
  contact TEXT,
  poster_email TEXT,
  latitude DOUBLE PRECISION,
  longitude DOUBLE PRECISION,
  image_url TEXT,
  poster_wallet TEXT NOT NULL,
  worker_wallet TEXT,
  status TEXT NOT NULL DEFAULT 'open',
  submission_url TEXT,
  submission_notes TEXT,
  review_notes TEXT,
  payout_tx TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS tasks_status_idx ON tasks (status);
CREATE INDEX IF NOT EXISTS tasks_created_at_idx ON tasks (created_at DESC);
`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Insert creates a task with status open and no worker.
func (s *PGStore) Insert(ctx context.Context, fields NewTask) (core.Task, error) {
	if err := validateNewTask(fields); err != nil {
		return core.Task{}, err
	}

	row := s.pool.QueryRow(ctx, `
INSERT INTO tasks (title, description, reward, location, category, deadline, contact, poster_email, latitude, longitude, image_url, poster_wallet, status)
VALUES ($1,$2,$3::numeric,$4,$5,$6,$7,$8,$9,$10,$11,$12,'open')
RETURNING `+taskColumns,
		fields.Title, fields.Description, fields.Reward, fields.Location, fields.Category,
		fields.Deadline, fields.Contact, fields.PosterEmail, fields.Latitude, fields.Longitude,
		fields.ImageURL, core.NormalizeWallet(fields.PosterWallet))

	task, err := scanTaskRow(row)
	if err != nil {
		return core.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// Get returns a task by id.
func (s *PGStore) Get(ctx context.Context, id int64) (core.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)
	task, err := scanTaskRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Task{}, ErrTaskNotFound
		}
		return core.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// ConditionalUpdate applies patch only where the row still satisfies guard.
// The guard rides in the WHERE clause so the check and the write are one
// statement; concurrent updates serialize at the row and losers see
// ErrNoMatch.
func (s *PGStore) ConditionalUpdate(ctx context.Context, id int64, guard TaskGuard, patch TaskPatch) (core.Task, error) {
	set := make([]string, 0, 6)
	args := []interface{}{id, guard.Status}
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.WorkerWallet != nil {
		add("worker_wallet", core.NormalizeWallet(*patch.WorkerWallet))
	}
	if patch.SubmissionURL != nil {
		add("submission_url", *patch.SubmissionURL)
	}
	if patch.SubmissionNotes != nil {
		add("submission_notes", *patch.SubmissionNotes)
	}
	if patch.ReviewNotes != nil {
		add("review_notes", *patch.ReviewNotes)
	}
	if patch.PayoutTx != nil {
		add("payout_tx", *patch.PayoutTx)
	}

	where := `id = $1 AND status = $2`
	if guard.WorkerWallet != nil {
		args = append(args, core.NormalizeWallet(*guard.WorkerWallet))
		where += fmt.Sprintf(` AND lower(coalesce(worker_wallet, '')) = $%d`, len(args))
	}

	// An empty patch still runs the guard: callers get the same
	// match/no-match verdict whether or not anything changes.
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + where
	if len(set) > 0 {
		query = `UPDATE tasks SET ` + strings.Join(set, ", ") + ` WHERE ` + where + ` RETURNING ` + taskColumns
	}
	row := s.pool.QueryRow(ctx, query, args...)
	task, err := scanTaskRow(row)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return core.Task{}, fmt.Errorf("conditional update: %w", err)
	}

	// Distinguish a lost race from a missing row.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id=$1)`, id).Scan(&exists); err != nil {
		return core.Task{}, fmt.Errorf("conditional update: %w", err)
	}
	if !exists {
		return core.Task{}, ErrTaskNotFound
	}
	return core.Task{}, ErrNoMatch
}

// List returns tasks not in the excluded status set, newest first.
func (s *PGStore) List(ctx context.Context, excludeStatuses []string) ([]core.Task, error) {
	if excludeStatuses == nil {
		excludeStatuses = []string{}
	}
	rows, err := s.pool.Query(ctx, `
SELECT `+taskColumns+`
FROM tasks
WHERE status <> ALL($1)
ORDER BY created_at DESC, id DESC
`, excludeStatuses)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []core.Task
	for rows.Next() {
		task, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *PGStore) Close() { s.pool.Close() }

// scanTaskRow scans a task from a database row.
func scanTaskRow(scanner interface {
	Scan(dest ...interface{}) error
}) (core.Task, error) {
	var t core.Task
	var description, location, category, contact, posterEmail sql.NullString
	var imageURL, workerWallet, submissionURL, submissionNotes, reviewNotes, payoutTx sql.NullString
	var deadline sql.NullTime
	var latitude, longitude sql.NullFloat64

	if err := scanner.Scan(
		&t.ID, &t.Title, &description, &t.Reward, &location, &category, &deadline,
		&contact, &posterEmail, &latitude, &longitude, &imageURL, &t.PosterWallet,
		&workerWallet, &t.Status, &submissionURL, &submissionNotes, &reviewNotes,
		&payoutTx, &t.CreatedAt,
	); err != nil {
		return core.Task{}, err
	}

	t.Description = description.String
	t.Location = location.String
	t.Category = category.String
	t.Contact = contact.String
	t.PosterEmail = posterEmail.String
	t.ImageURL = imageURL.String
	t.WorkerWallet = workerWallet.String
	t.SubmissionURL = submissionURL.String
	t.SubmissionNotes = submissionNotes.String
	t.ReviewNotes = reviewNotes.String
	t.PayoutTx = payoutTx.String
	if deadline.Valid {
		d := deadline.Time
		t.Deadline = &d
	}
	if latitude.Valid {
		v := latitude.Float64
		t.Latitude = &v
	}
	if longitude.Valid {
		v := longitude.Float64
		t.Longitude = &v
	}
	// NUMERIC comes back with the full 18-digit fraction; trim it.
	if strings.Contains(t.Reward, ".") {
		t.Reward = strings.TrimSuffix(strings.TrimRight(t.Reward, "0"), ".")
	}
	return t, nil
}
