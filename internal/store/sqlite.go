package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"eventcal/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
  id           TEXT PRIMARY KEY,
  title        TEXT NOT NULL,
  description  TEXT,
  location     TEXT,
  start_at     TEXT NOT NULL,
  end_at       TEXT NOT NULL,
  is_recurring INTEGER NOT NULL CHECK (is_recurring IN (0,1)),
  rrule        TEXT,
  category     TEXT,
  audience     TEXT,
  visibility   TEXT,
  created_at   TEXT NOT NULL,
  updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_at);
`

const eventColumns = `id, title, description, location, start_at, end_at, is_recurring, rrule, category, audience, visibility, created_at, updated_at`

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	sql *sql.DB
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

// Open opens (and creates if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*SQLite, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{sql: db, now: time.Now}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

// List returns every master event ordered by start time, then ID.
func (s *SQLite) List(ctx context.Context) ([]model.MasterEvent, error) {
	rows, err := s.sql.QueryContext(ctx, "SELECT "+eventColumns+" FROM events")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MasterEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Stored offsets may differ, so text order is not time order.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (model.MasterEvent, error) {
	row := s.sql.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MasterEvent{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ev, err
}

func (s *SQLite) Insert(ctx context.Context, ev *model.MasterEvent) error {
	if err := Validate(ev); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := s.now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now

	_, err := s.sql.ExecContext(ctx, `INSERT INTO events(`+eventColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.Title, nullIfEmpty(ev.Description), nullIfEmpty(ev.Location),
		formatTime(ev.Start), formatTime(ev.End), boolToInt(ev.IsRecurring), nullIfEmpty(ev.RRule),
		nullIfEmpty(ev.Category), nullIfEmpty(ev.Audience), nullIfEmpty(ev.Visibility),
		formatTime(ev.CreatedAt), formatTime(ev.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}
	return nil
}

func (s *SQLite) Update(ctx context.Context, ev *model.MasterEvent) error {
	if err := Validate(ev); err != nil {
		return err
	}

	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var created string
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM events WHERE id = ?", ev.ID).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, ev.ID)
	}
	if err != nil {
		return err
	}
	createdAt, err := parseTime(created)
	if err != nil {
		return err
	}

	ev.CreatedAt = createdAt
	ev.UpdatedAt = s.now().UTC()

	_, err = tx.ExecContext(ctx, `UPDATE events SET title = ?, description = ?, location = ?, start_at = ?, end_at = ?,
  is_recurring = ?, rrule = ?, category = ?, audience = ?, visibility = ?, updated_at = ? WHERE id = ?`,
		ev.Title, nullIfEmpty(ev.Description), nullIfEmpty(ev.Location),
		formatTime(ev.Start), formatTime(ev.End), boolToInt(ev.IsRecurring), nullIfEmpty(ev.RRule),
		nullIfEmpty(ev.Category), nullIfEmpty(ev.Audience), nullIfEmpty(ev.Visibility),
		formatTime(ev.UpdatedAt), ev.ID)
	if err != nil {
		return fmt.Errorf("update event %s: %w", ev.ID, err)
	}
	return tx.Commit()
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.sql.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (model.MasterEvent, error) {
	var (
		ev                              model.MasterEvent
		desc, loc, rrule, cat, aud, vis sql.NullString
		start, end, created, updated    string
		recurring                       int
	)
	if err := sc.Scan(&ev.ID, &ev.Title, &desc, &loc, &start, &end, &recurring, &rrule, &cat, &aud, &vis, &created, &updated); err != nil {
		return ev, err
	}
	ev.Description = desc.String
	ev.Location = loc.String
	ev.IsRecurring = recurring == 1
	ev.RRule = rrule.String
	ev.Category = cat.String
	ev.Audience = aud.String
	ev.Visibility = vis.String

	var err error
	for _, f := range []struct {
		dst *time.Time
		src string
	}{{&ev.Start, start}, {&ev.End, end}, {&ev.CreatedAt, created}, {&ev.UpdatedAt, updated}} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return ev, fmt.Errorf("event %s: %w", ev.ID, err)
		}
	}
	return ev, nil
}

// Times keep their UTC offset so wall-clock arithmetic after a reload matches
// what the caller stored.
func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
