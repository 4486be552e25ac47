// Package storage keeps events and tasks in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"plancal/internal/calendar"
	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// ErrNotFound is returned when a task or event id does not exist.
var ErrNotFound = errors.New("not found")

type Storage struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and migrates it.
// ":memory:" is accepted for throwaway stores.
func Open(dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_events_source ON events(source_id)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			due_date TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT '',
			is_completed INTEGER NOT NULL DEFAULT 0,
			scheduled_sessions INTEGER NOT NULL DEFAULT 0,
			completed_sessions INTEGER NOT NULL DEFAULT 0,
			required_sessions INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// canonical rewrites a timestamp into model.TimestampLayout so that string
// comparison in SQL orders by time.
func canonical(ts string) (string, error) {
	t, err := model.ParseTimestamp(ts)
	if err != nil {
		return "", err
	}
	return model.FormatTimestamp(t), nil
}

const upsertEvent = `INSERT INTO events
	(id, source_id, title, description, location, start_time, end_time, color, event_type)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		source_id = excluded.source_id,
		title = excluded.title,
		description = excluded.description,
		location = excluded.location,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		color = excluded.color,
		event_type = excluded.event_type,
		updated_at = CURRENT_TIMESTAMP`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvents(ctx context.Context, x execer, events []model.Event) error {
	for _, ev := range events {
		if ev.ID == "" {
			return errors.New("event id is empty")
		}
		start, err := canonical(ev.StartTime)
		if err != nil {
			return fmt.Errorf("event %s start: %w", ev.ID, err)
		}
		end, err := canonical(ev.EndTime)
		if err != nil {
			return fmt.Errorf("event %s end: %w", ev.ID, err)
		}
		if _, err := x.ExecContext(ctx, upsertEvent,
			ev.ID, ev.SourceID, ev.Title, ev.Description, ev.Location,
			start, end, ev.Color, string(ev.EventType),
		); err != nil {
			return fmt.Errorf("upsert event %s: %w", ev.ID, err)
		}
	}
	return nil
}

// UpsertEvents inserts or replaces events by id, all or nothing.
func (s *Storage) UpsertEvents(ctx context.Context, events []model.Event) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertEvents(ctx, tx, events)
	})
}

// ReplaceSourceEvents swaps every stored event of sourceID for events.
// The SourceID of each event is forced to sourceID.
func (s *Storage) ReplaceSourceEvents(ctx context.Context, sourceID string, events []model.Event) error {
	if sourceID == "" {
		return errors.New("source id is empty")
	}
	tagged := make([]model.Event, len(events))
	for i, ev := range events {
		ev.SourceID = sourceID
		tagged[i] = ev
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE source_id = ?`, sourceID); err != nil {
			return fmt.Errorf("clear source %s: %w", sourceID, err)
		}
		return insertEvents(ctx, tx, tagged)
	})
	if err == nil {
		appLog.Debug("source events replaced", "source", sourceID, "count", len(events))
	}
	return err
}

// EventsBetween returns events overlapping the days from..to inclusive,
// ordered by start time.
func (s *Storage) EventsBetween(ctx context.Context, from, to calendar.Date) ([]model.Event, error) {
	lo, hi := dayBounds(from, to)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, title, description, location, start_time, end_time, color, event_type
		FROM events
		WHERE start_time < ? AND (end_time > ? OR start_time >= ?)
		ORDER BY start_time, id`, hi, lo, lo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var typ string
		if err := rows.Scan(&ev.ID, &ev.SourceID, &ev.Title, &ev.Description, &ev.Location,
			&ev.StartTime, &ev.EndTime, &ev.Color, &typ); err != nil {
			return nil, err
		}
		ev.EventType = model.EventType(typ)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// UpsertTasks inserts or replaces tasks by id, all or nothing.
func (s *Storage) UpsertTasks(ctx context.Context, tasks []model.Task) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tasks {
			if t.ID == "" {
				return errors.New("task id is empty")
			}
			due, err := canonical(t.DueDate)
			if err != nil {
				return fmt.Errorf("task %s due date: %w", t.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO tasks
				(id, title, description, due_date, priority, is_completed,
				 scheduled_sessions, completed_sessions, required_sessions)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					title = excluded.title,
					description = excluded.description,
					due_date = excluded.due_date,
					priority = excluded.priority,
					is_completed = excluded.is_completed,
					scheduled_sessions = excluded.scheduled_sessions,
					completed_sessions = excluded.completed_sessions,
					required_sessions = excluded.required_sessions,
					updated_at = CURRENT_TIMESTAMP`,
				t.ID, t.Title, t.Description, due, string(t.Priority), t.IsCompleted,
				t.ScheduledSessions, t.CompletedSessions, t.RequiredSessions,
			); err != nil {
				return fmt.Errorf("upsert task %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

const taskColumns = `id, title, description, due_date, priority, is_completed,
	scheduled_sessions, completed_sessions, required_sessions`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (model.Task, error) {
	var t model.Task
	var prio string
	err := sc.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &prio, &t.IsCompleted,
		&t.ScheduledSessions, &t.CompletedSessions, &t.RequiredSessions)
	t.Priority = model.Priority(prio)
	return t, err
}

// TasksBetween returns tasks due on the days from..to inclusive, ordered by
// due date.
func (s *Storage) TasksBetween(ctx context.Context, from, to calendar.Date) ([]model.Task, error) {
	lo, hi := dayBounds(from, to)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE due_date >= ? AND due_date < ? ORDER BY due_date, id`,
		lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Task returns the task with the given id or ErrNotFound.
func (s *Storage) Task(ctx context.Context, id string) (model.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// SetTaskCompleted flips the completion flag of a task.
func (s *Storage) SetTaskCompleted(ctx context.Context, id string, done bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET is_completed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, done, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Storage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// dayBounds turns an inclusive day range into [lo, hi) timestamp strings.
func dayBounds(from, to calendar.Date) (string, string) {
	return from.String() + "T00:00", to.AddDays(1).String() + "T00:00"
}
