package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/haasonsaas/taskrun/pkg/models"
)

// SQLite is a durable Store backed by modernc.org/sqlite (pure Go, no cgo).
// It keeps the same single-mutex append-then-publish discipline as Memory;
// the mutex here additionally serializes the durable write so that id/seq
// assignment, the INSERT, and publication are atomic as a unit (B13).
type SQLite struct {
	db *sql.DB

	mu        sync.Mutex
	subs      map[int]chan models.StoredEvent
	nextSubID int
}

// OpenSQLite opens (creating if necessary) a SQLite-backed event store at
// path. Use ":memory:" for an ephemeral but still SQL-driven store (useful
// for exercising the SQL code path in tests without a file).
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventstore: open sqlite: %w", err)
	}
	// The append path is already serialized by our own mutex; a single
	// connection avoids SQLite's own writer-lock contention surfacing as
	// spurious "database is locked" errors under concurrent readers.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, subs: make(map[int]chan models.StoredEvent)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stream_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			event_json TEXT NOT NULL,
			UNIQUE(stream_id, seq)
		);
		CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id, seq);

		CREATE TABLE IF NOT EXISTS projections (
			name TEXT PRIMARY KEY,
			cursor_event_id INTEGER NOT NULL,
			state BLOB
		);
	`)
	if err != nil {
		return fmt.Errorf("eventstore: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Append implements Store.
func (s *SQLite) Append(ctx context.Context, streamID string, events []models.DomainEvent) ([]models.StoredEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("eventstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	var lastSeq uint64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE stream_id = ?`, streamID).Scan(&lastSeq); err != nil {
		return nil, fmt.Errorf("eventstore: query max seq: %w", err)
	}

	now := time.Now()
	stored := make([]models.StoredEvent, 0, len(events))
	for _, e := range events {
		lastSeq++
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("eventstore: marshal event: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (stream_id, seq, created_at, event_json) VALUES (?, ?, ?, ?)`,
			streamID, lastSeq, now.Format(time.RFC3339Nano), payload)
		if err != nil {
			return nil, fmt.Errorf("eventstore: insert event: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("eventstore: last insert id: %w", err)
		}
		stored = append(stored, models.StoredEvent{
			ID:        uint64(id),
			StreamID:  streamID,
			Seq:       lastSeq,
			CreatedAt: now,
			Event:     e,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("eventstore: commit: %w", err)
	}

	for _, se := range stored {
		for _, ch := range s.subs {
			select {
			case ch <- se:
			default:
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- se:
				default:
				}
			}
		}
	}

	return stored, nil
}

func scanEvent(rows interface {
	Scan(dest ...any) error
}) (models.StoredEvent, error) {
	var se models.StoredEvent
	var createdAt, payload string
	if err := rows.Scan(&se.ID, &se.StreamID, &se.Seq, &createdAt, &payload); err != nil {
		return se, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return se, fmt.Errorf("eventstore: parse created_at: %w", err)
	}
	se.CreatedAt = t
	if err := json.Unmarshal([]byte(payload), &se.Event); err != nil {
		return se, fmt.Errorf("eventstore: unmarshal event: %w", err)
	}
	return se, nil
}

// ReadStream implements Store.
func (s *SQLite) ReadStream(ctx context.Context, streamID string, fromSeqInclusive uint64) ([]models.StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stream_id, seq, created_at, event_json FROM events WHERE stream_id = ? AND seq >= ? ORDER BY seq`,
		streamID, fromSeqInclusive)
	if err != nil {
		return nil, fmt.Errorf("eventstore: read stream: %w", err)
	}
	defer rows.Close()

	var out []models.StoredEvent
	for rows.Next() {
		se, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, rows.Err()
}

// ReadAll implements Store.
func (s *SQLite) ReadAll(ctx context.Context, fromIDExclusive uint64) ([]models.StoredEvent, error) {
	return s.GetEventsAfter(ctx, fromIDExclusive, 0)
}

// ReadByID implements Store.
func (s *SQLite) ReadByID(ctx context.Context, id uint64) (models.StoredEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, stream_id, seq, created_at, event_json FROM events WHERE id = ?`, id)
	se, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.StoredEvent{}, fmt.Errorf("eventstore: event %d: %w", id, ErrNotFound)
		}
		return models.StoredEvent{}, err
	}
	return se, nil
}

// GetEventsAfter implements Store.
func (s *SQLite) GetEventsAfter(ctx context.Context, fromIDExclusive uint64, limit int) ([]models.StoredEvent, error) {
	query := `SELECT id, stream_id, seq, created_at, event_json FROM events WHERE id > ? ORDER BY id`
	args := []any{fromIDExclusive}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventstore: get events after: %w", err)
	}
	defer rows.Close()

	var out []models.StoredEvent
	for rows.Next() {
		se, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, rows.Err()
}

// Subscribe implements Store.
func (s *SQLite) Subscribe(_ context.Context) (<-chan models.StoredEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan models.StoredEvent, subscriberBufferSize)
	s.subs[id] = ch

	unsub := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, unsub
}

// GetProjection implements Store.
func (s *SQLite) GetProjection(ctx context.Context, name string, def ProjectionState) (ProjectionState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, cursor_event_id, state FROM projections WHERE name = ?`, name)
	var p ProjectionState
	if err := row.Scan(&p.Name, &p.CursorEventID, &p.State); err != nil {
		if err == sql.ErrNoRows {
			return def, nil
		}
		return ProjectionState{}, fmt.Errorf("eventstore: get projection: %w", err)
	}
	return p, nil
}

// SaveProjection implements Store.
func (s *SQLite) SaveProjection(ctx context.Context, name string, state ProjectionState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projections (name, cursor_event_id, state) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET cursor_event_id = excluded.cursor_event_id, state = excluded.state`,
		name, state.CursorEventID, state.State)
	if err != nil {
		return fmt.Errorf("eventstore: save projection: %w", err)
	}
	return nil
}
