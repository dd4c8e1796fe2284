package convstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/taskrun/pkg/models"
)

// SQL is a durable Store usable with either modernc.org/sqlite or lib/pq,
// mirroring the dual-backend pattern the Event Store uses. Placeholder
// syntax differs between the two drivers, so callers pick the matching
// dialect via NewSQLite/NewPostgres.
type SQL struct {
	db      *sql.DB
	dialect dialect
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// NewSQLiteStore wraps an existing *sql.DB (opened with modernc.org/sqlite)
// as a Conversation Store, creating its table if necessary.
func NewSQLiteStore(db *sql.DB) (*SQL, error) {
	s := &SQL{db: db, dialect: dialectSQLite}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing *sql.DB (opened with lib/pq) as a
// Conversation Store, creating its table if necessary.
func NewPostgresStore(db *sql.DB) (*SQL, error) {
	s := &SQL{db: db, dialect: dialectPostgres}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQL) migrate() error {
	var stmt string
	switch s.dialect {
	case dialectPostgres:
		stmt = `
			CREATE TABLE IF NOT EXISTS conversation_messages (
				task_id TEXT NOT NULL,
				idx INTEGER NOT NULL,
				role TEXT NOT NULL,
				content TEXT,
				reasoning TEXT,
				tool_calls_json TEXT,
				tool_call_id TEXT,
				tool_name TEXT,
				created_at TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (task_id, idx)
			)`
	default:
		stmt = `
			CREATE TABLE IF NOT EXISTS conversation_messages (
				task_id TEXT NOT NULL,
				idx INTEGER NOT NULL,
				role TEXT NOT NULL,
				content TEXT,
				reasoning TEXT,
				tool_calls_json TEXT,
				tool_call_id TEXT,
				tool_name TEXT,
				created_at TEXT NOT NULL,
				PRIMARY KEY (task_id, idx)
			)`
	}
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("convstore: migrate: %w", err)
	}
	return nil
}

func (s *SQL) ph(n int) string {
	if s.dialect == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// AppendMessage implements Store.
func (s *SQL) AppendMessage(ctx context.Context, taskID string, msg models.Message) (models.Message, error) {
	var nextIdx int
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COALESCE(MAX(idx), -1) + 1 FROM conversation_messages WHERE task_id = %s`, s.ph(1)),
		taskID)
	if err := row.Scan(&nextIdx); err != nil {
		return models.Message{}, fmt.Errorf("convstore: query next index: %w", err)
	}

	msg.TaskID = taskID
	msg.Index = nextIdx
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	toolCallsJSON, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return models.Message{}, fmt.Errorf("convstore: marshal tool calls: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO conversation_messages
		(task_id, idx, role, content, reasoning, tool_calls_json, tool_call_id, tool_name, created_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9))
	_, err = s.db.ExecContext(ctx, query,
		taskID, msg.Index, string(msg.Role), msg.Content, msg.Reasoning,
		string(toolCallsJSON), msg.ToolCallID, msg.ToolName, s.formatTime(msg.CreatedAt))
	if err != nil {
		return models.Message{}, fmt.Errorf("convstore: insert message: %w", err)
	}
	return msg, nil
}

func (s *SQL) formatTime(t time.Time) any {
	if s.dialect == dialectPostgres {
		return t
	}
	return t.Format(time.RFC3339Nano)
}

// GetHistory implements Store.
func (s *SQL) GetHistory(ctx context.Context, taskID string, limit int) ([]models.Message, error) {
	query := fmt.Sprintf(`SELECT task_id, idx, role, content, reasoning, tool_calls_json, tool_call_id, tool_name, created_at
		FROM conversation_messages WHERE task_id = %s ORDER BY idx`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("convstore: get history: %w", err)
	}
	defer rows.Close()

	var all []models.Message
	for rows.Next() {
		msg, err := s.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *SQL) scanMessage(rows *sql.Rows) (models.Message, error) {
	var msg models.Message
	var role, createdAt string
	var toolCallsJSON sql.NullString
	var toolCallID, toolName sql.NullString
	var content, reasoning sql.NullString
	if err := rows.Scan(&msg.TaskID, &msg.Index, &role, &content, &reasoning, &toolCallsJSON, &toolCallID, &toolName, &createdAt); err != nil {
		return msg, fmt.Errorf("convstore: scan message: %w", err)
	}
	msg.Role = models.Role(role)
	msg.Content = content.String
	msg.Reasoning = reasoning.String
	msg.ToolCallID = toolCallID.String
	msg.ToolName = toolName.String
	if toolCallsJSON.Valid && toolCallsJSON.String != "" && toolCallsJSON.String != "null" {
		if err := json.Unmarshal([]byte(toolCallsJSON.String), &msg.ToolCalls); err != nil {
			return msg, fmt.Errorf("convstore: unmarshal tool calls: %w", err)
		}
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err == nil {
		msg.CreatedAt = t
	}
	return msg, nil
}

// ReplaceHistory implements Store.
func (s *SQL) ReplaceHistory(ctx context.Context, taskID string, msgs []models.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("convstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM conversation_messages WHERE task_id = %s`, s.ph(1)), taskID); err != nil {
		return fmt.Errorf("convstore: delete history: %w", err)
	}

	for i, msg := range msgs {
		msg.TaskID = taskID
		msg.Index = i
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		toolCallsJSON, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("convstore: marshal tool calls: %w", err)
		}
		query := fmt.Sprintf(`INSERT INTO conversation_messages
			(task_id, idx, role, content, reasoning, tool_calls_json, tool_call_id, tool_name, created_at)
			VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
			s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9))
		if _, err := tx.ExecContext(ctx, query,
			taskID, msg.Index, string(msg.Role), msg.Content, msg.Reasoning,
			string(toolCallsJSON), msg.ToolCallID, msg.ToolName, s.formatTime(msg.CreatedAt)); err != nil {
			return fmt.Errorf("convstore: insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("convstore: commit: %w", err)
	}
	return nil
}

// DeleteHistory implements Store.
func (s *SQL) DeleteHistory(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM conversation_messages WHERE task_id = %s`, s.ph(1)), taskID)
	if err != nil {
		return fmt.Errorf("convstore: delete history: %w", err)
	}
	return nil
}
