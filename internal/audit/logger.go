package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/taskrun/internal/observability"
	"github.com/haasonsaas/taskrun/pkg/models"
)

// Logger writes AuditEntry records to a configured sink (stdout, stderr, or
// a file) through an async buffered writer, and keeps a bounded in-memory
// index so the Conversation Manager can query completions by tool call id
// without standing up a separate store.
//
// Grounded on haasonsaas-nexus/internal/audit/logger.go's async
// buffer-channel + background writeLoop shape, narrowed from that file's
// general event taxonomy down to the spec's two AuditEntryType variants.
type Logger struct {
	config  Config
	output  io.WriteCloser
	slogger *slog.Logger
	buffer  chan models.AuditEntry
	wg      sync.WaitGroup
	done    chan struct{}

	mu      sync.RWMutex
	nextID  uint64
	byTool  map[string][]models.StoredAuditEntry // toolCallID -> entries, request then completion
	byTask  map[string][]models.StoredAuditEntry
}

// NewLogger creates a new audit logger with the given configuration.
func NewLogger(config Config) (*Logger, error) {
	l := &Logger{
		config: config,
		byTool: make(map[string][]models.StoredAuditEntry),
		byTask: make(map[string][]models.StoredAuditEntry),
	}
	if !config.Enabled {
		return l, nil
	}

	if config.BufferSize == 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 5 * time.Second
	}
	l.config = config

	var output io.WriteCloser
	switch {
	case config.Output == "stdout" || config.Output == "":
		output = os.Stdout
	case config.Output == "stderr":
		output = os.Stderr
	case strings.HasPrefix(config.Output, "file:"):
		path := strings.TrimPrefix(config.Output, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("audit: open log file: %w", err)
		}
		output = f
	default:
		return nil, fmt.Errorf("audit: unsupported output: %s", config.Output)
	}
	l.output = output
	l.buffer = make(chan models.AuditEntry, config.BufferSize)
	l.done = make(chan struct{})

	var handler slog.Handler
	if config.Format == FormatText {
		handler = slog.NewTextHandler(output, nil)
	} else {
		handler = slog.NewJSONHandler(output, nil)
	}
	l.slogger = slog.New(handler).With("component", "audit")

	l.wg.Add(1)
	go l.writeLoop()

	return l, nil
}

// Close flushes remaining entries and closes the logger's sink.
func (l *Logger) Close() error {
	if !l.config.Enabled {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	if l.output != os.Stdout && l.output != os.Stderr {
		return l.output.Close()
	}
	return nil
}

// LogToolCallRequested records a ToolCallRequested entry (§4.4).
func (l *Logger) LogToolCallRequested(ctx context.Context, taskID, toolCallID, toolName string, input json.RawMessage) {
	e := models.AuditEntry{
		Type:       models.AuditToolCallRequested,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		TaskID:     taskID,
		Timestamp:  time.Now(),
	}
	if l.config.IncludeToolInput {
		e.Input = input
	}
	l.record(ctx, e)
}

// LogToolCallCompleted records a ToolCallCompleted entry (§4.4).
func (l *Logger) LogToolCallCompleted(ctx context.Context, taskID, toolCallID, toolName, output string, isError bool, duration time.Duration) {
	e := models.AuditEntry{
		Type:       models.AuditToolCallCompleted,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		TaskID:     taskID,
		Timestamp:  time.Now(),
		IsError:    isError,
		DurationMS: duration.Milliseconds(),
	}
	if l.config.IncludeToolOutput {
		e.Output = output
	}
	l.record(ctx, e)
}

func (l *Logger) record(ctx context.Context, e models.AuditEntry) {
	l.mu.Lock()
	l.nextID++
	stored := models.StoredAuditEntry{ID: l.nextID, Entry: e}
	l.byTool[e.ToolCallID] = append(l.byTool[e.ToolCallID], stored)
	l.byTask[e.TaskID] = append(l.byTask[e.TaskID], stored)
	l.mu.Unlock()

	if !l.config.Enabled {
		return
	}

	select {
	case l.buffer <- e:
	default:
		l.writeEntry(ctx, e)
	}
}

// GetEntriesForToolCall returns all recorded entries (request then
// completion, if any) for one tool call, in recording order.
func (l *Logger) GetEntriesForToolCall(_ context.Context, toolCallID string) []models.StoredAuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.StoredAuditEntry, len(l.byTool[toolCallID]))
	copy(out, l.byTool[toolCallID])
	return out
}

// GetEntriesForTask returns all recorded entries for one task, in
// recording order. Used by S1 of the history-repair procedure to recover a
// tool result the conversation history is missing.
func (l *Logger) GetEntriesForTask(_ context.Context, taskID string) []models.StoredAuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.StoredAuditEntry, len(l.byTask[taskID]))
	copy(out, l.byTask[taskID])
	return out
}

func (l *Logger) writeLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case e := <-l.buffer:
			l.writeEntry(context.Background(), e)
		case <-ticker.C:
			l.flushBuffer()
		case <-l.done:
			l.flushBuffer()
			return
		}
	}
}

func (l *Logger) flushBuffer() {
	for {
		select {
		case e := <-l.buffer:
			l.writeEntry(context.Background(), e)
		default:
			return
		}
	}
}

func (l *Logger) writeEntry(ctx context.Context, e models.AuditEntry) {
	attrs := []any{
		"audit_type", e.Type,
		"task_id", e.TaskID,
		"tool_call_id", e.ToolCallID,
		"tool_name", e.ToolName,
		"timestamp", e.Timestamp.Format(time.RFC3339Nano),
	}
	if traceID := observability.GetTraceID(ctx); traceID != "" {
		attrs = append(attrs, "trace_id", traceID)
	}
	if e.Input != nil {
		attrs = append(attrs, "input", string(e.Input))
	}
	if e.Output != "" {
		attrs = append(attrs, "output", e.Output)
	}
	if e.DurationMS > 0 {
		attrs = append(attrs, "duration_ms", e.DurationMS)
	}

	level := slog.LevelInfo
	if e.IsError {
		level = slog.LevelWarn
	}
	l.slogger.Log(ctx, level, "audit", attrs...)
}
