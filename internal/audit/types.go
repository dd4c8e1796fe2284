// Package audit implements the Audit Log (C3): a durable, queryable record
// of every tool call request and completion, independent of conversation
// history. The Conversation Manager's history-repair procedure (C5) consults
// it to recover tool results omitted from a task's message history.
package audit

import (
	"time"

	"github.com/haasonsaas/taskrun/pkg/models"
)

// Level represents audit log severity, kept from the teacher's logger even
// though the spec's own vocabulary only has two entry types — it still
// governs which entries reach the configured sink.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// OutputFormat specifies the audit sink's output encoding.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatText OutputFormat = "text"
)

// Config configures the audit logger.
type Config struct {
	Enabled           bool         `json:"enabled" yaml:"enabled"`
	Format            OutputFormat `json:"format" yaml:"format"`
	Output            string       `json:"output" yaml:"output"` // "stdout", "stderr", or "file:/path"
	IncludeToolInput  bool         `json:"include_tool_input" yaml:"include_tool_input"`
	IncludeToolOutput bool         `json:"include_tool_output" yaml:"include_tool_output"`
	BufferSize        int          `json:"buffer_size" yaml:"buffer_size"`
	FlushInterval     time.Duration `json:"flush_interval" yaml:"flush_interval"`
}

// DefaultConfig returns a default audit configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		Format:            FormatJSON,
		Output:            "stdout",
		IncludeToolInput:  true,
		IncludeToolOutput: true,
		BufferSize:        1000,
		FlushInterval:     5 * time.Second,
	}
}

// entry pairs a models.AuditEntry with the id the Querier assigns it once
// durably written, mirroring models.StoredAuditEntry.
type entry = models.StoredAuditEntry
