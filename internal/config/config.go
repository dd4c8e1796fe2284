// Package config holds the single YAML-tagged Config struct this binary
// loads at startup, composed of one sub-config per wired component —
// the same composition-of-sub-configs idiom as the teacher's
// internal/config/config.go, scaled down to this core's own components.
package config

import (
	"time"

	"github.com/haasonsaas/taskrun/internal/audit"
	"github.com/haasonsaas/taskrun/internal/observability"
)

// Config is the top-level configuration for the taskrun binary.
type Config struct {
	EventStore    EventStoreConfig    `yaml:"event_store"`
	ToolExec      ToolExecConfig      `yaml:"tool_exec"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Audit         audit.Config        `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// EventStoreConfig selects and configures C1's durable backend.
type EventStoreConfig struct {
	// Driver is "memory" or "sqlite". Defaults to "sqlite".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file, or ":memory:" for an ephemeral but
	// still SQL-driven store. Ignored when Driver is "memory".
	Path string `yaml:"path"`
}

// ToolExecConfig configures the Tool Executor (C6).
type ToolExecConfig struct {
	// RiskyToolTimeout bounds how long a confirmed risky tool call may run.
	RiskyToolTimeout time.Duration `yaml:"risky_tool_timeout"`
}

// SchedulerConfig configures the cron-trigger enrichment (§4.8).
type SchedulerConfig struct {
	// Enabled controls whether the scheduler starts at all.
	Enabled bool `yaml:"enabled"`

	Tasks []ScheduledTaskConfig `yaml:"tasks"`
}

// ScheduledTaskConfig is one entry of SchedulerConfig.Tasks, the YAML shape
// of a scheduler.ScheduledTask.
type ScheduledTaskConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	AgentID      string `yaml:"agent_id"`
	Schedule     string `yaml:"schedule"`
	Priority     string `yaml:"priority"`
	Prompt       string `yaml:"prompt"`
	AllowOverlap bool   `yaml:"allow_overlap"`
}

// ObservabilityConfig composes the logging, tracing, and metrics sub-configs.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig is the YAML shape of an observability.LogConfig.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// ToLogConfig converts to the type observability.NewLogger expects.
func (c LoggingConfig) ToLogConfig() observability.LogConfig {
	return observability.LogConfig{
		Level:     c.Level,
		Format:    c.Format,
		AddSource: c.AddSource,
	}
}

// TracingConfig is the YAML shape of an observability.TraceConfig.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	Endpoint       string  `yaml:"endpoint"`
	SamplingRate   float64 `yaml:"sampling_rate"`
}

// ToTraceConfig converts to the type observability.NewTracer expects.
func (c TracingConfig) ToTraceConfig() observability.TraceConfig {
	return observability.TraceConfig{
		ServiceName:    c.ServiceName,
		ServiceVersion: c.ServiceVersion,
		Environment:    c.Environment,
		Endpoint:       c.Endpoint,
		SamplingRate:   c.SamplingRate,
	}
}

// Default returns the configuration a freshly installed binary starts with:
// an embedded SQLite store, text logging at info level, and no scheduled
// tasks or tracing.
func Default() Config {
	return Config{
		EventStore: EventStoreConfig{Driver: "sqlite", Path: "taskrun.db"},
		ToolExec:   ToolExecConfig{RiskyToolTimeout: 5 * time.Minute},
		Scheduler:  SchedulerConfig{Enabled: true},
		Audit:      audit.DefaultConfig(),
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "text"},
		},
	}
}
