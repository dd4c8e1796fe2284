package main

import (
	"fmt"

	"github.com/haasonsaas/taskrun/internal/audit"
	"github.com/haasonsaas/taskrun/internal/config"
	"github.com/haasonsaas/taskrun/internal/eventstore"
	"github.com/haasonsaas/taskrun/internal/observability"
	"github.com/haasonsaas/taskrun/internal/taskservice"
	execTool "github.com/haasonsaas/taskrun/internal/tools/exec"
	"github.com/haasonsaas/taskrun/internal/tools/files"
	"github.com/haasonsaas/taskrun/internal/toolexec"
)

// app holds the wiring shared by every subcommand: one opened Event Store,
// the Task Service façade over it, and a Tool Executor with the two worked
// example tools registered. Built fresh per invocation from the resolved
// Config, mirroring the teacher's own per-command store-open idiom.
type app struct {
	cfg     config.Config
	store   eventstore.Store
	service *taskservice.Service
	logger  *observability.Logger
	audit   *audit.Logger
	tools   *toolexec.Registry
}

func newApp(cfgPath string) (*app, func() error, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("taskrun: load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.Logging.ToLogConfig())

	auditLogger, err := audit.NewLogger(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("taskrun: start audit logger: %w", err)
	}

	store, closeStore, err := openStore(cfg.EventStore)
	if err != nil {
		return nil, nil, fmt.Errorf("taskrun: open event store: %w", err)
	}

	registry := toolexec.NewRegistry()
	registry.Register(files.NewReadTool(""))
	registry.Register(execTool.NewRunTool())

	return &app{
		cfg:     cfg,
		store:   store,
		service: taskservice.NewService(store),
		logger:  logger,
		audit:   auditLogger,
		tools:   registry,
	}, closeStore, nil
}

func openStore(cfg config.EventStoreConfig) (eventstore.Store, func() error, error) {
	if cfg.Driver == "memory" {
		return eventstore.NewMemory(), func() error { return nil }, nil
	}
	path := cfg.Path
	if path == "" {
		path = "taskrun.db"
	}
	store, err := eventstore.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
