package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// AuditSink is the subset of the Audit Log's write path the executor
// depends on, kept narrow so toolexec does not import the audit package's
// sink/format configuration.
type AuditSink interface {
	LogToolCallRequested(ctx context.Context, taskID, toolCallID, toolName string, input json.RawMessage)
	LogToolCallCompleted(ctx context.Context, taskID, toolCallID, toolName, output string, isError bool, duration time.Duration)
}

// Executor runs tool calls against a Registry, enforcing the risky-tool
// confirmation gate and recording every request/completion to the Audit
// Log. Grounded on internal/agent/tool_exec.go's per-call timeout idiom.
type Executor struct {
	registry *Registry
	audit    AuditSink

	schemaMu sync.Mutex
	schemas  map[string]*jsonschema.Schema
}

// NewExecutor constructs an Executor. audit may be nil to disable audit
// recording (used in tests that don't care about the audit trail).
func NewExecutor(registry *Registry, audit AuditSink) *Executor {
	return &Executor{
		registry: registry,
		audit:    audit,
		schemas:  make(map[string]*jsonschema.Schema),
	}
}

// Execute implements §4.7's Executor.execute: audits the request,
// enforces the confirmation gate for risky tools, validates arguments
// against the tool's declared schema, runs the tool, and audits the
// completion.
func (e *Executor) Execute(call Call, tc *Context) (Result, error) {
	tool, ok := e.registry.Lookup(call.Name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	if e.audit != nil {
		e.audit.LogToolCallRequested(tc, tc.TaskID, call.ToolCallID, call.Name, call.Arguments)
	}

	if level := tool.RiskLevel(call.Arguments, tc); level == RiskRisky {
		if tc.ConfirmedInteractionID == "" || tc.ConfirmedToolCallID != call.ToolCallID {
			err := ErrConfirmationRequired
			if e.audit != nil {
				e.audit.LogToolCallCompleted(tc, tc.TaskID, call.ToolCallID, call.Name, err.Error(), true, 0)
			}
			return Result{ToolCallID: call.ToolCallID, Output: err.Error(), IsError: true}, err
		}
	}

	if err := e.validateArgs(tool, call.Arguments); err != nil {
		if e.audit != nil {
			e.audit.LogToolCallCompleted(tc, tc.TaskID, call.ToolCallID, call.Name, err.Error(), true, 0)
		}
		return Result{ToolCallID: call.ToolCallID, Output: err.Error(), IsError: true}, nil
	}

	if err := tool.CanExecute(call.Arguments, tc); err != nil {
		if e.audit != nil {
			e.audit.LogToolCallCompleted(tc, tc.TaskID, call.ToolCallID, call.Name, err.Error(), true, 0)
		}
		return Result{ToolCallID: call.ToolCallID, Output: err.Error(), IsError: true}, nil
	}

	start := time.Now()
	result, err := tool.Execute(call.Arguments, tc)
	duration := time.Since(start)
	result.ToolCallID = call.ToolCallID
	if err != nil {
		result.Output = err.Error()
		result.IsError = true
	}

	if e.audit != nil {
		e.audit.LogToolCallCompleted(tc, tc.TaskID, call.ToolCallID, call.Name, result.Output, result.IsError, duration)
	}
	return result, nil
}

// RecordRejection implements §4.7's Executor.recordRejection: a risky tool
// call the user explicitly rejected is audited as a request-then-rejection
// pair so live observers see both halves, and a rejection Result is
// returned without ever calling the tool.
func (e *Executor) RecordRejection(call Call, tc *Context) Result {
	if e.audit != nil {
		e.audit.LogToolCallRequested(tc, tc.TaskID, call.ToolCallID, call.Name, call.Arguments)
		e.audit.LogToolCallCompleted(tc, tc.TaskID, call.ToolCallID, call.Name, "User rejected", true, 0)
	}
	return Result{ToolCallID: call.ToolCallID, Output: "User rejected", IsError: true}
}

func (e *Executor) validateArgs(tool Tool, args json.RawMessage) error {
	schemaBytes := tool.ParametersSchema()
	if len(schemaBytes) == 0 {
		return nil
	}

	e.schemaMu.Lock()
	compiled, ok := e.schemas[tool.Name()]
	if !ok {
		var err error
		compiled, err = jsonschema.CompileString(tool.Name()+".schema.json", string(schemaBytes))
		if err != nil {
			e.schemaMu.Unlock()
			return fmt.Errorf("toolexec: compile schema for %s: %w", tool.Name(), err)
		}
		e.schemas[tool.Name()] = compiled
	}
	e.schemaMu.Unlock()

	if len(args) == 0 {
		args = []byte("{}")
	}
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return fmt.Errorf("toolexec: invalid arguments JSON: %w", err)
	}
	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("toolexec: arguments for %s failed validation: %w", tool.Name(), err)
	}
	return nil
}
