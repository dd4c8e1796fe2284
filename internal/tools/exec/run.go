// Package exec is the Tool Executor's (C6) worked risky-tool example: a
// single command-execution tool implementing toolexec.Tool. Grounded on the
// concept of haasonsaas-nexus/internal/tools/exec/tools.go, rewritten
// against C6's own Tool interface and against this repository's own
// executable/argument safety checks (internal/exec) and shell-metacharacter
// analysis (internal/tools/security), which the teacher's original tool
// never actually exercised end-to-end.
package exec

import (
	"bytes"
	"encoding/json"
	"fmt"
	osexec "os/exec"
	"strings"

	execsafety "github.com/haasonsaas/taskrun/internal/exec"
	"github.com/haasonsaas/taskrun/internal/tools/security"
	"github.com/haasonsaas/taskrun/internal/toolexec"
)

const runCommandSchema = `{
	"type": "object",
	"properties": {
		"command": {"type": "string", "description": "bare executable name or path, no shell metacharacters"},
		"args": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["command"]
}`

// RunTool runs a single executable with argv-style arguments — never
// through a shell — and is always RiskRisky: every call requires a
// confirmation bound to its own tool-call id (INV-6, SA-001).
type RunTool struct{}

func NewRunTool() *RunTool { return &RunTool{} }

func (t *RunTool) Name() string  { return "runCommand" }
func (t *RunTool) Group() string { return "exec" }
func (t *RunTool) Description() string {
	return "Runs a single executable with arguments, denying shell metacharacters and command chaining."
}

func (t *RunTool) ParametersSchema() json.RawMessage { return json.RawMessage(runCommandSchema) }

func (t *RunTool) RiskLevel(json.RawMessage, *toolexec.Context) toolexec.RiskLevel {
	return toolexec.RiskRisky
}

func (t *RunTool) CanExecute(args json.RawMessage, _ *toolexec.Context) error {
	parsed, err := parseRunArgs(args)
	if err != nil {
		return err
	}
	if _, err := execsafety.SanitizeExecutableValue(parsed.Command); err != nil {
		return fmt.Errorf("exec: unsafe command %q: %w", parsed.Command, err)
	}
	if _, err := execsafety.SanitizeArguments(parsed.Args); err != nil {
		return fmt.Errorf("exec: unsafe arguments: %w", err)
	}
	full := strings.TrimSpace(parsed.Command + " " + strings.Join(parsed.Args, " "))
	if analysis := security.AnalyzeCommandQuoteAware(full); !analysis.IsSafe {
		return fmt.Errorf("exec: unsafe command: %s", analysis.Reason)
	}
	return nil
}

func (t *RunTool) Execute(args json.RawMessage, tc *toolexec.Context) (toolexec.Result, error) {
	parsed, err := parseRunArgs(args)
	if err != nil {
		return toolexec.Result{Output: err.Error(), IsError: true}, nil
	}

	cmd := osexec.CommandContext(tc.Context, parsed.Command, parsed.Args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return toolexec.Result{Output: fmt.Sprintf("%s\n%v", out.String(), err), IsError: true}, nil
	}
	return toolexec.Result{Output: out.String()}, nil
}

type runArgs struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

func parseRunArgs(raw json.RawMessage) (runArgs, error) {
	var parsed runArgs
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return runArgs{}, fmt.Errorf("exec: parse args: %w", err)
	}
	if strings.TrimSpace(parsed.Command) == "" {
		return runArgs{}, fmt.Errorf("exec: command is required")
	}
	return parsed, nil
}
