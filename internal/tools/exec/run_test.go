package exec

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/taskrun/internal/toolexec"
)

func argsFor(command string, args ...string) json.RawMessage {
	b, _ := json.Marshal(runArgs{Command: command, Args: args})
	return b
}

func TestRiskLevelIsAlwaysRisky(t *testing.T) {
	tool := NewRunTool()
	if got := tool.RiskLevel(argsFor("echo", "hi"), nil); got != toolexec.RiskRisky {
		t.Fatalf("RiskLevel() = %q, want risky", got)
	}
}

func TestCanExecuteRejectsEmptyCommand(t *testing.T) {
	tool := NewRunTool()
	if err := tool.CanExecute(argsFor(""), nil); err == nil {
		t.Fatal("CanExecute() error = nil, want rejection for empty command")
	}
}

func TestCanExecuteRejectsShellMetacharacters(t *testing.T) {
	tool := NewRunTool()
	if err := tool.CanExecute(argsFor("echo", "hi;", "rm -rf /"), nil); err == nil {
		t.Fatal("CanExecute() error = nil, want rejection for shell metacharacters")
	}
}

func TestCanExecuteRejectsCommandChaining(t *testing.T) {
	tool := NewRunTool()
	if err := tool.CanExecute(argsFor("echo hi && rm file"), nil); err == nil {
		t.Fatal("CanExecute() error = nil, want rejection for command chaining")
	}
}

func TestCanExecuteAcceptsSafeBareCommand(t *testing.T) {
	tool := NewRunTool()
	if err := tool.CanExecute(argsFor("echo", "hello"), nil); err != nil {
		t.Fatalf("CanExecute() error = %v, want nil for safe command", err)
	}
}

func TestExecuteRunsCommandAndCapturesOutput(t *testing.T) {
	tool := NewRunTool()
	tc := &toolexec.Context{Context: context.Background()}

	result, err := tool.Execute(argsFor("echo", "hello"), tc)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("result = %+v, want IsError=false", result)
	}
	if result.Output != "hello\n" {
		t.Fatalf("Output = %q, want %q", result.Output, "hello\n")
	}
}

func TestExecuteReportsErrorResultForFailedCommand(t *testing.T) {
	tool := NewRunTool()
	tc := &toolexec.Context{Context: context.Background()}

	result, err := tool.Execute(argsFor("false"), tc)
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil error with IsError result", err)
	}
	if !result.IsError {
		t.Fatalf("result = %+v, want IsError=true for nonzero exit", result)
	}
}
