package files

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/taskrun/internal/toolexec"
)

func argsFor(path string) json.RawMessage {
	b, _ := json.Marshal(readArgs{Path: path})
	return b
}

func TestRiskLevelIsAlwaysSafe(t *testing.T) {
	tool := NewReadTool("")
	if got := tool.RiskLevel(argsFor("x"), nil); got != toolexec.RiskSafe {
		t.Fatalf("RiskLevel() = %q, want safe", got)
	}
}

func TestExecuteReadsFileWithinRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	tool := NewReadTool(dir)

	if err := tool.CanExecute(argsFor("note.txt"), nil); err != nil {
		t.Fatalf("CanExecute() error = %v", err)
	}
	result, err := tool.Execute(argsFor("note.txt"), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError || result.Output != "hello" {
		t.Fatalf("result = %+v, want output=hello", result)
	}
}

func TestCanExecuteRejectsPathEscapingRoot(t *testing.T) {
	dir := t.TempDir()
	tool := NewReadTool(dir)
	if err := tool.CanExecute(argsFor("../outside.txt"), nil); err == nil {
		t.Fatal("CanExecute() error = nil, want rejection for path escaping root")
	}
}

func TestCanExecuteRejectsEmptyPath(t *testing.T) {
	tool := NewReadTool("")
	if err := tool.CanExecute(argsFor(""), nil); err == nil {
		t.Fatal("CanExecute() error = nil, want rejection for empty path")
	}
}

func TestExecuteReportsErrorResultForMissingFile(t *testing.T) {
	dir := t.TempDir()
	tool := NewReadTool(dir)
	result, err := tool.Execute(argsFor("missing.txt"), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil error with IsError result", err)
	}
	if !result.IsError {
		t.Fatalf("result = %+v, want IsError=true for missing file", result)
	}
}
