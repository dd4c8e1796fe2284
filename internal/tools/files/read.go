// Package files is the Tool Executor's (C6) worked safe-tool example: a
// single read-only file tool implementing toolexec.Tool, confined to an
// optional root directory. Grounded on the concept of
// haasonsaas-nexus/internal/tools/files/read.go, rewritten against C6's own
// Tool interface instead of the teacher's session-bound tool signature.
package files

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/taskrun/internal/toolexec"
)

const readFileSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "path to the file, relative to the configured root"}
	},
	"required": ["path"]
}`

// ReadTool reads a single text file. It never mutates state, so it is
// always RiskSafe and requires no confirmation.
type ReadTool struct {
	// Root confines reads to this directory when non-empty; a path that
	// would resolve outside Root is rejected.
	Root string
}

func NewReadTool(root string) *ReadTool { return &ReadTool{Root: root} }

func (t *ReadTool) Name() string        { return "readFile" }
func (t *ReadTool) Group() string       { return "files" }
func (t *ReadTool) Description() string { return "Reads the contents of a text file." }

func (t *ReadTool) ParametersSchema() json.RawMessage { return json.RawMessage(readFileSchema) }

func (t *ReadTool) RiskLevel(json.RawMessage, *toolexec.Context) toolexec.RiskLevel {
	return toolexec.RiskSafe
}

func (t *ReadTool) CanExecute(args json.RawMessage, _ *toolexec.Context) error {
	_, err := t.resolvePath(args)
	return err
}

func (t *ReadTool) Execute(args json.RawMessage, _ *toolexec.Context) (toolexec.Result, error) {
	path, err := t.resolvePath(args)
	if err != nil {
		return toolexec.Result{Output: err.Error(), IsError: true}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return toolexec.Result{Output: fmt.Sprintf("read %s: %v", path, err), IsError: true}, nil
	}
	return toolexec.Result{Output: string(data)}, nil
}

type readArgs struct {
	Path string `json:"path"`
}

func (t *ReadTool) resolvePath(args json.RawMessage) (string, error) {
	var parsed readArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", fmt.Errorf("files: parse args: %w", err)
	}
	if strings.TrimSpace(parsed.Path) == "" {
		return "", fmt.Errorf("files: path is required")
	}
	if t.Root == "" {
		return parsed.Path, nil
	}
	full := filepath.Join(t.Root, parsed.Path)
	rel, err := filepath.Rel(t.Root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("files: path %q escapes root %q", parsed.Path, t.Root)
	}
	return full, nil
}
