// Package tools implements the three agent tools: sales data lookup,
// narrative analysis, and visualization code generation.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/sales-agent/backend/internal/llm"
)

// ModelClient is the slice of the LLM client the tools consume.
type ModelClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// ToolError marks a recoverable tool failure. The router folds these
// back into the conversation instead of aborting the turn.
type ToolError struct {
	Tool  string
	Stage string
	Err   error
}

func (e *ToolError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s/%s: %v", e.Tool, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func toolErr(tool, stage string, err error) *ToolError {
	return &ToolError{Tool: tool, Stage: stage, Err: err}
}

// stripFences removes markdown code-fence markers the model tends to
// wrap SQL and Python in.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```sql", "")
	s = strings.ReplaceAll(s, "```python", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
