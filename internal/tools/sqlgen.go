package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/internal/trace"
)

const sqlGenerationPrompt = `Generate an SQL query based on a prompt. Do not reply with anything besides the SQL query.
The prompt is: %s

The available columns are: %s
The table name is: %s`

// GenerateSQL asks the model for a single SQL statement against the
// relation. The statement is returned as-is; validity is checked by
// execution and, offline, by the SQL correctness evaluator.
func GenerateSQL(ctx context.Context, model ModelClient, recorder *trace.Recorder, prompt string, columns []string, relation string) (string, error) {
	formatted := fmt.Sprintf(sqlGenerationPrompt, prompt, strings.Join(columns, ", "), relation)

	_, span := recorder.StartSpan(ctx, "generate_sql_query", trace.KindLLM)
	span.SetInput(formatted)
	defer span.End()

	resp, err := model.Complete(ctx, llm.CompletionRequest{UserPrompt: formatted})
	if err != nil {
		span.SetError(err)
		return "", fmt.Errorf("sql generation failed: %w", err)
	}

	query := stripFences(resp.Content)
	span.SetOutput(query)

	return query, nil
}
