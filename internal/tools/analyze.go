package tools

import (
	"context"
	"fmt"

	"github.com/sales-agent/backend/internal/llm"
)

const dataAnalysisPrompt = `Analyze the following data: %s
Your job is to answer the following question: %s`

// AnalyzeTool turns previously retrieved data plus the user's goal into
// a readable narrative. One model call, no branching.
type AnalyzeTool struct {
	model ModelClient
}

func NewAnalyzeTool(model ModelClient) *AnalyzeTool {
	return &AnalyzeTool{model: model}
}

func (t *AnalyzeTool) Run(ctx context.Context, prompt, data string) (string, error) {
	formatted := fmt.Sprintf(dataAnalysisPrompt, data, prompt)

	resp, err := t.model.Complete(ctx, llm.CompletionRequest{UserPrompt: formatted})
	if err != nil {
		return "", toolErr("analyze_sales_data", "", err)
	}

	if resp.Content == "" {
		return "No analysis could be generated", nil
	}

	return resp.Content, nil
}
