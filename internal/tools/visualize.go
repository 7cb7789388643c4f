package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/internal/trace"
)

const chartConfigurationPrompt = `Generate a chart configuration based on this data: %s
The goal is to show: %s

Respond with a JSON object with exactly these string fields:
"chart_type", "x_axis", "y_axis", "title".`

const createChartPrompt = `Write python code to create a chart based on the following configuration.
Only return the code, no other text.
config: %s`

// VisualizationConfig is the structured chart description extracted
// from constrained model output. Every field is required.
type VisualizationConfig struct {
	ChartType string `json:"chart_type"`
	XAxis     string `json:"x_axis"`
	YAxis     string `json:"y_axis"`
	Title     string `json:"title"`
}

func (c VisualizationConfig) validate() error {
	switch {
	case c.ChartType == "":
		return fmt.Errorf("missing required field chart_type")
	case c.XAxis == "":
		return fmt.Errorf("missing required field x_axis")
	case c.YAxis == "":
		return fmt.Errorf("missing required field y_axis")
	case c.Title == "":
		return fmt.Errorf("missing required field title")
	}
	return nil
}

// VisualizeTool produces plotting code in two traced stages: config
// extraction, then code generation. The code is returned as text and
// never executed here.
type VisualizeTool struct {
	model    ModelClient
	recorder *trace.Recorder
}

func NewVisualizeTool(model ModelClient, recorder *trace.Recorder) *VisualizeTool {
	return &VisualizeTool{model: model, recorder: recorder}
}

func (t *VisualizeTool) Run(ctx context.Context, data, goal string) (string, error) {
	config, err := t.extractChartConfig(ctx, data, goal)
	if err != nil {
		return "", err
	}

	code, err := t.createChart(ctx, config, data)
	if err != nil {
		return "", err
	}

	return code, nil
}

func (t *VisualizeTool) extractChartConfig(ctx context.Context, data, goal string) (*VisualizationConfig, error) {
	_, span := t.recorder.StartSpan(ctx, "extract_chart_config", trace.KindChain)
	defer span.End()

	formatted := fmt.Sprintf(chartConfigurationPrompt, data, goal)
	span.SetInput(formatted)

	resp, err := t.model.Complete(ctx, llm.CompletionRequest{
		UserPrompt: formatted,
		JSONMode:   true,
	})
	if err != nil {
		span.SetError(err)
		return nil, toolErr("generate_visualization", "extract_chart_config", err)
	}

	var config VisualizationConfig
	if err := json.Unmarshal([]byte(resp.Content), &config); err != nil {
		err = fmt.Errorf("config is not valid JSON: %w", err)
		span.SetError(err)
		return nil, toolErr("generate_visualization", "extract_chart_config", err)
	}

	if err := config.validate(); err != nil {
		span.SetError(err)
		return nil, toolErr("generate_visualization", "extract_chart_config", err)
	}

	span.SetOutput(resp.Content)

	return &config, nil
}

func (t *VisualizeTool) createChart(ctx context.Context, config *VisualizationConfig, data string) (string, error) {
	_, span := t.recorder.StartSpan(ctx, "create_chart", trace.KindChain)
	defer span.End()

	configJSON, err := json.Marshal(struct {
		VisualizationConfig
		Data string `json:"data"`
	}{*config, data})
	if err != nil {
		span.SetError(err)
		return "", toolErr("generate_visualization", "create_chart", err)
	}

	formatted := fmt.Sprintf(createChartPrompt, configJSON)
	span.SetInput(formatted)

	resp, err := t.model.Complete(ctx, llm.CompletionRequest{UserPrompt: formatted})
	if err != nil {
		span.SetError(err)
		return "", toolErr("generate_visualization", "create_chart", err)
	}

	code := stripFences(resp.Content)
	span.SetOutput(code)

	return code, nil
}
