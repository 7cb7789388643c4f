package agent

import (
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// ToolName is the typed variant over the fixed tool set. The model
// selects tools by string name; dispatch goes through ParseToolName so
// unknown identifiers fail as routing errors instead of silent lookups.
type ToolName string

const (
	ToolLookup    ToolName = "lookup_sales_data"
	ToolAnalyze   ToolName = "analyze_sales_data"
	ToolVisualize ToolName = "generate_visualization"
)

func ParseToolName(name string) (ToolName, bool) {
	switch ToolName(name) {
	case ToolLookup, ToolAnalyze, ToolVisualize:
		return ToolName(name), true
	default:
		return "", false
	}
}

const systemPrompt = `You are a helpful assistant that can answer questions about the Store Sales Price Elasticity Promotions dataset.`

// toolSchemas declares the three tools to the model. These declarations
// are the contract between the router and the model and mirror the tool
// signatures exactly.
var toolSchemas = []openai.Tool{
	{
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionDefinition{
			Name: string(ToolLookup),
			Description: "Look up data from the Store Sales Price Elasticity Promotions dataset. " +
				"Use when the question needs actual numbers from the data. Do not use for interpreting data you already have.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"prompt": {
						Type:        jsonschema.String,
						Description: "The unchanged prompt that the user provided.",
					},
				},
				Required: []string{"prompt"},
			},
		},
	},
	{
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionDefinition{
			Name: string(ToolAnalyze),
			Description: "Analyze sales data to extract insights. " +
				"Use when data has already been retrieved and needs interpretation. Do not use to fetch new data.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"data": {
						Type:        jsonschema.String,
						Description: "The lookup_sales_data tool's output.",
					},
					"prompt": {
						Type:        jsonschema.String,
						Description: "The unchanged prompt that the user provided.",
					},
				},
				Required: []string{"data", "prompt"},
			},
		},
	},
	{
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionDefinition{
			Name: string(ToolVisualize),
			Description: "Generate Python code to create data visualizations. " +
				"Use when the user asks for a chart or graph. Do not use to retrieve or analyze data.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"data": {
						Type:        jsonschema.String,
						Description: "The lookup_sales_data tool's output.",
					},
					"visualization_goal": {
						Type:        jsonschema.String,
						Description: "The goal of the visualization.",
					},
				},
				Required: []string{"data", "visualization_goal"},
			},
		},
	},
}

// ToolSchemas exposes the declarations for evaluators that embed them
// in judge prompts.
func ToolSchemas() []openai.Tool {
	return toolSchemas
}
