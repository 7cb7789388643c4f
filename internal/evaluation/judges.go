package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sales-agent/backend/internal/agent"
	"github.com/sales-agent/backend/internal/trace"
)

const judgeSystemPrompt = `You are an impartial evaluator of an AI data analysis agent.
Reply with an explanation followed by a final line of the form:
LABEL: <label>
The label must be exactly one of the allowed labels, nothing else.`

const toolSelectionPrompt = `You are evaluating whether an AI agent chose the right tool for a question.

The agent has these tools available:
%s

Question: %s
Tool calls chosen by the agent: %s

Allowed labels: correct, incorrect.
"correct" means the chosen tool matches the question's intent; "incorrect" means it does not.`

const sqlCorrectnessPrompt = `You are tasked with determining if the SQL generated appropriately answers a given instruction.

[Instruction]: %s

[Generated Query]: %s

Assume the table exists and its columns are appropriately named. Assess syntax validity,
column-reference plausibility, and alignment with the instruction.

Allowed labels: correct, incorrect.`

const responseClarityPrompt = `In this task, you will be presented with a query and an answer. Your objective is to evaluate
the clarity of the answer in addressing the query. A clear response is precise, coherent,
complete, actionable, and directly addresses the query without unnecessary complexity or
ambiguity. An unclear response is vague, disorganized, or difficult to understand, even if
it may be factually correct.

Query: %s
Answer: %s

Allowed labels: clear, unclear.`

// parseJudgeLabel extracts the final label from a judge response and
// maps it onto the allowed rails. The explanation is everything before
// the label line.
func parseJudgeLabel(content string, rails []string) (label, explanation string, err error) {
	lines := strings.Split(content, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		upper := strings.ToUpper(line)
		if !strings.HasPrefix(upper, "LABEL:") {
			continue
		}

		candidate := strings.ToLower(strings.Trim(strings.TrimSpace(line[len("LABEL:"):]), `"'.`))
		for _, rail := range rails {
			if candidate == rail {
				return rail, strings.TrimSpace(strings.Join(lines[:i], "\n")), nil
			}
		}
		return "", "", fmt.Errorf("judge label %q not in allowed set %v", candidate, rails)
	}

	return "", "", fmt.Errorf("judge response missing LABEL line: %q", content)
}

func binaryScore(label, positive string) float64 {
	if label == positive {
		return 1
	}
	return 0
}

// judgeEvaluator factors the shared judge-then-record flow: select
// spans, prompt the judge per span, parse the rail, write the verdict.
type judgeEvaluator struct {
	name     string
	store    *trace.Store
	judge    JudgeClient
	query    trace.SpanQuery
	rails    []string
	positive string
	prompt   func(span trace.Span) string
}

func (e *judgeEvaluator) Name() string {
	return e.name
}

func (e *judgeEvaluator) Run(ctx context.Context) (int, error) {
	spans, err := e.store.QuerySpans(e.query)
	if err != nil {
		return 0, fmt.Errorf("span query failed: %w", err)
	}
	if len(spans) == 0 {
		return 0, fmt.Errorf("no spans matched for %s", e.name)
	}

	scored := 0
	for _, span := range spans {
		resp, err := e.judge.Judge(ctx, judgeSystemPrompt, e.prompt(span))
		if err != nil {
			return scored, fmt.Errorf("judge call failed: %w", err)
		}

		label, explanation, err := parseJudgeLabel(resp.Content, e.rails)
		if err != nil {
			return scored, err
		}

		err = e.store.InsertEvaluation(&trace.Evaluation{
			SpanID:      span.ID,
			EvalName:    e.name,
			Label:       label,
			Score:       binaryScore(label, e.positive),
			Explanation: explanation,
		})
		if err != nil {
			return scored, err
		}
		scored++
	}

	return scored, nil
}

// NewToolSelectionEvaluator judges whether each tool-requesting model
// round picked a tool matching the question's intent.
func NewToolSelectionEvaluator(store *trace.Store, judge JudgeClient) Evaluator {
	definitions := describeToolDefinitions()

	return &judgeEvaluator{
		name:  "Tool Calling Eval",
		store: store,
		judge: judge,
		query: trace.SpanQuery{
			Kind:           trace.KindChain,
			Name:           "router_call",
			OutputContains: `"type":"function"`,
		},
		rails:    []string{"correct", "incorrect"},
		positive: "correct",
		prompt: func(span trace.Span) string {
			return fmt.Sprintf(toolSelectionPrompt, definitions, span.Input, span.Output)
		},
	}
}

// NewSQLCorrectnessEvaluator judges each generated SQL statement
// against the request embedded in its generation prompt.
func NewSQLCorrectnessEvaluator(store *trace.Store, judge JudgeClient) Evaluator {
	return &judgeEvaluator{
		name:  "SQL Gen Eval",
		store: store,
		judge: judge,
		query: trace.SpanQuery{
			Kind:          trace.KindLLM,
			Name:          "generate_sql_query",
			InputContains: "Generate an SQL query based on a prompt",
		},
		rails:    []string{"correct", "incorrect"},
		positive: "correct",
		prompt: func(span trace.Span) string {
			return fmt.Sprintf(sqlCorrectnessPrompt, span.Input, span.Output)
		},
	}
}

// NewResponseClarityEvaluator judges the clarity of each top-level
// agent answer.
func NewResponseClarityEvaluator(store *trace.Store, judge JudgeClient) Evaluator {
	return &judgeEvaluator{
		name:  "Response Clarity",
		store: store,
		judge: judge,
		query: trace.SpanQuery{
			Kind: trace.KindAgent,
			Name: "AgentRun",
		},
		rails:    []string{"clear", "unclear"},
		positive: "clear",
		prompt: func(span trace.Span) string {
			return fmt.Sprintf(responseClarityPrompt, span.Input, span.Output)
		},
	}
}

func describeToolDefinitions() string {
	data, err := json.MarshalIndent(agent.ToolSchemas(), "", "  ")
	if err != nil {
		return "lookup_sales_data, analyze_sales_data, generate_visualization"
	}
	return string(data)
}
