// Package agent implements the router: the sequential control loop that
// mediates between the conversation, the model, and tool execution.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/internal/metrics"
	"github.com/sales-agent/backend/internal/trace"
	"github.com/sales-agent/backend/pkg/logger"
)

// Routing errors are fatal to the conversation turn and surface to the
// caller without further model interaction.
var (
	ErrUnknownTool  = errors.New("model requested an unknown tool")
	ErrIterationCap = errors.New("tool-call round limit exceeded")
)

// ChatClient is the slice of the LLM client the router consumes.
type ChatClient interface {
	ChatWithTools(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (*llm.ChatResponse, error)
}

// LookupRunner, AnalyzeRunner, and VisualizeRunner are the tool
// contracts the router dispatches to.
type LookupRunner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

type AnalyzeRunner interface {
	Run(ctx context.Context, prompt, data string) (string, error)
}

type VisualizeRunner interface {
	Run(ctx context.Context, data, goal string) (string, error)
}

type Router struct {
	model     ChatClient
	lookup    LookupRunner
	analyze   AnalyzeRunner
	visualize VisualizeRunner
	recorder  *trace.Recorder
	maxRounds int
}

func NewRouter(model ChatClient, lookup LookupRunner, analyze AnalyzeRunner, visualize VisualizeRunner, recorder *trace.Recorder, maxRounds int) *Router {
	if maxRounds <= 0 {
		maxRounds = 10
	}
	return &Router{
		model:     model,
		lookup:    lookup,
		analyze:   analyze,
		visualize: visualize,
		recorder:  recorder,
		maxRounds: maxRounds,
	}
}

// Answer runs the control loop over the conversation and returns the
// model's final text answer. The whole run is recorded as one agent
// span; the returned trace id correlates it with its child spans.
func (r *Router) Answer(ctx context.Context, messages []openai.ChatCompletionMessage) (answer string, traceID string, err error) {
	ctx, span := r.recorder.StartSpan(ctx, "AgentRun", trace.KindAgent)
	defer span.End()

	span.SetInput(lastUserContent(messages))

	answer, err = r.run(ctx, messages)
	if err != nil {
		span.SetError(err)
		return "", span.TraceID, err
	}

	span.SetOutput(answer)
	return answer, span.TraceID, nil
}

func (r *Router) run(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	messages = ensureSystemPrompt(messages)

	for round := 1; round <= r.maxRounds; round++ {
		roundCtx, span := r.recorder.StartSpan(ctx, "router_call", trace.KindChain)
		span.SetInput(lastUserContent(messages))

		resp, err := r.model.ChatWithTools(roundCtx, messages, toolSchemas)
		if err != nil {
			span.SetError(err)
			span.End()
			return "", fmt.Errorf("model call failed: %w", err)
		}

		messages = append(messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			span.SetOutput(resp.Message.Content)
			span.End()

			metrics.ToolRounds.Observe(float64(round))
			logger.Info("Agent produced final answer",
				zap.Int("rounds", round),
			)
			return resp.Message.Content, nil
		}

		span.SetOutput(describeToolCalls(resp.Message.ToolCalls))
		span.End()

		// Tool results are appended in invocation order so correlation
		// ids always match the preceding assistant message.
		for _, call := range resp.Message.ToolCalls {
			result, err := r.dispatch(roundCtx, call)
			if err != nil {
				return "", err
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return "", fmt.Errorf("%w after %d rounds", ErrIterationCap, r.maxRounds)
}

// dispatch executes one requested tool invocation. Tool failures are
// returned as result text so the model can react; only unknown tool
// names are fatal.
func (r *Router) dispatch(ctx context.Context, call openai.ToolCall) (string, error) {
	name, ok := ParseToolName(call.Function.Name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, call.Function.Name)
	}

	ctx, span := r.recorder.StartSpan(ctx, string(name), trace.KindTool)
	span.SetInput(call.Function.Arguments)
	defer span.End()

	result, err := r.execute(ctx, name, call.Function.Arguments)
	if err != nil {
		span.SetError(err)
		metrics.ToolExecutions.WithLabelValues(string(name), "error").Inc()
		logger.Warn("Tool execution failed",
			zap.String("tool", string(name)),
			zap.Error(err),
		)
		return fmt.Sprintf("Error executing %s: %v", name, err), nil
	}

	span.SetOutput(result)
	metrics.ToolExecutions.WithLabelValues(string(name), "ok").Inc()
	return result, nil
}

func (r *Router) execute(ctx context.Context, name ToolName, arguments string) (string, error) {
	switch name {
	case ToolLookup:
		var args struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return r.lookup.Run(ctx, args.Prompt)

	case ToolAnalyze:
		var args struct {
			Data   string `json:"data"`
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return r.analyze.Run(ctx, args.Prompt, args.Data)

	case ToolVisualize:
		var args struct {
			Data string `json:"data"`
			Goal string `json:"visualization_goal"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
		return r.visualize.Run(ctx, args.Data, args.Goal)

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

func ensureSystemPrompt(messages []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	for _, m := range messages {
		if m.Role == openai.ChatMessageRoleSystem {
			return messages
		}
	}

	return append([]openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	}}, messages...)
}

func lastUserContent(messages []openai.ChatCompletionMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == openai.ChatMessageRoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func describeToolCalls(calls []openai.ToolCall) string {
	summary, err := json.Marshal(calls)
	if err != nil {
		return fmt.Sprintf("%d tool calls", len(calls))
	}
	return string(summary)
}
