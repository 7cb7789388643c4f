// Package guardrail gates raw user questions before any agent work.
// Tier 1 is a pure, deterministic length and denylist check; Tier 2 is
// a single model call that verdicts the question against the in-scope
// topics. Rejected questions never reach the router.
package guardrail

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/pkg/logger"
)

// ModelClient is the slice of the LLM client the semantic tier consumes.
type ModelClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// VerdictCache stores Tier-2 verdicts keyed by question hash. Optional;
// a nil cache disables caching.
type VerdictCache interface {
	GetVerdict(ctx context.Context, question string) (*Result, bool)
	SetVerdict(ctx context.Context, question string, result *Result)
}

// Result is the validation outcome. Reason and Tier are set only on
// rejection.
type Result struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Tier     string `json:"tier,omitempty"`
}

const (
	TierDeterministic = "deterministic"
	TierSemantic      = "semantic"
)

var denylist = []string{
	"jailbreak",
	"ignore previous instructions",
	"ignore all instructions",
	"system prompt",
	"hack",
	"exploit",
	"malware",
	"phishing",
	"ransomware",
}

var inScopeTopics = []string{
	"store and sales metrics",
	"product and SKU data",
	"transactions and revenue",
	"promotions",
	"pricing and price elasticity",
	"time-based trends",
	"store geography",
}

const scopeVerdictPrompt = `You validate questions for a retail sales data analysis assistant.
The assistant can only answer questions about these topics:
%s

Question: %s

Reply with exactly two lines:
VERDICT: VALID or INVALID
REASON: one short sentence explaining the verdict`

type Guardrail struct {
	model     ModelClient
	cache     VerdictCache
	minLength int
	maxLength int
}

func New(model ModelClient, cache VerdictCache, minLength, maxLength int) *Guardrail {
	if minLength <= 0 {
		minLength = 3
	}
	if maxLength <= 0 {
		maxLength = 1000
	}
	return &Guardrail{
		model:     model,
		cache:     cache,
		minLength: minLength,
		maxLength: maxLength,
	}
}

// Validate runs both tiers in order. Tier 1 rejections return before any
// network call. A Tier-2 model failure is an error, never an acceptance.
func (g *Guardrail) Validate(ctx context.Context, question string) (*Result, error) {
	if result := g.checkDeterministic(question); !result.Accepted {
		logger.Info("Question rejected by deterministic tier",
			zap.String("reason", result.Reason),
		)
		return result, nil
	}

	return g.checkScope(ctx, question)
}

// checkDeterministic is the pure Tier-1 filter: length bounds and a
// case-insensitive substring denylist. No side effects, no network.
func (g *Guardrail) checkDeterministic(question string) *Result {
	length := len([]rune(strings.TrimSpace(question)))
	if length < g.minLength {
		return &Result{Reason: fmt.Sprintf("question is too short (minimum %d characters)", g.minLength), Tier: TierDeterministic}
	}
	if length > g.maxLength {
		return &Result{Reason: fmt.Sprintf("question is too long (maximum %d characters)", g.maxLength), Tier: TierDeterministic}
	}

	lowered := strings.ToLower(question)
	for _, term := range denylist {
		if strings.Contains(lowered, term) {
			return &Result{Reason: fmt.Sprintf("question contains blocked term %q", term), Tier: TierDeterministic}
		}
	}

	return &Result{Accepted: true}
}

// checkScope is Tier 2: one model call returning a VALID/INVALID
// verdict against the in-scope topic list.
func (g *Guardrail) checkScope(ctx context.Context, question string) (*Result, error) {
	if g.cache != nil {
		if cached, ok := g.cache.GetVerdict(ctx, question); ok {
			return cached, nil
		}
	}

	prompt := fmt.Sprintf(scopeVerdictPrompt, "- "+strings.Join(inScopeTopics, "\n- "), question)

	resp, err := g.model.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  prompt,
		Temperature: llm.Temperature(0),
		MaxTokens:   150,
	})
	if err != nil {
		return nil, fmt.Errorf("scope validation failed: %w", err)
	}

	result, err := parseVerdict(resp.Content)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		g.cache.SetVerdict(ctx, question, result)
	}

	if !result.Accepted {
		logger.Info("Question rejected by semantic tier",
			zap.String("reason", result.Reason),
		)
	}

	return result, nil
}

func parseVerdict(content string) (*Result, error) {
	verdict := ""
	reason := ""

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "VERDICT:"):
			verdict = strings.ToUpper(strings.TrimSpace(line[len("VERDICT:"):]))
		case strings.HasPrefix(upper, "REASON:"):
			reason = strings.TrimSpace(line[len("REASON:"):])
		}
	}

	switch verdict {
	case "VALID":
		return &Result{Accepted: true}, nil
	case "INVALID":
		if reason == "" {
			reason = "the question is outside the scope of the sales dataset"
		}
		return &Result{Reason: reason, Tier: TierSemantic}, nil
	default:
		return nil, fmt.Errorf("unparseable scope verdict: %q", content)
	}
}
