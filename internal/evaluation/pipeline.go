// Package evaluation is the offline scoring pipeline. It queries spans
// recorded by previous agent runs and scores four dimensions: tool
// selection, SQL correctness, code runnability, and response clarity.
// Judge calls run under a suppressed trace context so scoring never
// pollutes the dataset being measured.
package evaluation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/internal/trace"
	"github.com/sales-agent/backend/pkg/logger"
)

// JudgeClient is the slice of the LLM client used for judge scoring.
type JudgeClient interface {
	Judge(ctx context.Context, systemPrompt, userPrompt string) (*llm.CompletionResponse, error)
}

// Evaluator scores one dimension over a span subset and writes results
// back to the trace store.
type Evaluator interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// Result captures one evaluator's outcome within a pipeline run.
type Result struct {
	EvalName string
	Scored   int
	Err      error
}

type Pipeline struct {
	store      *trace.Store
	evaluators []Evaluator
}

func NewPipeline(store *trace.Store, judge JudgeClient, pythonPath string, timeoutSec int) *Pipeline {
	return &Pipeline{
		store: store,
		evaluators: []Evaluator{
			NewToolSelectionEvaluator(store, judge),
			NewSQLCorrectnessEvaluator(store, judge),
			NewCodeRunnabilityEvaluator(store, pythonPath, timeoutSec),
			NewResponseClarityEvaluator(store, judge),
		},
	}
}

// Run executes every evaluator. One evaluator failing does not abort
// the others; each failure is carried in its Result.
func (p *Pipeline) Run(ctx context.Context) []Result {
	ctx = trace.Suppress(ctx)

	results := make([]Result, 0, len(p.evaluators))
	for _, ev := range p.evaluators {
		scored, err := ev.Run(ctx)
		if err != nil {
			logger.Error("Evaluator failed",
				zap.String("evaluator", ev.Name()),
				zap.Error(err),
			)
		} else {
			logger.Info("Evaluator completed",
				zap.String("evaluator", ev.Name()),
				zap.Int("scored", scored),
			)
		}
		results = append(results, Result{EvalName: ev.Name(), Scored: scored, Err: err})
	}

	return results
}

// Report renders the aggregate scores of all recorded evaluations in a
// readable text table.
func (p *Pipeline) Report() (string, error) {
	summaries, err := p.store.SummarizeEvaluations()
	if err != nil {
		return "", fmt.Errorf("failed to summarize evaluations: %w", err)
	}

	var b strings.Builder
	b.WriteString("\nEvaluation Report\n=================\n")

	if len(summaries) == 0 {
		b.WriteString("\nNo evaluations recorded.\n")
		return b.String(), nil
	}

	for _, s := range summaries {
		b.WriteString(fmt.Sprintf("\n%s\n", s.EvalName))
		b.WriteString(fmt.Sprintf("  Scored spans: %d\n", s.Count))
		b.WriteString(fmt.Sprintf("  Average score: %.2f\n", s.AvgScore))
		for label, count := range s.Labels {
			b.WriteString(fmt.Sprintf("  - %s: %d\n", label, count))
		}
	}

	return b.String(), nil
}
