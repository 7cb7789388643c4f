package evaluation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/trace"
	"github.com/sales-agent/backend/pkg/logger"
)

// CodeRunnabilityEvaluator is the one deterministic evaluator: it
// executes generated visualization code in an isolated temp directory
// with a headless plotting backend and checks that a chart artifact was
// produced. No judge model is involved.
type CodeRunnabilityEvaluator struct {
	store      *trace.Store
	pythonPath string
	timeout    time.Duration
}

const artifactName = "chart.png"

// runnerHeader forces a display-free backend before any user code runs;
// runnerFooter persists whatever figure the code built so success is
// observable as a file.
const runnerHeader = `import matplotlib
matplotlib.use("Agg")
`

const runnerFooter = `
import matplotlib.pyplot as plt
plt.savefig("` + artifactName + `")
`

func NewCodeRunnabilityEvaluator(store *trace.Store, pythonPath string, timeoutSec int) *CodeRunnabilityEvaluator {
	if pythonPath == "" {
		pythonPath = "python3"
	}
	if timeoutSec <= 0 {
		timeoutSec = 15
	}
	return &CodeRunnabilityEvaluator{
		store:      store,
		pythonPath: pythonPath,
		timeout:    time.Duration(timeoutSec) * time.Second,
	}
}

func (e *CodeRunnabilityEvaluator) Name() string {
	return "Runnable Code Eval"
}

func (e *CodeRunnabilityEvaluator) Run(ctx context.Context) (int, error) {
	if _, err := exec.LookPath(e.pythonPath); err != nil {
		return 0, fmt.Errorf("python interpreter not available: %w", err)
	}

	spans, err := e.store.QuerySpans(trace.SpanQuery{
		Kind: trace.KindTool,
		Name: "generate_visualization",
	})
	if err != nil {
		return 0, fmt.Errorf("span query failed: %w", err)
	}
	if len(spans) == 0 {
		return 0, fmt.Errorf("no visualization spans to evaluate")
	}

	scored := 0
	for _, span := range spans {
		if span.Status != trace.StatusOK || span.Output == "" {
			continue
		}

		runnable := e.IsRunnable(ctx, span.Output)

		label := "not_runnable"
		if runnable {
			label = "runnable"
		}

		err := e.store.InsertEvaluation(&trace.Evaluation{
			SpanID:   span.ID,
			EvalName: e.Name(),
			Label:    label,
			Score:    binaryScore(label, "runnable"),
		})
		if err != nil {
			return scored, err
		}
		scored++
	}

	if scored == 0 {
		return 0, fmt.Errorf("no successful visualization spans to evaluate")
	}

	return scored, nil
}

// IsRunnable executes the code and reports whether it ran cleanly and
// produced the chart artifact.
func (e *CodeRunnabilityEvaluator) IsRunnable(ctx context.Context, code string) bool {
	workDir, err := os.MkdirTemp("", "runnability-*")
	if err != nil {
		logger.Warn("Failed to create runnability workdir", zap.Error(err))
		return false
	}
	defer os.RemoveAll(workDir)

	script := runnerHeader + code + runnerFooter
	scriptPath := filepath.Join(workDir, "chart_script.py")
	if err := os.WriteFile(scriptPath, []byte(script), 0600); err != nil {
		logger.Warn("Failed to write runnability script", zap.Error(err))
		return false
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.pythonPath, scriptPath)
	cmd.Dir = workDir

	if output, err := cmd.CombinedOutput(); err != nil {
		logger.Debug("Generated code failed to run",
			zap.Error(err),
			zap.ByteString("output", output),
		)
		return false
	}

	info, err := os.Stat(filepath.Join(workDir, artifactName))
	return err == nil && info.Size() > 0
}
