package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/agent"
	"github.com/sales-agent/backend/internal/dataset"
	"github.com/sales-agent/backend/internal/evaluation"
	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/internal/tools"
	"github.com/sales-agent/backend/internal/trace"
	"github.com/sales-agent/backend/pkg/config"
	appLogger "github.com/sales-agent/backend/pkg/logger"
)

// defaultQuestions is the standing batch exercised when no questions
// file is given. It covers every tool path: plain lookups, an
// analysis-flavored question, and a chart request.
var defaultQuestions = []string{
	"What was the most popular product SKU?",
	"What was the total revenue across all stores?",
	"Which store had the highest sales volume?",
	"Create a bar chart showing total sales by store",
	"What percentage of items were sold on promotion?",
	"What was the average transaction value?",
}

func main() {
	skipAgent := flag.Bool("skip-agent", false, "score existing traces without running the agent batch")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting evaluation run")

	traceStore, err := trace.NewStore(cfg.Trace.StorePath)
	if err != nil {
		appLogger.Fatal("Failed to open trace store", zap.Error(err))
	}
	defer traceStore.Close()

	err = traceStore.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize trace schema", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.JudgeModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	ctx := context.Background()

	if !*skipAgent {
		runAgentBatch(ctx, cfg, traceStore, llmClient)
	}

	pipeline := evaluation.NewPipeline(traceStore, llmClient, cfg.Eval.PythonPath, cfg.Eval.TimeoutSec)

	results := pipeline.Run(ctx)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("%-20s FAILED: %v\n", r.EvalName, r.Err)
		} else {
			fmt.Printf("%-20s scored %d spans\n", r.EvalName, r.Scored)
		}
	}

	report, err := pipeline.Report()
	if err != nil {
		appLogger.Fatal("Failed to build report", zap.Error(err))
	}
	fmt.Println(report)

	if failed > 0 {
		os.Exit(1)
	}
}

func runAgentBatch(ctx context.Context, cfg *config.Config, traceStore *trace.Store, llmClient *llm.Client) {
	exporter := trace.NewExporter(cfg.Trace.CollectorEndpoint, cfg.Trace.ProjectName, cfg.Trace.ExportBufferSize)
	defer exporter.Close()

	recorder := trace.NewRecorder(traceStore, exporter, cfg.Trace.ProjectName)

	data := dataset.New(cfg.Dataset.Path, cfg.Dataset.RelationName)

	lookupTool := tools.NewLookupTool(llmClient, data, recorder, cfg.Agent.PreviewRows, cfg.Agent.PreviewRunes)
	analyzeTool := tools.NewAnalyzeTool(llmClient)
	visualizeTool := tools.NewVisualizeTool(llmClient, recorder)

	router := agent.NewRouter(llmClient, lookupTool, analyzeTool, visualizeTool, recorder, cfg.Agent.MaxToolRounds)

	for i, question := range defaultQuestions {
		fmt.Printf("[%d/%d] %s\n", i+1, len(defaultQuestions), question)

		messages := []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: question},
		}

		answer, traceID, err := router.Answer(ctx, messages)
		if err != nil {
			appLogger.Error("Agent run failed",
				zap.String("question", question),
				zap.Error(err),
			)
			fmt.Printf("  ERROR: %v\n\n", err)
			continue
		}

		fmt.Printf("  trace %s\n  %s\n\n", traceID, answer)
	}
}
