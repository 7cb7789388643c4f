package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/agent"
	"github.com/sales-agent/backend/internal/api/handlers"
	redisCache "github.com/sales-agent/backend/internal/cache/redis"
	"github.com/sales-agent/backend/internal/dataset"
	"github.com/sales-agent/backend/internal/evaluation"
	"github.com/sales-agent/backend/internal/guardrail"
	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/internal/metrics"
	"github.com/sales-agent/backend/internal/middleware/ratelimit"
	"github.com/sales-agent/backend/internal/middleware/security"
	"github.com/sales-agent/backend/internal/middleware/validation"
	"github.com/sales-agent/backend/internal/tools"
	"github.com/sales-agent/backend/internal/trace"
	"github.com/sales-agent/backend/pkg/config"
	appLogger "github.com/sales-agent/backend/pkg/logger"
)

func main() {
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

	appLogger.Info("Starting Sales Agent API Server")

	metrics.Init()

	traceStore, err := trace.NewStore(cfg.Trace.StorePath)
	if err != nil {
		appLogger.Fatal("Failed to open trace store", zap.Error(err))
	}
	defer traceStore.Close()

	err = traceStore.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize trace schema", zap.Error(err))
	}

	exporter := trace.NewExporter(cfg.Trace.CollectorEndpoint, cfg.Trace.ProjectName, cfg.Trace.ExportBufferSize)
	defer exporter.Close()

	recorder := trace.NewRecorder(traceStore, exporter, cfg.Trace.ProjectName)

	var answerCache handlers.AnswerCache
	var verdictCache guardrail.VerdictCache
	if cfg.Redis.Enabled {
		redisClient, err := redisCache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.TTLSec,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			answerCache = redisClient
			if cfg.Guardrail.CacheVerdicts {
				verdictCache = redisClient
			}
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.JudgeModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	data := dataset.New(cfg.Dataset.Path, cfg.Dataset.RelationName)

	lookupTool := tools.NewLookupTool(llmClient, data, recorder, cfg.Agent.PreviewRows, cfg.Agent.PreviewRunes)
	analyzeTool := tools.NewAnalyzeTool(llmClient)
	visualizeTool := tools.NewVisualizeTool(llmClient, recorder)

	router := agent.NewRouter(llmClient, lookupTool, analyzeTool, visualizeTool, recorder, cfg.Agent.MaxToolRounds)

	guard := guardrail.New(llmClient, verdictCache, cfg.Guardrail.MinQuestionLength, cfg.Guardrail.MaxQuestionLength)

	pipeline := evaluation.NewPipeline(traceStore, llmClient, cfg.Eval.PythonPath, cfg.Eval.TimeoutSec)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		Logger: appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxQuestionLength: cfg.Guardrail.MaxQuestionLength * 5,
		Logger:            appLogger.GetLogger(),
	}))

	chatHandler := handlers.NewChatHandler(guard, router, answerCache)
	wsHandler := handlers.NewWebSocketHandler(guard, router, time.Duration(cfg.Server.WriteTimeout)*time.Second)
	evalHandler := handlers.NewEvaluationHandler(pipeline, traceStore)

	api := app.Group("/api/v1")

	api.Post("/chat", chatHandler.HandleChat)
	api.Post("/evaluations/run", evalHandler.HandleRun)
	api.Get("/evaluations/report", evalHandler.HandleReport)

	api.Get("/chat/ws", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if _, err := data.Columns(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "dataset unavailable",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
