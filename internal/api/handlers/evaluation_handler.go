package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/evaluation"
	"github.com/sales-agent/backend/internal/metrics"
	"github.com/sales-agent/backend/internal/trace"
	"github.com/sales-agent/backend/pkg/logger"
)

type EvaluationHandler struct {
	pipeline *evaluation.Pipeline
	store    *trace.Store
}

func NewEvaluationHandler(pipeline *evaluation.Pipeline, store *trace.Store) *EvaluationHandler {
	return &EvaluationHandler{
		pipeline: pipeline,
		store:    store,
	}
}

// HandleRun scores all recorded spans with every evaluator and returns
// the per-evaluator outcome.
func (h *EvaluationHandler) HandleRun(c *fiber.Ctx) error {
	logger.Info("Starting evaluation run")

	results := h.pipeline.Run(c.Context())

	payload := make([]fiber.Map, 0, len(results))
	for _, r := range results {
		entry := fiber.Map{
			"evaluator": r.EvalName,
			"scored":    r.Scored,
		}
		if r.Err != nil {
			entry["error"] = r.Err.Error()
		}
		payload = append(payload, entry)
	}

	return c.JSON(fiber.Map{
		"results": payload,
	})
}

// HandleReport returns the aggregate scores of all recorded evaluations.
func (h *EvaluationHandler) HandleReport(c *fiber.Ctx) error {
	summaries, err := h.store.SummarizeEvaluations()
	if err != nil {
		logger.Error("Failed to summarize evaluations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build evaluation report",
		})
	}

	payload := make([]fiber.Map, 0, len(summaries))
	for _, s := range summaries {
		metrics.EvaluationScore.WithLabelValues(s.EvalName).Set(s.AvgScore)
		payload = append(payload, fiber.Map{
			"evaluator":     s.EvalName,
			"scored_spans":  s.Count,
			"average_score": s.AvgScore,
			"labels":        s.Labels,
		})
	}

	return c.JSON(fiber.Map{
		"evaluations": payload,
	})
}
