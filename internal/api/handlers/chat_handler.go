package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/agent"
	"github.com/sales-agent/backend/internal/guardrail"
	"github.com/sales-agent/backend/internal/metrics"
	"github.com/sales-agent/backend/pkg/logger"
)

// Validator gates questions before the router runs.
type Validator interface {
	Validate(ctx context.Context, question string) (*guardrail.Result, error)
}

// Answerer runs the agent loop over a conversation.
type Answerer interface {
	Answer(ctx context.Context, messages []openai.ChatCompletionMessage) (answer, traceID string, err error)
}

// AnswerCache is optional; nil disables answer caching.
type AnswerCache interface {
	GetAnswer(ctx context.Context, question string) (string, bool)
	SetAnswer(ctx context.Context, question, answer string)
}

type ChatHandler struct {
	guard  Validator
	router Answerer
	cache  AnswerCache
}

func NewChatHandler(guard Validator, router Answerer, cache AnswerCache) *ChatHandler {
	return &ChatHandler{
		guard:  guard,
		router: router,
		cache:  cache,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
		UserID   string `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	startTime := time.Now()

	result, err := h.guard.Validate(c.Context(), req.Question)
	if err != nil {
		logger.Error("Guardrail validation failed", zap.Error(err))
		metrics.QuestionsTotal.WithLabelValues("validation_error").Inc()
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Question validation is unavailable, please retry",
		})
	}

	if !result.Accepted {
		metrics.QuestionsTotal.WithLabelValues("rejected").Inc()
		metrics.GuardrailRejections.WithLabelValues(result.Tier).Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Question rejected",
			"reason": result.Reason,
		})
	}

	if h.cache != nil {
		if answer, ok := h.cache.GetAnswer(c.Context(), req.Question); ok {
			metrics.CacheHits.WithLabelValues("answer").Inc()
			metrics.QuestionsTotal.WithLabelValues("cached").Inc()
			return c.JSON(fiber.Map{
				"question":   req.Question,
				"answer":     answer,
				"cached":     true,
				"latency_ms": time.Since(startTime).Milliseconds(),
			})
		}
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: req.Question},
	}

	answer, traceID, err := h.router.Answer(c.Context(), messages)
	if err != nil {
		metrics.QuestionsTotal.WithLabelValues("error").Inc()
		metrics.ChatDuration.WithLabelValues("error").Observe(time.Since(startTime).Seconds())
		return h.routingError(c, err)
	}

	if h.cache != nil {
		h.cache.SetAnswer(c.Context(), req.Question, answer)
	}

	latency := time.Since(startTime)
	metrics.QuestionsTotal.WithLabelValues("ok").Inc()
	metrics.ChatDuration.WithLabelValues("ok").Observe(latency.Seconds())

	logger.Info("Question answered",
		zap.String("trace_id", traceID),
		zap.Duration("latency", latency),
	)

	return c.JSON(fiber.Map{
		"question":   req.Question,
		"answer":     answer,
		"trace_id":   traceID,
		"latency_ms": latency.Milliseconds(),
	})
}

func (h *ChatHandler) routingError(c *fiber.Ctx, err error) error {
	logger.Error("Agent run failed", zap.Error(err))

	switch {
	case errors.Is(err, agent.ErrIterationCap):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "The agent could not reach an answer within the allowed number of steps. Please rephrase your question.",
		})
	case errors.Is(err, agent.ErrUnknownTool):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "The agent failed while routing your question. Please retry.",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process question",
		})
	}
}
