package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/pkg/logger"
)

type WebSocketHandler struct {
	guard   Validator
	router  Answerer
	timeout time.Duration
}

func NewWebSocketHandler(guard Validator, router Answerer, timeout time.Duration) *WebSocketHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &WebSocketHandler{
		guard:   guard,
		router:  router,
		timeout: timeout,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	// Everything started for this connection is canceled when it ends.
	ctx, cancel := context.WithCancel(context.Background())

	defer func() {
		cancel()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
			UserID  string `json:"user_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "question" {
			continue
		}

		logger.Info("Processing WebSocket question", zap.String("question", msg.Content))

		err = h.streamResponse(ctx, c, msg.Content)
		if err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, "Failed to process question")
		}
	}
}

func (h *WebSocketHandler) streamResponse(ctx context.Context, c *websocket.Conn, question string) error {
	startTime := time.Now()

	answer, traceID, rejectReason, err := h.answerQuestion(ctx, question)
	if err != nil {
		return err
	}
	if rejectReason != "" {
		h.sendChunk(c, "rejected", rejectReason)
		return nil
	}

	h.sendChunk(c, "status", "Processing question...")

	words := splitIntoWords(answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		err := h.sendChunk(c, "chunk", chunk)
		if err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":       "complete",
		"trace_id":   traceID,
		"latency_ms": time.Since(startTime).Milliseconds(),
	})
}

// answerQuestion bounds each turn so a closed connection cannot leave
// model or tool calls running indefinitely.
func (h *WebSocketHandler) answerQuestion(ctx context.Context, question string) (answer, traceID, rejectReason string, err error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	result, err := h.guard.Validate(ctx, question)
	if err != nil {
		return "", "", "", err
	}
	if !result.Accepted {
		return "", "", result.Reason, nil
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: question},
	}

	answer, traceID, err = h.router.Answer(ctx, messages)
	return answer, traceID, "", err
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	msg := map[string]interface{}{
		"type":    msgType,
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
