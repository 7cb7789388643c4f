package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func newApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/api/v1/chat", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func post(t *testing.T, app *fiber.App, body, contentType string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestMiddleware_AcceptsValidQuestion(t *testing.T) {
	app := newApp(Config{})

	resp := post(t, app, `{"question":"What was the total revenue?"}`, "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMiddleware_RejectsWrongContentType(t *testing.T) {
	app := newApp(Config{})

	resp := post(t, app, "question=hi", "text/plain")
	require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestMiddleware_RejectsMalformedJSON(t *testing.T) {
	app := newApp(Config{})

	resp := post(t, app, `{"question":`, "application/json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMiddleware_RejectsMissingQuestion(t *testing.T) {
	app := newApp(Config{})

	resp := post(t, app, `{"user_id":"u1"}`, "application/json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMiddleware_RejectsOversizedQuestion(t *testing.T) {
	app := newApp(Config{MaxQuestionLength: 10})

	resp := post(t, app, `{"question":"`+strings.Repeat("a", 11)+`"}`, "application/json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMiddleware_RejectsScriptInjection(t *testing.T) {
	app := newApp(Config{})

	resp := post(t, app, `{"question":"<script>alert(1)</script>"}`, "application/json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
