package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sales_agent_chat_duration_seconds",
			Help:    "End-to-end chat turn duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	QuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_agent_questions_total",
			Help: "Total questions received",
		},
		[]string{"status"},
	)

	GuardrailRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_agent_guardrail_rejections_total",
			Help: "Questions rejected by the guardrail",
		},
		[]string{"tier"},
	)

	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_agent_tool_executions_total",
			Help: "Tool executions dispatched by the router",
		},
		[]string{"tool", "status"},
	)

	ToolRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sales_agent_tool_rounds",
			Help:    "Model rounds taken to reach a final answer",
			Buckets: []float64{1, 2, 3, 5, 8, 10},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_agent_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_agent_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	EvaluationScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sales_agent_evaluation_avg_score",
			Help: "Average score per evaluator from the last pipeline run",
		},
		[]string{"evaluator"},
	)
)

func Init() {
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(QuestionsTotal)
	prometheus.MustRegister(GuardrailRejections)
	prometheus.MustRegister(ToolExecutions)
	prometheus.MustRegister(ToolRounds)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(EvaluationScore)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
