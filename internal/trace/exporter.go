package trace

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sales-agent/backend/pkg/logger"
)

// Exporter ships completed spans to an external collector. Export is
// non-blocking: spans are queued on a bounded channel and dropped with a
// warning when the queue is full or the collector is unreachable.
// Telemetry loss never fails agent execution.
type Exporter struct {
	endpoint   string
	project    string
	httpClient *http.Client

	queue chan *Span
	done  chan struct{}
	wg    sync.WaitGroup
}

type exportPayload struct {
	Project      string `json:"project"`
	SpanID       string `json:"span_id"`
	TraceID      string `json:"trace_id"`
	ParentID     string `json:"parent_id,omitempty"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Input        string `json:"input,omitempty"`
	Output       string `json:"output,omitempty"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	StartedAt    int64  `json:"started_at_ms"`
	EndedAt      int64  `json:"ended_at_ms"`
}

func NewExporter(endpoint, project string, bufferSize int) *Exporter {
	if bufferSize <= 0 {
		bufferSize = 256
	}

	e := &Exporter{
		endpoint: endpoint,
		project:  project,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		queue: make(chan *Span, bufferSize),
		done:  make(chan struct{}),
	}

	e.wg.Add(1)
	go e.loop()

	logger.Info("Trace exporter started", zap.String("endpoint", endpoint))

	return e
}

func (e *Exporter) Export(span *Span) {
	select {
	case e.queue <- span:
	default:
		logger.Warn("Trace export queue full, dropping span",
			zap.String("span", span.Name),
		)
	}
}

func (e *Exporter) Close() {
	close(e.done)
	e.wg.Wait()
}

func (e *Exporter) loop() {
	defer e.wg.Done()

	for {
		select {
		case span := <-e.queue:
			e.send(span)
		case <-e.done:
			// Drain whatever is already queued before stopping.
			for {
				select {
				case span := <-e.queue:
					e.send(span)
				default:
					return
				}
			}
		}
	}
}

func (e *Exporter) send(span *Span) {
	payload := exportPayload{
		Project:      e.project,
		SpanID:       span.ID,
		TraceID:      span.TraceID,
		ParentID:     span.ParentID,
		Name:         span.Name,
		Kind:         string(span.Kind),
		Input:        span.Input,
		Output:       span.Output,
		Status:       string(span.Status),
		ErrorMessage: span.ErrorMessage,
		StartedAt:    span.StartedAt.UnixMilli(),
		EndedAt:      span.EndedAt.UnixMilli(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("Failed to marshal span for export", zap.Error(err))
		return
	}

	resp, err := e.httpClient.Post(e.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Warn("Failed to export span",
			zap.String("span", span.Name),
			zap.Error(err),
		)
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		logger.Warn("Collector rejected span",
			zap.String("span", span.Name),
			zap.Int("status", resp.StatusCode),
		)
	}
}
