package trace

import (
	"context"

	"go.uber.org/zap"

	"github.com/sales-agent/backend/pkg/logger"
)

type ctxKey int

const (
	spanKey ctxKey = iota
	suppressKey
)

// Recorder creates spans and delivers completed ones to the store and,
// best-effort, to the external collector. Both sinks are optional.
type Recorder struct {
	store    *Store
	exporter *Exporter
	project  string
}

func NewRecorder(store *Store, exporter *Exporter, project string) *Recorder {
	return &Recorder{
		store:    store,
		exporter: exporter,
		project:  project,
	}
}

// StartSpan opens a span as a child of the span carried by ctx, if any,
// and returns a derived context carrying the new span. On a suppressed
// context the returned span is inert and records nothing.
func (r *Recorder) StartSpan(ctx context.Context, name string, kind Kind) (context.Context, *Span) {
	if r == nil || IsSuppressed(ctx) {
		return ctx, &Span{Name: name, Kind: kind}
	}

	var traceID, parentID string
	if parent := SpanFromContext(ctx); parent != nil {
		traceID = parent.TraceID
		parentID = parent.ID
	}

	span := newSpan(name, kind, traceID, parentID, r)
	return context.WithValue(ctx, spanKey, span), span
}

func (r *Recorder) record(span *Span) {
	if r.store != nil {
		if err := r.store.InsertSpan(span); err != nil {
			logger.Warn("Failed to persist span",
				zap.String("span", span.Name),
				zap.Error(err),
			)
		}
	}

	if r.exporter != nil {
		r.exporter.Export(span)
	}
}

func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey).(*Span)
	return span
}

// Suppress marks the context so spans started under it are not recorded.
// Evaluators use this to keep judge calls out of the dataset they score.
func Suppress(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey, true)
}

func IsSuppressed(ctx context.Context) bool {
	suppressed, _ := ctx.Value(suppressKey).(bool)
	return suppressed
}
