package trace

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAgent Kind = "agent"
	KindChain Kind = "chain"
	KindTool  Kind = "tool"
	KindLLM   Kind = "llm"
)

type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// maxFieldRunes bounds recorded input/output so oversized tool results
// cannot bloat the trace store.
const maxFieldRunes = 8192

// Span is one recorded unit of traced work. It is mutable between
// StartSpan and End and must not be touched after End.
type Span struct {
	ID           string
	TraceID      string
	ParentID     string
	Name         string
	Kind         Kind
	Input        string
	Output       string
	Status       Status
	ErrorMessage string
	StartedAt    time.Time
	EndedAt      time.Time

	recorder *Recorder
	ended    bool
}

func newSpan(name string, kind Kind, traceID, parentID string, rec *Recorder) *Span {
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return &Span{
		ID:        uuid.New().String(),
		TraceID:   traceID,
		ParentID:  parentID,
		Name:      name,
		Kind:      kind,
		Status:    StatusOK,
		StartedAt: time.Now(),
		recorder:  rec,
	}
}

func (s *Span) SetInput(v string) {
	s.Input = truncate(v, maxFieldRunes)
}

func (s *Span) SetOutput(v string) {
	s.Output = truncate(v, maxFieldRunes)
}

func (s *Span) SetError(err error) {
	if err == nil {
		return
	}
	s.Status = StatusError
	s.ErrorMessage = truncate(err.Error(), maxFieldRunes)
}

// End closes the span and hands it to the recorder. Idempotent.
func (s *Span) End() {
	if s.ended {
		return
	}
	s.ended = true
	s.EndedAt = time.Now()

	if s.recorder != nil {
		s.recorder.record(s)
	}
}

func truncate(v string, n int) string {
	runes := []rune(v)
	if len(runes) <= n {
		return v
	}
	return string(runes[:n]) + "... [truncated]"
}

// Evaluation is one evaluator verdict attached to a recorded span.
// Append-only; never mutated after creation.
type Evaluation struct {
	SpanID      string
	EvalName    string
	Label       string
	Score       float64
	Explanation string
	CreatedAt   time.Time
}
