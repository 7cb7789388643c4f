package trace

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "traces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.InitSchema())
	return store
}

func TestSpanLifecycle(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, nil, "test")

	ctx, root := recorder.StartSpan(context.Background(), "AgentRun", KindAgent)
	root.SetInput("question")

	_, child := recorder.StartSpan(ctx, "router_call", KindChain)
	child.SetOutput("answer")
	child.End()

	root.SetOutput("answer")
	root.End()

	spans, err := store.QuerySpans(SpanQuery{})
	require.NoError(t, err)
	require.Len(t, spans, 2)

	// Children inherit the trace and point at their parent.
	require.Equal(t, root.TraceID, child.TraceID)
	require.Equal(t, root.ID, child.ParentID)

	byName := map[string]Span{}
	for _, s := range spans {
		byName[s.Name] = s
	}
	require.Equal(t, StatusOK, byName["AgentRun"].Status)
	require.Equal(t, "question", byName["AgentRun"].Input)
	require.Equal(t, "answer", byName["router_call"].Output)
}

func TestSpanError(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, nil, "test")

	_, span := recorder.StartSpan(context.Background(), "generate_sql_query", KindLLM)
	span.SetError(errors.New("model unavailable"))
	span.End()

	spans, err := store.QuerySpans(SpanQuery{Name: "generate_sql_query"})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	require.Equal(t, StatusError, spans[0].Status)
	require.Equal(t, "model unavailable", spans[0].ErrorMessage)
}

func TestSpanEndIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, nil, "test")

	_, span := recorder.StartSpan(context.Background(), "router_call", KindChain)
	span.End()
	span.End()

	spans, err := store.QuerySpans(SpanQuery{})
	require.NoError(t, err)
	require.Len(t, spans, 1)
}

func TestSuppressedContextRecordsNothing(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, nil, "test")

	ctx := Suppress(context.Background())
	require.True(t, IsSuppressed(ctx))

	_, span := recorder.StartSpan(ctx, "judge_call", KindLLM)
	span.SetInput("prompt")
	span.End()

	spans, err := store.QuerySpans(SpanQuery{})
	require.NoError(t, err)
	require.Empty(t, spans)
}

func TestNilRecorderIsInert(t *testing.T) {
	var recorder *Recorder

	ctx, span := recorder.StartSpan(context.Background(), "anything", KindTool)
	span.SetInput("x")
	span.End()

	require.NotNil(t, ctx)
	require.Empty(t, span.TraceID)
}

func TestFieldTruncation(t *testing.T) {
	var span Span
	span.SetInput(strings.Repeat("a", maxFieldRunes+100))

	require.Less(t, len(span.Input), maxFieldRunes+100)
	require.True(t, strings.HasSuffix(span.Input, "... [truncated]"))
}

func TestQuerySpansFilters(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, nil, "test")

	_, a := recorder.StartSpan(context.Background(), "router_call", KindChain)
	a.SetOutput(`[{"type":"function","function":{"name":"lookup_sales_data"}}]`)
	a.End()

	_, b := recorder.StartSpan(context.Background(), "router_call", KindChain)
	b.SetOutput("final text answer")
	b.End()

	_, c := recorder.StartSpan(context.Background(), "generate_sql_query", KindLLM)
	c.SetInput("Generate an SQL query based on a prompt")
	c.End()

	spans, err := store.QuerySpans(SpanQuery{Kind: KindChain})
	require.NoError(t, err)
	require.Len(t, spans, 2)

	spans, err = store.QuerySpans(SpanQuery{
		Kind:           KindChain,
		Name:           "router_call",
		OutputContains: `"type":"function"`,
	})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	require.Equal(t, a.ID, spans[0].ID)

	spans, err = store.QuerySpans(SpanQuery{InputContains: "Generate an SQL query"})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	require.Equal(t, KindLLM, spans[0].Kind)

	spans, err = store.QuerySpans(SpanQuery{Kind: KindChain, Limit: 1})
	require.NoError(t, err)
	require.Len(t, spans, 1)
}

func TestEvaluationRoundTrip(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store, nil, "test")

	_, span := recorder.StartSpan(context.Background(), "AgentRun", KindAgent)
	span.End()

	require.NoError(t, store.InsertEvaluation(&Evaluation{
		SpanID:      span.ID,
		EvalName:    "Response Clarity",
		Label:       "clear",
		Score:       1,
		Explanation: "direct and complete",
	}))
	require.NoError(t, store.InsertEvaluation(&Evaluation{
		SpanID:   span.ID,
		EvalName: "Response Clarity",
		Label:    "unclear",
		Score:    0,
	}))

	evals, err := store.GetEvaluations("Response Clarity")
	require.NoError(t, err)
	require.Len(t, evals, 2)

	summaries, err := store.SummarizeEvaluations()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "Response Clarity", summaries[0].EvalName)
	require.Equal(t, 2, summaries[0].Count)
	require.InDelta(t, 0.5, summaries[0].AvgScore, 0.0001)
	require.Equal(t, map[string]int{"clear": 1, "unclear": 1}, summaries[0].Labels)
}
