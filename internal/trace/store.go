package trace

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/pkg/logger"
)

// Store persists completed spans and evaluator verdicts. Spans are
// append-only and self-contained, so concurrent writers need no
// coordination beyond what sqlite provides.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace store: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("Trace store initialized", zap.String("path", dbPath))

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS spans (
		id TEXT PRIMARY KEY,
		trace_id TEXT NOT NULL,
		parent_id TEXT,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		input TEXT,
		output TEXT,
		status TEXT NOT NULL,
		error_message TEXT,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_spans_trace ON spans(trace_id);
	CREATE INDEX IF NOT EXISTS idx_spans_kind ON spans(kind);
	CREATE INDEX IF NOT EXISTS idx_spans_name ON spans(name);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		span_id TEXT NOT NULL,
		eval_name TEXT NOT NULL,
		label TEXT NOT NULL,
		score REAL NOT NULL,
		explanation TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (span_id) REFERENCES spans(id)
	);
	CREATE INDEX IF NOT EXISTS idx_eval_span ON evaluations(span_id);
	CREATE INDEX IF NOT EXISTS idx_eval_name ON evaluations(eval_name);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize trace schema: %w", err)
	}

	logger.Info("Trace schema initialized")
	return nil
}

func (s *Store) InsertSpan(span *Span) error {
	query := `
		INSERT INTO spans (id, trace_id, parent_id, name, kind, input, output, status, error_message, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(
		query,
		span.ID,
		span.TraceID,
		span.ParentID,
		span.Name,
		string(span.Kind),
		span.Input,
		span.Output,
		string(span.Status),
		span.ErrorMessage,
		span.StartedAt.UnixMilli(),
		span.EndedAt.UnixMilli(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert span: %w", err)
	}

	return nil
}

// SpanQuery selects recorded spans by kind, name, and content substrings.
// Zero-valued fields are not applied.
type SpanQuery struct {
	Kind           Kind
	Name           string
	InputContains  string
	OutputContains string
	Limit          int
}

func (s *Store) QuerySpans(q SpanQuery) ([]Span, error) {
	var conditions []string
	var args []interface{}

	if q.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if q.Name != "" {
		conditions = append(conditions, "name = ?")
		args = append(args, q.Name)
	}
	if q.InputContains != "" {
		conditions = append(conditions, "input LIKE ?")
		args = append(args, "%"+q.InputContains+"%")
	}
	if q.OutputContains != "" {
		conditions = append(conditions, "output LIKE ?")
		args = append(args, "%"+q.OutputContains+"%")
	}

	query := "SELECT id, trace_id, parent_id, name, kind, input, output, status, error_message, started_at, ended_at FROM spans"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query spans: %w", err)
	}
	defer rows.Close()

	var spans []Span
	for rows.Next() {
		var sp Span
		var kind, status string
		var startedAt, endedAt int64

		err := rows.Scan(&sp.ID, &sp.TraceID, &sp.ParentID, &sp.Name, &kind, &sp.Input, &sp.Output, &status, &sp.ErrorMessage, &startedAt, &endedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan span row: %w", err)
		}

		sp.Kind = Kind(kind)
		sp.Status = Status(status)
		sp.StartedAt = time.UnixMilli(startedAt)
		sp.EndedAt = time.UnixMilli(endedAt)
		spans = append(spans, sp)
	}

	return spans, rows.Err()
}

func (s *Store) InsertEvaluation(eval *Evaluation) error {
	query := `
		INSERT INTO evaluations (span_id, eval_name, label, score, explanation, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	createdAt := eval.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(
		query,
		eval.SpanID,
		eval.EvalName,
		eval.Label,
		eval.Score,
		eval.Explanation,
		createdAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}

	return nil
}

func (s *Store) GetEvaluations(evalName string) ([]Evaluation, error) {
	query := `SELECT span_id, eval_name, label, score, explanation, created_at FROM evaluations WHERE eval_name = ? ORDER BY created_at`

	rows, err := s.db.Query(query, evalName)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evals []Evaluation
	for rows.Next() {
		var e Evaluation
		var createdAt int64

		err := rows.Scan(&e.SpanID, &e.EvalName, &e.Label, &e.Score, &e.Explanation, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation row: %w", err)
		}

		e.CreatedAt = time.Unix(createdAt, 0)
		evals = append(evals, e)
	}

	return evals, rows.Err()
}

// EvalSummary aggregates one evaluator's verdicts for reporting.
type EvalSummary struct {
	EvalName string
	Count    int
	AvgScore float64
	Labels   map[string]int
}

func (s *Store) SummarizeEvaluations() ([]EvalSummary, error) {
	names, err := s.evalNames()
	if err != nil {
		return nil, err
	}

	var summaries []EvalSummary
	for _, name := range names {
		evals, err := s.GetEvaluations(name)
		if err != nil {
			return nil, err
		}

		summary := EvalSummary{
			EvalName: name,
			Count:    len(evals),
			Labels:   make(map[string]int),
		}

		var total float64
		for _, e := range evals {
			total += e.Score
			summary.Labels[e.Label]++
		}
		if summary.Count > 0 {
			summary.AvgScore = total / float64(summary.Count)
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (s *Store) evalNames() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT eval_name FROM evaluations ORDER BY eval_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluator names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan evaluator name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}
