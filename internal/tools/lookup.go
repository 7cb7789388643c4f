package tools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/dataset"
	"github.com/sales-agent/backend/internal/trace"
	"github.com/sales-agent/backend/pkg/logger"
)

// LookupTool answers a natural-language request with data: it loads the
// dataset into a fresh in-memory SQL engine, has the model generate one
// SQL statement, executes it, and returns a bounded text preview.
type LookupTool struct {
	model        ModelClient
	data         *dataset.Dataset
	recorder     *trace.Recorder
	previewRows  int
	previewRunes int
}

func NewLookupTool(model ModelClient, data *dataset.Dataset, recorder *trace.Recorder, previewRows, previewRunes int) *LookupTool {
	if previewRows <= 0 {
		previewRows = 50
	}
	if previewRunes <= 0 {
		previewRunes = 4000
	}
	return &LookupTool{
		model:        model,
		data:         data,
		recorder:     recorder,
		previewRows:  previewRows,
		previewRunes: previewRunes,
	}
}

func (t *LookupTool) Run(ctx context.Context, prompt string) (string, error) {
	db, columns, err := t.data.Load()
	if err != nil {
		return "", toolErr("lookup_sales_data", "load", err)
	}
	defer db.Close()

	query, err := GenerateSQL(ctx, t.model, t.recorder, prompt, columns, t.data.Relation)
	if err != nil {
		return "", toolErr("lookup_sales_data", "generate_sql", err)
	}

	preview, err := t.execute(ctx, db, query)
	if err != nil {
		return "", toolErr("lookup_sales_data", "execute_sql", err)
	}

	return preview, nil
}

func (t *LookupTool) execute(ctx context.Context, db *sql.DB, query string) (string, error) {
	_, span := t.recorder.StartSpan(ctx, "execute_sql_query", trace.KindChain)
	span.SetInput(query)
	defer span.End()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		span.SetError(err)
		return "", fmt.Errorf("sql execution failed: %w", err)
	}
	defer rows.Close()

	preview, total, err := t.formatPreview(rows)
	if err != nil {
		span.SetError(err)
		return "", err
	}

	span.SetOutput(preview)

	logger.Debug("Lookup executed",
		zap.String("query", query),
		zap.Int("rows", total),
	)

	return preview, nil
}

// formatPreview renders the result set as an aligned text table, capped
// by row count and total size to protect the model's context window.
func (t *LookupTool) formatPreview(rows *sql.Rows) (string, int, error) {
	columns, err := rows.Columns()
	if err != nil {
		return "", 0, fmt.Errorf("failed to read result columns: %w", err)
	}

	var cells [][]string
	cells = append(cells, columns)

	total := 0
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", 0, fmt.Errorf("failed to scan result row: %w", err)
		}

		total++
		if total > t.previewRows {
			continue
		}

		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = renderValue(v)
		}
		cells = append(cells, row)
	}
	if err := rows.Err(); err != nil {
		return "", 0, fmt.Errorf("failed to iterate results: %w", err)
	}

	widths := make([]int, len(columns))
	for _, row := range cells {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for _, row := range cells {
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(fmt.Sprintf("%-*s", widths[i], cell))
		}
		b.WriteString("\n")
	}

	if total > t.previewRows {
		b.WriteString(fmt.Sprintf("... (%d of %d rows shown)\n", t.previewRows, total))
	}

	preview := b.String()
	if runes := []rune(preview); len(runes) > t.previewRunes {
		preview = string(runes[:t.previewRunes]) + "\n... [preview truncated]"
	}

	return preview, total, nil
}

func renderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
