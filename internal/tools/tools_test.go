package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sales-agent/backend/internal/dataset"
	"github.com/sales-agent/backend/internal/llm"
)

// scriptedModel returns its canned replies in order.
type scriptedModel struct {
	replies []string
	prompts []string
	err     error
}

func (m *scriptedModel) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.prompts = append(m.prompts, req.UserPrompt)
	if m.err != nil {
		return nil, m.err
	}

	idx := len(m.prompts) - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	return &llm.CompletionResponse{Content: m.replies[idx]}, nil
}

func writeSalesCSV(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store_sales.csv")
	content := strings.Join([]string{
		"Store_Number,SKU_Coded,Qty_Sold,Total_Sale_Value,On_Promo",
		"1320,6200700,3,54.90,0",
		"1320,6219199,1,18.30,1",
		"2970,6200700,5,91.50,0",
		"2970,6384400,2,36.60,1",
	}, "\n") + "\n"

	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestStripFences(t *testing.T) {
	require.Equal(t, "SELECT 1", stripFences("```sql\nSELECT 1\n```"))
	require.Equal(t, "print('hi')", stripFences("```python\nprint('hi')\n```"))
	require.Equal(t, "plain", stripFences("plain"))
	require.Equal(t, "SELECT 2", stripFences("```\nSELECT 2\n```"))
}

func TestLookupRun_EndToEnd(t *testing.T) {
	data := dataset.New(writeSalesCSV(t), "sales")
	model := &scriptedModel{replies: []string{
		"```sql\nSELECT Store_Number, SUM(Total_Sale_Value) AS revenue FROM sales GROUP BY Store_Number ORDER BY Store_Number\n```",
	}}

	tool := NewLookupTool(model, data, nil, 50, 4000)

	preview, err := tool.Run(context.Background(), "total revenue per store")
	require.NoError(t, err)
	require.Contains(t, preview, "Store_Number")
	require.Contains(t, preview, "1320")
	require.Contains(t, preview, "73.2")
	require.Contains(t, preview, "128.1")

	// The generation prompt carries the discovered schema.
	require.Len(t, model.prompts, 1)
	require.Contains(t, model.prompts[0], "Store_Number, SKU_Coded, Qty_Sold, Total_Sale_Value, On_Promo")
	require.Contains(t, model.prompts[0], "The table name is: sales")
}

func TestLookupRun_RowCap(t *testing.T) {
	data := dataset.New(writeSalesCSV(t), "sales")
	model := &scriptedModel{replies: []string{"SELECT * FROM sales"}}

	tool := NewLookupTool(model, data, nil, 2, 4000)

	preview, err := tool.Run(context.Background(), "everything")
	require.NoError(t, err)
	require.Contains(t, preview, "... (2 of 4 rows shown)")
}

func TestLookupRun_RuneCap(t *testing.T) {
	data := dataset.New(writeSalesCSV(t), "sales")
	model := &scriptedModel{replies: []string{"SELECT * FROM sales"}}

	tool := NewLookupTool(model, data, nil, 50, 60)

	preview, err := tool.Run(context.Background(), "everything")
	require.NoError(t, err)
	require.Contains(t, preview, "[preview truncated]")
	require.LessOrEqual(t, len([]rune(preview)), 60+len("\n... [preview truncated]"))
}

func TestLookupRun_BadSQLIsToolError(t *testing.T) {
	data := dataset.New(writeSalesCSV(t), "sales")
	model := &scriptedModel{replies: []string{"SELECT FROM WHERE nothing"}}

	tool := NewLookupTool(model, data, nil, 50, 4000)

	_, err := tool.Run(context.Background(), "broken")
	require.Error(t, err)

	var toolError *ToolError
	require.ErrorAs(t, err, &toolError)
	require.Equal(t, "lookup_sales_data", toolError.Tool)
	require.Equal(t, "execute_sql", toolError.Stage)
}

func TestLookupRun_MissingDataset(t *testing.T) {
	data := dataset.New(filepath.Join(t.TempDir(), "absent.csv"), "sales")
	model := &scriptedModel{replies: []string{"SELECT 1"}}

	tool := NewLookupTool(model, data, nil, 50, 4000)

	_, err := tool.Run(context.Background(), "anything")
	require.ErrorIs(t, err, dataset.ErrUnavailable)

	// No model call happens when the dataset cannot be loaded.
	require.Empty(t, model.prompts)
}

func TestAnalyzeRun(t *testing.T) {
	model := &scriptedModel{replies: []string{"Sales trend upward during promotions."}}
	tool := NewAnalyzeTool(model)

	result, err := tool.Run(context.Background(), "what is the trend?", "store  revenue\n1320  73.2")
	require.NoError(t, err)
	require.Equal(t, "Sales trend upward during promotions.", result)
	require.Contains(t, model.prompts[0], "store  revenue")
	require.Contains(t, model.prompts[0], "what is the trend?")
}

func TestAnalyzeRun_EmptyContentFallback(t *testing.T) {
	model := &scriptedModel{replies: []string{""}}
	tool := NewAnalyzeTool(model)

	result, err := tool.Run(context.Background(), "trend?", "data")
	require.NoError(t, err)
	require.Equal(t, "No analysis could be generated", result)
}

func TestVisualizeRun(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"chart_type":"bar","x_axis":"store","y_axis":"revenue","title":"Revenue by Store"}`,
		"```python\nimport matplotlib.pyplot as plt\nplt.bar([1,2],[3,4])\n```",
	}}
	tool := NewVisualizeTool(model, nil)

	code, err := tool.Run(context.Background(), "store  revenue\n1320  73.2", "bar chart of revenue by store")
	require.NoError(t, err)
	require.Equal(t, "import matplotlib.pyplot as plt\nplt.bar([1,2],[3,4])", code)

	// The second prompt embeds the extracted config plus the data.
	require.Len(t, model.prompts, 2)
	require.Contains(t, model.prompts[1], `"chart_type":"bar"`)
	require.Contains(t, model.prompts[1], `"data":"store  revenue\n1320  73.2"`)
}

func TestVisualizeRun_InvalidConfigJSON(t *testing.T) {
	model := &scriptedModel{replies: []string{"this is not json"}}
	tool := NewVisualizeTool(model, nil)

	_, err := tool.Run(context.Background(), "data", "goal")
	require.Error(t, err)

	var toolError *ToolError
	require.ErrorAs(t, err, &toolError)
	require.Equal(t, "extract_chart_config", toolError.Stage)
}

func TestVisualizeRun_MissingConfigField(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"chart_type":"bar","x_axis":"store","y_axis":"revenue"}`,
	}}
	tool := NewVisualizeTool(model, nil)

	_, err := tool.Run(context.Background(), "data", "goal")
	require.Error(t, err)
	require.Contains(t, err.Error(), "title")
}

func TestVisualizeRun_ModelFailure(t *testing.T) {
	model := &scriptedModel{err: errors.New("timeout")}
	tool := NewVisualizeTool(model, nil)

	_, err := tool.Run(context.Background(), "data", "goal")
	require.Error(t, err)

	var toolError *ToolError
	require.ErrorAs(t, err, &toolError)
	require.Equal(t, "generate_visualization", toolError.Tool)
}

func TestGenerateSQL(t *testing.T) {
	model := &scriptedModel{replies: []string{"```sql\nSELECT COUNT(*) FROM sales\n```"}}

	query, err := GenerateSQL(context.Background(), model, nil, "how many rows", []string{"a", "b"}, "sales")
	require.NoError(t, err)
	require.Equal(t, "SELECT COUNT(*) FROM sales", query)
	require.Contains(t, model.prompts[0], "The available columns are: a, b")
}
