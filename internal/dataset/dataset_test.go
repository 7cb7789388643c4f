package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestColumns(t *testing.T) {
	path := writeCSV(t, "Store_Number,SKU_Coded,Total_Sale_Value\n1320,6200700,54.90\n")

	d := New(path, "sales")
	columns, err := d.Columns()
	require.NoError(t, err)
	require.Equal(t, []string{"Store_Number", "SKU_Coded", "Total_Sale_Value"}, columns)
}

func TestColumns_MissingFile(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "absent.csv"), "sales")

	_, err := d.Columns()
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLoad_NumericAffinity(t *testing.T) {
	path := writeCSV(t, "store,qty,price,label\n1,3,4.5,a\n2,7,1.25,b\n")

	d := New(path, "sales")
	db, columns, err := d.Load()
	require.NoError(t, err)
	defer db.Close()

	require.Equal(t, []string{"store", "qty", "price", "label"}, columns)

	// Numeric affinity makes aggregates numeric rather than string concat.
	var totalQty int64
	require.NoError(t, db.QueryRow("SELECT SUM(qty) FROM sales").Scan(&totalQty))
	require.Equal(t, int64(10), totalQty)

	var totalPrice float64
	require.NoError(t, db.QueryRow("SELECT SUM(price) FROM sales").Scan(&totalPrice))
	require.InDelta(t, 5.75, totalPrice, 0.0001)

	var label string
	require.NoError(t, db.QueryRow("SELECT label FROM sales WHERE store = 2").Scan(&label))
	require.Equal(t, "b", label)
}

func TestLoad_CustomRelationName(t *testing.T) {
	path := writeCSV(t, "x\n1\n")

	d := New(path, "observations")
	db, _, err := d.Load()
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM observations").Scan(&count))
	require.Equal(t, 1, count)
}

func TestLoad_FreshEngines(t *testing.T) {
	path := writeCSV(t, "x\n1\n")
	d := New(path, "sales")

	db1, _, err := d.Load()
	require.NoError(t, err)
	defer db1.Close()

	_, err = db1.Exec("INSERT INTO sales VALUES (99)")
	require.NoError(t, err)

	// A second load must not see the first engine's writes.
	db2, _, err := d.Load()
	require.NoError(t, err)
	defer db2.Close()

	var count int
	require.NoError(t, db2.QueryRow("SELECT COUNT(*) FROM sales").Scan(&count))
	require.Equal(t, 1, count)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeCSV(t, "")

	d := New(path, "sales")
	_, _, err := d.Load()
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLoad_QuotedIdentifiers(t *testing.T) {
	path := writeCSV(t, "Store Number,On Promo\n1320,0\n")

	d := New(path, "sales")
	db, _, err := d.Load()
	require.NoError(t, err)
	defer db.Close()

	var store int
	require.NoError(t, db.QueryRow(`SELECT "Store Number" FROM sales`).Scan(&store))
	require.Equal(t, 1320, store)
}

func TestInferAffinity(t *testing.T) {
	rows := [][]string{{"1", "1.5", "abc", ""}}

	require.Equal(t, "INTEGER", inferAffinity(rows, 0))
	require.Equal(t, "REAL", inferAffinity(rows, 1))
	require.Equal(t, "TEXT", inferAffinity(rows, 2))
	require.Equal(t, "TEXT", inferAffinity(rows, 3))
}
