package dataset

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/pkg/logger"
)

// ErrUnavailable reports a missing or unreadable dataset file.
var ErrUnavailable = errors.New("dataset unavailable")

// Dataset describes the tabular source exposed to the SQL engine under
// a fixed relation name. Loading is per-invocation: each Load returns a
// fresh in-memory engine with no state shared across calls.
type Dataset struct {
	Path     string
	Relation string
}

func New(path, relation string) *Dataset {
	if relation == "" {
		relation = "sales"
	}
	return &Dataset{Path: path, Relation: relation}
}

// Columns reads only the header row and returns the discovered column
// names in file order.
func (d *Dataset) Columns() ([]string, error) {
	file, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, d.Path)
	}
	defer file.Close()

	header, err := csv.NewReader(file).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	return header, nil
}

// Load parses the CSV file and registers it as the relation in a fresh
// in-memory sqlite database. The caller owns the returned handle.
func (d *Dataset) Load() (*sql.DB, []string, error) {
	file, err := os.Open(d.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnavailable, d.Path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: empty file", ErrUnavailable)
	}

	columns := records[0]
	rows := records[1:]

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open in-memory engine: %w", err)
	}

	if err := d.createRelation(db, columns, rows); err != nil {
		db.Close()
		return nil, nil, err
	}

	if err := d.insertRows(db, columns, rows); err != nil {
		db.Close()
		return nil, nil, err
	}

	logger.Debug("Dataset loaded",
		zap.String("relation", d.Relation),
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(columns)),
	)

	return db, columns, nil
}

func (d *Dataset) createRelation(db *sql.DB, columns []string, rows [][]string) error {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(col), inferAffinity(rows, i))
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(d.Relation), strings.Join(defs, ", "))
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create relation: %w", err)
	}

	return nil
}

func (d *Dataset) insertRows(db *sql.DB, columns []string, rows [][]string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin load transaction: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(d.Relation), placeholders))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]interface{}, len(columns))
		for i := range columns {
			if i < len(row) {
				args[i] = row[i]
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load: %w", err)
	}

	return nil
}

// inferAffinity samples a column's values and picks the narrowest sqlite
// affinity that fits, so aggregates like SUM behave numerically.
func inferAffinity(rows [][]string, col int) string {
	const sampleSize = 100

	sampled := 0
	isInteger := true
	isReal := true

	for _, row := range rows {
		if sampled >= sampleSize {
			break
		}
		if col >= len(row) || row[col] == "" {
			continue
		}
		sampled++

		if _, err := strconv.ParseInt(row[col], 10, 64); err != nil {
			isInteger = false
		}
		if _, err := strconv.ParseFloat(row[col], 64); err != nil {
			isReal = false
		}
	}

	switch {
	case sampled == 0:
		return "TEXT"
	case isInteger:
		return "INTEGER"
	case isReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
