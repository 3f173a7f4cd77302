package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/sqlpilot/sqlpilot/internal/warehouse"
)

type Store struct {
	db *sql.DB
}

// Open opens the warehouse file in read-only mode. Mutating statements are
// rejected by the engine itself on top of the validator's own checks.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("warehouse path is required")
	}
	db, err := sql.Open("duckdb", path+"?access_mode=read_only")
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	return &Store{db: db}, nil
}

func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping warehouse: %w", err)
	}
	return nil
}

func (s *Store) ListTables(ctx context.Context) ([]warehouse.TableSchema, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = 'main'
ORDER BY table_name, ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("list warehouse columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byName := map[string]*warehouse.TableSchema{}
	order := make([]string, 0)
	for rows.Next() {
		var tableName, columnName, dataType string
		if err := rows.Scan(&tableName, &columnName, &dataType); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		table, ok := byName[tableName]
		if !ok {
			table = &warehouse.TableSchema{Name: tableName}
			byName[tableName] = table
			order = append(order, tableName)
		}
		table.Columns = append(table.Columns, warehouse.Column{Name: columnName, Type: dataType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	tables := make([]warehouse.TableSchema, 0, len(order))
	for _, name := range order {
		tables = append(tables, *byName[name])
	}
	return tables, nil
}

func (s *Store) SampleRows(ctx context.Context, table string, limit int) (warehouse.Result, error) {
	if limit <= 0 {
		limit = 3
	}
	sqlText := "SELECT * FROM " + quoteIdent(table) + " LIMIT " + strconv.Itoa(limit)
	return s.Execute(ctx, sqlText, limit)
}

// PlanCheck runs EXPLAIN against the store. It never executes the query and
// has no side effects; a planner error is returned verbatim.
func (s *Store) PlanCheck(ctx context.Context, sqlText string) error {
	trimmed := stripTrailingSemicolons(sqlText)
	if trimmed == "" {
		return fmt.Errorf("sql is required")
	}
	rows, err := s.db.QueryContext(ctx, "EXPLAIN "+trimmed)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
	}
	return rows.Err()
}

func (s *Store) Execute(ctx context.Context, sqlText string, rowCap int) (warehouse.Result, error) {
	trimmed := stripTrailingSemicolons(sqlText)
	if trimmed == "" {
		return warehouse.Result{}, fmt.Errorf("sql is required")
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return warehouse.Result{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	truncated := false
	for rows.Next() {
		if rowCap > 0 && len(resultRows) >= rowCap {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return warehouse.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if !truncated {
		if err := rows.Err(); err != nil {
			return warehouse.Result{}, err
		}
	}

	return warehouse.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
