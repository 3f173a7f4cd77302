package warehouse

import (
	"context"
	"time"
)

type Column struct {
	Name string
	Type string
}

type TableSchema struct {
	Name    string
	Columns []Column
}

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

// Store is a read-only handle to the relational warehouse. PlanCheck
// validates syntax without executing; Execute enforces the row cap by
// truncating scanned rows, never by rewriting the query.
type Store interface {
	ListTables(ctx context.Context) ([]TableSchema, error)
	SampleRows(ctx context.Context, table string, limit int) (Result, error)
	PlanCheck(ctx context.Context, sqlText string) error
	Execute(ctx context.Context, sqlText string, rowCap int) (Result, error)
	HealthCheck(ctx context.Context) error
}
