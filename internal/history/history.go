// Package history records completed traversals so past questions and
// their outcomes can be inspected after the fact.
package history

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("traversal not found")

// Record is the durable summary of one traversal. Result rows are not
// stored here; large results go to the archive instead.
type Record struct {
	ID           string
	Question     string
	Status       string
	SQL          string
	Reasoning    string
	RetryCount   int
	RowCount     int
	ChartType    string
	ErrorMessage string
	Duration     time.Duration
	CreatedAt    time.Time
}

type Repository interface {
	Insert(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
	HealthCheck(ctx context.Context) error
}
