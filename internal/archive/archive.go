// Package archive persists successful query results to the object
// store as parquet files. Archiving is best effort: a failed write is
// logged and counted but never affects the traversal's response.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/storage"
)

type resultRow struct {
	TraversalID string `parquet:"traversal_id"`
	Question    string `parquet:"question"`
	SQL         string `parquet:"sql"`
	Columns     string `parquet:"columns"`
	RowIndex    int64  `parquet:"row_index"`
	RowJSON     string `parquet:"row_json"`
	ArchivedAt  int64  `parquet:"archived_at_unix_ms"`
}

// Result is the slice of a traversal the archive keeps.
type Result struct {
	TraversalID string
	Question    string
	SQL         string
	Columns     []string
	Rows        [][]any
	CompletedAt time.Time
}

type Archive struct {
	store  storage.ObjectStore
	logger *slog.Logger
}

func New(store storage.ObjectStore, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{store: store, logger: logger}
}

// Write encodes the result and uploads it under the traversal's
// archive key. Callers treat a returned error as diagnostic only.
func (a *Archive) Write(ctx context.Context, result Result) error {
	key, err := storage.BuildArchivePath(result.TraversalID, result.CompletedAt)
	if err != nil {
		observability.ObserveArchiveWrite("error")
		return err
	}

	data, err := encodeResult(result)
	if err != nil {
		observability.ObserveArchiveWrite("error")
		return err
	}

	if _, err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
	}); err != nil {
		observability.ObserveArchiveWrite("error")
		a.logger.Warn("archive write failed",
			slog.String("traversal_id", result.TraversalID),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return err
	}

	observability.ObserveArchiveWrite("ok")
	a.logger.Debug("archived traversal result",
		slog.String("traversal_id", result.TraversalID),
		slog.String("key", key),
		slog.Int("rows", len(result.Rows)))
	return nil
}

// Open streams back a previously archived result set. completedAt
// selects the date partition the object was written under; callers
// take it from the traversal's history record.
func (a *Archive) Open(ctx context.Context, traversalID string, completedAt time.Time) (io.ReadCloser, error) {
	key, err := storage.BuildArchivePath(traversalID, completedAt)
	if err != nil {
		return nil, err
	}
	return a.store.Get(ctx, key)
}

func encodeResult(result Result) ([]byte, error) {
	if result.TraversalID == "" {
		return nil, fmt.Errorf("traversal id is required")
	}
	archivedAt := time.Now().UnixMilli()
	columns := strings.Join(result.Columns, ",")

	rows := make([]resultRow, 0, len(result.Rows))
	for i, values := range result.Rows {
		encoded, err := json.Marshal(values)
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		rows = append(rows, resultRow{
			TraversalID: result.TraversalID,
			Question:    result.Question,
			SQL:         result.SQL,
			Columns:     columns,
			RowIndex:    int64(i),
			RowJSON:     string(encoded),
			ArchivedAt:  archivedAt,
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[resultRow](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
