package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/history"
	"github.com/sqlpilot/sqlpilot/internal/storage"
	"github.com/sqlpilot/sqlpilot/internal/workflow"
)

type traversalSummary struct {
	TraversalID  string    `json:"traversal_id"`
	Question     string    `json:"question"`
	Status       string    `json:"status"`
	SQL          string    `json:"sql,omitempty"`
	Reasoning    string    `json:"reasoning,omitempty"`
	RetryCount   int       `json:"retry_count"`
	RowCount     int       `json:"row_count"`
	ChartType    string    `json:"chart_type,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

func handleListTraversals(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "traversal history is not configured", false, nil)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be an integer between 1 and 500", false, nil)
			return
		}
		limit = parsed
	}

	records, err := deps.History.List(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to list traversals", true, map[string]any{"details": err.Error()})
		return
	}

	summaries := make([]traversalSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, toSummary(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"traversals": summaries})
}

func handleGetTraversal(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "traversal history is not configured", false, nil)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "ID_REQUIRED", "traversal id is required", false, nil)
		return
	}

	rec, err := deps.History.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "TRAVERSAL_NOT_FOUND", "no traversal with that id", false, map[string]any{"traversal_id": id})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to load traversal", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toSummary(rec))
}

// handleGetTraversalResult streams the archived parquet result set for
// a successful traversal. The history record supplies the completion
// day that locates the object's date partition.
func handleGetTraversalResult(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil || deps.Archive == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "traversal result archive is not configured", false, nil)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "ID_REQUIRED", "traversal id is required", false, nil)
		return
	}

	rec, err := deps.History.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "TRAVERSAL_NOT_FOUND", "no traversal with that id", false, map[string]any{"traversal_id": id})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to load traversal", true, map[string]any{"details": err.Error()})
		return
	}
	if rec.Status != workflow.StatusOK || rec.RowCount == 0 {
		writeError(r.Context(), w, http.StatusNotFound, "RESULT_NOT_ARCHIVED", "traversal produced no archived result", false, map[string]any{"traversal_id": id, "status": rec.Status})
		return
	}

	body, err := deps.Archive.Open(r.Context(), rec.ID, rec.CreatedAt)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "RESULT_NOT_ARCHIVED", "archived result is no longer available", false, map[string]any{"traversal_id": id})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "ARCHIVE_ERROR", "failed to read archived result", true, map[string]any{"details": err.Error()})
		return
	}
	defer func() { _ = body.Close() }()

	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.ID+".parquet"))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func toSummary(rec history.Record) traversalSummary {
	return traversalSummary{
		TraversalID:  rec.ID,
		Question:     rec.Question,
		Status:       rec.Status,
		SQL:          rec.SQL,
		Reasoning:    rec.Reasoning,
		RetryCount:   rec.RetryCount,
		RowCount:     rec.RowCount,
		ChartType:    rec.ChartType,
		ErrorMessage: rec.ErrorMessage,
		DurationMS:   rec.Duration.Milliseconds(),
		CreatedAt:    rec.CreatedAt,
	}
}
