package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/archive"
	"github.com/sqlpilot/sqlpilot/internal/history"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/workflow"
)

const maxQuestionLength = 2000

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	TraversalID string `json:"traversal_id"`
	workflow.Response
	Stats map[string]any `json:"stats"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Engine == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ENGINE_NOT_CONFIGURED", "workflow engine is not configured", false, nil)
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	if len(question) > maxQuestionLength {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_TOO_LONG", "question exceeds maximum length", false, map[string]any{"max_length": maxQuestionLength})
		return
	}

	id := newTraversalID()
	startedAt := time.Now()
	state, err := deps.Engine.Run(r.Context(), id, question)
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "TRAVERSAL_ABORTED", err.Error(), true, nil)
		return
	}

	elapsed := time.Since(startedAt)
	recordTraversal(deps, r.Context(), state, elapsed)
	writeJSON(w, http.StatusOK, askResponse{
		TraversalID: state.ID,
		Response:    *state.Final,
		Stats: map[string]any{
			"retry_count": state.RetryCount,
			"row_count":   len(state.Final.Rows),
			"duration_ms": elapsed.Milliseconds(),
		},
	})
}

// recordTraversal persists the outcome to history and, for successful
// traversals, archives result rows. Both are best effort and detached
// from the request context so a client disconnect does not lose them.
func recordTraversal(deps Dependencies, reqCtx context.Context, state *workflow.State, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(reqCtx), 10*time.Second)
	defer cancel()

	final := state.Final
	// One timestamp for both writes: the archive key is partitioned by
	// day, and result retrieval rebuilds it from the history record.
	completedAt := time.Now().UTC()
	if deps.History != nil {
		chartType := ""
		if final.Chart != nil {
			chartType = final.Chart.ChartType
		}
		rec := history.Record{
			ID:           state.ID,
			Question:     state.Question,
			Status:       final.Status,
			SQL:          final.SQL,
			Reasoning:    final.Reasoning,
			RetryCount:   state.RetryCount,
			RowCount:     len(final.Rows),
			ChartType:    chartType,
			ErrorMessage: final.ErrorMessage,
			Duration:     elapsed,
			CreatedAt:    completedAt,
		}
		if err := deps.History.Insert(ctx, rec); err != nil && deps.Logger != nil {
			observability.TraversalLogger(deps.Logger, state.ID).Warn("history insert failed",
				slog.String("error", err.Error()))
		}
	}

	if deps.Archive != nil && final.Status == workflow.StatusOK && len(final.Rows) > 0 {
		_ = deps.Archive.Write(ctx, archive.Result{
			TraversalID: state.ID,
			Question:    state.Question,
			SQL:         final.SQL,
			Columns:     final.Columns,
			Rows:        final.Rows,
			CompletedAt: completedAt,
		})
	}
}
