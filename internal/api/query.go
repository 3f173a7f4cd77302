package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type queryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	Truncated  bool     `json:"truncated"`
	DurationMS int64    `json:"duration_ms"`
}

// handleQuery executes caller-supplied SQL through the same safety
// validator the workflow uses. There is no retry loop here; an invalid
// statement is the caller's problem.
func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Warehouse == nil || deps.Validator == nil || deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	tables, err := deps.Catalog.TableNames(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_ERROR", "failed to load schema catalog", true, map[string]any{"details": err.Error()})
		return
	}

	result := deps.Validator.Validate(r.Context(), req.SQL, tables)
	if !result.Valid {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REJECTED", result.Reason, false, nil)
		return
	}

	start := time.Now()
	executed, err := deps.Warehouse.Execute(r.Context(), result.SQL, rowCap(deps))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "EXECUTION_FAILED", err.Error(), false, nil)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Columns:    executed.Columns,
		Rows:       executed.Rows,
		Truncated:  executed.Truncated,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

func rowCap(deps Dependencies) int {
	if deps.MaxResultRows > 0 {
		return deps.MaxResultRows
	}
	return 50
}
