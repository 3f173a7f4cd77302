package validate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PlanChecker confirms a statement parses and plans without executing
// it. The warehouse store satisfies this.
type PlanChecker interface {
	PlanCheck(ctx context.Context, sqlText string) error
}

// Result is the outcome of one validation pass. SQL carries the
// possibly rewritten statement when a LIMIT clause was injected.
type Result struct {
	Valid  bool
	Reason string
	SQL    string
}

// Mutating keywords are rejected anywhere in the statement, including
// inside strings and comments. That is deliberately conservative: a
// false rejection costs a retry, a false acceptance costs data.
var forbiddenKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "TRUNCATE", "CREATE", "REPLACE",
}

var (
	forbiddenPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)
	tableRefPattern  = regexp.MustCompile(`(?i)\b(?:from|join)\s+([A-Za-z_][A-Za-z0-9_."]*)`)
	ctePattern       = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*)\s+as\s*\(`)
	limitPattern     = regexp.MustCompile(`(?i)\blimit\s+\d+`)
)

// Validator runs the deterministic safety checks in a fixed order and
// short-circuits on the first failure. It never calls the generation
// backend.
type Validator struct {
	planChecker PlanChecker
	rowCap      int
}

func New(planChecker PlanChecker, rowCap int) *Validator {
	if rowCap <= 0 {
		rowCap = 50
	}
	return &Validator{planChecker: planChecker, rowCap: rowCap}
}

// Validate checks sqlText against the known table names. On success the
// returned SQL must be used in place of the input because a LIMIT
// clause may have been appended.
func (v *Validator) Validate(ctx context.Context, sqlText string, tables []string) Result {
	trimmed := stripTrailingSemicolons(sqlText)
	if trimmed == "" {
		return invalid("no SQL statement to validate")
	}
	if strings.Contains(trimmed, ";") {
		return invalid("query must be a single statement")
	}

	if match := forbiddenPattern.FindString(trimmed); match != "" {
		return invalid(fmt.Sprintf("forbidden keyword %q detected", strings.ToUpper(match)))
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return invalid("only read-only SELECT statements are allowed")
	}

	if reason := v.checkTableReferences(trimmed, tables); reason != "" {
		return invalid(reason)
	}

	if err := v.planChecker.PlanCheck(ctx, trimmed); err != nil {
		return invalid("plan check failed: " + err.Error())
	}

	if !limitPattern.MatchString(trimmed) {
		trimmed += " LIMIT " + strconv.Itoa(v.rowCap)
	}
	return Result{Valid: true, SQL: trimmed}
}

// checkTableReferences matches FROM and JOIN targets against the
// catalog. Names introduced by a CTE count as known, subquery
// parentheses never match the reference pattern.
func (v *Validator) checkTableReferences(sqlText string, tables []string) string {
	known := make(map[string]bool, len(tables))
	for _, name := range tables {
		known[strings.ToLower(name)] = true
	}
	for _, match := range ctePattern.FindAllStringSubmatch(sqlText, -1) {
		known[strings.ToLower(match[1])] = true
	}

	for _, match := range tableRefPattern.FindAllStringSubmatch(sqlText, -1) {
		name := normalizeTableName(match[1])
		if name == "" {
			continue
		}
		if !known[strings.ToLower(name)] {
			return fmt.Sprintf("unknown table %q", name)
		}
	}
	return ""
}

func normalizeTableName(raw string) string {
	name := strings.Trim(raw, `"`)
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.Trim(name, `"`)
}

func invalid(reason string) Result {
	return Result{Valid: false, Reason: reason}
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
