package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/observability"
)

const notRelevantExplanation = "I can only answer questions about the music store database. " +
	"Please ask about artists, albums, tracks, customers, sales, or employees."

// routeIntent classifies the question in a single pass. Any ambiguity,
// malformed completion or backend failure classifies as not relevant:
// no SQL is ever generated for an unclassified intent.
func (e *Engine) routeIntent(ctx context.Context, state *State) Outcome {
	completion, err := e.complete(ctx, StageRouteIntent, e.cfg.RouterModel, intentRouterPrompt(state.Question))
	if err != nil {
		e.logger.Warn("intent routing failed, classifying as not relevant", slog.String("error", err.Error()))
		state.Intent = IntentNotRelevant
		return OutcomeNotRelevant
	}

	label := strings.ToUpper(strings.TrimSpace(completion))
	if strings.Contains(label, "NOT_RELEVANT") || !strings.Contains(label, "RELEVANT") {
		state.Intent = IntentNotRelevant
		return OutcomeNotRelevant
	}
	state.Intent = IntentRelevant
	return OutcomeRelevant
}

// generateSQL produces the first candidate query. A backend failure is
// not fatal: the empty SQL falls through to the validator, which fails
// it with a concrete reason and hands it to the reflector.
func (e *Engine) generateSQL(ctx context.Context, state *State) Outcome {
	promptCtx, err := e.catalog.PromptContext(ctx)
	if err != nil {
		e.logger.Warn("schema context unavailable", slog.String("error", err.Error()))
		state.lastError = "schema catalog unavailable: " + err.Error()
		return OutcomeGenerated
	}

	completion, err := e.complete(ctx, StageGenerateSQL, e.cfg.GeneratorModel,
		sqlGeneratorPrompt(state.Question, promptCtx.Schema, promptCtx.Samples))
	if err != nil {
		e.logger.Warn("sql generation failed", slog.String("error", err.Error()))
		state.SQL = ""
		state.lastError = "sql generation failed: " + err.Error()
		return OutcomeGenerated
	}

	state.SQL = extractSQL(completion)
	state.Reasoning = extractReasoning(completion)
	return OutcomeGenerated
}

func (e *Engine) validateSQL(ctx context.Context, state *State) Outcome {
	tables, err := e.catalog.TableNames(ctx)
	if err != nil {
		state.Validation = ValidationResult{Status: ValidationInvalid, Reason: "schema catalog unavailable: " + err.Error()}
		state.lastError = state.Validation.Reason
		return OutcomeInvalid
	}

	result := e.validator.Validate(ctx, state.SQL, tables)
	if !result.Valid {
		state.Validation = ValidationResult{Status: ValidationInvalid, Reason: result.Reason}
		state.lastError = result.Reason
		return OutcomeInvalid
	}

	// The validator may have injected a LIMIT clause; the rewritten
	// statement replaces the generated one.
	state.SQL = result.SQL
	state.Validation = ValidationResult{Status: ValidationValid}
	return OutcomeValid
}

func (e *Engine) execute(ctx context.Context, state *State) Outcome {
	result, err := e.store.Execute(ctx, state.SQL, e.cfg.MaxResultRows)
	if err != nil {
		state.Execution = ExecutionResult{Status: ExecutionError, ErrorMessage: err.Error()}
		state.lastError = err.Error()
		return OutcomeError
	}

	state.Execution = ExecutionResult{
		Status:    ExecutionSuccess,
		Columns:   result.Columns,
		Rows:      result.Rows,
		Truncated: result.Truncated,
		Duration:  result.Duration,
	}
	observability.ObserveResultRows(len(result.Rows))
	return OutcomeSuccess
}

// reflect is the single convergence point for validation and execution
// failures. The retry counter is incremented before the cap check, so
// the check always runs against the post-increment value. At the cap
// no further generation call is made.
func (e *Engine) reflect(ctx context.Context, state *State) Outcome {
	state.RetryCount++
	if state.RetryCount >= e.cfg.MaxRetries {
		return OutcomeGiveUp
	}
	observability.IncrementRetries()

	schemaText, err := e.catalog.AnnotatedSchema(ctx)
	if err != nil {
		schemaText = ""
	}

	completion, err := e.complete(ctx, StageReflect, e.cfg.ReflectorModel,
		errorReflectionPrompt(state.Question, state.SQL, state.lastError, state.Reasoning, schemaText))
	if err != nil {
		// Keep the prior query; the validator will fail it again and
		// the loop stays bounded by the shared counter.
		e.logger.Warn("error reflection failed",
			slog.Int("retry_count", state.RetryCount),
			slog.String("error", err.Error()))
		return OutcomeRetry
	}

	corrected := extractSQL(completion)
	if corrected != "" {
		state.SQL = corrected
	}
	if explanation := extractExplanation(completion); explanation != "" {
		state.Reasoning = fmt.Sprintf("Retry %d: %s", state.RetryCount, explanation)
	}
	state.Validation = ValidationResult{}
	state.Execution = ExecutionResult{}
	return OutcomeRetry
}

// visualize recommends a chart for the result shape. It never blocks a
// successful traversal: empty results, malformed recommendations and
// backend failures all collapse to no chart.
func (e *Engine) visualize(ctx context.Context, state *State) Outcome {
	if len(state.Execution.Rows) == 0 {
		return OutcomeVisualized
	}

	completion, err := e.complete(ctx, StageVisualize, e.cfg.VisualizerModel,
		visualizationPrompt(state.Question, state.Execution.Columns, len(state.Execution.Rows)))
	if err != nil {
		e.logger.Warn("visualization recommendation failed", slog.String("error", err.Error()))
		return OutcomeVisualized
	}

	state.Visualization = parseVisualization(completion, state.Execution.Columns)
	return OutcomeVisualized
}

// formatResponse is pure assembly over the accumulated state. It is
// the only writer of Final and must succeed for every input.
func (e *Engine) formatResponse(state *State) Outcome {
	response := &Response{Reasoning: state.Reasoning}

	switch {
	case state.Intent == IntentNotRelevant:
		response.Status = StatusNotRelevant
		response.ErrorMessage = notRelevantExplanation
	case state.Execution.Status == ExecutionSuccess:
		response.Status = StatusOK
		response.SQL = state.SQL
		response.Columns = state.Execution.Columns
		response.Rows = state.Execution.Rows
		response.Chart = state.Visualization
	default:
		response.Status = StatusFailed
		response.SQL = state.SQL
		response.ErrorMessage = fmt.Sprintf(
			"I couldn't produce a working SQL query after %d attempts. Last error: %s",
			state.RetryCount, state.lastError)
	}

	state.Final = response
	return OutcomeDone
}
