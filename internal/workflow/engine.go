// Package workflow implements the traversal of a natural-language
// question through the stage graph: intent routing, SQL generation,
// safety validation, execution, error reflection with a bounded retry
// budget, visualization and response formatting.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/schema"
	"github.com/sqlpilot/sqlpilot/internal/validate"
	"github.com/sqlpilot/sqlpilot/internal/warehouse"
)

type Stage string

const (
	StageRouteIntent    Stage = "route_intent"
	StageGenerateSQL    Stage = "generate_sql"
	StageValidateSQL    Stage = "validate_sql"
	StageExecute        Stage = "execute"
	StageReflect        Stage = "reflect"
	StageVisualize      Stage = "visualize"
	StageFormatResponse Stage = "format_response"

	stageDone Stage = "done"
)

type Outcome string

const (
	OutcomeRelevant    Outcome = "relevant"
	OutcomeNotRelevant Outcome = "not_relevant"
	OutcomeGenerated   Outcome = "generated"
	OutcomeValid       Outcome = "valid"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeSuccess     Outcome = "success"
	OutcomeError       Outcome = "error"
	OutcomeRetry       Outcome = "retry"
	OutcomeGiveUp      Outcome = "give_up"
	OutcomeVisualized  Outcome = "visualized"
	OutcomeDone        Outcome = "done"
)

type edge struct {
	stage   Stage
	outcome Outcome
}

// transitions is the complete routing table. Keeping it as data makes
// the graph inspectable and lets tests assert on routing without
// running stage bodies.
var transitions = map[edge]Stage{
	{StageRouteIntent, OutcomeRelevant}:    StageGenerateSQL,
	{StageRouteIntent, OutcomeNotRelevant}: StageFormatResponse,
	{StageGenerateSQL, OutcomeGenerated}:   StageValidateSQL,
	{StageValidateSQL, OutcomeValid}:       StageExecute,
	{StageValidateSQL, OutcomeInvalid}:     StageReflect,
	{StageExecute, OutcomeSuccess}:         StageVisualize,
	{StageExecute, OutcomeError}:           StageReflect,
	{StageReflect, OutcomeRetry}:           StageValidateSQL,
	{StageReflect, OutcomeGiveUp}:          StageFormatResponse,
	{StageVisualize, OutcomeVisualized}:    StageFormatResponse,
	{StageFormatResponse, OutcomeDone}:     stageDone,
}

// Config carries the per-traversal knobs. Zero values fall back to the
// service defaults.
type Config struct {
	MaxRetries      int
	MaxResultRows   int
	RouterModel     string
	GeneratorModel  string
	ReflectorModel  string
	VisualizerModel string
	Temperature     float64
	CallTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxResultRows <= 0 {
		c.MaxResultRows = 50
	}
	return c
}

// Engine drives one traversal at a time per Run call. It holds no
// per-traversal state itself, so a single Engine serves concurrent
// requests.
type Engine struct {
	generator llm.Client
	catalog   *schema.Catalog
	validator *validate.Validator
	store     warehouse.Store
	logger    *slog.Logger
	cfg       Config
}

func NewEngine(generator llm.Client, catalog *schema.Catalog, validator *validate.Validator, store warehouse.Store, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		generator: generator,
		catalog:   catalog,
		validator: validator,
		store:     store,
		logger:    logger,
		cfg:       cfg.withDefaults(),
	}
}

// Run traverses the stage graph for one question. The returned state
// always carries a final response unless the context was cancelled, in
// which case the context error is returned and the state discarded.
func (e *Engine) Run(ctx context.Context, id, question string) (*State, error) {
	state := newState(id, question)
	logger := observability.TraversalLogger(e.logger, id)

	current := StageRouteIntent
	for current != stageDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stageStart := time.Now()
		outcome := e.dispatch(ctx, current, state)
		observability.ObserveStage(string(current), time.Since(stageStart))
		logger.Debug("stage complete",
			slog.String("stage", string(current)),
			slog.String("outcome", string(outcome)),
			slog.Int("retry_count", state.RetryCount))

		next, ok := transitions[edge{current, outcome}]
		if !ok {
			return nil, fmt.Errorf("no transition from stage %s with outcome %s", current, outcome)
		}
		current = next
	}

	elapsed := time.Since(state.startedAt)
	observability.ObserveTraversal(state.Final.Status, elapsed)
	logger.Info("traversal complete",
		slog.String("status", state.Final.Status),
		slog.Int("retry_count", state.RetryCount),
		slog.Duration("elapsed", elapsed))
	return state, nil
}

func (e *Engine) dispatch(ctx context.Context, stage Stage, state *State) Outcome {
	switch stage {
	case StageRouteIntent:
		return e.routeIntent(ctx, state)
	case StageGenerateSQL:
		return e.generateSQL(ctx, state)
	case StageValidateSQL:
		return e.validateSQL(ctx, state)
	case StageExecute:
		return e.execute(ctx, state)
	case StageReflect:
		return e.reflect(ctx, state)
	case StageVisualize:
		return e.visualize(ctx, state)
	case StageFormatResponse:
		return e.formatResponse(state)
	default:
		return OutcomeDone
	}
}

// complete wraps one generation call with the configured per-call
// deadline. Each stage that talks to the backend goes through here so
// cancellation is honored at every suspension point.
func (e *Engine) complete(ctx context.Context, stage Stage, model, prompt string) (string, error) {
	callCtx := ctx
	if e.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
	}
	completion, err := e.generator.Complete(callCtx, llm.Request{
		Model:       model,
		Prompt:      prompt,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		observability.ObserveGenerationCall(string(stage), "error")
		return "", err
	}
	observability.ObserveGenerationCall(string(stage), "ok")
	return completion.Text, nil
}
