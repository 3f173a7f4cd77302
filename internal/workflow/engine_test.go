package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/schema"
	"github.com/sqlpilot/sqlpilot/internal/validate"
	"github.com/sqlpilot/sqlpilot/internal/warehouse"
)

// scriptedClient answers generation calls deterministically by prompt
// kind. Reflection replies are consumed in order, the last one repeats.
type scriptedClient struct {
	routerReply      string
	routerErr        error
	generatorReply   string
	generatorErr     error
	reflectorReplies []string
	reflectorErr     error
	visualizerReply  string
	visualizerErr    error

	generatorCalls   int
	reflectorCalls   int
	visualizerCalls  int
	reflectorPrompts []string
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	switch {
	case strings.Contains(req.Prompt, "intent classifier"):
		if c.routerErr != nil {
			return llm.Completion{}, c.routerErr
		}
		return llm.Completion{Text: c.routerReply}, nil
	case strings.Contains(req.Prompt, "expert SQL generator"):
		c.generatorCalls++
		if c.generatorErr != nil {
			return llm.Completion{}, c.generatorErr
		}
		return llm.Completion{Text: c.generatorReply}, nil
	case strings.Contains(req.Prompt, "SQL debugger"):
		c.reflectorPrompts = append(c.reflectorPrompts, req.Prompt)
		if c.reflectorErr != nil {
			c.reflectorCalls++
			return llm.Completion{}, c.reflectorErr
		}
		idx := c.reflectorCalls
		if idx >= len(c.reflectorReplies) {
			idx = len(c.reflectorReplies) - 1
		}
		c.reflectorCalls++
		if idx < 0 {
			return llm.Completion{Text: ""}, nil
		}
		return llm.Completion{Text: c.reflectorReplies[idx]}, nil
	case strings.Contains(req.Prompt, "data visualization expert"):
		c.visualizerCalls++
		if c.visualizerErr != nil {
			return llm.Completion{}, c.visualizerErr
		}
		return llm.Completion{Text: c.visualizerReply}, nil
	default:
		return llm.Completion{}, fmt.Errorf("unrecognized prompt: %.60s", req.Prompt)
	}
}

// fakeWarehouse satisfies warehouse.Store with scripted plan and
// execution behavior.
type fakeWarehouse struct {
	tables       []warehouse.TableSchema
	planErr      func(sqlText string) error
	executeErr   func(sqlText string) error
	result       warehouse.Result
	executedSQL  []string
	executeCalls int
	lastRowCap   int
}

func (f *fakeWarehouse) ListTables(context.Context) ([]warehouse.TableSchema, error) {
	return f.tables, nil
}

func (f *fakeWarehouse) SampleRows(context.Context, string, int) (warehouse.Result, error) {
	return warehouse.Result{}, nil
}

func (f *fakeWarehouse) PlanCheck(_ context.Context, sqlText string) error {
	if f.planErr != nil {
		return f.planErr(sqlText)
	}
	return nil
}

func (f *fakeWarehouse) Execute(_ context.Context, sqlText string, rowCap int) (warehouse.Result, error) {
	f.executeCalls++
	f.executedSQL = append(f.executedSQL, sqlText)
	f.lastRowCap = rowCap
	if f.executeErr != nil {
		if err := f.executeErr(sqlText); err != nil {
			return warehouse.Result{}, err
		}
	}
	return f.result, nil
}

func (f *fakeWarehouse) HealthCheck(context.Context) error { return nil }

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{
		tables: []warehouse.TableSchema{
			{Name: "Artist", Columns: []warehouse.Column{{Name: "ArtistId", Type: "INTEGER"}, {Name: "Name", Type: "VARCHAR"}}},
			{Name: "Track", Columns: []warehouse.Column{{Name: "TrackId", Type: "INTEGER"}, {Name: "Name", Type: "VARCHAR"}}},
		},
		result: warehouse.Result{
			Columns: []string{"Name", "TimesSold"},
			Rows:    [][]any{{"Thunderstruck", int64(42)}, {"Back In Black", int64(31)}},
		},
	}
}

func newTestEngine(client llm.Client, store *fakeWarehouse, maxRetries int) *Engine {
	catalog := schema.NewCatalog(store, 3)
	validator := validate.New(store, 50)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewEngine(client, catalog, validator, store, logger, Config{
		MaxRetries:    maxRetries,
		MaxResultRows: 50,
	})
}

func generatorReply(reasoning, sqlText string) string {
	return reasoning + "\n\nSQL:\n```sql\n" + sqlText + "\n```"
}

func reflectorReply(explanation, sqlText string) string {
	return "Explanation: " + explanation + "\n```sql\n" + sqlText + "\n```"
}

func TestHappyPathProducesOKResponse(t *testing.T) {
	store := newFakeWarehouse()
	client := &scriptedClient{
		routerReply:     "RELEVANT",
		generatorReply:  generatorReply("The Track table has what we need.", "SELECT Name FROM Track"),
		visualizerReply: `{"chart_type": "bar", "x_column": "Name", "y_column": "TimesSold", "title": "Top Tracks"}`,
	}
	engine := newTestEngine(client, store, 3)

	state, err := engine.Run(context.Background(), "t-1", "Show me top selling tracks")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	final := state.Final
	if final.Status != StatusOK {
		t.Fatalf("status = %q, errorMessage = %q", final.Status, final.ErrorMessage)
	}
	if final.SQL != "SELECT Name FROM Track LIMIT 50" {
		t.Fatalf("SQL = %q", final.SQL)
	}
	if len(final.Rows) != 2 {
		t.Fatalf("rows = %d", len(final.Rows))
	}
	if final.Chart == nil || final.Chart.ChartType != ChartBar {
		t.Fatalf("chart = %#v", final.Chart)
	}
	if state.RetryCount != 0 {
		t.Fatalf("retryCount = %d", state.RetryCount)
	}
	if final.Reasoning != "The Track table has what we need." {
		t.Fatalf("reasoning = %q", final.Reasoning)
	}
}

func TestNotRelevantQuestionShortCircuits(t *testing.T) {
	store := newFakeWarehouse()
	client := &scriptedClient{routerReply: "NOT_RELEVANT"}
	engine := newTestEngine(client, store, 3)

	state, err := engine.Run(context.Background(), "t-2", "What's the weather today?")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Final.Status != StatusNotRelevant {
		t.Fatalf("status = %q", state.Final.Status)
	}
	if state.Final.SQL != "" {
		t.Fatalf("no SQL should be generated, got %q", state.Final.SQL)
	}
	if client.generatorCalls != 0 {
		t.Fatalf("generator was called %d times", client.generatorCalls)
	}
	if store.executeCalls != 0 {
		t.Fatalf("executor was called %d times", store.executeCalls)
	}
}

func TestRouterFailureFailsClosed(t *testing.T) {
	store := newFakeWarehouse()
	client := &scriptedClient{routerErr: errors.New("backend timeout")}
	engine := newTestEngine(client, store, 3)

	state, err := engine.Run(context.Background(), "t-3", "Show me top selling tracks")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Final.Status != StatusNotRelevant {
		t.Fatalf("status = %q", state.Final.Status)
	}
}

func TestAmbiguousRouterLabelFailsClosed(t *testing.T) {
	store := newFakeWarehouse()
	client := &scriptedClient{routerReply: "maybe, hard to say"}
	engine := newTestEngine(client, store, 3)

	state, err := engine.Run(context.Background(), "t-4", "hmm")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Final.Status != StatusNotRelevant {
		t.Fatalf("status = %q", state.Final.Status)
	}
}

func TestMutatingSQLNeverExecutes(t *testing.T) {
	store := newFakeWarehouse()
	client := &scriptedClient{
		routerReply:      "RELEVANT",
		generatorReply:   generatorReply("dropping it", "DROP TABLE albums"),
		reflectorReplies: []string{reflectorReply("still wrong", "DELETE FROM Artist")},
	}
	engine := newTestEngine(client, store, 3)

	state, err := engine.Run(context.Background(), "t-5", "remove everything")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Final.Status != StatusFailed {
		t.Fatalf("status = %q", state.Final.Status)
	}
	if store.executeCalls != 0 {
		t.Fatalf("mutating SQL reached the executor %d times", store.executeCalls)
	}
	if !strings.Contains(state.Final.ErrorMessage, "forbidden keyword") {
		t.Fatalf("errorMessage = %q", state.Final.ErrorMessage)
	}
}

func TestThirdAttemptSucceeds(t *testing.T) {
	store := newFakeWarehouse()
	client := &scriptedClient{
		routerReply:    "RELEVANT",
		generatorReply: generatorReply("guessing a table", "SELECT * FROM Nope"),
		reflectorReplies: []string{
			reflectorReply("wrong table again", "SELECT * FROM StillNope"),
			reflectorReply("found the real table", "SELECT Name FROM Artist"),
		},
		visualizerReply: `{"chart_type": "none"}`,
	}
	engine := newTestEngine(client, store, 3)

	state, err := engine.Run(context.Background(), "t-6", "list artists")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Final.Status != StatusOK {
		t.Fatalf("status = %q, errorMessage = %q", state.Final.Status, state.Final.ErrorMessage)
	}
	if state.RetryCount != 2 {
		t.Fatalf("retryCount = %d, want 2", state.RetryCount)
	}
}

func TestRetryExhaustionSurfacesLastReason(t *testing.T) {
	store := newFakeWarehouse()
	client := &scriptedClient{
		routerReply:    "RELEVANT",
		generatorReply: generatorReply("guessing", "SELECT * FROM Nope"),
		reflectorReplies: []string{
			reflectorReply("another guess", "SELECT * FROM StillNope"),
		},
	}
	maxRetries := 3
	engine := newTestEngine(client, store, maxRetries)

	state, err := engine.Run(context.Background(), "t-7", "list artists")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Final.Status != StatusFailed {
		t.Fatalf("status = %q", state.Final.Status)
	}
	if state.RetryCount > maxRetries {
		t.Fatalf("retryCount = %d exceeds maximum %d", state.RetryCount, maxRetries)
	}
	if !strings.Contains(state.Final.ErrorMessage, `"StillNope"`) {
		t.Fatalf("errorMessage should carry the last validator reason, got %q", state.Final.ErrorMessage)
	}
	// The cap check runs on the post-increment value, so the final
	// reflector pass makes no generation call.
	if client.reflectorCalls != maxRetries-1 {
		t.Fatalf("reflector generation calls = %d, want %d", client.reflectorCalls, maxRetries-1)
	}
}

func TestExecutionErrorSharesRetryBudget(t *testing.T) {
	store := newFakeWarehouse()
	store.executeErr = func(sqlText string) error {
		if strings.Contains(sqlText, "Artist") {
			return nil
		}
		return errors.New("Binder Error: aggregate without GROUP BY")
	}
	client := &scriptedClient{
		routerReply:    "RELEVANT",
		generatorReply: generatorReply("first try", "SELECT Name, COUNT(*) FROM Track"),
		reflectorReplies: []string{
			reflectorReply("added the group by", "SELECT Name FROM Artist"),
		},
		visualizerReply: `{"chart_type": "none"}`,
	}
	engine := newTestEngine(client, store, 3)

	state, err := engine.Run(context.Background(), "t-8", "count tracks by name")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Final.Status != StatusOK {
		t.Fatalf("status = %q, errorMessage = %q", state.Final.Status, state.Final.ErrorMessage)
	}
	if state.RetryCount != 1 {
		t.Fatalf("retryCount = %d, want 1", state.RetryCount)
	}
	// The repair prompt carries the store's error verbatim plus the
	// reasoning that produced the failing query.
	if len(client.reflectorPrompts) != 1 || !strings.Contains(client.reflectorPrompts[0], "Binder Error") {
		t.Fatalf("reflector prompt missing execution error: %d prompts", len(client.reflectorPrompts))
	}
	if !strings.Contains(client.reflectorPrompts[0], "first try") {
		t.Fatalf("reflector prompt missing prior reasoning: %s", client.reflectorPrompts[0])
	}
}

func TestGeneratorFailureFeedsReflector(t *testing.T) {
	store := newFakeWarehouse()
	client := &scriptedClient{
		routerReply:  "RELEVANT",
		generatorErr: errors.New("backend unavailable"),
		reflectorReplies: []string{
			reflectorReply("wrote it from scratch", "SELECT Name FROM Artist"),
		},
		visualizerReply: `{"chart_type": "none"}`,
	}
	engine := newTestEngine(client, store, 3)

	state, err := engine.Run(context.Background(), "t-9", "list artists")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Final.Status != StatusOK {
		t.Fatalf("status = %q, errorMessage = %q", state.Final.Status, state.Final.ErrorMessage)
	}
	if state.RetryCount != 1 {
		t.Fatalf("retryCount = %d, want 1", state.RetryCount)
	}
}

func TestExistingLimitPreservedRowsTruncatedByCap(t *testing.T) {
	store := newFakeWarehouse()
	store.result = warehouse.Result{
		Columns:   []string{"Name"},
		Rows:      make([][]any, 50),
		Truncated: true,
	}
	client := &scriptedClient{
		routerReply:     "RELEVANT",
		generatorReply:  generatorReply("big scan", "SELECT Name FROM Track LIMIT 1000"),
		visualizerReply: `{"chart_type": "none"}`,
	}
	engine := newTestEngine(client, store, 3)

	state, err := engine.Run(context.Background(), "t-10", "all tracks")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Final.SQL != "SELECT Name FROM Track LIMIT 1000" {
		t.Fatalf("SQL = %q", state.Final.SQL)
	}
	if store.lastRowCap != 50 {
		t.Fatalf("rowCap = %d, want 50", store.lastRowCap)
	}
	if len(state.Final.Rows) != 50 {
		t.Fatalf("rows = %d, want 50", len(state.Final.Rows))
	}
}

func TestMalformedVisualizationFallsBackToNone(t *testing.T) {
	store := newFakeWarehouse()
	client := &scriptedClient{
		routerReply:     "RELEVANT",
		generatorReply:  generatorReply("simple", "SELECT Name FROM Artist"),
		visualizerReply: "I think a holographic display would be ideal here",
	}
	engine := newTestEngine(client, store, 3)

	state, err := engine.Run(context.Background(), "t-11", "list artists")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Final.Status != StatusOK {
		t.Fatalf("status = %q", state.Final.Status)
	}
	if state.Final.Chart != nil {
		t.Fatalf("chart = %#v, want nil", state.Final.Chart)
	}
}

func TestVisualizerFailureDoesNotBlockTraversal(t *testing.T) {
	store := newFakeWarehouse()
	client := &scriptedClient{
		routerReply:    "RELEVANT",
		generatorReply: generatorReply("simple", "SELECT Name FROM Artist"),
		visualizerErr:  errors.New("backend timeout"),
	}
	engine := newTestEngine(client, store, 3)

	state, err := engine.Run(context.Background(), "t-12", "list artists")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Final.Status != StatusOK {
		t.Fatalf("status = %q", state.Final.Status)
	}
	if state.Final.Chart != nil {
		t.Fatalf("chart = %#v, want nil", state.Final.Chart)
	}
}

func TestIdempotentTraversals(t *testing.T) {
	run := func() *Response {
		store := newFakeWarehouse()
		client := &scriptedClient{
			routerReply:     "RELEVANT",
			generatorReply:  generatorReply("same plan every time", "SELECT Name FROM Track"),
			visualizerReply: `{"chart_type": "bar", "x_column": "Name", "y_column": "TimesSold", "title": "Top"}`,
		}
		engine := newTestEngine(client, store, 3)
		state, err := engine.Run(context.Background(), "t-13", "top tracks")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return state.Final
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("responses differ:\n%#v\n%#v", first, second)
	}
}

func TestCancellationStopsTraversal(t *testing.T) {
	store := newFakeWarehouse()
	client := &scriptedClient{routerReply: "RELEVANT", generatorReply: generatorReply("x", "SELECT Name FROM Artist")}
	engine := newTestEngine(client, store, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Run(ctx, "t-14", "list artists"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestTransitionTableIsClosed(t *testing.T) {
	stages := map[Stage]bool{
		StageRouteIntent:    true,
		StageGenerateSQL:    true,
		StageValidateSQL:    true,
		StageExecute:        true,
		StageReflect:        true,
		StageVisualize:      true,
		StageFormatResponse: true,
		stageDone:           true,
	}
	for from, to := range transitions {
		if !stages[from.stage] {
			t.Fatalf("transition from unknown stage %q", from.stage)
		}
		if !stages[to] {
			t.Fatalf("transition to unknown stage %q", to)
		}
	}
	if transitions[edge{StageFormatResponse, OutcomeDone}] != stageDone {
		t.Fatal("format_response must be terminal")
	}
}
