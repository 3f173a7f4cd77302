package workflow

import "time"

// Intent is the router's classification of the incoming question.
type Intent int

const (
	IntentUnclassified Intent = iota
	IntentRelevant
	IntentNotRelevant
)

func (i Intent) String() string {
	switch i {
	case IntentRelevant:
		return "relevant"
	case IntentNotRelevant:
		return "not_relevant"
	default:
		return "unclassified"
	}
}

type ValidationStatus int

const (
	ValidationNotChecked ValidationStatus = iota
	ValidationValid
	ValidationInvalid
)

type ValidationResult struct {
	Status ValidationStatus
	Reason string
}

type ExecutionStatus int

const (
	ExecutionNotRun ExecutionStatus = iota
	ExecutionSuccess
	ExecutionError
)

type ExecutionResult struct {
	Status       ExecutionStatus
	Columns      []string
	Rows         [][]any
	Truncated    bool
	ErrorMessage string
	Duration     time.Duration
}

// Visualization is a chart recommendation for the query result. The
// chart type is restricted to a closed set; anything the visualizer
// cannot express in it collapses to no chart at all.
type Visualization struct {
	ChartType string `json:"chart_type"`
	XColumn   string `json:"x_column,omitempty"`
	YColumn   string `json:"y_column,omitempty"`
	Title     string `json:"title,omitempty"`
}

const (
	ChartBar  = "bar"
	ChartLine = "line"
	ChartPie  = "pie"
	ChartNone = "none"
)

const (
	StatusOK          = "ok"
	StatusNotRelevant = "not_relevant"
	StatusFailed      = "failed"
)

// Response is the consumer-facing payload assembled by the terminal
// stage.
type Response struct {
	Status       string         `json:"status"`
	Reasoning    string         `json:"reasoning,omitempty"`
	SQL          string         `json:"sql,omitempty"`
	Columns      []string       `json:"columns,omitempty"`
	Rows         [][]any        `json:"rows,omitempty"`
	Chart        *Visualization `json:"chart,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// State is the single mutable record threaded through one traversal.
// It is owned by the engine until Final is set, then handed to the
// caller and never touched again.
type State struct {
	ID       string
	Question string

	Intent        Intent
	Reasoning     string
	SQL           string
	Validation    ValidationResult
	Execution     ExecutionResult
	RetryCount    int
	Visualization *Visualization
	Final         *Response

	// lastError tracks the most recent failure across the retry loop.
	// When both a validation and an execution failure exist in the
	// traversal's history, the more recent one wins.
	lastError string

	startedAt time.Time
}

func newState(id, question string) *State {
	return &State{ID: id, Question: question, startedAt: time.Now()}
}
