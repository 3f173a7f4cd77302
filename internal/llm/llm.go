// Package llm defines the boundary to the text-generation backend. The
// workflow engine only sees the Client interface; the concrete
// OpenAI-compatible implementation lives in openai.go and deterministic
// stubs live in the tests of whoever consumes it.
package llm

import "context"

type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
}

type Completion struct {
	Text     string
	Provider string
	Model    string
}

type Client interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}
