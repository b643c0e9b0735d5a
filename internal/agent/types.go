package agent

import (
	"context"
	"fmt"
)

// Path names for the two generator flavors.
const (
	PathAugmented = "augmented"
	PathPlain     = "plain"
)

// Message is one conversation turn as seen by a generator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Input is the payload for one generator invocation.
type Input struct {
	Query   string    `json:"input"`
	History []Message `json:"history"`
}

// Document is one retrieved document inside a tool result.
type Document struct {
	PageContent string            `json:"page_content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ToolResult is the structured observation of a retrieval tool. Nil when
// the tool returned plain text.
type ToolResult struct {
	Documents []Document `json:"documents"`
}

// Step pairs a tool invocation with its observation. Non-retrieval tools
// leave Result nil.
type Step struct {
	Tool      string      `json:"tool"`
	ToolInput string      `json:"tool_input,omitempty"`
	Result    *ToolResult `json:"result,omitempty"`
}

// Result is the outcome of one generator invocation.
type Result struct {
	Output            string `json:"output"`
	IntermediateSteps []Step `json:"intermediate_steps,omitempty"`
}

// Generator is one asynchronous response generator (augmented or plain),
// owned by an external agent-management service.
type Generator interface {
	Invoke(ctx context.Context, in Input) (*Result, error)
}

// Manager pairs the two generator flavors.
type Manager struct {
	Augmented Generator
	Plain     Generator
}

// GenerationError wraps a failed or timed-out generator invocation with
// the path it came from.
type GenerationError struct {
	Path    string
	Timeout bool
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("agent: %s generator timed out: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("agent: %s generator failed: %v", e.Path, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
