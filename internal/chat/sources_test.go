package chat

import (
	"testing"

	"chatbridge/internal/agent"
)

func TestExtractSourcesFiltersSteps(t *testing.T) {
	t.Parallel()

	docs := []agent.Document{
		{PageContent: "first", Metadata: map[string]string{"title": "One", "url": "https://a"}},
		{PageContent: "second", Metadata: map[string]string{"title": "Two"}},
		{PageContent: "third"},
	}

	steps := []agent.Step{
		{Tool: "calculator", ToolInput: "1+1"},
		{Tool: "web_search", Result: &agent.ToolResult{Documents: docs[:1]}},
		{Tool: "search_docs", Result: &agent.ToolResult{Documents: docs}},
		{Tool: "search_docs"}, // plain-text observation, no structured result
		{Tool: "summarize", ToolInput: "x"},
	}

	sources := ExtractSources(steps, "search_docs")
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d: %#v", len(sources), sources)
	}
	if sources[0].Title != "One" || sources[0].URL != "https://a" || sources[0].Content != "first" {
		t.Fatalf("unexpected first source: %#v", sources[0])
	}
	if sources[1].Title != "Two" || sources[1].URL != "" {
		t.Fatalf("unexpected second source: %#v", sources[1])
	}
	if sources[2].Title != "" || sources[2].Content != "third" {
		t.Fatalf("unexpected third source: %#v", sources[2])
	}
}

func TestExtractSourcesEmptyTrace(t *testing.T) {
	t.Parallel()

	if got := ExtractSources(nil, "search_docs"); len(got) != 0 {
		t.Fatalf("expected no sources from empty trace, got %#v", got)
	}

	steps := []agent.Step{
		{Tool: "other_tool", Result: &agent.ToolResult{Documents: []agent.Document{{PageContent: "x"}}}},
	}
	if got := ExtractSources(steps, "search_docs"); len(got) != 0 {
		t.Fatalf("expected no sources from unrecognized tool, got %#v", got)
	}
}
