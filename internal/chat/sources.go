package chat

import "chatbridge/internal/agent"

// DefaultRetrievalTool is the tool name whose steps carry citations.
const DefaultRetrievalTool = "search_docs"

// Source is one citation unit derived from the augmented path's trace.
// Content is mandatory; title and url are best-effort.
type Source struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content"`
}

// ExtractSources derives citations from generator intermediate steps.
// Only steps from the recognized retrieval tool with a structured result
// contribute; everything else is silently skipped, never an error.
func ExtractSources(steps []agent.Step, retrievalTool string) []Source {
	sources := []Source{}

	for _, step := range steps {
		if step.Tool != retrievalTool || step.Result == nil {
			continue
		}
		for _, doc := range step.Result.Documents {
			src := Source{Content: doc.PageContent}
			if doc.Metadata != nil {
				src.Title = doc.Metadata["title"]
				src.URL = doc.Metadata["url"]
			}
			sources = append(sources, src)
		}
	}

	return sources
}
