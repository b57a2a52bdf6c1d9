package types

import "time"

// ResearchResult is the output of a full research pipeline run. Read-only
// after creation; evicted from the cache by TTL expiry only.
type ResearchResult struct {
	Query     string          `json:"query"`
	Depth     ResearchDepth   `json:"depth"`
	Topics    []ResearchTopic `json:"topics"`
	Narrative string          `json:"narrative"`
	CreatedAt time.Time       `json:"created_at"`
}

// ResearchTopic is one investigated topic with the raw material gathered for
// it and the per-topic summary produced by synthesis.
type ResearchTopic struct {
	Topic      string   `json:"topic"`
	Importance float64  `json:"importance"`
	Subtopics  []string `json:"subtopics,omitempty"`
	Sources    []Source `json:"sources,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

// Source is a web source consulted during research.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Content string `json:"content,omitempty"`
}

// SourceURLs returns the distinct source URLs across all topics, in first-seen
// order.
func (r *ResearchResult) SourceURLs() []string {
	seen := make(map[string]bool)
	var urls []string
	for _, t := range r.Topics {
		for _, s := range t.Sources {
			if s.URL != "" && !seen[s.URL] {
				seen[s.URL] = true
				urls = append(urls, s.URL)
			}
		}
	}
	return urls
}
