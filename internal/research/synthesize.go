package research

import (
	"fmt"
	"strings"

	"github.com/promptlabs/enchanter-gateway/internal/types"
)

const topicSynthesisPrompt = `You are a research synthesizer. Create a comprehensive, well-structured research summary on the topic: "%s"

Guidelines:
1. Synthesize information from multiple sources
2. Focus on accuracy and relevance
3. Include key facts, statistics, and insights
4. Structure the content logically
5. Keep it concise but comprehensive
6. Don't mention the sources in the content (they're tracked separately)

Topic subtopics to cover if relevant: %s`

const finalSynthesisPrompt = `You are a master research synthesizer. Create a comprehensive, final research document that combines all the research topics into a cohesive response to the original query.

Original Query: "%s"

Guidelines:
1. Create a unified, well-structured response
2. Integrate insights from all research topics
3. Remove redundancy while preserving key information
4. Ensure logical flow and coherence
5. Focus on answering the original query
6. Make it comprehensive yet readable`

// topicSourceDigest renders a topic's extracted content for the per-topic
// synthesis call, bounded to the first three sources to stay inside token
// limits.
func topicSourceDigest(topic types.ResearchTopic, perSourceChars int) string {
	var b strings.Builder
	count := 0
	for _, s := range topic.Sources {
		if count >= 3 {
			break
		}
		content := s.Content
		if content == "" {
			content = s.Snippet
		}
		if content == "" {
			continue
		}
		if len(content) > perSourceChars {
			content = content[:perSourceChars] + "..."
		}
		fmt.Fprintf(&b, "Source: %s\nURL: %s\nContent: %s\n\n", s.Title, s.URL, content)
		count++
	}
	return b.String()
}

// combinedSummaries renders all per-topic summaries for the final synthesis
// call.
func combinedSummaries(topics []types.ResearchTopic) string {
	var b strings.Builder
	for _, t := range topics {
		if t.Summary == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", t.Topic, t.Summary)
	}
	return b.String()
}
