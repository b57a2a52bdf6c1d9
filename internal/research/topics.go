package research

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/promptlabs/enchanter-gateway/internal/types"
)

// errTopicParse marks a topic-identification response that could not be
// parsed. It never escapes the pipeline: the caller degrades to a single
// fallback topic equal to the original query.
var errTopicParse = errors.New("unparsable topic response")

const topicSystemPrompt = `You are a research analyst. Analyze the user's query and determine if it needs research and what specific topics should be researched.

%s

Respond with a JSON object in this format:
{
    "needs_research": true/false,
    "topics": [
        {
            "topic": "specific topic to research",
            "importance": 0.0-1.0,
            "subtopics": ["subtopic1", "subtopic2"]
        }
    ]
}

If the query is simple and doesn't need research (like basic math, simple definitions, or personal opinions), set needs_research to false.`

func topicPrompt(depth types.ResearchDepth) string {
	lo, hi := depth.TopicRange()
	instruction := fmt.Sprintf("Identify %d-%d topics that need research.", lo, hi)
	return fmt.Sprintf(topicSystemPrompt, instruction)
}

type topicList struct {
	NeedsResearch bool `json:"needs_research"`
	Topics        []struct {
		Topic      string   `json:"topic"`
		Importance float64  `json:"importance"`
		Subtopics  []string `json:"subtopics"`
	} `json:"topics"`
}

// parseTopics extracts the structured topic list from a model response.
// Models frequently wrap JSON in code fences or prose, so the parser trims
// to the outermost object before unmarshaling.
func parseTopics(content string, maxTopics int) ([]types.ResearchTopic, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, errTopicParse
	}

	var list topicList
	if err := json.Unmarshal([]byte(content[start:end+1]), &list); err != nil {
		return nil, fmt.Errorf("%w: %v", errTopicParse, err)
	}

	if !list.NeedsResearch {
		return nil, nil
	}

	topics := make([]types.ResearchTopic, 0, len(list.Topics))
	for _, t := range list.Topics {
		if t.Topic == "" {
			continue
		}
		importance := t.Importance
		if importance <= 0 {
			importance = 0.5
		}
		topics = append(topics, types.ResearchTopic{
			Topic:      t.Topic,
			Importance: importance,
			Subtopics:  t.Subtopics,
		})
		if len(topics) >= maxTopics {
			break
		}
	}
	return topics, nil
}
