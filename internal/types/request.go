package types

import "time"

// CompletionRequest is the canonical internal representation of an incoming
// enhancement request. It is immutable once constructed; enhancement builds a
// derived message list rather than mutating this value.
type CompletionRequest struct {
	// Identity (set by the transport layer)
	RequestID string `json:"request_id,omitempty"`
	CallerID  string `json:"caller_id,omitempty"`

	// Request content
	Messages []Message `json:"messages"`
	Level    Level     `json:"level"`
	Style    string    `json:"r_type,omitempty"`

	// Sampling parameters
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`

	// Research flags
	ResearchEnabled bool          `json:"ai_research,omitempty"`
	ResearchDepth   ResearchDepth `json:"research_depth,omitempty"`

	// Internal tracking
	ReceivedAt time.Time `json:"-"`
	SkipCache  bool      `json:"-"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LastUserContent returns the content of the last user-role message, or the
// empty string if there is none. The research pipeline treats it as the query
// to investigate.
func (r *CompletionRequest) LastUserContent() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}
