package types

type CompletionResponse struct {
	RequestID string   `json:"request_id,omitempty"`
	Model     string   `json:"model"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`

	// CacheHit reports whether the response was served from the response
	// cache rather than a fresh upstream call. Logging and metrics only.
	CacheHit bool `json:"cache_hit,omitempty"`

	// DurationMs is the wall time spent producing the response.
	DurationMs int64 `json:"duration_ms,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Content returns the first choice's message content, the common case for
// single-completion responses.
func (r *CompletionResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}
