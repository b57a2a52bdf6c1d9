package types

// BatchMode selects how batch tasks are dispatched.
type BatchMode string

const (
	BatchParallel   BatchMode = "parallel"
	BatchSequential BatchMode = "sequential"
)

func (m BatchMode) Valid() bool {
	return m == BatchParallel || m == BatchSequential
}

// FailureKind classifies a terminal batch-task failure.
type FailureKind string

const (
	FailureCreditsExhausted FailureKind = "credits_exhausted"
	FailureUnknownStyle     FailureKind = "unknown_style"
	FailureUpstream         FailureKind = "upstream_error"
	FailureCanceled         FailureKind = "canceled"
	FailureInternal         FailureKind = "internal_error"
)

// BatchResult pairs a task index with either a successful response or a
// structured failure. Exactly one of Response / (ErrKind, Error) is set.
type BatchResult struct {
	Index      int                 `json:"index"`
	Success    bool                `json:"success"`
	Response   *CompletionResponse `json:"response,omitempty"`
	ErrKind    FailureKind         `json:"error_kind,omitempty"`
	Error      string              `json:"error,omitempty"`
	TokensUsed int                 `json:"tokens_used"`
	DurationMs int64               `json:"duration_ms"`
}
