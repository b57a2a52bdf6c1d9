package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/promptlabs/enchanter-gateway/internal/config"
	"github.com/promptlabs/enchanter-gateway/internal/types"
)

// Request is the outbound chat-completion call in the common
// "messages + model + sampling parameters" shape.
type Request struct {
	Model            string          `json:"model"`
	Messages         []types.Message `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
}

// Client performs outbound calls to the single configured chat-completion
// endpoint. It owns a pooled transport and the retry policy; it does no
// caching and makes no logging-policy decisions beyond attempt-level debug
// output.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	policy     RetryPolicy
	logger     *slog.Logger

	// OnRetry, if set, is called once per retried attempt with the failure
	// kind that triggered the retry.
	OnRetry func(kind Kind)
}

func NewClient(cfg config.UpstreamConfig, logger *slog.Logger) *Client {
	maxConns := cfg.MaxConcurrent
	if maxConns <= 0 {
		maxConns = 50
	}
	policy := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BackoffBase > 0 {
		policy.BaseDelay = cfg.BackoffBase
	}
	if cfg.BackoffMax > 0 {
		policy.MaxDelay = cfg.BackoffMax
	}

	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        maxConns,
				MaxIdleConnsPerHost: maxConns,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		policy: policy,
		logger: logger,
	}
}

// Complete issues the call with bounded retries. Transient failures (timeout,
// server error) are retried with exponential backoff and jitter; auth and
// malformed-response failures surface immediately.
func (c *Client) Complete(ctx context.Context, req Request) (*types.CompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, newError(KindMalformedResponse, 0, "marshal request: "+err.Error(), err)
	}

	var lastErr *Error
	for attempt := 1; ; attempt++ {
		resp, uerr := c.do(ctx, body)
		if uerr == nil {
			return resp, nil
		}
		lastErr = uerr

		if !c.policy.ShouldRetry(attempt, uerr.Kind) {
			return nil, lastErr
		}

		if c.OnRetry != nil {
			c.OnRetry(uerr.Kind)
		}
		delay := c.policy.Backoff(attempt)
		c.logger.Debug("retrying upstream call",
			"attempt", attempt,
			"kind", string(uerr.Kind),
			"delay_ms", delay.Milliseconds(),
			"model", req.Model,
		)
		select {
		case <-ctx.Done():
			return nil, newError(KindTimeout, 0, "canceled during backoff", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (c *Client) do(ctx context.Context, body []byte) (*types.CompletionResponse, *Error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindMalformedResponse, 0, "create request: "+err.Error(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer httpResp.Body.Close()

	// Bound reads: error bodies from a misbehaving upstream should not
	// consume unbounded memory.
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 8<<20))
	if err != nil {
		return nil, newError(KindMalformedResponse, httpResp.StatusCode, "read response: "+err.Error(), err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyStatus(httpResp.StatusCode, errorMessage(data, httpResp.Status))
	}

	var resp types.CompletionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, newError(KindMalformedResponse, httpResp.StatusCode, "unmarshal response: "+err.Error(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, newError(KindMalformedResponse, httpResp.StatusCode, "response has no choices", nil)
	}
	return &resp, nil
}

// errorMessage pulls the message out of an OpenAI-format error body, falling
// back to the HTTP status line.
func errorMessage(data []byte, status string) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return status
}
