package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/promptlabs/enchanter-gateway/internal/config"
	"github.com/promptlabs/enchanter-gateway/internal/credit"
	"github.com/promptlabs/enchanter-gateway/internal/httputil"
	"github.com/promptlabs/enchanter-gateway/internal/telemetry"
	"github.com/promptlabs/enchanter-gateway/internal/templates"
	"github.com/promptlabs/enchanter-gateway/internal/types"
	"github.com/promptlabs/enchanter-gateway/internal/upstream"
)

// Enhancer is the single-request entry point into the core.
type Enhancer interface {
	EnhanceAndComplete(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error)
}

// BatchRunner is the batch entry point into the core.
type BatchRunner interface {
	Run(ctx context.Context, batchID string, tasks []types.CompletionRequest, mode types.BatchMode, maxParallel int) []types.BatchResult
}

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	enhancer Enhancer
	runner   BatchRunner
	registry *templates.Registry
	ledger   credit.Ledger
	cfg      func() *config.Config
	metrics  *telemetry.Metrics
}

func NewHandler(enhancer Enhancer, runner BatchRunner, registry *templates.Registry, ledger credit.Ledger, cfg func() *config.Config, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		enhancer: enhancer,
		runner:   runner,
		registry: registry,
		ledger:   ledger,
		cfg:      cfg,
		metrics:  metrics,
	}
}

// PromptCompletions handles POST /v1/prompt/completions
func (h *Handler) PromptCompletions(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req types.CompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}

	req.RequestID = reqID
	req.CallerID = callerID(r)
	req.ReceivedAt = receivedAt
	if msg, ok := validate(&req); !ok {
		httputil.WriteBadRequestError(w, reqID, msg)
		return
	}

	reserved, err := h.ledger.Reserve(r.Context(), req.CallerID)
	if err != nil {
		slog.Error("credit reservation failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Credit reservation failed")
		return
	}
	if !reserved {
		httputil.WriteCreditsExhaustedError(w, reqID, "No credits remaining")
		return
	}

	resp, err := h.enhancer.EnhanceAndComplete(r.Context(), &req)
	if err != nil {
		if rerr := h.ledger.Release(r.Context(), req.CallerID); rerr != nil {
			slog.Error("credit release failed", "request_id", reqID, "error", rerr)
		}
		h.writeEnhanceError(w, reqID, err)
		h.recordRequest(&req, nil, "error", receivedAt)
		return
	}

	if err := h.ledger.Commit(r.Context(), req.CallerID); err != nil {
		slog.Error("credit commit failed", "request_id", reqID, "error", err)
	}

	slog.Info("request completed",
		"request_id", reqID,
		"level", string(req.Level),
		"style", req.Style,
		"research", req.ResearchEnabled,
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"cache_hit", resp.CacheHit,
		"duration_ms", time.Since(receivedAt).Milliseconds(),
	)
	h.recordRequest(&req, resp, "200", receivedAt)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) writeEnhanceError(w http.ResponseWriter, reqID string, err error) {
	if errors.Is(err, templates.ErrUnknownStyle) {
		httputil.WriteUnknownStyleError(w, reqID, err.Error())
		return
	}
	if kind, ok := upstream.KindOf(err); ok {
		httputil.WriteUpstreamError(w, reqID, kind, err.Error())
		return
	}
	httputil.WriteInternalError(w, reqID, err.Error())
}

func (h *Handler) recordRequest(req *types.CompletionRequest, resp *types.CompletionResponse, status string, receivedAt time.Time) {
	if h.metrics == nil {
		return
	}
	labels := telemetry.RequestLabels{
		Model:      h.cfg().Models.ForLevel(string(req.Level)),
		Style:      req.Style,
		Status:     status,
		DurationMs: float64(time.Since(receivedAt).Milliseconds()),
	}
	if resp != nil {
		labels.CacheHit = resp.CacheHit
		labels.PromptTokens = resp.Usage.PromptTokens
		labels.CompletionTokens = resp.Usage.CompletionTokens
	}
	h.metrics.RecordRequest(labels)
}

type batchTaskBody struct {
	Prompt           string   `json:"prompt"`
	Style            string   `json:"r_type,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`
}

type batchRequestBody struct {
	Batch          []batchTaskBody     `json:"batch"`
	Level          types.Level         `json:"level"`
	Mode           types.BatchMode     `json:"mode"`
	MaxParallel    int                 `json:"max_parallel,omitempty"`
	EnableResearch bool                `json:"enable_research,omitempty"`
	ResearchDepth  types.ResearchDepth `json:"research_depth,omitempty"`
}

type batchResponseBody struct {
	BatchID         string              `json:"batch_id"`
	TotalTasks      int                 `json:"total_tasks"`
	SuccessfulTasks int                 `json:"successful_tasks"`
	FailedTasks     int                 `json:"failed_tasks"`
	Results         []types.BatchResult `json:"results"`
	TotalTokensUsed int                 `json:"total_tokens_used"`
	DurationMs      int64               `json:"duration_ms"`
	CreatedAt       string              `json:"created_at"`
}

// BatchProcess handles POST /v1/batch/process
func (h *Handler) BatchProcess(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	var body batchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	defer r.Body.Close()

	if len(body.Batch) == 0 {
		httputil.WriteBadRequestError(w, reqID, "batch is required")
		return
	}
	if body.Mode == "" {
		body.Mode = types.BatchParallel
	}
	if !body.Mode.Valid() {
		httputil.WriteBadRequestError(w, reqID, "mode must be parallel or sequential")
		return
	}
	if body.Level == "" {
		body.Level = types.LevelLow
	}
	if !body.Level.Valid() {
		httputil.WriteBadRequestError(w, reqID, "level must be one of low, medium, high, ultra")
		return
	}

	caller := callerID(r)
	tasks := make([]types.CompletionRequest, len(body.Batch))
	for i, t := range body.Batch {
		if t.Prompt == "" {
			httputil.WriteBadRequestError(w, reqID, "batch["+strconv.Itoa(i)+"].prompt is required")
			return
		}
		tasks[i] = types.CompletionRequest{
			RequestID: reqID,
			CallerID:  caller,
			Messages: []types.Message{{
				Role:    types.RoleUser,
				Content: t.Prompt + "\n\nJust enhance the prompt with no questions.",
			}},
			Level:            body.Level,
			Style:            t.Style,
			Temperature:      t.Temperature,
			TopP:             t.TopP,
			MaxTokens:        t.MaxTokens,
			FrequencyPenalty: t.FrequencyPenalty,
			PresencePenalty:  t.PresencePenalty,
			Stop:             t.Stop,
			ResearchEnabled:  body.EnableResearch,
			ResearchDepth:    body.ResearchDepth,
			ReceivedAt:       receivedAt,
		}
	}

	batchID := generateBatchID()
	results := h.runner.Run(r.Context(), batchID, tasks, body.Mode, body.MaxParallel)

	resp := batchResponseBody{
		BatchID:    batchID,
		TotalTasks: len(results),
		Results:    results,
		DurationMs: time.Since(receivedAt).Milliseconds(),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	for _, res := range results {
		if res.Success {
			resp.SuccessfulTasks++
			resp.TotalTokensUsed += res.TokensUsed
		} else {
			resp.FailedTasks++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListStyles handles GET /v1/styles
func (h *Handler) ListStyles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{
		"styles": h.registry.Styles(),
	})
}

func validate(req *types.CompletionRequest) (string, bool) {
	if len(req.Messages) == 0 {
		return "messages is required", false
	}
	if req.Level == "" {
		req.Level = types.LevelLow
	}
	if !req.Level.Valid() {
		return "level must be one of low, medium, high, ultra", false
	}
	if req.ResearchEnabled && req.ResearchDepth == "" {
		req.ResearchDepth = types.DepthBasic
	}
	if req.ResearchDepth != "" && !req.ResearchDepth.Valid() {
		return "research_depth must be one of basic, medium, high", false
	}
	return "", true
}

// callerID extracts the requester identity propagated by the external auth
// collaborator. The core treats it as opaque.
func callerID(r *http.Request) string {
	if id := r.Header.Get("X-Caller-ID"); id != "" {
		return id
	}
	return "anonymous"
}

func generateBatchID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("batch_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
