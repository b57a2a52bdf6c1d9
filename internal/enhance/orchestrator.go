package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/promptlabs/enchanter-gateway/internal/cache"
	"github.com/promptlabs/enchanter-gateway/internal/config"
	"github.com/promptlabs/enchanter-gateway/internal/telemetry"
	"github.com/promptlabs/enchanter-gateway/internal/templates"
	"github.com/promptlabs/enchanter-gateway/internal/types"
	"github.com/promptlabs/enchanter-gateway/internal/upstream"
)

// Completer is the slice of the upstream client the orchestrator needs.
type Completer interface {
	Complete(ctx context.Context, req upstream.Request) (*types.CompletionResponse, error)
}

// Researcher runs the research pipeline. May be absent entirely.
type Researcher interface {
	Conduct(ctx context.Context, query string, depth types.ResearchDepth) (*types.ResearchResult, error)
}

// Orchestrator composes the style template and the optional research
// narrative into the final upstream request, memoizing final answers in the
// response cache. Identical concurrent requests result in exactly one
// upstream call.
type Orchestrator struct {
	templates *templates.Registry
	research  Researcher
	cache     *cache.Cache
	completer Completer
	cfg       func() *config.Config
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

func NewOrchestrator(reg *templates.Registry, research Researcher, c *cache.Cache, completer Completer, cfg func() *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		templates: reg,
		research:  research,
		cache:     c,
		completer: completer,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// EnhanceAndComplete processes one completion request end to end. An unknown
// style tag fails fast before any network call is made; research failures
// degrade to an unaugmented completion.
func (o *Orchestrator) EnhanceAndComplete(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error) {
	start := time.Now()
	cfg := o.cfg()

	var template string
	if req.Style != "" {
		var err error
		template, err = o.templates.Resolve(req.Style)
		if err != nil {
			return nil, err
		}
	}

	var narrative string
	if req.ResearchEnabled && o.research != nil {
		if query := req.LastUserContent(); query != "" {
			result, err := o.research.Conduct(ctx, query, req.ResearchDepth)
			if err != nil {
				o.logger.Warn("research unavailable, continuing without augmentation",
					"request_id", req.RequestID, "error", err)
			} else {
				narrative = formatResearchBlock(result)
			}
		}
	}

	messages := buildMessages(req, template, narrative)
	model := cfg.Models.ForLevel(string(req.Level))

	upReq := upstream.Request{
		Model:            model,
		Messages:         messages,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		MaxTokens:        req.MaxTokens,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Stop:             req.Stop,
	}

	var resp *types.CompletionResponse
	var hit bool
	if req.SkipCache {
		var err error
		resp, err = o.completer.Complete(ctx, upReq)
		if err != nil {
			return nil, err
		}
	} else {
		key := cache.RequestFingerprint(model, messages, req)
		data, cached, err := o.cache.GetOrCompute(ctx, key, cfg.Cache.ResponseTTL, func(ctx context.Context) ([]byte, error) {
			fresh, cerr := o.completer.Complete(ctx, upReq)
			if cerr != nil {
				return nil, cerr
			}
			return json.Marshal(fresh)
		})
		if err != nil {
			return nil, err
		}
		hit = cached
		resp = &types.CompletionResponse{}
		if err := json.Unmarshal(data, resp); err != nil {
			return nil, fmt.Errorf("decode cached response: %w", err)
		}
	}

	resp.RequestID = req.RequestID
	resp.CacheHit = hit
	resp.DurationMs = time.Since(start).Milliseconds()

	if o.metrics != nil {
		o.metrics.RecordCacheLookup("response", hit)
	}
	return resp, nil
}

// buildMessages assembles the enhanced message sequence: resolved template
// first as a system message, then the original messages in order. When a
// template is present the caller's own system messages are dropped; when a
// research narrative is present it is spliced into the last user message.
func buildMessages(req *types.CompletionRequest, template, narrative string) []types.Message {
	lastUser := -1
	if narrative != "" {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == types.RoleUser {
				lastUser = i
				break
			}
		}
	}

	messages := make([]types.Message, 0, len(req.Messages)+1)
	if template != "" {
		messages = append(messages, types.Message{Role: types.RoleSystem, Content: template})
	}
	for i, m := range req.Messages {
		if m.Role == types.RoleSystem && template != "" {
			continue
		}
		if i == lastUser {
			m.Content = spliceResearch(m.Content, narrative)
		}
		messages = append(messages, m)
	}
	return messages
}

func spliceResearch(original, narrative string) string {
	return narrative + "\n## User Query\n\n" + original + "\n\n---\n\n" +
		"Please use the research information provided above to give a comprehensive and well-informed response to my query."
}

// formatResearchBlock renders a research result as a context block, topic by
// topic, with up to three source URLs each.
func formatResearchBlock(result *types.ResearchResult) string {
	var b strings.Builder
	b.WriteString("## Research Information\n\n")
	if result.Narrative != "" {
		b.WriteString(result.Narrative)
		b.WriteString("\n\n")
	}
	for _, t := range result.Topics {
		if len(t.Sources) == 0 {
			continue
		}
		fmt.Fprintf(&b, "**Sources for %s:**\n", t.Topic)
		for i, s := range t.Sources {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", s.URL)
		}
		b.WriteString("\n")
	}
	b.WriteString("---\n")
	return b.String()
}
