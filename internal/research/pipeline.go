package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/promptlabs/enchanter-gateway/internal/cache"
	"github.com/promptlabs/enchanter-gateway/internal/config"
	"github.com/promptlabs/enchanter-gateway/internal/telemetry"
	"github.com/promptlabs/enchanter-gateway/internal/types"
	"github.com/promptlabs/enchanter-gateway/internal/upstream"
)

// ErrNoResearchData is returned when no topic yields any usable material, or
// when the analyst model decides the query does not need research. Callers
// absorb it: research is a best-effort augmentation, never a reason to fail
// the base completion.
var ErrNoResearchData = errors.New("no research data gathered")

// Completer is the slice of the upstream client the pipeline needs for topic
// identification and synthesis.
type Completer interface {
	Complete(ctx context.Context, req upstream.Request) (*types.CompletionResponse, error)
}

// Pipeline runs the five research stages: topic identification, web search,
// content extraction, AI synthesis, and cache store. Stages 1-3 degrade
// silently; only a run where every topic comes up empty fails, and even that
// failure stays inside the research augmentation.
type Pipeline struct {
	completer Completer
	searcher  Searcher
	extractor *Extractor
	cache     *cache.Cache
	cfg       func() *config.Config
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

func NewPipeline(completer Completer, searcher Searcher, extractor *Extractor, c *cache.Cache, cfg func() *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		completer: completer,
		searcher:  searcher,
		extractor: extractor,
		cache:     c,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Conduct returns the research result for a query, serving repeats from the
// cache. Research entries live substantially longer than final answers:
// research is more expensive and more stable.
func (p *Pipeline) Conduct(ctx context.Context, query string, depth types.ResearchDepth) (*types.ResearchResult, error) {
	if !depth.Valid() {
		depth = types.DepthBasic
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoResearchData
	}

	key := cache.ResearchFingerprint(query, depth)
	data, hit, err := p.cache.GetOrCompute(ctx, key, p.ttlFor(depth), func(ctx context.Context) ([]byte, error) {
		result, rerr := p.run(ctx, query, depth)
		if rerr != nil {
			return nil, rerr
		}
		return json.Marshal(result)
	})
	if err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.RecordCacheLookup("research", hit)
	}
	if hit {
		p.logger.Debug("research served from cache", "depth", string(depth))
	}

	var result types.ResearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode cached research: %w", err)
	}
	return &result, nil
}

func (p *Pipeline) ttlFor(depth types.ResearchDepth) time.Duration {
	cc := p.cfg().Cache
	switch depth {
	case types.DepthHigh:
		return cc.ResearchTTLHigh
	case types.DepthMedium:
		return cc.ResearchTTLMedium
	default:
		return cc.ResearchTTLBasic
	}
}

func (p *Pipeline) run(ctx context.Context, query string, depth types.ResearchDepth) (*types.ResearchResult, error) {
	start := time.Now()

	// Stage 1: topic identification.
	topics := p.identifyTopics(ctx, query, depth)
	if topics == nil {
		return nil, ErrNoResearchData
	}

	// Stages 2+3: per-topic search and extraction, concurrent under the
	// pipeline's own cap. This cap bounds outstanding connections and is
	// independent of the batch-level parallelism cap.
	investigated := p.investigateTopics(ctx, topics)
	if len(investigated) == 0 {
		p.stage("search", "exhausted")
		return nil, ErrNoResearchData
	}

	// Stage 4: synthesis.
	narrative := p.synthesize(ctx, query, investigated)

	result := &types.ResearchResult{
		Query:     query,
		Depth:     depth,
		Topics:    investigated,
		Narrative: narrative,
		CreatedAt: time.Now().UTC(),
	}

	p.logger.Info("research completed",
		"topics", len(investigated),
		"sources", len(result.SourceURLs()),
		"depth", string(depth),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	// Stage 5 (cache store) happens in Conduct on return.
	return result, nil
}

// identifyTopics asks the analyst model which topics to investigate. An
// unparsable response degrades to a single topic equal to the query itself; a
// parsed "needs_research: false" returns nil.
func (p *Pipeline) identifyTopics(ctx context.Context, query string, depth types.ResearchDepth) []types.ResearchTopic {
	cfg := p.cfg()
	_, maxTopics := depth.TopicRange()

	resp, err := p.completer.Complete(ctx, upstream.Request{
		Model: cfg.Models.ForLevel("low"),
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: topicPrompt(depth)},
			{Role: types.RoleUser, Content: "Query: " + query},
		},
		Temperature: floatPtr(0.3),
		MaxTokens:   intPtr(1000),
	})
	if err != nil {
		p.stage("topics", "fallback")
		p.logger.Warn("topic identification failed, using query as single topic", "error", err)
		return []types.ResearchTopic{{Topic: query, Importance: 1.0}}
	}

	topics, err := parseTopics(resp.Content(), maxTopics)
	if err != nil {
		p.stage("topics", "fallback")
		p.logger.Warn("topic response unparsable, using query as single topic", "error", err)
		return []types.ResearchTopic{{Topic: query, Importance: 1.0}}
	}
	if topics == nil {
		p.stage("topics", "not_needed")
		return nil
	}
	if len(topics) == 0 {
		p.stage("topics", "fallback")
		return []types.ResearchTopic{{Topic: query, Importance: 1.0}}
	}
	p.stage("topics", "ok")
	return topics
}

// investigateTopics runs search and extraction for each topic. A topic whose
// search fails is dropped silently; source-level extraction failures are
// dropped without losing the source's search snippet.
func (p *Pipeline) investigateTopics(ctx context.Context, topics []types.ResearchTopic) []types.ResearchTopic {
	cfg := p.cfg().Research
	capacity := int64(cfg.SearchConcurrency)
	if capacity <= 0 {
		capacity = 5
	}
	sem := semaphore.NewWeighted(capacity)

	results := make([]*types.ResearchTopic, len(topics))
	var wg sync.WaitGroup
	for i, topic := range topics {
		wg.Add(1)
		go func(i int, topic types.ResearchTopic) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			sources, err := p.searcher.Search(ctx, topic.Topic, cfg.MaxSourcesPerTopic)
			sem.Release(1)
			if err != nil || len(sources) == 0 {
				p.stage("search", "dropped")
				p.logger.Debug("topic dropped, search yielded nothing", "topic", topic.Topic, "error", err)
				return
			}
			if len(sources) > cfg.MaxSourcesPerTopic {
				sources = sources[:cfg.MaxSourcesPerTopic]
			}
			p.stage("search", "ok")

			for j := range sources {
				if err := sem.Acquire(ctx, 1); err != nil {
					break
				}
				content, err := p.extractor.Extract(ctx, sources[j].URL)
				sem.Release(1)
				if err != nil {
					p.stage("extract", "dropped")
					continue
				}
				sources[j].Content = content
				p.stage("extract", "ok")
			}

			topic.Sources = sources
			results[i] = &topic
		}(i, topic)
	}
	wg.Wait()

	investigated := make([]types.ResearchTopic, 0, len(topics))
	for _, r := range results {
		if r != nil {
			investigated = append(investigated, *r)
		}
	}
	return investigated
}

// synthesize produces per-topic summaries and a final narrative. Synthesis
// failures degrade to the raw material rather than failing the pipeline.
func (p *Pipeline) synthesize(ctx context.Context, query string, topics []types.ResearchTopic) string {
	cfg := p.cfg()
	model := cfg.Models.ForLevel("medium")

	for i := range topics {
		digest := topicSourceDigest(topics[i], 1000)
		if digest == "" {
			continue
		}
		resp, err := p.completer.Complete(ctx, upstream.Request{
			Model: model,
			Messages: []types.Message{
				{Role: types.RoleSystem, Content: fmt.Sprintf(topicSynthesisPrompt, topics[i].Topic, strings.Join(topics[i].Subtopics, ", "))},
				{Role: types.RoleUser, Content: "Research sources:\n\n" + digest},
			},
			Temperature: floatPtr(0.4),
			MaxTokens:   intPtr(2000),
		})
		if err != nil {
			p.stage("synthesis", "topic_failed")
			continue
		}
		topics[i].Summary = strings.TrimSpace(resp.Content())
		p.stage("synthesis", "topic_ok")
	}

	combined := combinedSummaries(topics)
	if combined == "" {
		// Nothing synthesized; fall back to the raw snippets.
		var b strings.Builder
		for _, t := range topics {
			for _, s := range t.Sources {
				if s.Snippet != "" {
					b.WriteString(s.Snippet)
					b.WriteString("\n")
				}
			}
		}
		return b.String()
	}

	if countSummaries(topics) <= 1 {
		return strings.TrimSpace(combined)
	}

	resp, err := p.completer.Complete(ctx, upstream.Request{
		Model: model,
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: fmt.Sprintf(finalSynthesisPrompt, query)},
			{Role: types.RoleUser, Content: "Research content to synthesize:\n\n" + combined},
		},
		Temperature: floatPtr(0.3),
		MaxTokens:   intPtr(cfg.Research.SynthesisMaxTokens),
	})
	if err != nil {
		p.stage("synthesis", "final_failed")
		return strings.TrimSpace(combined)
	}
	p.stage("synthesis", "final_ok")
	return strings.TrimSpace(resp.Content())
}

func countSummaries(topics []types.ResearchTopic) int {
	n := 0
	for _, t := range topics {
		if t.Summary != "" {
			n++
		}
	}
	return n
}

func (p *Pipeline) stage(stage, outcome string) {
	if p.metrics != nil {
		p.metrics.RecordResearchStage(stage, outcome)
	}
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
