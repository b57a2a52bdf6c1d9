package research

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/promptlabs/enchanter-gateway/internal/cache"
	"github.com/promptlabs/enchanter-gateway/internal/config"
	"github.com/promptlabs/enchanter-gateway/internal/types"
	"github.com/promptlabs/enchanter-gateway/internal/upstream"
)

type fakeCompleter struct {
	fn func(req upstream.Request) (*types.CompletionResponse, error)
}

func (f *fakeCompleter) Complete(_ context.Context, req upstream.Request) (*types.CompletionResponse, error) {
	return f.fn(req)
}

type fakeSearcher struct {
	calls int32
	fn    func(query string) ([]types.Source, error)
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]types.Source, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(query)
}

func reply(content string) (*types.CompletionResponse, error) {
	return &types.CompletionResponse{
		Choices: []types.Choice{{Message: types.Message{Role: types.RoleAssistant, Content: content}}},
	}, nil
}

func systemPrompt(req upstream.Request) string {
	for _, m := range req.Messages {
		if m.Role == types.RoleSystem {
			return m.Content
		}
	}
	return ""
}

// scriptedCompleter routes the pipeline's three upstream call shapes.
func scriptedCompleter(topicResp, synthResp, finalResp string) *fakeCompleter {
	return &fakeCompleter{fn: func(req upstream.Request) (*types.CompletionResponse, error) {
		sys := systemPrompt(req)
		switch {
		case strings.Contains(sys, "research analyst"):
			return reply(topicResp)
		case strings.Contains(sys, "master research synthesizer"):
			return reply(finalResp)
		default:
			return reply(synthResp)
		}
	}}
}

func testPipeline(completer Completer, searcher Searcher) *Pipeline {
	cfg := config.DefaultConfig()
	store := cache.New(nil, cache.NewLocalBackend(100, time.Hour), time.Second, slog.Default())
	// Extraction targets a dead port so every fetch fails fast and sources
	// keep their search snippets.
	extractor := NewExtractor(100*time.Millisecond, 1<<20, 5000)
	return NewPipeline(completer, searcher, extractor, store, func() *config.Config { return cfg }, nil, slog.Default())
}

func deadSource(topic string) []types.Source {
	return []types.Source{{
		Title:   "Result for " + topic,
		URL:     "http://127.0.0.1:1/" + topic,
		Snippet: "snippet about " + topic,
	}}
}

func TestConduct_FullRun(t *testing.T) {
	topicJSON := `{"needs_research": true, "topics": [{"topic": "alpha", "importance": 0.9}]}`
	completer := scriptedCompleter(topicJSON, "alpha summary", "final narrative")
	searcher := &fakeSearcher{fn: func(q string) ([]types.Source, error) { return deadSource(q), nil }}

	p := testPipeline(completer, searcher)
	result, err := p.Conduct(context.Background(), "tell me about alpha", types.DepthBasic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Topics) != 1 || result.Topics[0].Topic != "alpha" {
		t.Fatalf("unexpected topics: %+v", result.Topics)
	}
	if result.Topics[0].Summary != "alpha summary" {
		t.Errorf("expected per-topic summary, got %q", result.Topics[0].Summary)
	}
	// One summarized topic skips the final synthesis call.
	if !strings.Contains(result.Narrative, "alpha summary") {
		t.Errorf("expected single summary as narrative, got %q", result.Narrative)
	}
	if strings.Contains(result.Narrative, "final narrative") {
		t.Errorf("final synthesis should be skipped for one topic, got %q", result.Narrative)
	}
	if len(result.SourceURLs()) != 1 {
		t.Errorf("expected 1 source URL, got %v", result.SourceURLs())
	}
}

func TestConduct_MultiTopicFinalSynthesis(t *testing.T) {
	topicJSON := `{"needs_research": true, "topics": [{"topic": "alpha"}, {"topic": "beta"}]}`
	completer := scriptedCompleter(topicJSON, "topic summary", "combined narrative")
	searcher := &fakeSearcher{fn: func(q string) ([]types.Source, error) { return deadSource(q), nil }}

	p := testPipeline(completer, searcher)
	result, err := p.Conduct(context.Background(), "alpha vs beta", types.DepthMedium)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(result.Topics))
	}
	if result.Narrative != "combined narrative" {
		t.Errorf("expected final synthesis output, got %q", result.Narrative)
	}
}

func TestConduct_TopicParseFallback(t *testing.T) {
	completer := scriptedCompleter("I refuse to emit JSON.", "summary", "final")
	searcher := &fakeSearcher{fn: func(q string) ([]types.Source, error) { return deadSource(q), nil }}

	p := testPipeline(completer, searcher)
	result, err := p.Conduct(context.Background(), "obscure question", types.DepthBasic)
	if err != nil {
		t.Fatalf("fallback should succeed, got %v", err)
	}
	if len(result.Topics) != 1 || result.Topics[0].Topic != "obscure question" {
		t.Errorf("expected single fallback topic equal to the query, got %+v", result.Topics)
	}
}

func TestConduct_ResearchNotNeeded(t *testing.T) {
	completer := scriptedCompleter(`{"needs_research": false, "topics": []}`, "", "")
	searcher := &fakeSearcher{fn: func(q string) ([]types.Source, error) { return deadSource(q), nil }}

	p := testPipeline(completer, searcher)
	_, err := p.Conduct(context.Background(), "2+2", types.DepthBasic)
	if !errors.Is(err, ErrNoResearchData) {
		t.Errorf("expected ErrNoResearchData, got %v", err)
	}
	if atomic.LoadInt32(&searcher.calls) != 0 {
		t.Error("no searches should run when research is not needed")
	}
}

func TestConduct_AllSearchesFail(t *testing.T) {
	topicJSON := `{"needs_research": true, "topics": [{"topic": "alpha"}, {"topic": "beta"}]}`
	completer := scriptedCompleter(topicJSON, "", "")
	searcher := &fakeSearcher{fn: func(q string) ([]types.Source, error) {
		return nil, errors.New("search backend down")
	}}

	p := testPipeline(completer, searcher)
	_, err := p.Conduct(context.Background(), "doomed query", types.DepthBasic)
	if !errors.Is(err, ErrNoResearchData) {
		t.Errorf("expected ErrNoResearchData, got %v", err)
	}
}

func TestConduct_PartialSearchFailure(t *testing.T) {
	topicJSON := `{"needs_research": true, "topics": [{"topic": "alive"}, {"topic": "dead"}]}`
	completer := scriptedCompleter(topicJSON, "summary", "final")
	searcher := &fakeSearcher{fn: func(q string) ([]types.Source, error) {
		if q == "dead" {
			return nil, errors.New("no results")
		}
		return deadSource(q), nil
	}}

	p := testPipeline(completer, searcher)
	result, err := p.Conduct(context.Background(), "mixed", types.DepthBasic)
	if err != nil {
		t.Fatalf("one surviving topic should be enough: %v", err)
	}
	if len(result.Topics) != 1 || result.Topics[0].Topic != "alive" {
		t.Errorf("failed topic should be dropped, got %+v", result.Topics)
	}
}

func TestConduct_SynthesisFailureDegradesToSnippets(t *testing.T) {
	topicJSON := `{"needs_research": true, "topics": [{"topic": "alpha"}]}`
	completer := &fakeCompleter{fn: func(req upstream.Request) (*types.CompletionResponse, error) {
		if strings.Contains(systemPrompt(req), "research analyst") {
			return reply(topicJSON)
		}
		return nil, errors.New("synthesis model down")
	}}
	searcher := &fakeSearcher{fn: func(q string) ([]types.Source, error) { return deadSource(q), nil }}

	p := testPipeline(completer, searcher)
	result, err := p.Conduct(context.Background(), "alpha", types.DepthBasic)
	if err != nil {
		t.Fatalf("synthesis failure must not fail the pipeline: %v", err)
	}
	if !strings.Contains(result.Narrative, "snippet about alpha") {
		t.Errorf("expected raw snippets in narrative, got %q", result.Narrative)
	}
}

func TestConduct_CachesResult(t *testing.T) {
	topicJSON := `{"needs_research": true, "topics": [{"topic": "alpha"}]}`
	completer := scriptedCompleter(topicJSON, "summary", "final")
	searcher := &fakeSearcher{fn: func(q string) ([]types.Source, error) { return deadSource(q), nil }}

	p := testPipeline(completer, searcher)
	if _, err := p.Conduct(context.Background(), "Cached  Query", types.DepthBasic); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Normalized repeat of the same query must hit the cache.
	if _, err := p.Conduct(context.Background(), "cached query", types.DepthBasic); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&searcher.calls); n != 1 {
		t.Errorf("expected 1 search across both runs, got %d", n)
	}
}

func TestConduct_EmptyQuery(t *testing.T) {
	p := testPipeline(scriptedCompleter("", "", ""), &fakeSearcher{fn: func(string) ([]types.Source, error) { return nil, nil }})
	if _, err := p.Conduct(context.Background(), "   ", types.DepthBasic); !errors.Is(err, ErrNoResearchData) {
		t.Errorf("expected ErrNoResearchData for blank query, got %v", err)
	}
}
