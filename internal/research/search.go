package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/promptlabs/enchanter-gateway/internal/types"
)

// Searcher issues one web search query and returns ranked sources.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]types.Source, error)
}

// DDGSearcher queries the DuckDuckGo instant-answer JSON API. No
// authentication is required; responses carry abstract results and related
// topics which are flattened into a single source list.
type DDGSearcher struct {
	endpoint string
	client   *http.Client
}

func NewDDGSearcher(endpoint string, timeout time.Duration) *DDGSearcher {
	if endpoint == "" {
		endpoint = "https://api.duckduckgo.com/"
	}
	return &DDGSearcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type ddgResponse struct {
	Abstract      string      `json:"Abstract"`
	AbstractURL   string      `json:"AbstractURL"`
	Results       []ddgResult `json:"Results"`
	RelatedTopics []ddgTopic  `json:"RelatedTopics"`
}

type ddgResult struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
	Result   string `json:"Result"`
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Result   string     `json:"Result"`
	Topics   []ddgTopic `json:"Topics"`
}

func (s *DDGSearcher) Search(ctx context.Context, query string, maxResults int) ([]types.Source, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	apiURL := fmt.Sprintf("%s?q=%s&format=json&no_html=1&skip_disambig=1",
		strings.TrimSuffix(s.endpoint, "/")+"/", url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; EnchanterResearch/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %q: status %d", query, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var ddg ddgResponse
	if err := json.Unmarshal(body, &ddg); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	var sources []types.Source
	for _, r := range ddg.Results {
		if len(sources) >= maxResults {
			break
		}
		if r.FirstURL != "" {
			sources = append(sources, types.Source{
				Title:   linkText(r.Result),
				URL:     r.FirstURL,
				Snippet: r.Text,
			})
		}
	}
	sources = appendTopics(sources, ddg.RelatedTopics, maxResults)

	// The abstract is itself a usable snippet when the API returns little
	// else for a narrow query.
	if len(sources) == 0 && ddg.AbstractURL != "" {
		sources = append(sources, types.Source{
			Title:   linkText(ddg.Abstract),
			URL:     ddg.AbstractURL,
			Snippet: ddg.Abstract,
		})
	}

	return sources, nil
}

func appendTopics(sources []types.Source, topics []ddgTopic, maxResults int) []types.Source {
	for _, t := range topics {
		if len(sources) >= maxResults {
			break
		}
		if len(t.Topics) > 0 {
			sources = appendTopics(sources, t.Topics, maxResults)
			continue
		}
		if t.FirstURL != "" {
			sources = append(sources, types.Source{
				Title:   linkText(t.Result),
				URL:     t.FirstURL,
				Snippet: t.Text,
			})
		}
	}
	return sources
}

// linkText extracts the anchor text from the HTML snippet DuckDuckGo returns
// in Result fields.
func linkText(result string) string {
	start := strings.IndexByte(result, '>')
	if start < 0 {
		return result
	}
	end := strings.Index(result[start+1:], "</a>")
	if end < 0 {
		return result
	}
	return result[start+1 : start+1+end]
}
