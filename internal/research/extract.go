package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Extractor fetches a source URL and strips it to readable text. Remote
// content is untrusted, so both the body read and the extracted text are
// bounded.
type Extractor struct {
	client   *http.Client
	maxBytes int64
	maxChars int
}

func NewExtractor(timeout time.Duration, maxBytes int64, maxChars int) *Extractor {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	if maxChars <= 0 {
		maxChars = 5000
	}
	return &Extractor{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
		maxChars: maxChars,
	}
}

// Extract returns the readable text of the page at url, truncated to the
// configured character bound.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; EnchanterResearch/1.0)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	text := readableText(io.LimitReader(resp.Body, e.maxBytes))
	if len(text) > e.maxChars {
		cut := e.maxChars
		// Back off to a rune boundary so the cut never leaves a partial
		// UTF-8 sequence behind.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text, nil
}

// readableText walks the HTML token stream collecting text content, skipping
// script, style, and other non-content subtrees, and collapsing whitespace.
func readableText(r io.Reader) string {
	skip := map[string]bool{
		"script": true, "style": true, "noscript": true,
		"head": true, "iframe": true, "svg": true,
	}

	z := html.NewTokenizer(r)
	var b strings.Builder
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if skip[string(name)] {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skip[string(name)] && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}
