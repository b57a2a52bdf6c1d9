package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDDGSearch_FlattensResultsAndTopics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("expected format=json, got %q", r.URL.Query().Get("format"))
		}
		if r.URL.Query().Get("q") == "" {
			t.Error("expected non-empty query")
		}
		w.Write([]byte(`{
			"Abstract": "Go is a language.",
			"AbstractURL": "https://go.dev",
			"Results": [
				{"Text": "Official site", "FirstURL": "https://go.dev", "Result": "<a href=\"https://go.dev\">The Go Programming Language</a>"}
			],
			"RelatedTopics": [
				{"Text": "Goroutines", "FirstURL": "https://go.dev/tour", "Result": "<a href=\"https://go.dev/tour\">A Tour of Go</a>"},
				{"Topics": [
					{"Text": "Nested", "FirstURL": "https://pkg.go.dev", "Result": "<a href=\"https://pkg.go.dev\">Packages</a>"}
				]}
			]
		}`))
	}))
	defer srv.Close()

	s := NewDDGSearcher(srv.URL, 5*time.Second)
	sources, err := s.Search(context.Background(), "golang", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	if sources[0].Title != "The Go Programming Language" {
		t.Errorf("anchor text not extracted: %q", sources[0].Title)
	}
	if sources[0].URL != "https://go.dev" || sources[0].Snippet != "Official site" {
		t.Errorf("unexpected first source: %+v", sources[0])
	}
	if sources[2].URL != "https://pkg.go.dev" {
		t.Errorf("nested related topics not flattened: %+v", sources[2])
	}
}

func TestDDGSearch_MaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"RelatedTopics": [
			{"Text": "a", "FirstURL": "https://a.example"},
			{"Text": "b", "FirstURL": "https://b.example"},
			{"Text": "c", "FirstURL": "https://c.example"}
		]}`))
	}))
	defer srv.Close()

	s := NewDDGSearcher(srv.URL, 5*time.Second)
	sources, err := s.Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 2 {
		t.Errorf("expected 2 sources, got %d", len(sources))
	}
}

func TestDDGSearch_AbstractFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Abstract": "A narrow answer.", "AbstractURL": "https://only.example"}`))
	}))
	defer srv.Close()

	s := NewDDGSearcher(srv.URL, 5*time.Second)
	sources, err := s.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("expected abstract fallback source, got %d", len(sources))
	}
	if sources[0].URL != "https://only.example" || sources[0].Snippet != "A narrow answer." {
		t.Errorf("unexpected fallback source: %+v", sources[0])
	}
}

func TestDDGSearch_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewDDGSearcher(srv.URL, 5*time.Second)
	if _, err := s.Search(context.Background(), "q", 5); err == nil {
		t.Error("expected error on non-200 status")
	}
}

func TestLinkText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`<a href="https://x">Anchor Text</a> rest`, "Anchor Text"},
		{"no markup at all", "no markup at all"},
		{`<a href="https://x">unterminated`, `<a href="https://x">unterminated`},
	}
	for _, tt := range tests {
		if got := linkText(tt.in); got != tt.want {
			t.Errorf("linkText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
