package websearch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func testClient(t *testing.T, searchHandler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(searchHandler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.GoogleAPIKey = "test-key"
	cfg.GoogleCXID = "test-cx"
	client := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	client.searchBase = server.URL
	return client
}

func googleItems(links ...map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"items": links})
	}
}

func TestSearch_FetchesPageContent(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<p>Entropy measures disorder.</p>
			<script>ignored()</script>
			<p>Second paragraph.</p>
		</body></html>`))
	}))
	defer page.Close()

	client := testClient(t, googleItems(
		map[string]string{"title": "Entropy", "link": page.URL},
	))

	results := client.Search(context.Background(), "entropy", 5)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Status != StatusSuccess {
		t.Fatalf("expected success status, got %q (%s)", r.Status, r.Content)
	}
	if r.Title != "Entropy" || r.Link != page.URL {
		t.Errorf("hit metadata lost: %+v", r)
	}
	if !strings.Contains(r.Content, "Entropy measures disorder.") {
		t.Errorf("paragraph text missing: %q", r.Content)
	}
	if strings.Contains(r.Content, "ignored()") {
		t.Errorf("script content leaked: %q", r.Content)
	}
}

func TestSearch_ZeroHits(t *testing.T) {
	client := testClient(t, googleItems())

	results := client.Search(context.Background(), "nothing", 5)
	if len(results) != 1 {
		t.Fatalf("expected a single error entry, got %d", len(results))
	}
	if results[0].Status != StatusError {
		t.Errorf("expected error status, got %q", results[0].Status)
	}
	if results[0].Content != "No search results found." {
		t.Errorf("unexpected diagnostic: %q", results[0].Content)
	}
}

func TestSearch_BackendFailure(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	})

	results := client.Search(context.Background(), "anything", 5)
	if len(results) != 1 || results[0].Status != StatusError {
		t.Fatalf("expected a single error entry, got %+v", results)
	}
	if !strings.Contains(results[0].Content, "search failed") {
		t.Errorf("unexpected diagnostic: %q", results[0].Content)
	}
}

func TestSearch_PageFailureDegradesOnlyThatResult(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<p>good content</p>`))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer bad.Close()

	client := testClient(t, googleItems(
		map[string]string{"title": "Bad", "link": bad.URL},
		map[string]string{"title": "Good", "link": good.URL},
	))

	results := client.Search(context.Background(), "mixed", 5)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !strings.Contains(results[0].Content, "failed to load page content") {
		t.Errorf("bad page should carry a fetch diagnostic: %q", results[0].Content)
	}
	if !strings.Contains(results[1].Content, "good content") {
		t.Errorf("good page degraded by its sibling: %q", results[1].Content)
	}
}

func TestSearch_TruncatesPageContent(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"ascii", strings.Repeat("a", 5000)},
		// Multi-byte runes must never be severed by the cut.
		{"korean", "a" + strings.Repeat("한", 600)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<p>" + tt.body + "</p>"))
			}))
			defer page.Close()

			client := testClient(t, googleItems(
				map[string]string{"title": "Long", "link": page.URL},
			))

			results := client.Search(context.Background(), "long", 5)
			content := results[0].Content
			if len(content) > client.cfg.PageCharLimit {
				t.Errorf("content exceeds the character budget: %d > %d",
					len(content), client.cfg.PageCharLimit)
			}
			if !utf8.ValidString(content) {
				t.Errorf("truncated content is invalid UTF-8 (tail bytes % x)",
					content[len(content)-2:])
			}
		})
	}
}

func TestSearch_RespectsMaxResults(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<p>x</p>`))
	}))
	defer page.Close()

	items := make([]map[string]string, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, map[string]string{"title": "T", "link": page.URL})
	}
	client := testClient(t, googleItems(items...))

	results := client.Search(context.Background(), "many", 2)
	if len(results) != 2 {
		t.Errorf("expected maxResults to cap hits, got %d", len(results))
	}
}

func TestExtractDDGHits(t *testing.T) {
	page := `
		<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage&amp;rut=abc">Example <b>Page</b></a>
		<a class="result__a" href="https://direct.example.org">Direct Link</a>
	`
	hits := extractDDGHits(page)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].link != "https://example.com/page" {
		t.Errorf("redirect not unwrapped: %q", hits[0].link)
	}
	if hits[0].title != "Example Page" {
		t.Errorf("title tags not stripped: %q", hits[0].title)
	}
	if hits[1].link != "https://direct.example.org" {
		t.Errorf("direct link mangled: %q", hits[1].link)
	}
}

func TestExtractParagraphText(t *testing.T) {
	input := `<html><body>
		<h1>Title</h1>
		<p>First.</p>
		<div><p>Nested <em>second</em>.</p></div>
		<p>  </p>
		<style>p { color: red }</style>
	</body></html>`

	got := ExtractParagraphText(strings.NewReader(input))
	want := "First.\nNested second."
	if got != want {
		t.Errorf("ExtractParagraphText = %q, want %q", got, want)
	}
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<b>bold</b>", "bold"},
		{"no tags", "no tags"},
		{"  <i>trim</i>  ", "trim"},
		{"a<br/>b", "ab"},
	}
	for _, tt := range tests {
		if got := stripTags(tt.input); got != tt.want {
			t.Errorf("stripTags(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
