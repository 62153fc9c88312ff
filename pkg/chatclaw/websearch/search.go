// Package websearch implements the web search tool: one query against the
// search backend, then one fetch per hit to extract and truncate the page
// text. Failures never propagate as errors; they are normalized into
// error-status results so the caller always has something to fold into the
// next generation call.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Status tags a Result as usable page content or a diagnostic.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is a single search hit with its extracted page content, or a
// synthetic error entry when the backend fails or returns nothing.
type Result struct {
	Status  Status
	Title   string
	Link    string
	Content string
}

// Config holds search backend configuration.
type Config struct {
	// Provider selects the search backend ("google" or "duckduckgo").
	// Google requires an API key and cx id; without them the client falls
	// back to DuckDuckGo HTML search.
	Provider string `yaml:"provider"`

	// GoogleAPIKey is the Google Custom Search API key.
	GoogleAPIKey string `yaml:"google_api_key"`

	// GoogleCXID is the Google Custom Search engine id.
	GoogleCXID string `yaml:"google_cx_id"`

	// MaxResults caps the number of hits fetched per query.
	MaxResults int `yaml:"max_results"`

	// PageCharLimit caps the extracted text per page.
	PageCharLimit int `yaml:"page_char_limit"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:      "google",
		MaxResults:    5,
		PageCharLimit: 1500,
	}
}

const googleSearchURL = "https://www.googleapis.com/customsearch/v1"

// Client performs web searches and page fetches. A single attempt per query
// and per page; the caller already offers a human-visible fallback path.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	// searchBase overrides googleSearchURL in tests.
	searchBase string
}

// New creates a search client from config.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.PageCharLimit <= 0 {
		cfg.PageCharLimit = 1500
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With("component", "websearch"),
		searchBase: googleSearchURL,
	}
}

// Search queries the backend and returns up to maxResults hits with their
// page content extracted and truncated. Zero hits or a backend failure
// yield a single error-status entry whose content is a diagnostic meant for
// the generation call, never for the end user verbatim.
func (c *Client) Search(ctx context.Context, query string, maxResults int) []Result {
	if maxResults <= 0 || maxResults > c.cfg.MaxResults {
		maxResults = c.cfg.MaxResults
	}

	// Auto-select provider: Google needs credentials, DuckDuckGo does not.
	provider := strings.ToLower(c.cfg.Provider)
	if provider == "google" && (c.cfg.GoogleAPIKey == "" || c.cfg.GoogleCXID == "") {
		provider = "duckduckgo"
	}

	c.logger.Info("performing web search", "provider", provider, "query", query)

	var (
		hits []hit
		err  error
	)
	switch provider {
	case "duckduckgo":
		hits, err = c.searchDDG(ctx, query, maxResults)
	default:
		hits, err = c.searchGoogle(ctx, query, maxResults)
	}
	if err != nil {
		c.logger.Error("search backend failed", "provider", provider, "err", err)
		return []Result{{Status: StatusError, Content: fmt.Sprintf("search failed: %v", err)}}
	}
	if len(hits) == 0 {
		c.logger.Warn("no search results found", "query", query)
		return []Result{{Status: StatusError, Content: "No search results found."}}
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		content, err := c.fetchPageText(ctx, h.link)
		if err != nil {
			// Degrade this one result; the others still count.
			c.logger.Warn("page fetch failed", "url", h.link, "err", err)
			content = fmt.Sprintf("failed to load page content: %v", err)
		}
		results = append(results, Result{
			Status:  StatusSuccess,
			Title:   h.title,
			Link:    h.link,
			Content: content,
		})
	}

	c.logger.Info("web search completed", "results", len(results))
	return results
}

// hit is a bare {title, link} pair before page fetching.
type hit struct {
	title string
	link  string
}

// searchGoogle queries the Google Custom Search JSON API.
func (c *Client) searchGoogle(ctx context.Context, query string, maxResults int) ([]hit, error) {
	params := url.Values{}
	params.Set("key", c.cfg.GoogleAPIKey)
	params.Set("cx", c.cfg.GoogleCXID)
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("google search returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Items []struct {
			Title string `json:"title"`
			Link  string `json:"link"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing google results: %w", err)
	}

	hits := make([]hit, 0, len(result.Items))
	for _, item := range result.Items {
		if len(hits) >= maxResults {
			break
		}
		if item.Link != "" {
			hits = append(hits, hit{title: item.Title, link: item.Link})
		}
	}
	return hits, nil
}

// searchDDG queries DuckDuckGo HTML and scrapes result links.
func (c *Client) searchDDG(ctx context.Context, query string, maxResults int) ([]hit, error) {
	searchURL := fmt.Sprintf("https://html.duckduckgo.com/html/?q=%s", url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "ChatClaw/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 100*1024))

	hits := extractDDGHits(string(body))
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

// extractDDGHits parses DuckDuckGo HTML for result links.
func extractDDGHits(page string) []hit {
	var hits []hit

	// Result blocks look like: <a class="result__a" href="...">Title</a>
	parts := strings.Split(page, "result__a")
	for _, part := range parts[1:] {
		var h hit

		hrefIdx := strings.Index(part, "href=\"")
		if hrefIdx >= 0 {
			start := hrefIdx + 6
			end := strings.Index(part[start:], "\"")
			if end > 0 {
				h.link = part[start : start+end]
				// DuckDuckGo wraps URLs in a redirect; extract the target.
				if udIdx := strings.Index(h.link, "uddg="); udIdx >= 0 {
					h.link = h.link[udIdx+5:]
					if ampIdx := strings.Index(h.link, "&"); ampIdx >= 0 {
						h.link = h.link[:ampIdx]
					}
					if unescaped, err := url.QueryUnescape(h.link); err == nil {
						h.link = unescaped
					}
				}
			}
		}

		gtIdx := strings.Index(part, ">")
		if gtIdx >= 0 {
			closeIdx := strings.Index(part[gtIdx:], "</a>")
			if closeIdx > 0 {
				h.title = stripTags(part[gtIdx+1 : gtIdx+closeIdx])
			}
		}

		if h.title != "" && h.link != "" {
			hits = append(hits, h)
		}
	}
	return hits
}

// stripTags removes HTML tags from a string.
func stripTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		if r == '<' {
			inTag = true
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// fetchPageText downloads a page and extracts its paragraph text, truncated
// to the configured character budget.
func (c *Client) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "ChatClaw/1.0")
	req.Header.Set("Accept", "text/html,text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %d", resp.StatusCode)
	}

	text := ExtractParagraphText(io.LimitReader(resp.Body, 512*1024))
	if len(text) > c.cfg.PageCharLimit {
		// Back off to a rune boundary so the cut never severs a
		// multi-byte character.
		cut := c.cfg.PageCharLimit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text, nil
}

// ExtractParagraphText parses HTML and returns the text of all <p> elements
// joined by newlines. Script and style content is ignored.
func ExtractParagraphText(r io.Reader) string {
	doc, err := html.Parse(r)
	if err != nil {
		return ""
	}

	var paragraphs []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			if text := strings.TrimSpace(nodeText(n)); text != "" {
				paragraphs = append(paragraphs, text)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return strings.Join(paragraphs, "\n")
}

// nodeText collects the text content of a node, skipping scripts and styles.
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return ""
	}
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(nodeText(child))
	}
	return b.String()
}
