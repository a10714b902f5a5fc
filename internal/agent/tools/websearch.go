package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const tavilyBaseURL = "https://api.tavily.com"

// trustedSecurityDomains is a curated list of authoritative sources used to
// focus security-related searches.
var trustedSecurityDomains = []string{
	// Threat intelligence and news
	"bleepingcomputer.com",
	"darkreading.com",
	"thehackernews.com",
	"threatpost.com",
	"krebsonsecurity.com",

	// Vulnerability and standards databases
	"cve.mitre.org",
	"nvd.nist.gov",
	"owasp.org",

	// Government and research organizations
	"cisa.gov",
	"us-cert.gov",
	"sans.org",

	// Vendor research blogs
	"crowdstrike.com/blog",
	"mandiant.com/resources/blog",
}

// WebSearchResult is a single web search hit.
type WebSearchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

type webSearchOutput struct {
	Query        string            `json:"query"`
	Results      []WebSearchResult `json:"results"`
	TotalResults int               `json:"total_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

// WebSearchTool searches the web via the Tavily API, preferring trusted
// security sources for general queries.
type WebSearchTool struct {
	client *upstreamClient
	apiKey string
	logger *slog.Logger
}

func NewWebSearchTool(apiKey string, logger *slog.Logger) *WebSearchTool {
	return NewWebSearchToolWithBaseURL(apiKey, tavilyBaseURL, logger)
}

func NewWebSearchToolWithBaseURL(apiKey, baseURL string, logger *slog.Logger) *WebSearchTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSearchTool{
		client: newUpstreamClient(baseURL, nil),
		apiKey: apiKey,
		logger: logger,
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return `Search the web for current security information: advisories, breaking
threat news, vendor bulletins, research.

search_type 'news' focuses on recent events, 'research' uses deeper search.
General security queries are restricted to a curated list of trusted
security publications unless include_domains overrides it.`
}

func (t *WebSearchTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"query"},
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query",
			},
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum results (default 5, max 10)",
			},
			"search_type": map[string]interface{}{
				"type":        "string",
				"description": "Type of search: general, news, or research",
			},
			"include_domains": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Restrict search to these domains",
			},
			"time_range": map[string]interface{}{
				"type":        "string",
				"description": "Filter by recency: d (day), w (week), m (month), y (year)",
			},
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var req struct {
		Query          string   `json:"query"`
		MaxResults     int      `json:"max_results"`
		SearchType     string   `json:"search_type"`
		IncludeDomains []string `json:"include_domains"`
		TimeRange      string   `json:"time_range"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if strings.TrimSpace(req.Query) == "" {
		return &Result{Success: false, Error: "query is required"}, nil
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 5
	}
	if req.MaxResults > 10 {
		req.MaxResults = 10
	}

	domains := req.IncludeDomains
	if len(domains) == 0 && req.SearchType != "news" && req.SearchType != "research" {
		domains = trustedSecurityDomains
	}

	depth := "basic"
	if req.SearchType == "research" {
		depth = "advanced"
	}

	body := map[string]interface{}{
		"api_key":      t.apiKey,
		"query":        req.Query,
		"max_results":  req.MaxResults,
		"search_depth": depth,
	}
	if len(domains) > 0 {
		body["include_domains"] = domains
	}
	if req.TimeRange != "" {
		body["time_range"] = req.TimeRange
	}

	var resp tavilyResponse
	if err := t.client.postJSON(ctx, "/search", body, &resp); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("web search failed: %v", err)}, nil
	}

	results := make([]WebSearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, WebSearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
		})
	}

	return &Result{
		Success: true,
		Data: &webSearchOutput{
			Query:        req.Query,
			Results:      results,
			TotalResults: len(results),
		},
		Summary: fmt.Sprintf("Found %d web result(s) for %q", len(results), req.Query),
	}, nil
}
