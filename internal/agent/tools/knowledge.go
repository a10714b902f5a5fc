package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// knowledgeCategories are the valid knowledge base partitions.
var knowledgeCategories = []string{
	"incident_response",
	"prevention",
	"threat_intel",
	"compliance",
}

// KnowledgeDocument is a single knowledge base hit.
type KnowledgeDocument struct {
	Title          string   `json:"title"`
	Category       string   `json:"category"`
	Summary        string   `json:"summary"`
	RelevanceScore float64  `json:"relevance_score"`
	DocID          string   `json:"doc_id,omitempty"`
	LastUpdated    string   `json:"last_updated,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Author         string   `json:"author,omitempty"`
}

type knowledgeSearchOutput struct {
	Query              string              `json:"query"`
	CategoriesSearched []string            `json:"categories_searched"`
	Results            []KnowledgeDocument `json:"results"`
	TotalResults       int                 `json:"total_results"`
}

// KnowledgeSearchTool queries the internal knowledge service for playbooks,
// procedures, and security documentation.
type KnowledgeSearchTool struct {
	client *upstreamClient
	logger *slog.Logger
}

func NewKnowledgeSearchTool(baseURL string, logger *slog.Logger) *KnowledgeSearchTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeSearchTool{
		client: newUpstreamClient(strings.TrimRight(baseURL, "/"), nil),
		logger: logger,
	}
}

func (t *KnowledgeSearchTool) Name() string { return "knowledge_search" }

func (t *KnowledgeSearchTool) Description() string {
	return `Search the internal security knowledge base for playbooks, procedures,
and documentation.

Filter by category (incident_response, prevention, threat_intel, compliance)
to narrow the search. Returns matching documents ranked by relevance.`
}

func (t *KnowledgeSearchTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"query"},
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query for internal documentation",
			},
			"categories": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Filter: incident_response, prevention, threat_intel, compliance",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum results to return (default 10, max 50)",
			},
		},
	}
}

func (t *KnowledgeSearchTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var req struct {
		Query      string   `json:"query"`
		Categories []string `json:"categories"`
		Limit      int      `json:"limit"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if strings.TrimSpace(req.Query) == "" {
		return &Result{Success: false, Error: "query is required"}, nil
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Limit > 50 {
		req.Limit = 50
	}

	// Unknown categories are dropped rather than erroring, matching the
	// permissive behavior of the rest of the tool surface.
	categories := filterCategories(req.Categories)
	if len(categories) == 0 {
		categories = knowledgeCategories
	}

	body := map[string]interface{}{
		"query":      req.Query,
		"categories": categories,
		"limit":      req.Limit,
	}

	var resp struct {
		Results []KnowledgeDocument `json:"results"`
	}
	if err := t.client.postJSON(ctx, "/search", body, &resp); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("knowledge search failed: %v", err)}, nil
	}

	return &Result{
		Success: true,
		Data: &knowledgeSearchOutput{
			Query:              req.Query,
			CategoriesSearched: categories,
			Results:            resp.Results,
			TotalResults:       len(resp.Results),
		},
		Summary: fmt.Sprintf("Found %d knowledge base document(s)", len(resp.Results)),
	}, nil
}

func filterCategories(in []string) []string {
	valid := map[string]bool{}
	for _, c := range knowledgeCategories {
		valid[c] = true
	}
	var out []string
	for _, c := range in {
		if valid[c] {
			out = append(out, c)
		}
	}
	return out
}
