package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

const (
	otxBaseURL = "https://otx.alienvault.com/api/v1"

	// maxPulseResults caps how many pulses a single search may return.
	maxPulseResults = 50

	// pulseDescriptionLimit keeps pulse descriptions short enough to not
	// dominate the model context.
	pulseDescriptionLimit = 300
)

// ThreatPulse is a threat intelligence report from AlienVault OTX. A pulse
// bundles indicators of compromise with context about a threat.
type ThreatPulse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Modified    string   `json:"modified"`
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
}

type threatFeedOutput struct {
	Query        string        `json:"query"`
	TotalResults int           `json:"total_results"`
	Results      []ThreatPulse `json:"results"`
}

type otxSearchResponse struct {
	Results []struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Modified    string   `json:"modified"`
		AuthorName  string   `json:"author_name"`
		Tags        []string `json:"tags"`
	} `json:"results"`
}

// ThreatFeedsTool searches AlienVault OTX for threat intelligence pulses.
type ThreatFeedsTool struct {
	client *upstreamClient
	logger *slog.Logger
}

func NewThreatFeedsTool(apiKey string, logger *slog.Logger) *ThreatFeedsTool {
	return NewThreatFeedsToolWithBaseURL(apiKey, otxBaseURL, logger)
}

func NewThreatFeedsToolWithBaseURL(apiKey, baseURL string, logger *slog.Logger) *ThreatFeedsTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThreatFeedsTool{
		client: newUpstreamClient(baseURL, map[string]string{"X-OTX-API-KEY": apiKey}),
		logger: logger,
	}
}

func (t *ThreatFeedsTool) Name() string { return "threat_feeds" }

func (t *ThreatFeedsTool) Description() string {
	return `Search threat intelligence feeds (AlienVault OTX) for reports on malware
families, threat actors, campaigns, and CVEs.

Returns recent pulses with name, description, author, modification date and
tags. Use for current threat landscape questions and attribution context.`
}

func (t *ThreatFeedsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"query"},
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search term: malware family, threat actor, campaign, or CVE id",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum results to return (default 10, max 50)",
			},
		},
	}
}

func (t *ThreatFeedsTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
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
	if req.Limit > maxPulseResults {
		req.Limit = maxPulseResults
	}

	params := url.Values{
		"q":     {req.Query},
		"limit": {strconv.Itoa(req.Limit)},
	}

	var resp otxSearchResponse
	if err := t.client.getJSON(ctx, "/search/pulses", params, &resp); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("threat feed search failed: %v", err)}, nil
	}

	pulses := make([]ThreatPulse, 0, len(resp.Results))
	for _, p := range resp.Results {
		desc := p.Description
		if desc == "" {
			desc = "No description provided."
		}
		if len(desc) > pulseDescriptionLimit {
			desc = desc[:pulseDescriptionLimit] + "..."
		}
		author := p.AuthorName
		if author == "" {
			author = "Unknown author"
		}
		pulses = append(pulses, ThreatPulse{
			ID:          p.ID,
			Name:        p.Name,
			Description: desc,
			Modified:    p.Modified,
			Author:      author,
			Tags:        p.Tags,
		})
	}

	return &Result{
		Success: true,
		Data: &threatFeedOutput{
			Query:        req.Query,
			TotalResults: len(pulses),
			Results:      pulses,
		},
		Summary: fmt.Sprintf("Found %d threat pulses for %q", len(pulses), req.Query),
	}, nil
}
