package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	nvdBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

	maxCVEResults = 20
)

var cveIDPattern = regexp.MustCompile(`(?i)^CVE-\d{4}-\d{4,}$`)

// CVERecord is a condensed NVD vulnerability record.
type CVERecord struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
	CVSSScore   float64 `json:"cvss_score"`
	Published   string  `json:"published"`
	Modified    string  `json:"modified"`
}

type vulnSearchOutput struct {
	Query        string      `json:"query"`
	TotalResults int         `json:"total_results"`
	Results      []CVERecord `json:"results"`
}

// nvdResponse mirrors the slice of the NVD CVE API 2.0 response we consume.
type nvdResponse struct {
	TotalResults    int `json:"totalResults"`
	Vulnerabilities []struct {
		CVE struct {
			ID           string `json:"id"`
			Published    string `json:"published"`
			LastModified string `json:"lastModified"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
			Metrics struct {
				CVSSV31 []struct {
					CVSSData struct {
						BaseScore    float64 `json:"baseScore"`
						BaseSeverity string  `json:"baseSeverity"`
					} `json:"cvssData"`
				} `json:"cvssMetricV31"`
				CVSSV2 []struct {
					CVSSData struct {
						BaseScore float64 `json:"baseScore"`
					} `json:"cvssData"`
					BaseSeverity string `json:"baseSeverity"`
				} `json:"cvssMetricV2"`
			} `json:"metrics"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

// VulnerabilitySearchTool queries the NVD CVE API by keyword or CVE id.
type VulnerabilitySearchTool struct {
	client *upstreamClient
	logger *slog.Logger
}

// NewVulnerabilitySearchTool creates the tool. apiKey is optional; NVD
// grants higher rate limits when one is supplied.
func NewVulnerabilitySearchTool(apiKey string, logger *slog.Logger) *VulnerabilitySearchTool {
	return NewVulnerabilitySearchToolWithBaseURL(apiKey, nvdBaseURL, logger)
}

func NewVulnerabilitySearchToolWithBaseURL(apiKey, baseURL string, logger *slog.Logger) *VulnerabilitySearchTool {
	if logger == nil {
		logger = slog.Default()
	}
	var headers map[string]string
	if apiKey != "" {
		headers = map[string]string{"apiKey": apiKey}
	}
	return &VulnerabilitySearchTool{
		client: newUpstreamClient(baseURL, headers),
		logger: logger,
	}
}

func (t *VulnerabilitySearchTool) Name() string { return "vulnerability_search" }

func (t *VulnerabilitySearchTool) Description() string {
	return `Search the NVD vulnerability database by CVE id or keyword.

Provide a CVE id (e.g. CVE-2024-3094) for a specific record, or a keyword
(product name, vulnerability class) for a broader search. Returns CVE ids,
descriptions, CVSS scores, and severities.`
}

func (t *VulnerabilitySearchTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"query"},
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "CVE id or keyword to search for",
			},
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum results to return (default 5, max 20)",
			},
		},
	}
}

func (t *VulnerabilitySearchTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var req struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return &Result{Success: false, Error: "query is required"}, nil
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 5
	}
	if req.MaxResults > maxCVEResults {
		req.MaxResults = maxCVEResults
	}

	params := url.Values{"resultsPerPage": {strconv.Itoa(req.MaxResults)}}
	if cveIDPattern.MatchString(query) {
		params.Set("cveId", strings.ToUpper(query))
	} else {
		params.Set("keywordSearch", query)
	}

	var resp nvdResponse
	if err := t.client.getJSON(ctx, "", params, &resp); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("vulnerability search failed: %v", err)}, nil
	}

	records := make([]CVERecord, 0, len(resp.Vulnerabilities))
	for _, v := range resp.Vulnerabilities {
		rec := CVERecord{
			ID:        v.CVE.ID,
			Published: v.CVE.Published,
			Modified:  v.CVE.LastModified,
		}
		for _, d := range v.CVE.Descriptions {
			if d.Lang == "en" {
				rec.Description = d.Value
				break
			}
		}
		if m := v.CVE.Metrics.CVSSV31; len(m) > 0 {
			rec.CVSSScore = m[0].CVSSData.BaseScore
			rec.Severity = m[0].CVSSData.BaseSeverity
		} else if m := v.CVE.Metrics.CVSSV2; len(m) > 0 {
			rec.CVSSScore = m[0].CVSSData.BaseScore
			rec.Severity = m[0].BaseSeverity
		}
		records = append(records, rec)
	}

	return &Result{
		Success: true,
		Data: &vulnSearchOutput{
			Query:        query,
			TotalResults: resp.TotalResults,
			Results:      records,
		},
		Summary: fmt.Sprintf("Found %d CVE record(s) for %q", len(records), query),
	}, nil
}
