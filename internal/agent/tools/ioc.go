package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

const (
	virusTotalBaseURL = "https://www.virustotal.com/api/v3"

	// Detection-count thresholds for classifying an indicator.
	maliciousThreshold  = 3
	suspiciousThreshold = 3

	// iocCacheSize bounds the reputation cache. Indicator verdicts are
	// stable over the lifetime of a conversation, so a successful lookup
	// is never re-fetched.
	iocCacheSize = 1024

	// maxBatchIndicators caps a single comma-separated batch.
	maxBatchIndicators = 10
)

var iocPatterns = []struct {
	typ string
	re  *regexp.Regexp
}{
	{"ip", regexp.MustCompile(`^(?:[0-9]{1,3}\.){3}[0-9]{1,3}$`)},
	{"url", regexp.MustCompile(`^https?://`)},
	{"md5", regexp.MustCompile(`^[a-fA-F0-9]{32}$`)},
	{"sha1", regexp.MustCompile(`^[a-fA-F0-9]{40}$`)},
	{"sha256", regexp.MustCompile(`^[a-fA-F0-9]{64}$`)},
	{"domain", regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?\.[a-zA-Z]{2,}$`)},
}

// indicatorType classifies an indicator as ip, domain, url, md5, sha1,
// sha256 or unknown. Hash patterns are checked before domain so bare hex
// strings don't mis-match.
func indicatorType(indicator string) string {
	indicator = strings.TrimSpace(indicator)
	for _, p := range iocPatterns {
		if p.re.MatchString(indicator) {
			return p.typ
		}
	}
	return "unknown"
}

// IOCVerdict is the analysis outcome for a single indicator.
type IOCVerdict struct {
	Indicator      string `json:"indicator"`
	Type           string `json:"type"`
	Classification string `json:"classification"`
	MaliciousCount int    `json:"malicious_count"`
	TotalEngines   int    `json:"total_engines"`
	Source         string `json:"source"`
	Recommendation string `json:"recommendation,omitempty"`
	Error          string `json:"error,omitempty"`
}

type iocAnalysisOutput struct {
	TotalIndicators int          `json:"total_indicators"`
	Results         []IOCVerdict `json:"results"`
}

// vtResponse mirrors the slice of the VirusTotal v3 object response we need.
type vtResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats map[string]int `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// IOCAnalysisTool looks up indicator reputation via the VirusTotal v3 API.
type IOCAnalysisTool struct {
	client *upstreamClient
	cache  *lru.Cache[string, IOCVerdict]
	logger *slog.Logger
}

// NewIOCAnalysisTool creates the tool with the production VirusTotal endpoint.
func NewIOCAnalysisTool(apiKey string, logger *slog.Logger) *IOCAnalysisTool {
	return NewIOCAnalysisToolWithBaseURL(apiKey, virusTotalBaseURL, logger)
}

// NewIOCAnalysisToolWithBaseURL allows tests to point the tool at a stub server.
func NewIOCAnalysisToolWithBaseURL(apiKey, baseURL string, logger *slog.Logger) *IOCAnalysisTool {
	cache, _ := lru.New[string, IOCVerdict](iocCacheSize)
	if logger == nil {
		logger = slog.Default()
	}
	return &IOCAnalysisTool{
		client: newUpstreamClient(baseURL, map[string]string{"x-apikey": apiKey}),
		cache:  cache,
		logger: logger,
	}
}

func (t *IOCAnalysisTool) Name() string { return "ioc_analysis" }

func (t *IOCAnalysisTool) Description() string {
	return `Analyze indicators of compromise (IOCs) against VirusTotal reputation data.

Supports IPs, domains, URLs, and file hashes (MD5, SHA1, SHA256). For batch
analysis, provide multiple indicators as a comma-separated string (max 10).

Returns a classification (malicious, suspicious, clean, unknown) per
indicator with engine detection counts and a blocking/monitoring
recommendation.`
}

func (t *IOCAnalysisTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"indicator"},
		"properties": map[string]interface{}{
			"indicator": map[string]interface{}{
				"type":        "string",
				"description": "Indicator to analyze (IP, domain, URL, or file hash). Comma-separate for batch.",
			},
		},
	}
}

func (t *IOCAnalysisTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var req struct {
		Indicator string `json:"indicator"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if strings.TrimSpace(req.Indicator) == "" {
		return &Result{Success: false, Error: "indicator is required"}, nil
	}

	var indicators []string
	for _, raw := range strings.Split(req.Indicator, ",") {
		if s := strings.TrimSpace(raw); s != "" {
			indicators = append(indicators, s)
		}
	}
	if len(indicators) > maxBatchIndicators {
		indicators = indicators[:maxBatchIndicators]
	}

	results := make([]IOCVerdict, len(indicators))
	g, gctx := errgroup.WithContext(ctx)
	for i, indicator := range indicators {
		g.Go(func() error {
			results[i] = t.analyze(gctx, indicator)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}

	var malicious int
	for _, r := range results {
		if r.Classification == "malicious" {
			malicious++
		}
	}

	return &Result{
		Success: true,
		Data:    &iocAnalysisOutput{TotalIndicators: len(results), Results: results},
		Summary: fmt.Sprintf("Analyzed %d indicator(s), %d malicious", len(results), malicious),
	}, nil
}

func (t *IOCAnalysisTool) analyze(ctx context.Context, indicator string) IOCVerdict {
	typ := indicatorType(indicator)
	if typ == "unknown" {
		return IOCVerdict{
			Indicator: indicator,
			Type:      "unknown",
			Source:    "virustotal",
			Error:     "could not determine indicator type",
		}
	}

	if v, ok := t.cache.Get(indicator); ok {
		return v
	}

	var path string
	switch typ {
	case "ip":
		path = "/ip_addresses/" + indicator
	case "domain":
		path = "/domains/" + indicator
	case "url":
		// VirusTotal addresses URLs by the unpadded urlsafe-base64 of the URL.
		id := strings.TrimRight(base64.URLEncoding.EncodeToString([]byte(indicator)), "=")
		path = "/urls/" + id
	default: // md5, sha1, sha256
		path = "/files/" + indicator
	}

	var resp vtResponse
	if err := t.client.getJSON(ctx, path, nil, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			v := IOCVerdict{
				Indicator:      indicator,
				Type:           typ,
				Classification: "unknown",
				Source:         "virustotal",
				Error:          "not found in VirusTotal",
			}
			t.cache.Add(indicator, v)
			return v
		}
		t.logger.Warn("virustotal lookup failed", "indicator", indicator, "error", err)
		return IOCVerdict{
			Indicator: indicator,
			Type:      typ,
			Source:    "virustotal",
			Error:     err.Error(),
		}
	}

	v := classifyVerdict(indicator, typ, resp.Data.Attributes.LastAnalysisStats)
	t.cache.Add(indicator, v)
	return v
}

func classifyVerdict(indicator, typ string, stats map[string]int) IOCVerdict {
	malicious := stats["malicious"]
	suspicious := stats["suspicious"]
	total := 0
	for _, n := range stats {
		total += n
	}

	var classification, recommendation string
	switch {
	case malicious >= maliciousThreshold:
		classification = "malicious"
		recommendation = fmt.Sprintf("Block this %s - detected by %d engines", typ, malicious)
	case suspicious >= suspiciousThreshold || malicious > 0:
		classification = "suspicious"
		recommendation = fmt.Sprintf("Monitor this %s - flagged by %d engines", typ, suspicious+malicious)
	default:
		classification = "clean"
	}

	return IOCVerdict{
		Indicator:      indicator,
		Type:           typ,
		Classification: classification,
		MaliciousCount: malicious,
		TotalEngines:   total,
		Source:         "virustotal",
		Recommendation: recommendation,
	}
}
