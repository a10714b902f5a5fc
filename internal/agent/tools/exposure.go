package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const xposedOrNotBaseURL = "https://api.xposedornot.com/v1"

// ExposureCheckerTool checks whether an email address appears in known data
// breaches via the XposedOrNot API.
type ExposureCheckerTool struct {
	client *upstreamClient
	logger *slog.Logger
}

func NewExposureCheckerTool(logger *slog.Logger) *ExposureCheckerTool {
	return NewExposureCheckerToolWithBaseURL(xposedOrNotBaseURL, logger)
}

func NewExposureCheckerToolWithBaseURL(baseURL string, logger *slog.Logger) *ExposureCheckerTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExposureCheckerTool{
		client: newUpstreamClient(baseURL, nil),
		logger: logger,
	}
}

func (t *ExposureCheckerTool) Name() string { return "exposure_checker" }

func (t *ExposureCheckerTool) Description() string {
	return `Check if an email address has been exposed in known data breaches.

Queries the XposedOrNot breach database. Returns whether the address is
exposed, how many breaches it appears in, and the breach names.

Note: the email address is sent to a third-party service.`
}

func (t *ExposureCheckerTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"email"},
		"properties": map[string]interface{}{
			"email": map[string]interface{}{
				"type":        "string",
				"description": "Email address to check for breach exposure",
			},
		},
	}
}

type exposureOutput struct {
	Query         string   `json:"query"`
	IsExposed     bool     `json:"is_exposed"`
	ExposureCount int      `json:"exposure_count"`
	BreachNames   []string `json:"breach_names"`
	Message       string   `json:"message,omitempty"`
}

// xonResponse covers both shapes the XposedOrNot API returns for the
// breaches field: a flat array of names or a nested array.
type xonResponse struct {
	Breaches json.RawMessage `json:"breaches"`
}

func (t *ExposureCheckerTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return &Result{Success: false, Error: "a valid email address is required"}, nil
	}

	// The breach check discloses the queried address to an external
	// service. Logged before dispatch so the disclosure is auditable even
	// when the request itself fails.
	t.logger.Warn("disclosing email address to external breach database",
		"tool", t.Name(),
		"upstream", "xposedornot")

	var resp xonResponse
	err := t.client.getJSON(ctx, "/check-email/"+url.PathEscape(email), nil, &resp)
	if errors.Is(err, errNotFound) {
		return &Result{
			Success: true,
			Data: &exposureOutput{
				Query:       email,
				IsExposed:   false,
				BreachNames: []string{},
				Message:     "No breaches found",
			},
			Summary: "No breaches found",
		}, nil
	}
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("exposure check failed: %v", err)}, nil
	}

	names := parseBreachNames(resp.Breaches)
	out := &exposureOutput{
		Query:         email,
		IsExposed:     len(names) > 0,
		ExposureCount: len(names),
		BreachNames:   names,
	}
	if out.IsExposed {
		out.Message = fmt.Sprintf("Found %d breaches: %s", len(names), strings.Join(names, ", "))
	} else {
		out.Message = "No breaches found"
	}

	return &Result{
		Success: true,
		Data:    out,
		Summary: out.Message,
	}, nil
}

// parseBreachNames handles the two observed response shapes:
// ["Breach1","Breach2"] and [["Breach1","Breach2"]].
func parseBreachNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}

	var nested [][]string
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0]
	}

	return nil
}
