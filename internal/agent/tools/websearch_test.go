package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tavilyStubResponse = `{
	"results": [
		{
			"title": "New ransomware campaign targets healthcare",
			"url": "https://bleepingcomputer.com/news/ransomware-healthcare",
			"content": "A new ransomware campaign is actively targeting hospital networks.",
			"score": 0.93,
			"published_date": "2026-08-20"
		},
		{
			"title": "CISA advisory on exploited VPN flaw",
			"url": "https://cisa.gov/advisories/aa26-232a",
			"content": "CISA warns of active exploitation of a VPN appliance vulnerability.",
			"score": 0.88
		}
	]
}`

func TestWebSearch_TrustedDomainsForGeneralQueries(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(tavilyStubResponse))
	}))
	defer srv.Close()

	tool := NewWebSearchToolWithBaseURL("tv-key", srv.URL, nil)
	input, _ := json.Marshal(map[string]interface{}{"query": "latest ransomware campaigns"})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.True(t, result.Success, "tool error: %s", result.Error)

	// General queries are pinned to the curated source list.
	assert.Equal(t, "tv-key", gotBody["api_key"])
	assert.Equal(t, "basic", gotBody["search_depth"])
	domains, ok := gotBody["include_domains"].([]interface{})
	require.True(t, ok, "include_domains missing for a general query")
	assert.Len(t, domains, len(trustedSecurityDomains))

	out := result.Data.(*webSearchOutput)
	require.Len(t, out.Results, 2)
	assert.Equal(t, 2, out.TotalResults)
	assert.Equal(t, "New ransomware campaign targets healthcare", out.Results[0].Title)
	assert.Equal(t, 0.93, out.Results[0].Score)
	assert.Equal(t, "2026-08-20", out.Results[0].PublishedDate)
}

func TestWebSearch_ResearchUsesAdvancedDepthWithoutDomainPin(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	tool := NewWebSearchToolWithBaseURL("tv-key", srv.URL, nil)
	input, _ := json.Marshal(map[string]interface{}{
		"query":       "APT29 initial access techniques",
		"search_type": "research",
		"max_results": 25,
		"time_range":  "m",
	})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, "advanced", gotBody["search_depth"])
	assert.Equal(t, "m", gotBody["time_range"])
	// max_results is clamped to 10.
	assert.Equal(t, float64(10), gotBody["max_results"])
	_, pinned := gotBody["include_domains"]
	assert.False(t, pinned, "research searches must not pin domains")
}

func TestWebSearch_UpstreamFailureMapsToToolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("backend exploded"))
	}))
	defer srv.Close()

	tool := NewWebSearchToolWithBaseURL("tv-key", srv.URL, nil)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "anything"}`))
	require.NoError(t, err, "upstream failures surface in the result, not as Go errors")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "web search failed")
	assert.Contains(t, result.Error, "status 500")
}

func TestWebSearch_EmptyQuery(t *testing.T) {
	tool := NewWebSearchToolWithBaseURL("tv-key", "http://unused", nil)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": " "}`))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "query is required", result.Error)
}
