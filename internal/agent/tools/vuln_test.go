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

const nvdStubResponse = `{
	"totalResults": 1,
	"vulnerabilities": [{
		"cve": {
			"id": "CVE-2024-3094",
			"published": "2024-03-29T17:15:21.150",
			"lastModified": "2024-05-01T18:15:13.360",
			"descriptions": [
				{"lang": "es", "value": "descripcion"},
				{"lang": "en", "value": "Malicious code was discovered in the upstream tarballs of xz."}
			],
			"metrics": {
				"cvssMetricV31": [{
					"cvssData": {"baseScore": 10.0, "baseSeverity": "CRITICAL"}
				}]
			}
		}
	}]
}`

func TestVulnerabilitySearch_ByCVEID(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(nvdStubResponse))
	}))
	defer srv.Close()

	tool := NewVulnerabilitySearchToolWithBaseURL("", srv.URL, nil)
	input, _ := json.Marshal(map[string]string{"query": "cve-2024-3094"})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.True(t, result.Success, "tool error: %s", result.Error)

	assert.Contains(t, gotQuery, "cveId=CVE-2024-3094")

	out := result.Data.(*vulnSearchOutput)
	require.Len(t, out.Results, 1)
	rec := out.Results[0]
	assert.Equal(t, "CVE-2024-3094", rec.ID)
	assert.Equal(t, "CRITICAL", rec.Severity)
	assert.Equal(t, 10.0, rec.CVSSScore)
	assert.Contains(t, rec.Description, "xz")
}

func TestVulnerabilitySearch_ByKeyword(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"totalResults": 0, "vulnerabilities": []}`))
	}))
	defer srv.Close()

	tool := NewVulnerabilitySearchToolWithBaseURL("", srv.URL, nil)
	input, _ := json.Marshal(map[string]interface{}{"query": "openssl heartbleed", "max_results": 3})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Contains(t, gotQuery, "keywordSearch=openssl+heartbleed")
	assert.Contains(t, gotQuery, "resultsPerPage=3")

	out := result.Data.(*vulnSearchOutput)
	assert.Empty(t, out.Results)
	assert.Equal(t, 0, out.TotalResults)
}

func TestVulnerabilitySearch_EmptyQuery(t *testing.T) {
	tool := NewVulnerabilitySearchToolWithBaseURL("", "http://unused", nil)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "  "}`))
	require.NoError(t, err)
	assert.False(t, result.Success)
}
