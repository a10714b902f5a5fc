package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCompliance(t *testing.T, input map[string]string) *complianceOutput {
	t.Helper()
	tool := NewComplianceGuidanceTool()
	raw, _ := json.Marshal(input)
	result, err := tool.Execute(context.Background(), raw)
	require.NoError(t, err)
	require.True(t, result.Success, "tool error: %s", result.Error)
	out, ok := result.Data.(*complianceOutput)
	require.True(t, ok)
	return out
}

func TestComplianceGuidance_SpecificFramework(t *testing.T) {
	out := executeCompliance(t, map[string]string{"framework": "gdpr"})

	require.NotNil(t, out.FrameworkGuidance)
	assert.Equal(t, "GDPR", out.FrameworkGuidance.Framework)
	assert.Equal(t, "General Data Protection Regulation", out.FrameworkGuidance.FullName)
	assert.Equal(t, "72 hours", out.FrameworkGuidance.BreachTimeline.AuthorityNotification)
	assert.Equal(t, "30 days", out.FrameworkGuidance.BreachTimeline.IndividualNotification)
}

func TestComplianceGuidance_FrameworkNameNormalization(t *testing.T) {
	out := executeCompliance(t, map[string]string{"framework": "PCI-DSS"})

	require.NotNil(t, out.FrameworkGuidance)
	assert.Equal(t, "PCI_DSS", out.FrameworkGuidance.Framework)
	assert.Equal(t, "24 hours", out.FrameworkGuidance.BreachTimeline.AuthorityNotification)
}

func TestComplianceGuidance_UnknownFramework(t *testing.T) {
	tool := NewComplianceGuidanceTool()
	raw, _ := json.Marshal(map[string]string{"framework": "fedramp"})
	result, err := tool.Execute(context.Background(), raw)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "fedramp")
}

func TestComplianceGuidance_BreachScenarioPicksStrictestDeadline(t *testing.T) {
	out := executeCompliance(t, map[string]string{
		"data_type":     "personal_data",
		"region":        "EU",
		"incident_type": "breach",
	})

	require.NotNil(t, out.Recommendations)
	// GDPR (72h) and NIS2 (24h) both apply; NIS2 is stricter.
	assert.ElementsMatch(t, []string{"GDPR", "NIS2"}, out.Recommendations.ApplicableFrameworks)
	assert.Equal(t, "24 hours", out.Recommendations.StrictestBreachDeadline)
	assert.NotEmpty(t, out.Recommendations.ImmediateActions)
}

func TestComplianceGuidance_NoMatchingScenario(t *testing.T) {
	out := executeCompliance(t, map[string]string{"data_type": "telemetry", "region": "APAC"})

	require.NotNil(t, out.Recommendations)
	assert.Empty(t, out.Recommendations.ApplicableFrameworks)
	assert.NotEmpty(t, out.Recommendations.KeyConsiderations)
}

func TestComplianceGuidance_Overview(t *testing.T) {
	out := executeCompliance(t, map[string]string{})

	require.NotNil(t, out.Recommendations)
	assert.Contains(t, out.AllApplicable, "GDPR")
	assert.Contains(t, out.AllApplicable, "NIS2")
	assert.Len(t, out.AllApplicable, len(complianceCatalog))
}

func TestFormatDeadline(t *testing.T) {
	assert.Equal(t, "24 hours", formatDeadline(24*time.Hour))
	assert.Equal(t, "72 hours", formatDeadline(72*time.Hour))
	assert.Equal(t, "4 days", formatDeadline(4*24*time.Hour))
	assert.Equal(t, "30 days", formatDeadline(30*24*time.Hour))
	assert.Equal(t, "30 minutes", formatDeadline(30*time.Minute))
}
