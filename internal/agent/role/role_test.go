package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	r, err := Parse("incident_response")
	require.NoError(t, err)
	assert.Equal(t, IncidentResponse, r)

	_, err = Parse("astrologer")
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Compliance.Valid())
	assert.True(t, Coordinator.Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("astrologer").Valid())
}

func TestDefaultConfigUnknownRoleFallsBack(t *testing.T) {
	cfg := DefaultConfig(Role("nonsense"))
	assert.Equal(t, DefaultRole, cfg.Role)
}

func TestSpeakingOrder(t *testing.T) {
	assert.Equal(t, []Role{IncidentResponse, ThreatIntel, Prevention, Compliance}, Specialists)
}

func TestPermitted(t *testing.T) {
	ir := DefaultConfig(IncidentResponse)
	assert.True(t, ir.Permitted("ioc_analysis"))
	assert.False(t, ir.Permitted("compliance_guidance"))

	co := DefaultConfig(Compliance)
	assert.True(t, co.Permitted("compliance_guidance"))
	assert.False(t, co.Permitted("ioc_analysis"))
}

func TestQualityThresholds(t *testing.T) {
	cases := map[Role]float64{
		IncidentResponse: 6.0,
		Prevention:       5.5,
		ThreatIntel:      6.0,
		Compliance:       6.5,
		Coordinator:      5.5,
	}
	for r, want := range cases {
		assert.Equal(t, want, QualityThreshold(r), "role %s", r)
	}
	// Unknown roles fall back to the strict default.
	assert.Equal(t, 7.0, QualityThreshold(Role("nonsense")))
}

func TestDefaultConfigsIsACopy(t *testing.T) {
	a := DefaultConfigs()
	a[IncidentResponse] = Config{Role: IncidentResponse, DisplayName: "mutated"}
	b := DefaultConfigs()
	assert.NotEqual(t, "mutated", b[IncidentResponse].DisplayName)
}
