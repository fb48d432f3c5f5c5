package advisory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	verdict, err := parseVerdict(`{"requirements_met": true, "vehicle_match": true, "confidence": 92, "issues": []}`)
	require.NoError(t, err)
	assert.True(t, verdict.RequirementsMet)
	assert.True(t, verdict.VehicleMatch)
	assert.Equal(t, 92, verdict.Confidence)
	assert.Empty(t, verdict.Issues)
}

func TestParseVerdictWithIssues(t *testing.T) {
	verdict, err := parseVerdict(`{"requirements_met": false, "vehicle_match": true, "confidence": 95, "issues": ["stock photo", "plate not visible"]}`)
	require.NoError(t, err)
	assert.False(t, verdict.RequirementsMet)
	assert.Equal(t, []string{"stock photo", "plate not visible"}, verdict.Issues)
}

func TestParseVerdictStripsMarkdownFence(t *testing.T) {
	content := "```json\n{\"requirements_met\": true, \"vehicle_match\": false, \"confidence\": 75, \"issues\": [\"different model\"]}\n```"
	verdict, err := parseVerdict(content)
	require.NoError(t, err)
	assert.False(t, verdict.VehicleMatch)
	assert.Equal(t, 75, verdict.Confidence)
}

func TestParseVerdictBareFence(t *testing.T) {
	content := "```\n{\"requirements_met\": true, \"vehicle_match\": true, \"confidence\": 88, \"issues\": []}\n```"
	verdict, err := parseVerdict(content)
	require.NoError(t, err)
	assert.Equal(t, 88, verdict.Confidence)
}

func TestParseVerdictRejectsNonJson(t *testing.T) {
	_, err := parseVerdict("I believe this submission looks fine.")
	assert.ErrorIs(t, err, ErrMalformedVerdict)
}

func TestParseVerdictRejectsOutOfRangeConfidence(t *testing.T) {
	_, err := parseVerdict(`{"requirements_met": true, "vehicle_match": true, "confidence": 150, "issues": []}`)
	assert.ErrorIs(t, err, ErrMalformedVerdict)

	_, err = parseVerdict(`{"requirements_met": true, "vehicle_match": true, "confidence": -5, "issues": []}`)
	assert.ErrorIs(t, err, ErrMalformedVerdict)
}
