package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSON_CodeFences(t *testing.T) {
	raw := "```json\n{\"failure_mode\": \"bearing\"}\n```"
	repaired := repairJSON(raw)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(repaired), &out))
	assert.Equal(t, "bearing", out["failure_mode"])
}

func TestRepairJSON_TrailingCommas(t *testing.T) {
	raw := `{"actions": ["a", "b",], "severity": 3,}`
	repaired := repairJSON(raw)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(repaired), &out))
	assert.Equal(t, float64(3), out["severity"])
}

func TestRepairJSON_SurroundingProse(t *testing.T) {
	raw := "Here is the extraction:\n{\"failure_mode\": \"seal\"}\nHope this helps!"
	repaired := repairJSON(raw)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(repaired), &out))
	assert.Equal(t, "seal", out["failure_mode"])
}

func TestRepairJSON_CommasInsideStrings(t *testing.T) {
	raw := `{"summary": "failure, then repair,"}`
	repaired := repairJSON(raw)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(repaired), &out))
	assert.Equal(t, "failure, then repair,", out["summary"])
}

func TestRepairJSON_ValidPassthrough(t *testing.T) {
	raw := `{"equipment_id": "P-101", "severity": 2}`
	assert.Equal(t, raw, repairJSON(raw))
}
