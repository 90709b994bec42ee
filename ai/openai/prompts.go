package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/maintel/ai"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "equipment_id": {
      "type": "string"
    },
    "equipment_type": {
      "type": "string"
    },
    "failure_mode": {
      "type": "string"
    },
    "severity": {
      "type": "integer",
      "minimum": 1,
      "maximum": 5
    },
    "summary": {
      "type": "string"
    },
    "actions": {
      "type": "array",
      "items": {
        "type": "string"
      }
    }
  },
  "required": ["equipment_id", "failure_mode", "severity", "summary"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `You are analyzing industrial maintenance documents: work orders, failure
reports, and equipment logs. Extract the failure described in the given text and return it as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- equipment_id is the asset tag as written in the document (e.g. "P-101", "C-204"). Use "" if no tag is mentioned.
- equipment_type is the lowercase equipment class (e.g. "pump", "compressor", "motor", "valve"). Use "" if unknown.
- failure_mode must match exactly one of the listed values: %s.
- severity is an integer from 1 (cosmetic, no production impact) to 5 (catastrophic, safety incident or total loss).
- summary is one sentence describing what failed and how.
- actions lists corrective actions taken or recommended, in the order they appear. Use [] if none are mentioned.
- Report only what the document states or clearly implies. Do not hallucinate.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "Pump P-101 bearing failure, vibration spike detected during rounds. Replaced DE bearing, realigned coupling."
Output:
{
  "equipment_id": "P-101",
  "equipment_type": "pump",
  "failure_mode": "bearing",
  "severity": 3,
  "summary": "Drive-end bearing failure on pump P-101 detected via vibration spike.",
  "actions": ["Replaced DE bearing", "Realigned coupling"]
}

Example (no asset tag, observational):
Input: "noticed oil seepage around the gearbox sight glass, monitoring for now"
Output:
{
  "equipment_id": "",
  "equipment_type": "gearbox",
  "failure_mode": "leak",
  "severity": 1,
  "summary": "Minor oil seepage observed at the gearbox sight glass.",
  "actions": []
}`

// buildSystemPrompt creates the system prompt with the failure-mode taxonomy embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(extractionPromptTemplate,
		extractionResponseSchema,
		strings.Join(ai.FailureModes, ", "))
}
