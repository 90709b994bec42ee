// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import "strings"

// repairJSON attempts to fix common JSON formatting issues from LLM responses:
// markdown code fences around the object, trailing commas before a closing
// brace or bracket, and text before the first or after the last brace.
func repairJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	// Clamp to the outermost object; models sometimes add prose around it.
	if start := strings.IndexByte(s, '{'); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexByte(s, '}'); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}

	return stripTrailingCommas(s)
}

// stripTrailingCommas removes commas that directly precede a closing brace or
// bracket, ignoring commas inside string literals.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			b.WriteByte(ch)
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}

		if ch == ',' {
			// Look past whitespace for a closer.
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\t' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the trailing comma
			}
		}

		b.WriteByte(ch)
	}

	return b.String()
}
