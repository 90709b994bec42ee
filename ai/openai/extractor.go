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

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/maintel/ai"
	"github.com/poiesic/maintel/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// FailureExtractor implements ai.FailureExtractor using OpenAI-compatible chat APIs.
type FailureExtractor struct {
	client llms.Model
	logger *slog.Logger
}

// failureResponse is an internal type used for JSON unmarshaling.
// It matches the structure requested in the extraction prompt.
type failureResponse struct {
	EquipmentID   string   `json:"equipment_id"`
	EquipmentType string   `json:"equipment_type"`
	FailureMode   string   `json:"failure_mode"`
	Severity      int      `json:"severity"`
	Summary       string   `json:"summary"`
	Actions       []string `json:"actions"`
}

// newFailureExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newFailureExtractor(config *ai.Config) (*FailureExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.ExtractionHost),
		openai.WithToken("none"),
		openai.WithModel(config.ExtractionModel),
	)
	if err != nil {
		return nil, err
	}

	return &FailureExtractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewFailureExtractor creates a new failure extractor using the provided configuration.
//
// Returns ai.FailureExtractor interface to enforce abstraction.
func NewFailureExtractor(config *ai.Config) (ai.FailureExtractor, error) {
	return newFailureExtractor(config)
}

// ExtractFailure converts a maintenance document into a structured failure
// record using an LLM in JSON mode. A provider failure is returned as-is; a
// response that cannot be parsed as the expected structure is returned as an
// "invalid response" error so callers can treat it as non-retriable.
func (e *FailureExtractor) ExtractFailure(ctx context.Context, text string) (*core.Failure, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildSystemPrompt()),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		e.logger.Error("failed to generate content", "err", err)
		return nil, err
	}

	if len(response.Choices) < 1 {
		e.logger.Warn("no choices returned from model")
		return nil, fmt.Errorf("%w: model returned no choices", ai.ErrInvalidResponse)
	}

	responseText := repairJSON(response.Choices[0].Content)

	var result failureResponse
	if err := json.Unmarshal([]byte(responseText), &result); err != nil {
		e.logger.Warn("error parsing extraction response", "response", responseText, "err", err)
		return nil, fmt.Errorf("%w: %v", ai.ErrInvalidResponse, err)
	}

	failure := &core.Failure{
		EquipmentID:   strings.TrimSpace(result.EquipmentID),
		EquipmentType: strings.ToLower(strings.TrimSpace(result.EquipmentType)),
		FailureMode:   strings.ToLower(strings.TrimSpace(result.FailureMode)),
		Severity:      result.Severity,
		Summary:       strings.TrimSpace(result.Summary),
		Actions:       result.Actions,
	}

	// Models occasionally invent modes outside the taxonomy; fold them into
	// "other" rather than failing the extraction.
	if failure.FailureMode != "" && !ai.IsKnownFailureMode(failure.FailureMode) {
		e.logger.Debug("unknown failure mode from model", "mode", failure.FailureMode)
		failure.FailureMode = "other"
	}

	e.logger.Debug("extracted failure",
		"equipment", failure.EquipmentID,
		"mode", failure.FailureMode,
		"severity", failure.Severity)

	return failure, nil
}
