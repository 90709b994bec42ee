package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/maintel/ai"
	"github.com/poiesic/maintel/core"
)

// MockFailureExtractor is a test double for ai.FailureExtractor.
// It allows custom behavior injection via function fields.
type MockFailureExtractor struct {
	// ExtractFailureFunc is called by ExtractFailure if set.
	// If nil, uses default keyword-based behavior.
	ExtractFailureFunc func(ctx context.Context, text string) (*core.Failure, error)

	mu        sync.Mutex
	callCount int
}

// NewMockFailureExtractor creates a mock failure extractor with default behavior.
// Note: Returns concrete type to allow test assertions via call counts.
func NewMockFailureExtractor() *MockFailureExtractor {
	return &MockFailureExtractor{}
}

// ExtractFailure extracts a plausible failure record from text.
// Default behavior: picks the first taxonomy keyword mentioned in the text
// and the first token that looks like an asset tag (contains a dash).
func (m *MockFailureExtractor) ExtractFailure(ctx context.Context, text string) (*core.Failure, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractFailureFunc != nil {
		return m.ExtractFailureFunc(ctx, text)
	}

	lower := strings.ToLower(text)

	mode := "other"
	for _, candidate := range ai.FailureModes {
		if candidate != "other" && strings.Contains(lower, candidate) {
			mode = candidate
			break
		}
	}

	equipmentID := ""
	for _, token := range strings.Fields(text) {
		token = strings.Trim(token, ".,;:")
		if strings.ContainsRune(token, '-') && len(token) <= 10 {
			equipmentID = token
			break
		}
	}

	summary := text
	if len(summary) > 80 {
		summary = summary[:80]
	}

	return &core.Failure{
		EquipmentID: equipmentID,
		FailureMode: mode,
		Severity:    3,
		Summary:     summary,
	}, nil
}

// CallCount returns the number of times ExtractFailure was called.
func (m *MockFailureExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockFailureExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.ExtractFailureFunc = nil
}
