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


package mock

import "github.com/poiesic/maintel/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates a MockEmbedder and a MockFailureExtractor.
type MockProvider struct {
	embedder  *MockEmbedder
	extractor *MockFailureExtractor
}

// NewMockProvider creates a provider backed by default mocks.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		embedder:  NewMockEmbedder(),
		extractor: NewMockFailureExtractor(),
	}
}

// NewMockProviderWith creates a provider backed by the given mocks.
// Nil arguments fall back to default mocks.
func NewMockProviderWith(embedder *MockEmbedder, extractor *MockFailureExtractor) *MockProvider {
	if embedder == nil {
		embedder = NewMockEmbedder()
	}
	if extractor == nil {
		extractor = NewMockFailureExtractor()
	}
	return &MockProvider{embedder: embedder, extractor: extractor}
}

// Embedder returns the mock embedding service.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// FailureExtractor returns the mock extraction service.
func (p *MockProvider) FailureExtractor() ai.FailureExtractor {
	return p.extractor
}

// GetMockEmbedder returns the concrete mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockExtractor returns the concrete mock extractor for test assertions.
func (p *MockProvider) GetMockExtractor() *MockFailureExtractor {
	return p.extractor
}

// Close is a no-op.
func (p *MockProvider) Close() error {
	return nil
}

var _ ai.AIProvider = (*MockProvider)(nil)
