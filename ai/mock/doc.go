// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder,
// ai.FailureExtractor, and ai.AIProvider for use in unit tests. The mocks
// allow tests to run without external AI service dependencies and enable
// controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	failure, err := mockProvider.FailureExtractor().ExtractFailure(ctx, "Pump P-101 bearing failure")
//
//	// Custom behavior injection
//	mockEmbedder := mock.NewMockEmbedder()
//	mockEmbedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	// Check call counts
//	count := mockEmbedder.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockFailureExtractor: Picks a taxonomy keyword and asset tag from the text
//   - MockProvider: Aggregates mock embedder and extractor
package mock
