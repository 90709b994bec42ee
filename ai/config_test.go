package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractionHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:3b", cfg.ExtractionModel)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractionHost)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.ExtractionHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithExtractionHost("http://extract:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://extract:9090/v1", cfg.ExtractionHost)
	})

	t.Run("with custom models and dimension", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("embeddinggemma"),
			WithExtractionModel("gpt-4o-mini"),
			WithEmbeddingDimensions(768),
		)

		assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.ExtractionModel)
		assert.Equal(t, 768, cfg.EmbeddingDimensions)
	})
}

func TestConfigNormalize(t *testing.T) {
	cfg := &Config{
		EmbeddingHost:  "http://localhost:11434",
		ExtractionHost: "http://localhost:9100/",
	}
	cfg.Normalize()

	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:9100/v1", cfg.ExtractionHost)

	// Already-normalized hosts are untouched.
	cfg.Normalize()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EmbeddingModel = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing extraction model", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ExtractionModel = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive dimension", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EmbeddingDimensions = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing hosts", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EmbeddingHost = ""
		assert.Error(t, cfg.Validate())
	})
}

func TestIsKnownFailureMode(t *testing.T) {
	assert.True(t, IsKnownFailureMode("bearing"))
	assert.True(t, IsKnownFailureMode("other"))
	assert.False(t, IsKnownFailureMode("gremlins"))
	assert.False(t, IsKnownFailureMode(""))
}
