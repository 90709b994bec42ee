package search

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/maintel/ai/mock"
	"github.com/poiesic/maintel/core"
	"github.com/poiesic/maintel/pipeline"
	"github.com/poiesic/maintel/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupIndex(t *testing.T, embedder *mock.MockEmbedder, opts ...Option) *Index {
	t.Helper()

	repo, _, backend, err := badger.NewMemoryStore(time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	index, err := NewIndex(repo, embedder, opts...)
	require.NoError(t, err)
	return index
}

func insertRecord(t *testing.T, index *Index, text string, vector []float32) *core.ExtractionRecord {
	t.Helper()

	record := &core.ExtractionRecord{
		Fingerprint: core.FingerprintText(text),
		Failure:     core.Failure{FailureMode: "bearing", Severity: 3, Summary: text},
		SourceText:  text,
		Vector:      vector,
		CreatedAt:   time.Now().UTC(),
	}
	inserted, err := index.Insert(context.Background(), record)
	require.NoError(t, err)
	return inserted
}

func TestQueryRanksByScore(t *testing.T) {
	index := setupIndex(t, mock.NewMockEmbedder())
	ctx := context.Background()

	// Scores against the query [1,0,0]: 0.91, 0.87, orthogonal.
	insertRecord(t, index, "bearing failure on pump", []float32{0.91, 0.4146, 0})
	insertRecord(t, index, "seal leak on compressor", []float32{0.87, 0.4931, 0})
	insertRecord(t, index, "routine inspection", []float32{0, 0, 1})

	matches, err := index.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "bearing failure on pump", matches[0].Record.SourceText)
	assert.Equal(t, "seal leak on compressor", matches[1].Record.SourceText)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestQueryBreaksTiesByRecency(t *testing.T) {
	index := setupIndex(t, mock.NewMockEmbedder())
	ctx := context.Background()

	older := insertRecord(t, index, "older identical vector", []float32{1, 0})
	// Force a distinct, later insertion time.
	newer := &core.ExtractionRecord{
		Fingerprint: core.FingerprintText("newer identical vector"),
		Failure:     core.Failure{FailureMode: "bearing", Severity: 3, Summary: "newer"},
		SourceText:  "newer identical vector",
		Vector:      []float32{1, 0},
		CreatedAt:   time.Now().UTC(),
		InsertedAt:  older.InsertedAt.Add(time.Second),
	}
	_, err := index.Insert(ctx, newer)
	require.NoError(t, err)

	matches, err := index.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "newer identical vector", matches[0].Record.SourceText)
	assert.Equal(t, "older identical vector", matches[1].Record.SourceText)
}

func TestQueryNormalizesInput(t *testing.T) {
	index := setupIndex(t, mock.NewMockEmbedder())
	ctx := context.Background()

	insertRecord(t, index, "bearing failure on pump", []float32{1, 0, 0})

	// A scaled query vector must rank identically to the unit one.
	matches, err := index.Query(ctx, []float32{42, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-4)
}

func TestInsertNormalizesVector(t *testing.T) {
	index := setupIndex(t, mock.NewMockEmbedder())

	inserted := insertRecord(t, index, "bearing failure on pump", []float32{3, 4})

	assert.InDelta(t, 0.6, inserted.Vector[0], 1e-6)
	assert.InDelta(t, 0.8, inserted.Vector[1], 1e-6)
}

func TestInsertUpsertsExistingRecord(t *testing.T) {
	index := setupIndex(t, mock.NewMockEmbedder())
	ctx := context.Background()

	first := insertRecord(t, index, "bearing failure on pump", nil)

	second := &core.ExtractionRecord{
		Fingerprint: first.Fingerprint,
		Failure:     first.Failure,
		SourceText:  first.SourceText,
		Vector:      []float32{1, 0},
		CreatedAt:   first.CreatedAt,
	}
	updated, err := index.Insert(ctx, second)
	require.NoError(t, err)

	assert.True(t, updated.InsertedAt.Equal(first.InsertedAt), "upsert must keep the original insertion time")
	assert.NotEmpty(t, updated.Vector)
}

func TestFindSimilarEmbedsQuery(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(_ context.Context, _ string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	index := setupIndex(t, embedder)
	ctx := context.Background()

	insertRecord(t, index, "bearing failure on pump", []float32{0.91, 0.4146, 0})

	matches, err := index.FindSimilar(ctx, "pump bearing problems", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestFindSimilarRejectsEmptyQuery(t *testing.T) {
	index := setupIndex(t, mock.NewMockEmbedder())

	_, err := index.FindSimilar(context.Background(), "   \n ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestFindSimilarShortQueryBypassesBatcher(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(_ context.Context, _ string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	batcher, err := pipeline.NewBatcher(embedder, pipeline.WithMinTextLength(50))
	require.NoError(t, err)
	defer batcher.Close()

	index := setupIndex(t, embedder, WithBatcher(batcher))
	insertRecord(t, index, "bearing failure on pump", []float32{0.91, 0.4146, 0})

	// Below the batcher's minimum length; the direct embedding path serves it.
	matches, err := index.FindSimilar(context.Background(), "pump bearing", 5)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

type recordingMonitor struct {
	stages []string
}

func (m *recordingMonitor) Start(_ string)                              { m.stages = append(m.stages, "start") }
func (m *recordingMonitor) AfterQueryEmbedding(_ []float32)             { m.stages = append(m.stages, "embed") }
func (m *recordingMonitor) AfterVectorSearch(_ []*core.SimilarityMatch) { m.stages = append(m.stages, "search") }
func (m *recordingMonitor) Finish(_ []*core.SimilarityMatch)            { m.stages = append(m.stages, "finish") }

func TestFindSimilarReportsStages(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(_ context.Context, _ string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	index := setupIndex(t, embedder)

	monitor := &recordingMonitor{}
	_, err := index.FindSimilarWithMonitor(context.Background(), "pump bearing problems", 5, monitor)
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "embed", "search", "finish"}, monitor.stages)
}
