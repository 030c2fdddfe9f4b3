package papermill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/papermill/ai/mock"
	"github.com/poiesic/papermill/ai/openai"
	"github.com/poiesic/papermill/config"
	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/jobs"
	"github.com/poiesic/papermill/pipeline"
	"github.com/poiesic/papermill/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Jobs.LogDir = t.TempDir()
	cfg.Segmentation.SegmentSize = 10
	cfg.Segmentation.Overlap = 3
	return cfg
}

func openTestEngine(t *testing.T, opts ...Option) (*Engine, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockChatCompleter())
	opts = append([]Option{WithInMemory(), WithProvider(provider)}, opts...)
	e, err := Open(testConfig(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, provider
}

func waitJob(t *testing.T, e *Engine, id string) *jobs.Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := e.WaitJob(ctx, id)
	require.NoError(t, err)
	return st
}

func TestOpen(t *testing.T) {
	t.Run("on disk", func(t *testing.T) {
		cfg := config.Default()
		cfg.Database.Path = filepath.Join(t.TempDir(), "db")
		cfg.Jobs.LogDir = ""

		e, err := Open(cfg)
		require.NoError(t, err)
		assert.NotNil(t, e.Documents())
		assert.NotNil(t, e.Segments())
		assert.NotNil(t, e.Summaries())
		assert.NotNil(t, e.Vectors())
		assert.Same(t, cfg, e.Config())
		assert.NoError(t, e.Close())
	})

	t.Run("error with file path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(path, []byte("test"), 0644))
		cfg := config.Default()
		cfg.Database.Path = path

		e, err := Open(cfg)
		assert.Error(t, err)
		assert.Nil(t, e)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := config.Default()
		cfg.VectorStore.Type = "nope"
		_, err := Open(cfg, WithInMemory())
		assert.Error(t, err)
	})

	t.Run("qdrant vector store", func(t *testing.T) {
		cfg := config.Default()
		cfg.VectorStore.Type = config.VectorStoreQdrant
		e, err := Open(cfg, WithInMemory())
		require.NoError(t, err)
		defer e.Close()
		assert.NotSame(t, e.store.Vectors, e.Vectors())
	})
}

func TestOpen_BuildsConfiguredServices(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.APIKey = "none"
	cfg.Summary.APIKey = "none"

	e, err := Open(cfg, WithInMemory())
	require.NoError(t, err)
	defer e.Close()
	assert.IsType(t, &openai.Provider{}, e.provider)
	assert.NotNil(t, e.embedder)
	assert.NotNil(t, e.chat)
}

func TestClose_ClosesProvider(t *testing.T) {
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockChatCompleter())
	e, err := Open(testConfig(t), WithInMemory(), WithProvider(provider))
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.True(t, provider.Closed())
}

type countingProvider struct {
	*mock.MockProvider
	closes int
}

func (p *countingProvider) Close() error {
	p.closes++
	return p.MockProvider.Close()
}

func TestClose_Twice(t *testing.T) {
	provider := &countingProvider{MockProvider: mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockChatCompleter())}
	e, err := Open(testConfig(t), WithInMemory(), WithProvider(provider))
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, 1, provider.closes)
}

func TestStartJob_Errors(t *testing.T) {
	e, _ := openTestEngine(t)

	_, err := e.StartJob("reindex", nil)
	require.ErrorIs(t, err, ErrUnknownJobKind)

	_, err = e.StartJob(jobs.KindSegmentation, []byte(`{"segment_size": 5, "overlap": 5}`))
	require.ErrorIs(t, err, pipeline.ErrInvalidParams)

	_, err = e.StartJob(jobs.KindEmbedding, []byte(`{"batch_size": "many"}`))
	require.ErrorIs(t, err, pipeline.ErrInvalidParams)

	_, err = e.StartJob(jobs.KindSummarization, []byte(`{"context_chars": -1}`))
	require.ErrorIs(t, err, pipeline.ErrInvalidParams)

	assert.Empty(t, e.ListJobs())
}

func TestStartJob_MissingCredentials(t *testing.T) {
	cfg := testConfig(t)
	e, err := Open(cfg, WithInMemory())
	require.NoError(t, err)
	defer e.Close()

	_, err = e.StartJob(jobs.KindEmbedding, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EmbeddingAPIKey")

	_, err = e.StartJob(jobs.KindSummarization, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChatAPIKey")

	assert.Empty(t, e.ListJobs())
}

func TestStatus_UnknownJob(t *testing.T) {
	e, _ := openTestEngine(t)

	_, err := e.Status("missing")
	require.ErrorIs(t, err, jobs.ErrJobNotFound)
	require.ErrorIs(t, e.CancelJob("missing"), jobs.ErrJobNotFound)
}

func TestPipelinesEndToEnd(t *testing.T) {
	e, provider := openTestEngine(t)
	ctx := context.Background()
	dir := t.TempDir()

	alpha := filepath.Join(dir, "alpha.txt")
	beta := filepath.Join(dir, "beta.md")
	require.NoError(t, os.WriteFile(alpha, []byte("ABCDEFGHIJKLMNOP"), 0644))
	require.NoError(t, os.WriteFile(beta, []byte("page one text\fpage two"), 0644))

	a, atts, err := e.AddDocument(ctx, &core.Document{Title: "Alpha", IsPaper: true}, alpha, alpha)
	require.NoError(t, err)
	require.Len(t, atts, 2)
	assert.Equal(t, "txt", atts[0].Type)
	_, _, err = e.AddDocument(ctx, &core.Document{Title: "Beta", IsPaper: true}, beta)
	require.NoError(t, err)

	removed, err := e.Dedupe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// Segmentation
	id, err := e.StartJob(jobs.KindSegmentation, nil)
	require.NoError(t, err)
	st := waitJob(t, e, id)
	require.NotNil(t, st.ExitCode)
	assert.Equal(t, jobs.ExitSuccess, *st.ExitCode)
	segs, err := e.Segments().ListSegments(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, segs)
	assert.Equal(t, len(segs), st.Counter("inserted"))

	alphaSegs, err := e.Segments().GetSegmentsByDocument(ctx, a.Id)
	require.NoError(t, err)
	require.Len(t, alphaSegs, 2)
	assert.Equal(t, "ABCDEFGHIJ", alphaSegs[0].Content)
	assert.Equal(t, "HIJKLMNOP", alphaSegs[1].Content)

	_, err = os.Stat(jobs.LogPath(e.Config().Jobs.LogDir, id))
	require.NoError(t, err)

	// Embedding, twice; the second run finds every vector already stored.
	id, err = e.StartJob(jobs.KindEmbedding, []byte(`{"batch_size": 2, "skip_existing": true}`))
	require.NoError(t, err)
	st = waitJob(t, e, id)
	assert.Equal(t, jobs.ExitSuccess, *st.ExitCode)
	assert.Equal(t, len(segs), st.Counter("embedded"))
	assert.Len(t, provider.GetMockEmbedder().Texts(), len(segs))

	id, err = e.StartEmbedding(pipeline.EmbeddingParams{BatchSize: 2, SkipExisting: true})
	require.NoError(t, err)
	st = waitJob(t, e, id)
	assert.Equal(t, 0, st.Counter("embedded"))
	assert.Equal(t, len(segs), st.Counter("skipped"))

	// Summarization
	id, err = e.StartJob(jobs.KindSummarization, []byte(`{"skip_existing": true}`))
	require.NoError(t, err)
	st = waitJob(t, e, id)
	assert.Equal(t, jobs.ExitSuccess, *st.ExitCode)
	assert.Equal(t, 2, st.Counter("processed"))
	assert.Equal(t, 0, st.Counter("errors"))
	assert.Equal(t, "finished", st.LastMessage)

	summary, err := e.Summaries().GetSummary(ctx, a.Id)
	require.NoError(t, err)
	assert.Equal(t, "mock-chat", summary.Model)
	assert.Contains(t, summary.OneLiner, "Mock.")

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FileCount)
	assert.Equal(t, 2, stats.DocumentsWithSegments)
	assert.Equal(t, 0, stats.MissingFiles)
	assert.Equal(t, 2, stats.SummaryCount)
	assert.Equal(t, 0, stats.MissingSummary)

	summaries, tags, err := e.ClearSummary(ctx, a.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, summaries)
	assert.Positive(t, tags)
	_, err = e.Summaries().GetSummary(ctx, a.Id)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, _, err = e.ClearSummary(ctx, 9999)
	require.ErrorIs(t, err, storage.ErrNotFound)

	assert.Len(t, e.ListJobs(), 4)
}

func TestEmbeddingCancelledImmediately(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		once.Do(func() { close(started) })
		<-release
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, mock.Dimension)
		}
		return out, nil
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockChatCompleter())
	e, err := Open(testConfig(t), WithInMemory(), WithProvider(provider))
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	doc, _, err := e.AddDocument(ctx, &core.Document{Title: "Paper", IsPaper: true})
	require.NoError(t, err)
	segs := make([]*core.Segment, 3)
	for i := range segs {
		content := fmt.Sprintf("segment text %d", i)
		segs[i] = &core.Segment{
			DocumentId:  doc.Id,
			Source:      "paper.pdf",
			Seq:         i,
			Content:     content,
			Length:      len(content),
			ContentHash: fmt.Sprintf("hash-%d", i),
		}
	}
	_, err = e.Segments().AddSegments(ctx, segs...)
	require.NoError(t, err)

	id, err := e.StartEmbedding(pipeline.EmbeddingParams{BatchSize: 1})
	require.NoError(t, err)
	<-started

	require.NoError(t, e.CancelJob(id))
	st, err := e.Status(id)
	require.NoError(t, err)
	assert.False(t, st.Running)
	require.NotNil(t, st.ExitCode)
	assert.Equal(t, jobs.ExitCancelled, *st.ExitCode)

	close(release)
	st = waitJob(t, e, id)
	assert.False(t, st.Running)
	assert.Equal(t, jobs.ExitCancelled, *st.ExitCode)
	assert.Equal(t, 1, st.Counter("embedded"))
	assert.Equal(t, "finished", st.Log[len(st.Log)-1].Stage)
	assert.Equal(t, "stopped", st.Log[len(st.Log)-2].Stage)
}
