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


// Package papermill runs document processing pipelines over a local
// BadgerDB corpus: segmentation of attachments into overlapping text
// segments, embedding of segments into a vector store, and summarization of
// papers with a chat model. Pipelines run as background jobs that can be
// polled and cancelled.
package papermill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/poiesic/papermill/ai"
	"github.com/poiesic/papermill/ai/openai"
	"github.com/poiesic/papermill/config"
	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/extract"
	"github.com/poiesic/papermill/jobs"
	"github.com/poiesic/papermill/pipeline"
	"github.com/poiesic/papermill/storage"
	"github.com/poiesic/papermill/storage/badger"
	"github.com/poiesic/papermill/storage/qdrant"
)

// ErrUnknownJobKind is returned by StartJob for a kind with no pipeline.
var ErrUnknownJobKind = errors.New("unknown job kind")

// Engine owns the corpus store, the job registry and the external services
// the pipelines call.
type Engine struct {
	cfg      *config.Config
	store    *badger.Store
	registry *jobs.Registry
	vectors  storage.VectorStore
	pages    extract.PageSource
	logger   *slog.Logger

	mu       sync.Mutex
	closed   bool
	provider ai.AIProvider
	embedder ai.Embedder
	chat     ai.ChatCompleter
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	vectors  storage.VectorStore
	pages    extract.PageSource
	logger   *slog.Logger
	inMemory bool
}

// WithProvider replaces the OpenAI-compatible services built from config.
func WithProvider(p ai.AIProvider) Option {
	return func(o *engineOptions) {
		o.provider = p
	}
}

// WithVectorStore replaces the vector store selected by config.
func WithVectorStore(v storage.VectorStore) Option {
	return func(o *engineOptions) {
		o.vectors = v
	}
}

// WithPageSource replaces the file text extractor used by segmentation.
func WithPageSource(p extract.PageSource) Option {
	return func(o *engineOptions) {
		o.pages = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithInMemory keeps the database in memory. Used by tests.
func WithInMemory() Option {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// Open opens the database named by cfg and prepares the job registry.
// A missing API key does not fail Open; it fails the job that needs it.
func Open(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &engineOptions{
		pages:  extract.Auto{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	store, err := badger.Open(cfg.Database.Path, options.inMemory)
	if err != nil {
		return nil, err
	}

	vectors := options.vectors
	if vectors == nil {
		vectors, err = openVectorStore(cfg, store)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	registry, err := jobs.NewRegistry(
		jobs.WithMaxJobs(cfg.Jobs.MaxJobs),
		jobs.WithLogDir(cfg.Jobs.LogDir),
		jobs.WithLogger(options.logger),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		store:    store,
		registry: registry,
		vectors:  vectors,
		pages:    options.pages,
		provider: options.provider,
		logger:   options.logger.With("component", "engine"),
	}
	if e.provider == nil {
		// With both services configured, build them now. Otherwise each one
		// is built when a job first needs it.
		if provider, err := openai.NewProvider(cfg.AIConfig()); err == nil {
			e.provider = provider
		}
	}
	if e.provider != nil {
		e.embedder = e.provider.Embedder()
		e.chat = e.provider.ChatCompleter()
	}
	return e, nil
}

func openVectorStore(cfg *config.Config, store *badger.Store) (storage.VectorStore, error) {
	switch cfg.VectorStore.Type {
	case config.VectorStoreQdrant:
		return qdrant.NewStore(cfg.VectorStore.Qdrant)
	default:
		return store.Vectors, nil
	}
}

// Close cancels running jobs, waits for their workloads to return and
// closes the database. Calls after the first return nil.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	for _, st := range e.registry.List() {
		if st.Running {
			if err := e.registry.Cancel(st.ID); err != nil {
				e.logger.Warn("cancelling job on close", "job_id", st.ID, "err", err)
			}
		}
		if _, err := e.registry.Wait(context.Background(), st.ID); err != nil {
			e.logger.Warn("waiting for job on close", "job_id", st.ID, "err", err)
		}
	}
	e.registry.Release()

	var providerErr error
	if e.provider != nil {
		providerErr = e.provider.Close()
	}
	return errors.Join(providerErr, e.store.Close())
}

func (e *Engine) Documents() storage.DocumentRepository {
	return e.store.Documents
}

func (e *Engine) Segments() storage.SegmentRepository {
	return e.store.Segments
}

func (e *Engine) Summaries() storage.SummaryRepository {
	return e.store.Summaries
}

func (e *Engine) Vectors() storage.VectorStore {
	return e.vectors
}

// Config returns the configuration the engine was opened with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

func (e *Engine) embeddingService() (ai.Embedder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.embedder != nil {
		return e.embedder, nil
	}
	embedder, err := openai.NewEmbedder(e.cfg.AIConfig())
	if err != nil {
		return nil, err
	}
	e.embedder = embedder
	return embedder, nil
}

func (e *Engine) chatService() (ai.ChatCompleter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chat != nil {
		return e.chat, nil
	}
	chat, err := openai.NewChatCompleter(e.cfg.AIConfig())
	if err != nil {
		return nil, err
	}
	e.chat = chat
	return chat, nil
}

// SegmentationDefaults returns segmentation parameters from config.
func (e *Engine) SegmentationDefaults() pipeline.SegmentationParams {
	return pipeline.SegmentationParams{
		SegmentSize: e.cfg.Segmentation.SegmentSize,
		Overlap:     e.cfg.Segmentation.Overlap,
	}
}

// EmbeddingDefaults returns embedding parameters from config.
func (e *Engine) EmbeddingDefaults() pipeline.EmbeddingParams {
	return pipeline.EmbeddingParams{BatchSize: e.cfg.Embedding.BatchSize}
}

// SummarizationDefaults returns summarization parameters from config.
func (e *Engine) SummarizationDefaults() pipeline.SummarizationParams {
	return pipeline.SummarizationParams{ContextChars: e.cfg.Summary.ContextChars}
}

// StartJob starts a job of the given kind. params is a JSON object whose
// fields override the configured defaults; it may be empty.
// Configuration errors are returned before the job is registered.
func (e *Engine) StartJob(kind jobs.Kind, params []byte) (string, error) {
	switch kind {
	case jobs.KindSegmentation:
		p := e.SegmentationDefaults()
		if err := decodeParams(params, &p); err != nil {
			return "", err
		}
		return e.StartSegmentation(p)
	case jobs.KindEmbedding:
		p := e.EmbeddingDefaults()
		if err := decodeParams(params, &p); err != nil {
			return "", err
		}
		return e.StartEmbedding(p)
	case jobs.KindSummarization:
		p := e.SummarizationDefaults()
		if err := decodeParams(params, &p); err != nil {
			return "", err
		}
		return e.StartSummarization(p)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownJobKind, kind)
	}
}

func decodeParams(data []byte, v any) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrInvalidParams, err)
	}
	return nil
}

func (e *Engine) StartSegmentation(p pipeline.SegmentationParams) (string, error) {
	job, err := pipeline.NewSegmentationJob(e.store.Documents, e.store.Segments, e.pages, p)
	if err != nil {
		return "", err
	}
	return e.registry.Start(jobs.KindSegmentation, job.Run)
}

func (e *Engine) StartEmbedding(p pipeline.EmbeddingParams) (string, error) {
	embedder, err := e.embeddingService()
	if err != nil {
		return "", err
	}
	job, err := pipeline.NewEmbeddingJob(e.store.Segments, e.vectors, embedder, p)
	if err != nil {
		return "", err
	}
	return e.registry.Start(jobs.KindEmbedding, job.Run)
}

func (e *Engine) StartSummarization(p pipeline.SummarizationParams) (string, error) {
	chat, err := e.chatService()
	if err != nil {
		return "", err
	}
	job, err := pipeline.NewSummarizationJob(e.store.Documents, e.store.Segments, e.store.Summaries, chat, p)
	if err != nil {
		return "", err
	}
	return e.registry.Start(jobs.KindSummarization, job.Run)
}

// Status returns a snapshot of a job.
func (e *Engine) Status(id string) (*jobs.Status, error) {
	return e.registry.Status(id)
}

// CancelJob asks a job to stop at its next checkpoint.
func (e *Engine) CancelJob(id string) error {
	return e.registry.Cancel(id)
}

// WaitJob blocks until the job's workload has returned.
func (e *Engine) WaitJob(ctx context.Context, id string) (*jobs.Status, error) {
	return e.registry.Wait(ctx, id)
}

func (e *Engine) ListJobs() []*jobs.Status {
	return e.registry.List()
}

// AddDocument stores doc and one attachment per path.
func (e *Engine) AddDocument(ctx context.Context, doc *core.Document, paths ...string) (*core.Document, []*core.Attachment, error) {
	docs, err := e.store.Documents.AddDocuments(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	if len(paths) == 0 {
		return docs[0], nil, nil
	}

	atts := make([]*core.Attachment, len(paths))
	for i, path := range paths {
		atts[i] = &core.Attachment{
			DocumentId: docs[0].Id,
			Path:       path,
			Type:       strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		}
	}
	atts, err = e.store.Documents.AddAttachments(ctx, atts...)
	if err != nil {
		return nil, nil, err
	}
	return docs[0], atts, nil
}

// Dedupe removes repeated (document, path) attachments and returns how many
// were deleted.
func (e *Engine) Dedupe(ctx context.Context) (int, error) {
	return pipeline.DedupeAttachments(ctx, e.store.Documents)
}

// Stats reports pipeline coverage of the corpus.
func (e *Engine) Stats(ctx context.Context) (*pipeline.Stats, error) {
	return pipeline.CollectStats(ctx, e.store.Documents, e.store.Segments, e.store.Summaries)
}

// ClearSummary deletes a document's summaries and tags. It returns
// storage.ErrNotFound if the document does not exist.
func (e *Engine) ClearSummary(ctx context.Context, documentID core.ID) (summaries int, tags int, err error) {
	if _, err := e.store.Documents.GetDocument(ctx, documentID); err != nil {
		return 0, 0, err
	}
	return e.store.Summaries.ClearSummary(ctx, documentID)
}
