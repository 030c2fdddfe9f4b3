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

package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/papermill/ai"
	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/jobs"
	"github.com/poiesic/papermill/storage"
)

// EmbeddingParams configures an embedding run.
type EmbeddingParams struct {
	// Limit caps the number of segments considered. Zero means all.
	Limit int `json:"limit"`
	// BatchSize is the number of segments sent per embedding request.
	BatchSize int `json:"batch_size"`
	// SkipExisting drops segments whose vectors are already stored.
	SkipExisting bool `json:"skip_existing"`
}

// Validate rejects parameters that could not make progress.
func (p EmbeddingParams) Validate() error {
	if p.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidParams, p.BatchSize)
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidParams, p.Limit)
	}
	return nil
}

// EmbeddingJob computes vectors for stored segments and upserts them into a
// vector store, one batch at a time.
type EmbeddingJob struct {
	segments storage.SegmentRepository
	vectors  storage.VectorStore
	embedder ai.Embedder
	params   EmbeddingParams
	logger   *slog.Logger
}

// NewEmbeddingJob validates params and returns a driver ready to run.
func NewEmbeddingJob(segments storage.SegmentRepository, vectors storage.VectorStore, embedder ai.Embedder, params EmbeddingParams) (*EmbeddingJob, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &EmbeddingJob{
		segments: segments,
		vectors:  vectors,
		embedder: embedder,
		params:   params,
		logger:   slog.Default().With("component", "embedding-pipeline"),
	}, nil
}

type embedProgress struct {
	total    int
	batches  int
	batch    int
	embedded int
	skipped  int
}

func (p *embedProgress) counters() map[string]int {
	return map[string]int{
		"total_segments": p.total,
		"total_batches":  p.batches,
		"batch":          p.batch,
		"embedded":       p.embedded,
		"skipped":        p.skipped,
	}
}

// Run is a jobs.Workload. Cancellation is observed before each batch;
// an embedding or vector store failure aborts the run, leaving earlier
// batches committed.
func (e *EmbeddingJob) Run(ctx context.Context, emit jobs.EmitFunc, cancel *jobs.CancelToken) error {
	segs, err := e.segments.ListSegments(ctx, e.params.Limit)
	if err != nil {
		return fmt.Errorf("list segments: %w", err)
	}

	size := e.params.BatchSize
	p := &embedProgress{total: len(segs), batches: (len(segs) + size - 1) / size}
	emit(jobs.Event{Stage: "starting", Counters: p.counters()})
	e.logger.Info("embedding started", "segments", p.total, "batch_size", size, "skip_existing", e.params.SkipExisting)

	for start := 0; start < len(segs); start += size {
		if cancel.Cancelled() {
			next := segs[start]
			emit(jobs.Event{
				Stage:     "stopped",
				ItemID:    next.VectorID(),
				ItemLabel: fmt.Sprintf("batch %d/%d", p.batch+1, p.batches),
				Counters:  p.counters(),
			})
			e.logger.Info("embedding stopped", "embedded", p.embedded, "skipped", p.skipped)
			break
		}

		batch := segs[start:min(start+size, len(segs))]
		p.batch++
		if err := e.embedBatch(ctx, batch, p); err != nil {
			return fmt.Errorf("batch %d: %w", p.batch, err)
		}

		last := batch[len(batch)-1]
		emit(jobs.Event{
			Stage:     "batch",
			ItemID:    last.VectorID(),
			ItemLabel: fmt.Sprintf("batch %d/%d", p.batch, p.batches),
			Counters:  p.counters(),
		})
	}

	emit(jobs.Event{Stage: "finished", Counters: p.counters()})
	e.logger.Info("embedding finished", "embedded", p.embedded, "skipped", p.skipped)
	return nil
}

func (e *EmbeddingJob) embedBatch(ctx context.Context, batch []*core.Segment, p *embedProgress) error {
	todo := batch
	if e.params.SkipExisting {
		ids := make([]string, len(batch))
		for i, seg := range batch {
			ids[i] = seg.VectorID()
		}
		existing, err := e.vectors.Exists(ctx, ids)
		if err != nil {
			return fmt.Errorf("check existing vectors: %w", err)
		}
		todo = make([]*core.Segment, 0, len(batch))
		for _, seg := range batch {
			if !existing[seg.VectorID()] {
				todo = append(todo, seg)
			}
		}
		p.skipped += len(batch) - len(todo)
	}
	if len(todo) == 0 {
		return nil
	}

	texts := make([]string, len(todo))
	for i, seg := range todo {
		texts[i] = seg.Content
	}
	vectors, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(todo) {
		return fmt.Errorf("%w: sent %d texts, got %d vectors", ErrVectorCountMismatch, len(todo), len(vectors))
	}

	points := make([]*core.VectorPoint, len(todo))
	for i, seg := range todo {
		points[i] = &core.VectorPoint{
			Id:     seg.VectorID(),
			Vector: NormalizeVector(vectors[i]),
			Metadata: core.VectorMetadata{
				DocumentId: seg.DocumentId,
				SegmentId:  seg.Id,
				Source:     seg.Source,
				Seq:        seg.Seq,
			},
			Text: seg.Content,
		}
	}
	if err := e.vectors.Upsert(ctx, points); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	p.embedded += len(todo)
	return nil
}
