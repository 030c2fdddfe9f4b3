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

// SummarizationParams configures a summarization run.
type SummarizationParams struct {
	// Limit caps the number of documents considered. Zero means all.
	Limit int `json:"limit"`
	// ContextChars is the character budget for segment excerpts in the prompt.
	ContextChars int `json:"context_chars"`
	// SkipExisting leaves documents that already have a summary untouched.
	SkipExisting bool `json:"skip_existing"`
	// DryRun logs parsed results instead of storing them.
	DryRun bool `json:"dry_run"`
}

func (p SummarizationParams) Validate() error {
	if p.ContextChars <= 0 {
		return fmt.Errorf("%w: context size must be positive, got %d", ErrInvalidParams, p.ContextChars)
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidParams, p.Limit)
	}
	return nil
}

// SummarizationJob asks a chat model to summarize each paper and stores the
// result with its tags.
type SummarizationJob struct {
	documents storage.DocumentRepository
	segments  storage.SegmentRepository
	summaries storage.SummaryRepository
	chat      ai.ChatCompleter
	params    SummarizationParams
	logger    *slog.Logger
}

func NewSummarizationJob(
	documents storage.DocumentRepository,
	segments storage.SegmentRepository,
	summaries storage.SummaryRepository,
	chat ai.ChatCompleter,
	params SummarizationParams,
) (*SummarizationJob, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &SummarizationJob{
		documents: documents,
		segments:  segments,
		summaries: summaries,
		chat:      chat,
		params:    params,
		logger:    slog.Default().With("component", "summarization-pipeline"),
	}, nil
}

type summaryProgress struct {
	total     int
	processed int
	errors    int
	skipped   int
}

func (p *summaryProgress) counters() map[string]int {
	return map[string]int{
		"total_documents": p.total,
		"processed":       p.processed,
		"errors":          p.errors,
		"skipped":         p.skipped,
	}
}

// Run is a jobs.Workload. Cancellation is observed before each document.
// A reply that cannot be parsed is counted as an error and the run moves on;
// chat service and storage failures abort the run.
func (s *SummarizationJob) Run(ctx context.Context, emit jobs.EmitFunc, cancel *jobs.CancelToken) error {
	docs, err := s.documents.ListDocuments(ctx, storage.ListOptions{PapersOnly: true, Limit: s.params.Limit})
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	p := &summaryProgress{total: len(docs)}
	emit(jobs.Event{Stage: "starting", Counters: p.counters()})
	s.logger.Info("summarization started", "documents", p.total, "dry_run", s.params.DryRun)

	for _, doc := range docs {
		if cancel.Cancelled() {
			emit(s.event("stopped", doc, p))
			s.logger.Info("summarization stopped", "processed", p.processed, "errors", p.errors)
			break
		}

		if s.params.SkipExisting {
			has, err := s.summaries.HasSummary(ctx, doc.Id)
			if err != nil {
				return fmt.Errorf("check summary for document %d: %w", doc.Id, err)
			}
			if has {
				p.skipped++
				emit(s.event("skipped", doc, p))
				continue
			}
		}

		if err := s.summarize(ctx, doc, p, emit); err != nil {
			return err
		}
	}

	emit(jobs.Event{Stage: "finished", Counters: p.counters()})
	s.logger.Info("summarization finished", "processed", p.processed, "errors", p.errors, "skipped", p.skipped)
	return nil
}

func (s *SummarizationJob) summarize(ctx context.Context, doc *core.Document, p *summaryProgress, emit jobs.EmitFunc) error {
	segs, err := s.segments.GetSegmentsByDocument(ctx, doc.Id)
	if err != nil {
		return fmt.Errorf("load segments for document %d: %w", doc.Id, err)
	}

	prompt := BuildPrompt(doc, BuildContext(segs, s.params.ContextChars))
	reply, err := s.chat.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("summarize document %d: %w", doc.Id, err)
	}

	obj, err := ExtractJSONObject(reply)
	if err == nil {
		err = ValidateSummaryObject(obj)
	}
	if err != nil {
		p.errors++
		s.logger.Warn("unusable summary reply", "document_id", doc.Id, "err", err)
		ev := s.event("error", doc, p)
		ev.Error = err.Error()
		emit(ev)
		return nil
	}

	if s.params.DryRun {
		s.logger.Info("dry run summary", "document_id", doc.Id, "title", doc.Title, "result", obj)
	} else {
		summary, tags := MapSummary(doc.Id, s.chat.Model(), obj)
		if err := s.summaries.SaveSummary(ctx, summary, tags); err != nil {
			return fmt.Errorf("save summary for document %d: %w", doc.Id, err)
		}
	}

	p.processed++
	emit(s.event("done", doc, p))
	return nil
}

func (s *SummarizationJob) event(stage string, doc *core.Document, p *summaryProgress) jobs.Event {
	return jobs.Event{
		Stage:     stage,
		ItemID:    fmt.Sprint(doc.Id),
		ItemLabel: doc.Label(),
		Counters:  p.counters(),
	}
}
