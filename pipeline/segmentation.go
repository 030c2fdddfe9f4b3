package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/extract"
	"github.com/poiesic/papermill/jobs"
	"github.com/poiesic/papermill/segment"
	"github.com/poiesic/papermill/storage"
)

// insertChunk is how many segments are buffered before they are written.
const insertChunk = 64

// SegmentationParams configures a segmentation run.
type SegmentationParams struct {
	// Limit caps the number of documents considered. Zero means all.
	Limit int `json:"limit"`
	// SegmentSize is the window length in characters.
	SegmentSize int `json:"segment_size"`
	// Overlap is the number of characters shared by consecutive windows.
	Overlap int `json:"overlap"`
	// SkipExisting leaves files that already have segments untouched.
	SkipExisting bool `json:"skip_existing"`
}

func (p SegmentationParams) Validate() error {
	if err := segment.ValidateConfig(p.SegmentSize, p.Overlap); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidParams, p.Limit)
	}
	return nil
}

// SegmentationJob reads every supported attachment of each paper and stores
// its text as overlapping, content-hashed segments.
type SegmentationJob struct {
	documents storage.DocumentRepository
	segments  storage.SegmentRepository
	pages     extract.PageSource
	splitter  *segment.Segmenter
	params    SegmentationParams
	logger    *slog.Logger
}

func NewSegmentationJob(
	documents storage.DocumentRepository,
	segments storage.SegmentRepository,
	pages extract.PageSource,
	params SegmentationParams,
) (*SegmentationJob, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	splitter, err := segment.New(params.SegmentSize, params.Overlap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return &SegmentationJob{
		documents: documents,
		segments:  segments,
		pages:     pages,
		splitter:  splitter,
		params:    params,
		logger:    slog.Default().With("component", "segmentation-pipeline"),
	}, nil
}

type segmentProgress struct {
	totalDocuments     int
	totalFiles         int
	documentsWithFiles int
	processedDocuments int
	processedFiles     int
	filesSkipped       int
	missingFiles       int
	inserted           int
	skipped            int
	errors             int
}

func (p *segmentProgress) counters() map[string]int {
	return map[string]int{
		"total_documents":      p.totalDocuments,
		"total_files":          p.totalFiles,
		"documents_with_files": p.documentsWithFiles,
		"processed_documents":  p.processedDocuments,
		"processed_files":      p.processedFiles,
		"files_skipped":        p.filesSkipped,
		"missing_files":        p.missingFiles,
		"inserted":             p.inserted,
		"skipped":              p.skipped,
		"errors":               p.errors,
	}
}

type documentFiles struct {
	doc   *core.Document
	files []*core.Attachment
}

// Run is a jobs.Workload. Cancellation is observed before each document.
// Missing or unreadable files are recorded and skipped; storage failures
// abort the run.
func (s *SegmentationJob) Run(ctx context.Context, emit jobs.EmitFunc, cancel *jobs.CancelToken) error {
	work, p, err := s.scan(ctx)
	if err != nil {
		return err
	}
	emit(jobs.Event{Stage: "starting", Counters: p.counters()})
	s.logger.Info("segmentation started",
		"documents", p.totalDocuments,
		"files", p.totalFiles,
		"segment_size", s.params.SegmentSize,
		"overlap", s.params.Overlap)

	for _, item := range work {
		if cancel.Cancelled() {
			emit(documentEvent("stopped", item.doc, p))
			s.logger.Info("segmentation stopped", "documents", p.processedDocuments, "inserted", p.inserted)
			break
		}

		emit(documentEvent("start_document", item.doc, p))
		for _, att := range item.files {
			if err := s.processFile(ctx, item.doc, att, p, emit); err != nil {
				return err
			}
		}
		p.processedDocuments++
		emit(documentEvent("done_document", item.doc, p))
	}

	emit(jobs.Event{Stage: "finished", Counters: p.counters()})
	s.logger.Info("segmentation finished", "inserted", p.inserted, "skipped", p.skipped, "errors", p.errors)
	return nil
}

// scan lists the papers to process with their supported attachments.
func (s *SegmentationJob) scan(ctx context.Context) ([]documentFiles, *segmentProgress, error) {
	docs, err := s.documents.ListDocuments(ctx, storage.ListOptions{PapersOnly: true, Limit: s.params.Limit})
	if err != nil {
		return nil, nil, fmt.Errorf("list documents: %w", err)
	}

	p := &segmentProgress{totalDocuments: len(docs)}
	work := make([]documentFiles, 0, len(docs))
	for _, doc := range docs {
		atts, err := s.documents.GetAttachments(ctx, doc.Id)
		if err != nil {
			return nil, nil, fmt.Errorf("list attachments for document %d: %w", doc.Id, err)
		}
		var files []*core.Attachment
		for _, att := range atts {
			if extract.Supported(att.Path) {
				files = append(files, att)
			}
		}
		if len(files) > 0 {
			p.documentsWithFiles++
			p.totalFiles += len(files)
		}
		work = append(work, documentFiles{doc: doc, files: files})
	}
	return work, p, nil
}

func (s *SegmentationJob) processFile(ctx context.Context, doc *core.Document, att *core.Attachment, p *segmentProgress, emit jobs.EmitFunc) error {
	if _, err := os.Stat(att.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.missingFiles++
			emit(fileEvent("file_missing", doc, att, p))
			return nil
		}
		p.errors++
		ev := fileEvent("error", doc, att, p)
		ev.Error = err.Error()
		emit(ev)
		return nil
	}

	if s.params.SkipExisting {
		has, err := s.segments.HasSegmentsForSource(ctx, doc.Id, att.Path)
		if err != nil {
			return fmt.Errorf("check segments for %s: %w", att.Path, err)
		}
		if has {
			p.filesSkipped++
			emit(fileEvent("file_skipped", doc, att, p))
			return nil
		}
	}

	emit(fileEvent("start_file", doc, att, p))
	inserted, skipped, readErr, err := s.segmentFile(ctx, doc.Id, att.Path)
	p.inserted += inserted
	p.skipped += skipped
	if err != nil {
		return fmt.Errorf("store segments for %s: %w", att.Path, err)
	}
	if readErr != nil {
		p.errors++
		s.logger.Warn("failed to read file", "document_id", doc.Id, "path", att.Path, "err", readErr)
		ev := fileEvent("error", doc, att, p)
		ev.Error = readErr.Error()
		emit(ev)
		return nil
	}

	p.processedFiles++
	emit(fileEvent("done_file", doc, att, p))
	return nil
}

// segmentFile streams a file's pages through the segmenter and stores the
// result. A read failure is returned separately from a storage failure so
// the caller can keep going after the former.
func (s *SegmentationJob) segmentFile(ctx context.Context, docID core.ID, path string) (inserted, skipped int, readErr, storeErr error) {
	var (
		carry   string
		seq     int
		pending []*core.Segment
	)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := s.segments.AddSegments(ctx, pending...)
		if err != nil {
			return err
		}
		inserted += n
		skipped += len(pending) - n
		pending = pending[:0]
		return nil
	}

	add := func(content string) error {
		pending = append(pending, &core.Segment{
			DocumentId:  docID,
			Source:      path,
			Seq:         seq,
			Content:     content,
			Length:      utf8.RuneCountInString(content),
			ContentHash: segment.Hash(docID, path, seq, content),
		})
		seq++
		if len(pending) >= insertChunk {
			return flush()
		}
		return nil
	}

	readErr = s.pages.Pages(path, func(_ int, text string) error {
		var out []string
		out, carry = s.splitter.Split(carry, text)
		for _, content := range out {
			if err := add(content); err != nil {
				storeErr = err
				return err
			}
		}
		return nil
	})
	if storeErr != nil {
		return inserted, skipped, nil, storeErr
	}
	if readErr == nil {
		if last, ok := s.splitter.Flush(carry); ok {
			if err := add(last); err != nil {
				return inserted, skipped, nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return inserted, skipped, nil, err
	}
	return inserted, skipped, readErr, nil
}

func documentEvent(stage string, doc *core.Document, p *segmentProgress) jobs.Event {
	return jobs.Event{
		Stage:     stage,
		ItemID:    fmt.Sprint(doc.Id),
		ItemLabel: doc.Label(),
		Counters:  p.counters(),
	}
}

func fileEvent(stage string, doc *core.Document, att *core.Attachment, p *segmentProgress) jobs.Event {
	return jobs.Event{
		Stage:     stage,
		ItemID:    fmt.Sprint(doc.Id),
		ItemLabel: att.Path,
		Counters:  p.counters(),
	}
}
