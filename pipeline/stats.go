package pipeline

import (
	"context"
	"fmt"

	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/extract"
	"github.com/poiesic/papermill/storage"
)

// maxSampleMissing caps Stats.SampleMissing.
const maxSampleMissing = 20

// MissingFile is a supported attachment that has no segments yet.
type MissingFile struct {
	DocumentID core.ID `json:"document_id"`
	Path       string  `json:"path"`
}

// Stats summarizes how far documents have progressed through the pipelines.
type Stats struct {
	FileCount             int           `json:"file_count"`
	DocumentsWithFiles    int           `json:"documents_with_files"`
	DocumentsWithSegments int           `json:"documents_with_segments"`
	MissingDocuments      int           `json:"missing_documents"`
	MissingFiles          int           `json:"missing_files"`
	SampleMissing         []MissingFile `json:"sample_missing"`
	SummaryCount          int           `json:"summary_count"`
	DocumentsWithSummary  int           `json:"documents_with_summary"`
	MissingSummary        int           `json:"missing_summary"`
}

// CollectStats counts supported attachments, the documents that own them,
// and which of those still lack segments or summaries.
func CollectStats(ctx context.Context, documents storage.DocumentRepository, segments storage.SegmentRepository, summaries storage.SummaryRepository) (*Stats, error) {
	atts, err := documents.ListAttachments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	st := &Stats{SampleMissing: []MissingFile{}}
	withFiles := make(map[core.ID]bool)
	for _, att := range atts {
		if !extract.Supported(att.Path) {
			continue
		}
		st.FileCount++
		withFiles[att.DocumentId] = true

		has, err := segments.HasSegmentsForSource(ctx, att.DocumentId, att.Path)
		if err != nil {
			return nil, fmt.Errorf("check segments for %s: %w", att.Path, err)
		}
		if !has {
			st.MissingFiles++
			if len(st.SampleMissing) < maxSampleMissing {
				st.SampleMissing = append(st.SampleMissing, MissingFile{DocumentID: att.DocumentId, Path: att.Path})
			}
		}
	}
	st.DocumentsWithFiles = len(withFiles)

	segmented, err := segments.DocumentsWithSegments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list segmented documents: %w", err)
	}
	withSegments := make(map[core.ID]bool, len(segmented))
	for _, id := range segmented {
		withSegments[id] = true
	}
	st.DocumentsWithSegments = len(withSegments)

	latest, err := summaries.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	withSummary := make(map[core.ID]bool, len(latest))
	for _, s := range latest {
		withSummary[s.DocumentId] = true
	}
	st.DocumentsWithSummary = len(withSummary)
	if st.SummaryCount, err = summaries.CountSummaries(ctx); err != nil {
		return nil, fmt.Errorf("count summaries: %w", err)
	}

	for id := range withFiles {
		if !withSegments[id] {
			st.MissingDocuments++
		}
		if !withSummary[id] {
			st.MissingSummary++
		}
	}
	return st, nil
}
