package storage

import (
	"context"

	"github.com/poiesic/papermill/core"
)

// ListOptions narrows document listings.
type ListOptions struct {
	// PapersOnly restricts results to documents flagged as papers.
	PapersOnly bool
	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// DocumentRepository provides operations for documents and their attachments.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// AddDocuments adds documents, assigning new IDs from a sequence.
	// Returns the documents with IDs and timestamps populated.
	AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// ListDocuments returns documents ordered by ID.
	ListDocuments(ctx context.Context, opts ListOptions) ([]*core.Document, error)

	// AddAttachments adds attachments to existing documents.
	// Returns ErrNotFound if a referenced document doesn't exist.
	AddAttachments(ctx context.Context, atts ...*core.Attachment) ([]*core.Attachment, error)

	// GetAttachments returns a document's attachments in insertion order.
	GetAttachments(ctx context.Context, documentID core.ID) ([]*core.Attachment, error)

	// ListAttachments returns every attachment ordered by document, then
	// by insertion order within a document.
	ListAttachments(ctx context.Context) ([]*core.Attachment, error)

	// DeleteAttachments removes attachments by ID.
	// Returns ErrNotFound if any attachment doesn't exist.
	DeleteAttachments(ctx context.Context, ids ...core.ID) error

	// Close releases resources held by the repository.
	Close() error
}

// SegmentRepository stores immutable text segments.
type SegmentRepository interface {
	// AddSegments stores new segments. A segment whose content hash or
	// (document, source, sequence) triple is already present is skipped.
	// Returns the number of segments actually inserted; inserted segments
	// have their ID and InsertedAt populated.
	AddSegments(ctx context.Context, segs ...*core.Segment) (int, error)

	// FindSegmentByHash looks a segment up by content hash.
	// Returns ErrNotFound if no segment has that hash.
	FindSegmentByHash(ctx context.Context, hash string) (*core.Segment, error)

	// GetSegmentsByDocument returns a document's segments ordered by sequence.
	GetSegmentsByDocument(ctx context.Context, documentID core.ID) ([]*core.Segment, error)

	// ListSegments returns segments ordered by ID. Zero limit means all.
	ListSegments(ctx context.Context, limit int) ([]*core.Segment, error)

	// DocumentsWithSegments returns the IDs of documents that have at least
	// one segment, ascending.
	DocumentsWithSegments(ctx context.Context) ([]core.ID, error)

	// HasSegmentsForSource reports whether any segment exists for the
	// given document and source locator.
	HasSegmentsForSource(ctx context.Context, documentID core.ID, source string) (bool, error)

	// Close releases resources held by the repository.
	Close() error
}

// SummaryRepository stores summaries and tags produced for documents.
type SummaryRepository interface {
	// SaveSummary atomically stores one summary and its tags.
	SaveSummary(ctx context.Context, summary *core.Summary, tags []*core.Tag) error

	// GetSummary returns the most recent summary for a document.
	// Returns ErrNotFound if the document has none.
	GetSummary(ctx context.Context, documentID core.ID) (*core.Summary, error)

	// HasSummary reports whether a document has at least one summary.
	HasSummary(ctx context.Context, documentID core.ID) (bool, error)

	// GetTags returns a document's tags in insertion order.
	GetTags(ctx context.Context, documentID core.ID) ([]*core.Tag, error)

	// ListSummaries returns the latest summary of every summarized document.
	ListSummaries(ctx context.Context) ([]*core.Summary, error)

	// CountSummaries returns the number of stored summaries, including
	// superseded ones.
	CountSummaries(ctx context.Context) (int, error)

	// ClearSummary deletes every summary and tag of a document and returns
	// how many of each were removed.
	ClearSummary(ctx context.Context, documentID core.ID) (summaries int, tags int, err error)

	// Close releases resources held by the repository.
	Close() error
}

// VectorStore persists embeddings keyed by string IDs.
type VectorStore interface {
	// Exists returns the subset of ids already present in the store.
	Exists(ctx context.Context, ids []string) (map[string]bool, error)

	// Upsert inserts or replaces points.
	Upsert(ctx context.Context, points []*core.VectorPoint) error
}
