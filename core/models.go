package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Document is a unit of source material, typically a paper, that owns
// attachments, segments, summaries and tags.
type Document struct {
	Id         ID
	Key        string // External key, e.g. a bibliographic citation key
	Title      string
	Abstract   string
	Authors    string
	Year       int
	IsPaper    bool
	InsertedAt time.Time
}

// Label returns a short human-readable name for progress reporting.
func (d *Document) Label() string {
	if d.Title != "" {
		return d.Title
	}
	return "(untitled)"
}

// Attachment is a file belonging to a document.
// Attachments are ordered per document by insertion.
type Attachment struct {
	Id         ID
	DocumentId ID
	Path       string
	Type       string
	InsertedAt time.Time
}

// Segment is a bounded slice of a document's text.
// Segments are never mutated after creation.
type Segment struct {
	Id          ID
	DocumentId  ID
	Source      string // Source locator, usually the attachment path
	Seq         int    // 0-based, monotonic per document and source
	Content     string
	Length      int // Length of Content in characters
	ContentHash string
	InsertedAt  time.Time
}

// VectorID returns the identifier under which the segment's embedding is stored.
func (s *Segment) VectorID() string {
	return fmt.Sprintf("segment-%d", s.Id)
}

// Summary is the generated digest of a document.
type Summary struct {
	Id            ID
	DocumentId    ID
	Model         string
	LongSummary   string
	OneLiner      string
	SnarkyComment string
	InsertedAt    time.Time
}

// Tag types produced by summarization.
const (
	TagTypeDomains    = "domains"
	TagTypeDomainsZh  = "domains_zh"
	TagTypeTasks      = "tasks"
	TagTypeTasksZh    = "tasks_zh"
	TagTypeKeywords   = "keywords"
	TagTypeKeywordsZh = "keywords_zh"
)

// Tag is a categorized label attached to a document.
type Tag struct {
	Id         ID
	DocumentId ID
	Type       string
	Value      string
}

// VectorMetadata links an embedding back to the segment it was computed from.
type VectorMetadata struct {
	DocumentId ID
	SegmentId  ID
	Source     string
	Seq        int
}

// VectorPoint is one embedding as written to a vector store.
type VectorPoint struct {
	Id       string
	Vector   []float32
	Metadata VectorMetadata
	Text     string
}
