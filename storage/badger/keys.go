package badger

import (
	"encoding/binary"

	"github.com/poiesic/papermill/core"
)

// Key prefixes for different data types.
// Numeric key parts are BigEndian so lexicographic order matches numeric order.
const (
	documentPrefix      = "doc"
	documentIDSeq       = "docseq"
	attachmentPrefix    = "att"
	attachmentDocPrefix = "attdoc"
	attachmentIDSeq     = "attseq"
	segmentPrefix       = "seg"
	segmentHashPrefix   = "seghash"
	segmentSourcePrefix = "segsrc"
	segmentDocPrefix    = "segdoc"
	segmentIDSeq        = "segseq"
	summaryPrefix       = "sum"
	summaryIDSeq        = "sumseq"
	tagPrefix           = "tag"
	tagIDSeq            = "tagseq"
	vectorPrefix        = "vec"
)

// makeIDKey generates a key of the form prefix:id1id2... with 8 bytes per ID.
// Calling it with fewer IDs yields a prefix for range scans.
func makeIDKey(prefix string, ids ...core.ID) []byte {
	buf := make([]byte, len(prefix)+1+8*len(ids))
	offset := copy(buf, prefix)
	buf[offset] = ':'
	offset++
	for _, id := range ids {
		binary.BigEndian.PutUint64(buf[offset:], uint64(id))
		offset += 8
	}
	return buf
}

// makeSegmentHashKey generates a key for the content hash index.
// Format: prefix:hash
func makeSegmentHashKey(hash string) []byte {
	return []byte(segmentHashPrefix + ":" + hash)
}

// makeSegmentSourcePrefix generates the prefix shared by all segments of
// one document and source.
// Format: prefix:documentID source 0x00
func makeSegmentSourcePrefix(documentID core.ID, source string) []byte {
	key := makeIDKey(segmentSourcePrefix, documentID)
	key = append(key, source...)
	return append(key, 0)
}

// makeSegmentSourceKey generates the (document, source, sequence) index key.
// Format: prefix:documentID source 0x00 seq
func makeSegmentSourceKey(documentID core.ID, source string, seq int) []byte {
	key := makeSegmentSourcePrefix(documentID, source)
	return binary.BigEndian.AppendUint64(key, uint64(seq))
}

// makeSegmentDocKey generates the per-document ordering index key.
// Format: prefix:documentID seq segmentID
func makeSegmentDocKey(documentID core.ID, seq int, segmentID core.ID) []byte {
	return makeIDKey(segmentDocPrefix, documentID, core.ID(seq), segmentID)
}

// makeVectorKey generates a key for a vector point.
func makeVectorKey(id string) []byte {
	return []byte(vectorPrefix + ":" + id)
}
