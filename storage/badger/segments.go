package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/storage"
)

// segmentTxnChunk bounds how many segments are written per transaction
// so large documents stay below Badger's transaction size limit.
const segmentTxnChunk = 256

// SegmentRepository implements storage.SegmentRepository for BadgerDB.
type SegmentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.SegmentRepository = (*SegmentRepository)(nil)

// NewSegmentRepository creates a new SegmentRepository.
func NewSegmentRepository(backend *Backend) (*SegmentRepository, error) {
	idSeq, err := backend.GetSequence(segmentIDSeq)
	if err != nil {
		return nil, err
	}
	return &SegmentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *SegmentRepository) Close() error {
	return r.idSeq.Release()
}

// AddSegments stores segments not already present by hash or position.
func (r *SegmentRepository) AddSegments(ctx context.Context, segs ...*core.Segment) (int, error) {
	for _, seg := range segs {
		if err := core.ValidateSegment(seg); err != nil {
			return 0, err
		}
	}

	inserted := 0
	for start := 0; start < len(segs); start += segmentTxnChunk {
		end := min(start+segmentTxnChunk, len(segs))
		n, err := r.addChunk(segs[start:end])
		inserted += n
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

func (r *SegmentRepository) addChunk(segs []*core.Segment) (int, error) {
	inserted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, seg := range segs {
			hashKey := makeSegmentHashKey(seg.ContentHash)
			sourceKey := makeSegmentSourceKey(seg.DocumentId, seg.Source, seg.Seq)

			dup, err := keyExists(tx, hashKey)
			if err != nil {
				return err
			}
			if !dup {
				if dup, err = keyExists(tx, sourceKey); err != nil {
					return err
				}
			}
			if dup {
				continue
			}

			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			seg.Id = id
			seg.Length = utf8.RuneCountInString(seg.Content)
			seg.InsertedAt = time.Now().UTC()

			idValue := storage.MarshalID(seg.Id)
			if err := tx.Set(makeIDKey(segmentPrefix, seg.Id), storage.MarshalSegment(seg)); err != nil {
				return err
			}
			if err := tx.Set(hashKey, idValue); err != nil {
				return err
			}
			if err := tx.Set(sourceKey, idValue); err != nil {
				return err
			}
			if err := tx.Set(makeSegmentDocKey(seg.DocumentId, seg.Seq, seg.Id), idValue); err != nil {
				return err
			}
			inserted++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// FindSegmentByHash looks a segment up by content hash.
func (r *SegmentRepository) FindSegmentByHash(ctx context.Context, hash string) (*core.Segment, error) {
	var seg *core.Segment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSegmentHashKey(hash))
		if err == badger.ErrKeyNotFound {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := readIDValue(item)
		if err != nil {
			return err
		}
		seg, err = readSegment(tx, id)
		return err
	}, false)
	return seg, err
}

// GetSegmentsByDocument returns a document's segments ordered by sequence.
func (r *SegmentRepository) GetSegmentsByDocument(ctx context.Context, documentID core.ID) ([]*core.Segment, error) {
	var segs []*core.Segment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeIDKey(segmentDocPrefix, documentID), func(item *badger.Item) error {
			id, err := readIDValue(item)
			if err != nil {
				return err
			}
			seg, err := readSegment(tx, id)
			if err != nil {
				return err
			}
			segs = append(segs, seg)
			return nil
		})
	}, false)
	return segs, err
}

// ListSegments returns segments ordered by ID.
func (r *SegmentRepository) ListSegments(ctx context.Context, limit int) ([]*core.Segment, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", storage.ErrInvalidQuery)
	}

	var segs []*core.Segment
	errLimit := errors.New("limit reached")
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeIDKey(segmentPrefix), func(item *badger.Item) error {
			var seg *core.Segment
			err := item.Value(func(val []byte) error {
				var err error
				seg, err = storage.UnmarshalSegment(val)
				return err
			})
			if err != nil {
				return err
			}
			segs = append(segs, seg)
			if limit > 0 && len(segs) >= limit {
				return errLimit
			}
			return nil
		})
	}, false)
	if err != nil && !errors.Is(err, errLimit) {
		return nil, err
	}
	return segs, nil
}

// DocumentsWithSegments walks the per-document index without reading values,
// seeking past each document once its ID is seen.
func (r *SegmentRepository) DocumentsWithSegments(ctx context.Context) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeIDKey(segmentDocPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); {
			key := iter.Item().Key()
			if len(key) < len(prefix)+8 {
				iter.Next()
				continue
			}
			id := core.ID(binary.BigEndian.Uint64(key[len(prefix):]))
			ids = append(ids, id)
			if id == math.MaxUint64 {
				break
			}
			iter.Seek(makeIDKey(segmentDocPrefix, id+1))
		}
		return nil
	}, false)
	return ids, err
}

// HasSegmentsForSource reports whether a document/source pair has segments.
func (r *SegmentRepository) HasSegmentsForSource(ctx context.Context, documentID core.ID, source string) (bool, error) {
	var found bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		found = hasPrefix(tx, makeSegmentSourcePrefix(documentID, source))
		return nil
	}, false)
	return found, err
}

func readSegment(tx *badger.Txn, id core.ID) (*core.Segment, error) {
	item, err := tx.Get(makeIDKey(segmentPrefix, id))
	if err == badger.ErrKeyNotFound {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var seg *core.Segment
	err = item.Value(func(val []byte) error {
		seg, err = storage.UnmarshalSegment(val)
		return err
	})
	return seg, err
}

// readIDValue decodes an index entry whose value is an ID.
func readIDValue(item *badger.Item) (core.ID, error) {
	var id core.ID
	err := item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	})
	return id, err
}
