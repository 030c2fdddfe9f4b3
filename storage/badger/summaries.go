package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/storage"
)

// SummaryRepository implements storage.SummaryRepository for BadgerDB.
// Summaries and tags are keyed by document first so per-document scans
// and deletes are prefix operations.
type SummaryRepository struct {
	backend *Backend
	sumSeq  *badger.Sequence
	tagSeq  *badger.Sequence
}

var _ storage.SummaryRepository = (*SummaryRepository)(nil)

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(backend *Backend) (*SummaryRepository, error) {
	sumSeq, err := backend.GetSequence(summaryIDSeq)
	if err != nil {
		return nil, err
	}
	tagSeq, err := backend.GetSequence(tagIDSeq)
	if err != nil {
		sumSeq.Release()
		return nil, err
	}
	return &SummaryRepository{
		backend: backend,
		sumSeq:  sumSeq,
		tagSeq:  tagSeq,
	}, nil
}

// Close releases the ID sequences.
func (r *SummaryRepository) Close() error {
	return errors.Join(r.sumSeq.Release(), r.tagSeq.Release())
}

// SaveSummary atomically stores one summary and its tags.
func (r *SummaryRepository) SaveSummary(ctx context.Context, summary *core.Summary, tags []*core.Tag) error {
	if err := core.ValidateSummary(summary); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := nextID(r.sumSeq)
		if err != nil {
			return err
		}
		summary.Id = id
		summary.InsertedAt = time.Now().UTC()
		if err := tx.Set(makeIDKey(summaryPrefix, summary.DocumentId, summary.Id), storage.MarshalSummary(summary)); err != nil {
			return err
		}

		for _, tag := range tags {
			tagID, err := nextID(r.tagSeq)
			if err != nil {
				return err
			}
			tag.Id = tagID
			tag.DocumentId = summary.DocumentId
			if err := tx.Set(makeIDKey(tagPrefix, tag.DocumentId, tag.Id), storage.MarshalTag(tag)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetSummary returns the most recent summary for a document.
func (r *SummaryRepository) GetSummary(ctx context.Context, documentID core.ID) (*core.Summary, error) {
	var latest *core.Summary
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeIDKey(summaryPrefix, documentID), func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				s, err := storage.UnmarshalSummary(val)
				if err != nil {
					return err
				}
				latest = s
				return nil
			})
		})
	}, false)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

// HasSummary reports whether a document has at least one summary.
func (r *SummaryRepository) HasSummary(ctx context.Context, documentID core.ID) (bool, error) {
	var found bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		found = hasPrefix(tx, makeIDKey(summaryPrefix, documentID))
		return nil
	}, false)
	return found, err
}

// GetTags returns a document's tags in insertion order.
func (r *SummaryRepository) GetTags(ctx context.Context, documentID core.ID) ([]*core.Tag, error) {
	var tags []*core.Tag
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeIDKey(tagPrefix, documentID), func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				tag, err := storage.UnmarshalTag(val)
				if err != nil {
					return err
				}
				tags = append(tags, tag)
				return nil
			})
		})
	}, false)
	return tags, err
}

// ListSummaries returns the latest summary of every summarized document,
// ordered by document ID.
func (r *SummaryRepository) ListSummaries(ctx context.Context) ([]*core.Summary, error) {
	var out []*core.Summary
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeIDKey(summaryPrefix), func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				s, err := storage.UnmarshalSummary(val)
				if err != nil {
					return err
				}
				if n := len(out); n > 0 && out[n-1].DocumentId == s.DocumentId {
					out[n-1] = s
					return nil
				}
				out = append(out, s)
				return nil
			})
		})
	}, false)
	return out, err
}

// CountSummaries returns the number of stored summaries across all documents.
func (r *SummaryRepository) CountSummaries(ctx context.Context) (int, error) {
	var n int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeIDKey(summaryPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			n++
		}
		return nil
	}, false)
	return n, err
}

// ClearSummary deletes every summary and tag of a document.
func (r *SummaryRepository) ClearSummary(ctx context.Context, documentID core.ID) (int, int, error) {
	var summaries, tags int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		sumKeys, err := collectKeys(tx, makeIDKey(summaryPrefix, documentID))
		if err != nil {
			return err
		}
		tagKeys, err := collectKeys(tx, makeIDKey(tagPrefix, documentID))
		if err != nil {
			return err
		}
		for _, key := range append(sumKeys, tagKeys...) {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		summaries, tags = len(sumKeys), len(tagKeys)
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, 0, err
	}
	return summaries, tags, nil
}

// collectKeys copies every key under prefix so they can be deleted after iteration.
func collectKeys(tx *badger.Txn, prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := scanPrefix(tx, prefix, func(item *badger.Item) error {
		keys = append(keys, item.KeyCopy(nil))
		return nil
	})
	return keys, err
}
