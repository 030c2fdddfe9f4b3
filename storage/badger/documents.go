package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	docSeq  *badger.Sequence
	attSeq  *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	docSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}
	attSeq, err := backend.GetSequence(attachmentIDSeq)
	if err != nil {
		docSeq.Release()
		return nil, err
	}
	return &DocumentRepository{
		backend: backend,
		docSeq:  docSeq,
		attSeq:  attSeq,
	}, nil
}

// Close releases the ID sequences.
func (r *DocumentRepository) Close() error {
	return errors.Join(r.docSeq.Release(), r.attSeq.Release())
}

// AddDocuments adds one or more documents to storage.
func (r *DocumentRepository) AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error) {
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			id, err := nextID(r.docSeq)
			if err != nil {
				return err
			}
			doc.Id = id
			doc.InsertedAt = time.Now().UTC()

			if err := tx.Set(makeIDKey(documentPrefix, doc.Id), storage.MarshalDocument(doc)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var doc *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		doc, err = readDocument(tx, id)
		return err
	}, false)
	return doc, err
}

// ListDocuments returns documents ordered by ID.
func (r *DocumentRepository) ListDocuments(ctx context.Context, opts storage.ListOptions) ([]*core.Document, error) {
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", storage.ErrInvalidQuery)
	}

	var docs []*core.Document
	errLimit := errors.New("limit reached")
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeIDKey(documentPrefix), func(item *badger.Item) error {
			var doc *core.Document
			err := item.Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if opts.PapersOnly && !doc.IsPaper {
				return nil
			}
			docs = append(docs, doc)
			if opts.Limit > 0 && len(docs) >= opts.Limit {
				return errLimit
			}
			return nil
		})
	}, false)
	if err != nil && !errors.Is(err, errLimit) {
		return nil, err
	}
	return docs, nil
}

// AddAttachments adds attachments to existing documents.
func (r *DocumentRepository) AddAttachments(ctx context.Context, atts ...*core.Attachment) ([]*core.Attachment, error) {
	for _, att := range atts {
		if err := core.ValidateAttachment(att); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, att := range atts {
			if _, err := readDocument(tx, att.DocumentId); err != nil {
				return fmt.Errorf("attachment %q: %w", att.Path, err)
			}

			id, err := nextID(r.attSeq)
			if err != nil {
				return err
			}
			att.Id = id
			att.InsertedAt = time.Now().UTC()

			if err := tx.Set(makeIDKey(attachmentPrefix, att.Id), storage.MarshalAttachment(att)); err != nil {
				return err
			}
			if err := tx.Set(makeIDKey(attachmentDocPrefix, att.DocumentId, att.Id), storage.MarshalID(att.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return atts, nil
}

// GetAttachments returns a document's attachments in insertion order.
func (r *DocumentRepository) GetAttachments(ctx context.Context, documentID core.ID) ([]*core.Attachment, error) {
	var atts []*core.Attachment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		atts, err = readIndexedAttachments(tx, makeIDKey(attachmentDocPrefix, documentID))
		return err
	}, false)
	return atts, err
}

// ListAttachments returns every attachment ordered by document, then insertion.
func (r *DocumentRepository) ListAttachments(ctx context.Context) ([]*core.Attachment, error) {
	var atts []*core.Attachment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		atts, err = readIndexedAttachments(tx, makeIDKey(attachmentDocPrefix))
		return err
	}, false)
	return atts, err
}

// DeleteAttachments removes attachments by their IDs.
func (r *DocumentRepository) DeleteAttachments(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			att, err := readAttachment(tx, id)
			if err != nil {
				return err
			}
			if err := tx.Delete(makeIDKey(attachmentDocPrefix, att.DocumentId, att.Id)); err != nil {
				return err
			}
			if err := tx.Delete(makeIDKey(attachmentPrefix, att.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

func readDocument(tx *badger.Txn, id core.ID) (*core.Document, error) {
	item, err := tx.Get(makeIDKey(documentPrefix, id))
	if err == badger.ErrKeyNotFound {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc *core.Document
	err = item.Value(func(val []byte) error {
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}

func readAttachment(tx *badger.Txn, id core.ID) (*core.Attachment, error) {
	item, err := tx.Get(makeIDKey(attachmentPrefix, id))
	if err == badger.ErrKeyNotFound {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var att *core.Attachment
	err = item.Value(func(val []byte) error {
		att, err = storage.UnmarshalAttachment(val)
		return err
	})
	return att, err
}

// readIndexedAttachments resolves every attachment ID stored under prefix.
func readIndexedAttachments(tx *badger.Txn, prefix []byte) ([]*core.Attachment, error) {
	var atts []*core.Attachment
	err := scanPrefix(tx, prefix, func(item *badger.Item) error {
		id, err := readIDValue(item)
		if err != nil {
			return err
		}
		att, err := readAttachment(tx, id)
		if err != nil {
			return err
		}
		atts = append(atts, att)
		return nil
	})
	return atts, err
}
