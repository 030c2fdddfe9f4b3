package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/storage"
)

// VectorStore implements storage.VectorStore on the local BadgerDB.
type VectorStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a VectorStore sharing the given backend.
func NewVectorStore(backend *Backend) *VectorStore {
	return &VectorStore{backend: backend}
}

// Exists returns the subset of ids that have stored vectors.
func (s *VectorStore) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			ok, err := keyExists(tx, makeVectorKey(id))
			if err != nil {
				return err
			}
			if ok {
				found[id] = true
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Upsert inserts or replaces points in a single transaction.
func (s *VectorStore) Upsert(ctx context.Context, points []*core.VectorPoint) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, p := range points {
			if err := tx.Set(makeVectorKey(p.Id), storage.MarshalVectorPoint(p)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Get returns a stored point.
// Returns storage.ErrNotFound if the point doesn't exist.
func (s *VectorStore) Get(ctx context.Context, id string) (*core.VectorPoint, error) {
	var point *core.VectorPoint
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeVectorKey(id))
		if err == badger.ErrKeyNotFound {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			point, err = storage.UnmarshalVectorPoint(val)
			return err
		})
	}, false)
	return point, err
}
