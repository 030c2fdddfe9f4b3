// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"errors"
)

// Store bundles every repository backed by one BadgerDB instance.
type Store struct {
	Backend   *Backend
	Documents *DocumentRepository
	Segments  *SegmentRepository
	Summaries *SummaryRepository
	Vectors   *VectorStore
}

// Open opens (or creates) the database at path and all repositories on it.
func Open(path string, inMemory bool) (*Store, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	documents, err := NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	segments, err := NewSegmentRepository(backend)
	if err != nil {
		documents.Close()
		backend.Close()
		return nil, err
	}

	summaries, err := NewSummaryRepository(backend)
	if err != nil {
		segments.Close()
		documents.Close()
		backend.Close()
		return nil, err
	}

	return &Store{
		Backend:   backend,
		Documents: documents,
		Segments:  segments,
		Summaries: summaries,
		Vectors:   NewVectorStore(backend),
	}, nil
}

// Close releases the repositories, then the backend.
func (s *Store) Close() error {
	return errors.Join(
		s.Summaries.Close(),
		s.Segments.Close(),
		s.Documents.Close(),
		s.Backend.Close(),
	)
}
