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

// Package storage provides the storage abstraction layer for papermill.
//
// This package defines repository interfaces that decouple storage
// implementation from the pipelines:
//
//   - DocumentRepository: documents and their attachments
//   - SegmentRepository: immutable text segments with hash lookup
//   - SummaryRepository: generated summaries and tags
//   - VectorStore: embeddings keyed by segment vector IDs
//
// The storage/badger package implements all four on a single BadgerDB
// instance; storage/qdrant offers a remote VectorStore.
//
// Records are encoded with MUS (see serialization.go). Field order in the
// encoders is part of the on-disk format.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
