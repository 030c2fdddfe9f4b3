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


package storage

import "errors"

// Storage errors. Backends wrap these with record details; callers match
// them with errors.Is.
var (
	// ErrNotFound is returned when a document, attachment, segment or
	// summary lookup has no match.
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed is returned by operations on a closed backend.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery is returned for listing options that cannot be served,
	// such as a negative limit.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed is returned when a stored record cannot be
	// decoded.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData is returned when a stored record ends before all of
	// its fields were read.
	ErrTruncatedData = errors.New("truncated data")
)
