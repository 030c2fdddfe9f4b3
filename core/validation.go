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

package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Title or Key must be set
//   - Year must not be negative
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Title) == "" && strings.TrimSpace(doc.Key) == "" {
		return fmt.Errorf("%w: title or key is required", ErrInvalidDocument)
	}
	if doc.Year < 0 {
		return fmt.Errorf("%w: year cannot be negative", ErrInvalidDocument)
	}
	return nil
}

// ValidateAttachment validates an Attachment according to domain rules.
func ValidateAttachment(att *Attachment) error {
	if att == nil {
		return fmt.Errorf("%w: attachment is nil", ErrInvalidAttachment)
	}
	if att.DocumentId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidAttachment, ErrMissingDocument)
	}
	if strings.TrimSpace(att.Path) == "" {
		return fmt.Errorf("%w: path cannot be empty", ErrInvalidAttachment)
	}
	return nil
}

// ValidateSegment validates a Segment according to domain rules.
//
// Validation rules:
//   - DocumentId must be set
//   - Content must not be empty
//   - Seq must not be negative
//   - ContentHash must be set
func ValidateSegment(seg *Segment) error {
	if seg == nil {
		return fmt.Errorf("%w: segment is nil", ErrInvalidSegment)
	}
	if seg.DocumentId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSegment, ErrMissingDocument)
	}
	if seg.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSegment, ErrEmptyContent)
	}
	if seg.Seq < 0 {
		return fmt.Errorf("%w: sequence cannot be negative", ErrInvalidSegment)
	}
	if seg.ContentHash == "" {
		return fmt.Errorf("%w: content hash is required", ErrInvalidSegment)
	}
	return nil
}

// ValidateSummary validates a Summary according to domain rules.
func ValidateSummary(s *Summary) error {
	if s == nil {
		return fmt.Errorf("%w: summary is nil", ErrInvalidSummary)
	}
	if s.DocumentId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSummary, ErrMissingDocument)
	}
	return nil
}
