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

import (
	"github.com/poiesic/papermill/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	var e encoder
	e.uint64(uint64(id))
	return e.buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	d := decoder{bs: data}
	id := core.ID(d.uint64())
	if err := d.finish(); err != nil {
		return 0, err
	}
	return id, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	var e encoder
	e.uint64(uint64(doc.Id))
	e.string(doc.Key)
	e.string(doc.Title)
	e.string(doc.Abstract)
	e.string(doc.Authors)
	e.int(doc.Year)
	e.bool(doc.IsPaper)
	e.time(doc.InsertedAt)
	return e.buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	d := decoder{bs: data}
	doc := &core.Document{
		Id:         core.ID(d.uint64()),
		Key:        d.string(),
		Title:      d.string(),
		Abstract:   d.string(),
		Authors:    d.string(),
		Year:       d.int(),
		IsPaper:    d.bool(),
		InsertedAt: d.time(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return doc, nil
}

// MarshalAttachment serializes an Attachment to bytes.
func MarshalAttachment(att *core.Attachment) []byte {
	var e encoder
	e.uint64(uint64(att.Id))
	e.uint64(uint64(att.DocumentId))
	e.string(att.Path)
	e.string(att.Type)
	e.time(att.InsertedAt)
	return e.buf
}

// UnmarshalAttachment deserializes an Attachment from bytes.
func UnmarshalAttachment(data []byte) (*core.Attachment, error) {
	d := decoder{bs: data}
	att := &core.Attachment{
		Id:         core.ID(d.uint64()),
		DocumentId: core.ID(d.uint64()),
		Path:       d.string(),
		Type:       d.string(),
		InsertedAt: d.time(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return att, nil
}

// MarshalSegment serializes a Segment to bytes.
func MarshalSegment(seg *core.Segment) []byte {
	var e encoder
	e.uint64(uint64(seg.Id))
	e.uint64(uint64(seg.DocumentId))
	e.string(seg.Source)
	e.int(seg.Seq)
	e.string(seg.Content)
	e.int(seg.Length)
	e.string(seg.ContentHash)
	e.time(seg.InsertedAt)
	return e.buf
}

// UnmarshalSegment deserializes a Segment from bytes.
func UnmarshalSegment(data []byte) (*core.Segment, error) {
	d := decoder{bs: data}
	seg := &core.Segment{
		Id:          core.ID(d.uint64()),
		DocumentId:  core.ID(d.uint64()),
		Source:      d.string(),
		Seq:         d.int(),
		Content:     d.string(),
		Length:      d.int(),
		ContentHash: d.string(),
		InsertedAt:  d.time(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return seg, nil
}

// MarshalSummary serializes a Summary to bytes.
func MarshalSummary(s *core.Summary) []byte {
	var e encoder
	e.uint64(uint64(s.Id))
	e.uint64(uint64(s.DocumentId))
	e.string(s.Model)
	e.string(s.LongSummary)
	e.string(s.OneLiner)
	e.string(s.SnarkyComment)
	e.time(s.InsertedAt)
	return e.buf
}

// UnmarshalSummary deserializes a Summary from bytes.
func UnmarshalSummary(data []byte) (*core.Summary, error) {
	d := decoder{bs: data}
	s := &core.Summary{
		Id:            core.ID(d.uint64()),
		DocumentId:    core.ID(d.uint64()),
		Model:         d.string(),
		LongSummary:   d.string(),
		OneLiner:      d.string(),
		SnarkyComment: d.string(),
		InsertedAt:    d.time(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalTag serializes a Tag to bytes.
func MarshalTag(t *core.Tag) []byte {
	var e encoder
	e.uint64(uint64(t.Id))
	e.uint64(uint64(t.DocumentId))
	e.string(t.Type)
	e.string(t.Value)
	return e.buf
}

// UnmarshalTag deserializes a Tag from bytes.
func UnmarshalTag(data []byte) (*core.Tag, error) {
	d := decoder{bs: data}
	t := &core.Tag{
		Id:         core.ID(d.uint64()),
		DocumentId: core.ID(d.uint64()),
		Type:       d.string(),
		Value:      d.string(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return t, nil
}

// MarshalVectorPoint serializes a VectorPoint to bytes.
func MarshalVectorPoint(p *core.VectorPoint) []byte {
	var e encoder
	e.string(p.Id)
	e.float32s(p.Vector)
	e.uint64(uint64(p.Metadata.DocumentId))
	e.uint64(uint64(p.Metadata.SegmentId))
	e.string(p.Metadata.Source)
	e.int(p.Metadata.Seq)
	e.string(p.Text)
	return e.buf
}

// UnmarshalVectorPoint deserializes a VectorPoint from bytes.
func UnmarshalVectorPoint(data []byte) (*core.VectorPoint, error) {
	d := decoder{bs: data}
	p := &core.VectorPoint{
		Id:     d.string(),
		Vector: d.float32s(),
		Metadata: core.VectorMetadata{
			DocumentId: core.ID(d.uint64()),
			SegmentId:  core.ID(d.uint64()),
			Source:     d.string(),
			Seq:        d.int(),
		},
		Text: d.string(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return p, nil
}
