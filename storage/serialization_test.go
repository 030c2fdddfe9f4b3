package storage

import (
	"testing"
	"time"

	"github.com/poiesic/papermill/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	for _, id := range []core.ID{0, 42, core.ID(18446744073709551615), core.IDFromContent("x")} {
		decoded, err := UnmarshalID(MarshalID(id))
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestUnmarshalID_Empty(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestUnmarshalSegment_Truncated(t *testing.T) {
	data := MarshalSegment(&core.Segment{
		Id:          3,
		DocumentId:  1,
		Source:      "papers/a.pdf",
		Seq:         2,
		Content:     "hello world",
		Length:      11,
		ContentHash: "abc",
	})

	_, err := UnmarshalSegment(data[:len(data)/2])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestUnmarshalDocument_TrailingBytes(t *testing.T) {
	data := append(MarshalDocument(&core.Document{Id: 1, Title: "t"}), 0x01)

	_, err := UnmarshalDocument(data)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestVectorPointPreservesFloatsAndMetadata(t *testing.T) {
	p := &core.VectorPoint{
		Id:     "segment-9",
		Vector: []float32{0.25, -1.5, 3.0e-7, 0},
		Metadata: core.VectorMetadata{
			DocumentId: 4,
			SegmentId:  9,
			Source:     "papers/b.pdf",
			Seq:        12,
		},
		Text: "segment text",
	}

	decoded, err := UnmarshalVectorPoint(MarshalVectorPoint(p))
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestTimestampsUseMicrosecondPrecision(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 9, 26, 535897932, time.UTC)
	s := &core.Summary{Id: 1, DocumentId: 2, Model: "m", InsertedAt: now}

	decoded, err := UnmarshalSummary(MarshalSummary(s))
	require.NoError(t, err)
	assert.True(t, decoded.InsertedAt.Equal(now.Truncate(time.Microsecond)))

	noTime, err := UnmarshalSummary(MarshalSummary(&core.Summary{Id: 1, DocumentId: 2}))
	require.NoError(t, err)
	assert.True(t, noTime.InsertedAt.IsZero())
}
