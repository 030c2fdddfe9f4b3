package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSegment(doc core.ID, source string, seq int, content string) *core.Segment {
	return &core.Segment{
		DocumentId:  doc,
		Source:      source,
		Seq:         seq,
		Content:     content,
		ContentHash: fmt.Sprintf("%d|%s|%d|%s", doc, source, seq, content),
	}
}

func TestSegments_AddSkipsDuplicates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	n, err := store.Segments.AddSegments(ctx,
		newSegment(1, "a.pdf", 0, "first"),
		newSegment(1, "a.pdf", 1, "second"),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same hash.
	n, err = store.Segments.AddSegments(ctx, newSegment(1, "a.pdf", 0, "first"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Same position, different content.
	dup := newSegment(1, "a.pdf", 1, "changed")
	n, err = store.Segments.AddSegments(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Zero(t, dup.Id)

	// Duplicates within one call.
	n, err = store.Segments.AddSegments(ctx, newSegment(2, "b.pdf", 0, "x"), newSegment(2, "b.pdf", 0, "x"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSegments_FindByHash(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seg := newSegment(1, "a.pdf", 0, "héllo")
	_, err := store.Segments.AddSegments(ctx, seg)
	require.NoError(t, err)

	found, err := store.Segments.FindSegmentByHash(ctx, seg.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, seg.Id, found.Id)
	assert.Equal(t, 5, found.Length)

	_, err = store.Segments.FindSegmentByHash(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSegments_DocumentOrderAndListing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Segments.AddSegments(ctx,
		newSegment(1, "a.pdf", 2, "c"),
		newSegment(2, "z.pdf", 0, "other"),
		newSegment(1, "a.pdf", 0, "a"),
		newSegment(1, "a.pdf", 1, "b"),
	)
	require.NoError(t, err)

	segs, err := store.Segments.GetSegmentsByDocument(ctx, 1)
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, "a", segs[0].Content)
	assert.Equal(t, "b", segs[1].Content)
	assert.Equal(t, "c", segs[2].Content)

	all, err := store.Segments.ListSegments(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "c", all[0].Content)

	limited, err := store.Segments.ListSegments(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = store.Segments.ListSegments(ctx, -1)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestSegments_DocumentsWithSegments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ids, err := store.Segments.DocumentsWithSegments(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = store.Segments.AddSegments(ctx,
		newSegment(7, "c.pdf", 0, "x"),
		newSegment(2, "b.pdf", 0, "a"),
		newSegment(2, "b.pdf", 1, "b"),
		newSegment(2, "d.pdf", 0, "c"),
		newSegment(300, "e.pdf", 0, "y"),
	)
	require.NoError(t, err)

	ids, err = store.Segments.DocumentsWithSegments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{2, 7, 300}, ids)
}

func TestSegments_HasSegmentsForSource(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Segments.AddSegments(ctx, newSegment(1, "a.pdf", 0, "a"))
	require.NoError(t, err)

	ok, err := store.Segments.HasSegmentsForSource(ctx, 1, "a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Segments.HasSegmentsForSource(ctx, 1, "a.pd")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Segments.HasSegmentsForSource(ctx, 2, "a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSegments_LargeBatchSpansTransactions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	segs := make([]*core.Segment, segmentTxnChunk*2+7)
	for i := range segs {
		segs[i] = newSegment(3, "big.pdf", i, fmt.Sprintf("content %d", i))
	}

	n, err := store.Segments.AddSegments(ctx, segs...)
	require.NoError(t, err)
	assert.Equal(t, len(segs), n)

	stored, err := store.Segments.GetSegmentsByDocument(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, stored, len(segs))
}
