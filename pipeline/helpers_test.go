package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/jobs"
	badgerstore "github.com/poiesic/papermill/storage/badger"
	"github.com/stretchr/testify/require"
)

// recorder collects events emitted by a workload run synchronously.
type recorder struct {
	events []jobs.Event
}

func (r *recorder) emit(ev jobs.Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) stages() []string {
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Stage
	}
	return out
}

func (r *recorder) last() jobs.Event {
	return r.events[len(r.events)-1]
}

func (r *recorder) find(stage string) []jobs.Event {
	var out []jobs.Event
	for _, ev := range r.events {
		if ev.Stage == stage {
			out = append(out, ev)
		}
	}
	return out
}

func setupStore(t *testing.T) *badgerstore.Store {
	t.Helper()
	store, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addPapers(t *testing.T, store *badgerstore.Store, titles ...string) []*core.Document {
	t.Helper()
	docs := make([]*core.Document, len(titles))
	for i, title := range titles {
		docs[i] = &core.Document{Title: title, Abstract: "abstract of " + title, IsPaper: true}
	}
	added, err := store.Documents.AddDocuments(context.Background(), docs...)
	require.NoError(t, err)
	return added
}

// addSegments stores n segments for doc under source with distinct content.
func addSegments(t *testing.T, store *badgerstore.Store, doc *core.Document, source string, n int) []*core.Segment {
	t.Helper()
	segs := make([]*core.Segment, n)
	for i := range segs {
		content := fmt.Sprintf("segment %d of %s in %q", i, source, doc.Title)
		segs[i] = &core.Segment{
			DocumentId:  doc.Id,
			Source:      source,
			Seq:         i,
			Content:     content,
			ContentHash: fmt.Sprintf("%d-%s-%d", doc.Id, source, i),
		}
	}
	inserted, err := store.Segments.AddSegments(context.Background(), segs...)
	require.NoError(t, err)
	require.Equal(t, n, inserted)
	return segs
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
