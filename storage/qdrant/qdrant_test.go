package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/poiesic/papermill/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal in-memory stand-in for the Qdrant REST endpoints
// the store uses.
type fakeServer struct {
	mu         sync.Mutex
	collection bool
	size       int
	points     map[string]map[string]any
	apiKeys    []string
	failPoints bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{points: make(map[string]map[string]any)}
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	switch {
	case r.URL.Path == "/collections/papers" && r.Method == http.MethodGet:
		if !f.collection {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"result":{}}`))
	case r.URL.Path == "/collections/papers" && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.collection = true
		f.size = body.Vectors.Size
		w.Write([]byte(`{"result":true}`))
	case r.URL.Path == "/collections/papers/points" && r.Method == http.MethodPut:
		if f.failPoints {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		var body struct {
			Points []point `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			f.points[p.ID] = p.Payload
		}
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	case r.URL.Path == "/collections/papers/points" && r.Method == http.MethodPost:
		if !f.collection {
			http.Error(w, "missing", http.StatusNotFound)
			return
		}
		var body struct {
			IDs []string `json:"ids"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		var result []point
		for _, id := range body.IDs {
			if _, ok := f.points[id]; ok {
				result = append(result, point{ID: id})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"result": result})
	default:
		http.NotFound(w, r)
	}
}

func newTestStore(t *testing.T, f *fakeServer) *Store {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	s, err := NewStore(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "papers"})
	require.NoError(t, err)
	return s
}

func vectorPoint(id string, seq int) *core.VectorPoint {
	return &core.VectorPoint{
		Id:     id,
		Vector: []float32{0.6, 0.8, 0},
		Metadata: core.VectorMetadata{
			DocumentId: 7,
			SegmentId:  core.ID(seq + 100),
			Source:     "paper.pdf",
			Seq:        seq,
		},
		Text: "text",
	}
}

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore(Config{Collection: "x"})
	require.Error(t, err)
	_, err = NewStore(Config{URL: "http://localhost:6333"})
	require.Error(t, err)
}

func TestPointIDIsStableUUID(t *testing.T) {
	a := PointID("segment-1")
	assert.Equal(t, a, PointID("segment-1"))
	assert.NotEqual(t, a, PointID("segment-2"))
	assert.Len(t, a, 36)
}

func TestExistsWithoutCollection(t *testing.T) {
	s := newTestStore(t, newFakeServer())

	found, err := s.Exists(context.Background(), []string{"segment-1"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUpsertCreatesCollectionAndExistsFindsPoints(t *testing.T) {
	f := newFakeServer()
	s := newTestStore(t, f)
	ctx := context.Background()

	err := s.Upsert(ctx, []*core.VectorPoint{vectorPoint("segment-1", 0), vectorPoint("segment-2", 1)})
	require.NoError(t, err)

	f.mu.Lock()
	assert.True(t, f.collection)
	assert.Equal(t, 3, f.size)
	payload := f.points[PointID("segment-2")]
	keys := append([]string(nil), f.apiKeys...)
	f.mu.Unlock()

	require.NotNil(t, payload)
	assert.Equal(t, "segment-2", payload["point_id"])
	assert.Equal(t, "paper.pdf", payload["source"])
	assert.EqualValues(t, 1, payload["sequence"])

	found, err := s.Exists(ctx, []string{"segment-1", "segment-2", "segment-3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"segment-1": true, "segment-2": true}, found)

	for _, key := range keys {
		assert.Equal(t, "secret", key)
	}
}

func TestUpsertReusesExistingCollection(t *testing.T) {
	f := newFakeServer()
	f.collection = true
	f.size = 99
	s := newTestStore(t, f)

	require.NoError(t, s.Upsert(context.Background(), []*core.VectorPoint{vectorPoint("segment-1", 0)}))
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 99, f.size)
}

func TestUpsertFailure(t *testing.T) {
	f := newFakeServer()
	f.failPoints = true
	s := newTestStore(t, f)

	err := s.Upsert(context.Background(), []*core.VectorPoint{vectorPoint("segment-1", 0)})
	require.ErrorIs(t, err, ErrRequestFailed)
}

func TestEmptyCalls(t *testing.T) {
	f := newFakeServer()
	s := newTestStore(t, f)

	found, err := s.Exists(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, found)
	require.NoError(t, s.Upsert(context.Background(), nil))
	assert.Empty(t, f.apiKeys)
}
