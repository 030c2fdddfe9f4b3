// Package qdrant is a storage.VectorStore backed by a Qdrant server's REST API.
//
// Vector IDs are arbitrary strings; Qdrant only accepts UUIDs or integers as
// point IDs, so each ID is mapped to a name-based UUID and kept in the point
// payload under "point_id". The collection is created on first upsert using
// cosine distance and the dimension of the first vector.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/storage"
)

// ErrRequestFailed is returned when Qdrant answers with an unexpected status.
var ErrRequestFailed = errors.New("qdrant request failed")

const defaultTimeout = 15 * time.Second

// Config holds connection details for a Qdrant server.
type Config struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Store implements storage.VectorStore over HTTP.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	ready bool
}

var _ storage.VectorStore = (*Store)(nil)

// NewStore returns a client for cfg. No request is made until first use.
func NewStore(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant: URL is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant: collection is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Store{
		url:        strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "qdrant", "collection", cfg.Collection),
	}, nil
}

// PointID returns the Qdrant point ID used for a vector ID.
func PointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Exists returns the subset of ids that are stored. A missing collection
// holds nothing.
func (s *Store) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	byPoint := make(map[string]string, len(ids))
	pointIDs := make([]string, len(ids))
	for i, id := range ids {
		pointIDs[i] = PointID(id)
		byPoint[pointIDs[i]] = id
	}

	req := map[string]any{
		"ids":          pointIDs,
		"with_payload": false,
		"with_vector":  false,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionPath("points"), req, &resp)
	if status == http.StatusNotFound {
		return found, nil
	}
	if err != nil {
		return nil, err
	}
	for _, p := range resp.Result {
		if id, ok := byPoint[p.ID]; ok {
			found[id] = true
		}
	}
	return found, nil
}

// Upsert writes points and waits for Qdrant to apply them.
func (s *Store) Upsert(ctx context.Context, points []*core.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(points[0].Vector)); err != nil {
		return err
	}

	body := make([]point, len(points))
	for i, p := range points {
		body[i] = point{
			ID:     PointID(p.Id),
			Vector: p.Vector,
			Payload: map[string]any{
				"point_id":    p.Id,
				"document_id": uint64(p.Metadata.DocumentId),
				"segment_id":  uint64(p.Metadata.SegmentId),
				"source":      p.Metadata.Source,
				"sequence":    p.Metadata.Seq,
				"text":        p.Text,
			},
		}
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionPath("points")+"?wait=true", map[string]any{"points": body}, nil)
	return err
}

func (s *Store) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if dimension <= 0 {
		return fmt.Errorf("qdrant: invalid vector dimension %d", dimension)
	}

	status, err := s.do(ctx, http.MethodGet, s.collectionPath(""), nil, nil)
	switch {
	case err == nil:
	case status == http.StatusNotFound:
		create := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if _, err := s.do(ctx, http.MethodPut, s.collectionPath(""), create, nil); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		s.logger.Info("created collection", "dimension", dimension)
	default:
		return err
	}
	s.ready = true
	return nil
}

func (s *Store) collectionPath(suffix string) string {
	path := s.url + "/collections/" + url.PathEscape(s.collection)
	if suffix != "" {
		path += "/" + suffix
	}
	return path
}

// do sends a JSON request and decodes a JSON response into out. The status
// code is returned even when it signals an error.
func (s *Store) do(ctx context.Context, method, endpoint string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%w: %s %s: %s %s", ErrRequestFailed, method, endpoint, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
