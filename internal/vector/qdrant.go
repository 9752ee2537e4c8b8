package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"docuchat/internal/config"
	"docuchat/internal/models"
)

// QdrantStore talks to a Qdrant instance over its REST API. Each store owns
// one collection; the owner filter on every search is kept as a second line
// of defense should two users ever share a collection.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	owner      string
	client     *http.Client

	mu      sync.Mutex
	created bool
}

// NewQdrantStore builds a store bound to the given collection and owner.
func NewQdrantStore(cfg config.VectorIndexConfig, collection, owner string) *QdrantStore {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &QdrantStore{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		owner:      owner,
		client:     &http.Client{Timeout: timeout},
	}
}

// Collection returns the namespace this store writes to.
func (s *QdrantStore) Collection() string { return s.collection }

// ensureCollection creates the collection on first write. Creation is lazy so
// a user who only ever queries never allocates an empty collection.
func (s *QdrantStore) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	resp, err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", s.collection), body)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	defer resp.Body.Close()

	// 409 means another replica won the race, which is fine.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("create collection %s: status %s", s.collection, resp.Status)
	}
	s.created = true
	return nil
}

// Upsert writes the given chunks into the collection. All chunks must carry
// vectors of the same dimension.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(chunks[0].Vector)); err != nil {
		return err
	}

	points := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, map[string]any{
			"id":     c.ID,
			"vector": c.Vector,
			"payload": map[string]any{
				"owner":       c.Owner,
				"document_id": c.DocumentID,
				"seq":         c.Seq,
				"text":        c.Text,
			},
		})
	}

	resp, err := s.do(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s/points?wait=true", s.collection),
		map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upsert points: status %s", resp.Status)
	}
	return nil
}

// Search returns the topK nearest chunks belonging to the store's owner.
// A missing collection is treated as an empty index, not a failure.
func (s *QdrantStore) Search(ctx context.Context, vector []float64, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = config.DefaultTopK
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "owner", "match": map[string]any{"value": s.owner}},
			},
		},
	}
	resp, err := s.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/search", s.collection), body)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search points: status %s", resp.Status)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	var out struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]models.SearchResult, 0, len(out.Result))
	for _, hit := range out.Result {
		chunk := models.Chunk{ID: hit.ID, Owner: s.owner}
		if v, ok := hit.Payload["text"].(string); ok {
			chunk.Text = v
		}
		if v, ok := hit.Payload["document_id"].(string); ok {
			chunk.DocumentID = v
		}
		if v, ok := hit.Payload["seq"].(float64); ok {
			chunk.Seq = int(v)
		}
		results = append(results, models.SearchResult{Chunk: chunk, Score: hit.Score})
	}
	return results, nil
}

func (s *QdrantStore) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	return s.client.Do(req)
}
