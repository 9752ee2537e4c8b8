package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"docuchat/internal/config"
	"docuchat/internal/models"
)

func newQdrantTest(t *testing.T, handler http.Handler) *QdrantStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewQdrantStore(config.VectorIndexConfig{URL: srv.URL}, "docs_abc", "alice")
}

func TestUpsertCreatesCollectionOnce(t *testing.T) {
	var creates, upserts atomic.Int32
	store := newQdrantTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs_abc":
			creates.Add(1)
			var body struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode create: %v", err)
			}
			if body.Vectors.Size != 3 || body.Vectors.Distance != "Cosine" {
				t.Errorf("unexpected collection config: %+v", body.Vectors)
			}
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/collections/docs_abc/points"):
			upserts.Add(1)
			var body struct {
				Points []struct {
					ID      string         `json:"id"`
					Vector  []float64      `json:"vector"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode upsert: %v", err)
			}
			if len(body.Points) != 2 {
				t.Errorf("expected 2 points, got %d", len(body.Points))
			}
			for _, p := range body.Points {
				if p.Payload["owner"] != "alice" {
					t.Errorf("point missing owner payload: %v", p.Payload)
				}
			}
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	chunks := []models.Chunk{
		{ID: "1", Owner: "alice", Seq: 0, Text: "first", Vector: []float64{1, 0, 0}},
		{ID: "2", Owner: "alice", Seq: 1, Text: "second", Vector: []float64{0, 1, 0}},
	}
	if err := store.Upsert(context.Background(), chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(context.Background(), chunks); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if creates.Load() != 1 {
		t.Fatalf("collection should be created once, got %d", creates.Load())
	}
	if upserts.Load() != 2 {
		t.Fatalf("expected 2 upserts, got %d", upserts.Load())
	}
}

func TestUpsertToleratesExistingCollection(t *testing.T) {
	store := newQdrantTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs_abc" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	err := store.Upsert(context.Background(), []models.Chunk{
		{ID: "1", Owner: "alice", Text: "x", Vector: []float64{1}},
	})
	if err != nil {
		t.Fatalf("upsert with existing collection: %v", err)
	}
}

func TestSearchFiltersByOwnerAndDecodesHits(t *testing.T) {
	store := newQdrantTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/docs_abc/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Vector []float64 `json:"vector"`
			Limit  int       `json:"limit"`
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode search: %v", err)
		}
		if body.Limit != 2 {
			t.Errorf("expected limit 2, got %d", body.Limit)
		}
		if len(body.Filter.Must) != 1 || body.Filter.Must[0].Key != "owner" ||
			body.Filter.Must[0].Match.Value != "alice" {
			t.Errorf("owner filter missing: %+v", body.Filter)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "c1", "score": 0.92, "payload": map[string]any{
					"text": "Paris is the capital.", "document_id": "d1", "seq": float64(3),
				}},
				{"id": "c2", "score": 0.61, "payload": map[string]any{
					"text": "It lies on the Seine.", "document_id": "d1", "seq": float64(4),
				}},
			},
		})
	}))

	results, err := store.Search(context.Background(), []float64{1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(results))
	}
	if results[0].Chunk.Text != "Paris is the capital." || results[0].Score != 0.92 {
		t.Fatalf("unexpected first hit: %+v", results[0])
	}
	if results[0].Chunk.Owner != "alice" || results[0].Chunk.Seq != 3 {
		t.Fatalf("hit payload not decoded: %+v", results[0].Chunk)
	}
}

func TestSearchTreatsMissingCollectionAsEmpty(t *testing.T) {
	store := newQdrantTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	results, err := store.Search(context.Background(), []float64{1}, 4)
	if err != nil {
		t.Fatalf("search on missing collection: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestSearchReportsServerErrors(t *testing.T) {
	store := newQdrantTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if _, err := store.Search(context.Background(), []float64{1}, 4); err == nil {
		t.Fatalf("expected error on 500")
	}
}

func TestUpsertSkipsEmptyBatch(t *testing.T) {
	store := newQdrantTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for empty batch")
	}))
	if err := store.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert: %v", err)
	}
}
