package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// Compile-time interface checks.
var (
	_ Store = (*Qdrant)(nil)
	_ Store = (*Pinecone)(nil)
	_ Store = (*Memory)(nil)
)

func TestFactory(t *testing.T) {
	tests := []struct {
		provider string
		wantErr  bool
	}{
		{"qdrant", false},
		{"pinecone", false},
		{"memory", false},
		{"milvus", true},
		{"unknown", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			_, err := New(tt.provider, "http://localhost:6333")
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
			}
		})
	}
}

func TestFactoryEmptyEndpoint(t *testing.T) {
	for _, p := range []string{"qdrant", "pinecone"} {
		if _, err := New(p, ""); err == nil {
			t.Errorf("%s: expected error for empty endpoint", p)
		}
	}
	if _, err := New("memory", ""); err != nil {
		t.Errorf("memory: unexpected error %v", err)
	}
}

func TestValidateMetadata(t *testing.T) {
	ok := Metadata{"agent": "QA Agent", "n": 3, "score": 0.5, "done": false, "none": nil}
	if err := ValidateMetadata(ok); err != nil {
		t.Errorf("ValidateMetadata(flat) = %v", err)
	}
	for _, bad := range []Metadata{
		{"deps": []string{"a"}},
		{"meta": map[string]any{"phase": "testing"}},
	} {
		if err := ValidateMetadata(bad); !errors.Is(err, ErrNestedMetadata) {
			t.Errorf("ValidateMetadata(%v) = %v, want ErrNestedMetadata", bad, err)
		}
	}
}

func TestQdrantHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	q, _ := NewQdrant(srv.URL)
	if err := q.Health(context.Background()); err != nil {
		t.Errorf("Health() = %v, want nil", err)
	}
}

func TestQdrantHealthUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	q, _ := NewQdrant(srv.URL)
	if err := q.Health(context.Background()); err == nil {
		t.Error("expected error for unhealthy server")
	}
}

func TestQdrantUpsert(t *testing.T) {
	var got map[string]any
	var apiKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/conclave":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/conclave/points":
			apiKey = r.Header.Get("api-key")
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	q, _ := NewQdrant(srv.URL, WithAPIKey("secret"))
	err := q.Upsert(context.Background(), "agent_tasks", Record{
		ID:       "qa-agent-1",
		Vector:   []float32{0.1, 0.2},
		Metadata: Metadata{"status": "pending"},
	})
	if err != nil {
		t.Fatalf("Upsert() = %v", err)
	}
	if apiKey != "secret" {
		t.Errorf("api-key header = %q", apiKey)
	}
	points := got["points"].([]any)
	point := points[0].(map[string]any)
	payload := point["payload"].(map[string]any)
	if payload["_partition"] != "agent_tasks" || payload["_id"] != "qa-agent-1" || payload["status"] != "pending" {
		t.Errorf("payload = %v", payload)
	}
	// JSON numbers decode as float64; compare the formatted id.
	if fmt.Sprintf("%.0f", point["id"].(float64)) != fmt.Sprintf("%.0f", float64(pointID("agent_tasks", "qa-agent-1"))) {
		t.Errorf("point id = %v", point["id"])
	}
}

func TestQdrantUpsertRejectsNested(t *testing.T) {
	q, _ := NewQdrant("http://127.0.0.1:1")
	err := q.Upsert(context.Background(), "p", Record{ID: "x", Metadata: Metadata{"m": map[string]any{}}})
	if !errors.Is(err, ErrNestedMetadata) {
		t.Errorf("Upsert() = %v, want ErrNestedMetadata", err)
	}
}

func TestQdrantCreatesCollection(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/custom":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/custom":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			vectors := body["vectors"].(map[string]any)
			if vectors["size"].(float64) == 8 && vectors["distance"] == "Cosine" {
				created = true
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"result":[]}`))
		}
	}))
	defer srv.Close()

	q, _ := NewQdrant(srv.URL, WithCollection("custom"), WithEmbeddingDimension(8))
	if _, err := q.Query(context.Background(), "p", make([]float32, 8), 3, nil); err != nil {
		t.Fatalf("Query() = %v", err)
	}
	if !created {
		t.Error("collection was not created with the configured size")
	}
}

func TestQdrantRetriesCollectionSetupAfterFailure(t *testing.T) {
	var checks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/collections/conclave" {
			if checks.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method == http.MethodPut && r.URL.Path == "/collections/conclave" {
			if checks.Load() == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer srv.Close()

	q, _ := NewQdrant(srv.URL)
	ctx := context.Background()
	if _, err := q.Query(ctx, "agent_tasks", []float32{1, 0}, 3, nil); err == nil {
		t.Fatal("first Query should surface the 503")
	}
	if _, err := q.Query(ctx, "agent_tasks", []float32{1, 0}, 3, nil); err != nil {
		t.Fatalf("second Query = %v, want recovery once Qdrant is back", err)
	}
	if _, err := q.Query(ctx, "agent_tasks", []float32{1, 0}, 3, nil); err != nil {
		t.Fatalf("third Query = %v", err)
	}
	if got := checks.Load(); got != 2 {
		t.Errorf("collection checked %d times, want 2 (setup cached after success)", got)
	}
}

func TestQdrantQuery(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[
			{"id":1,"score":0.93,"payload":{"_id":"planner-qa-1","_partition":"agent_communications","fromAgent":"Planner"}},
			{"id":2,"score":0.41,"payload":{"_id":"qa-dev-2","_partition":"agent_communications","toAgent":"Dev"}}
		]}`))
	}))
	defer srv.Close()

	q, _ := NewQdrant(srv.URL)
	f := &Filter{Should: []Condition{Eq("fromAgent", "Planner"), Eq("toAgent", "Planner")}}
	matches, err := q.Query(context.Background(), "agent_communications", []float32{1, 0}, 20, f)
	if err != nil {
		t.Fatalf("Query() = %v", err)
	}
	if len(matches) != 2 || matches[0].ID != "planner-qa-1" || matches[0].Score != 0.93 {
		t.Fatalf("matches = %+v", matches)
	}
	if _, ok := matches[0].Metadata["_partition"]; ok {
		t.Error("reserved payload keys leaked into metadata")
	}
	if body["limit"].(float64) != 20 {
		t.Errorf("limit = %v", body["limit"])
	}
	filter := body["filter"].(map[string]any)
	if len(filter["must"].([]any)) != 1 || len(filter["should"].([]any)) != 2 {
		t.Errorf("filter = %v", filter)
	}
}

func TestQdrantFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/conclave":
			w.WriteHeader(http.StatusOK)
		case fmt.Sprintf("/collections/conclave/points/%d", pointID("agent_tasks", "t1")):
			_, _ = w.Write([]byte(`{"result":{"id":1,"vector":[0.5,0.5],"payload":{"_id":"t1","_partition":"agent_tasks","status":"pending"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":{"error":"Not found"}}`))
		}
	}))
	defer srv.Close()

	q, _ := NewQdrant(srv.URL)
	rec, err := q.Fetch(context.Background(), "agent_tasks", "t1")
	if err != nil {
		t.Fatalf("Fetch() = %v", err)
	}
	if rec.ID != "t1" || rec.Metadata.String("status") != "pending" || len(rec.Vector) != 2 {
		t.Errorf("record = %+v", rec)
	}
	if _, err := q.Fetch(context.Background(), "agent_tasks", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch(missing) = %v, want ErrNotFound", err)
	}
}

func TestPineconeRoundTrip(t *testing.T) {
	var upsertBody, queryBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") != "pc-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/vectors/upsert":
			_ = json.NewDecoder(r.Body).Decode(&upsertBody)
			_, _ = w.Write([]byte(`{"upsertedCount":1}`))
		case "/query":
			_ = json.NewDecoder(r.Body).Decode(&queryBody)
			_, _ = w.Write([]byte(`{"matches":[{"id":"t1","score":0.8,"metadata":{"agent":"QA Agent"}}]}`))
		case "/vectors/fetch":
			if r.URL.Query().Get("namespace") != "agent_tasks" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if r.URL.Query().Get("ids") == "t1" {
				_, _ = w.Write([]byte(`{"vectors":{"t1":{"id":"t1","values":[1,0],"metadata":{"agent":"QA Agent"}}}}`))
				return
			}
			_, _ = w.Write([]byte(`{"vectors":{}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	p, err := NewPinecone(srv.URL, WithAPIKey("pc-key"))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Upsert(ctx, "agent_tasks", Record{ID: "t1", Vector: []float32{1, 0}, Metadata: Metadata{"agent": "QA Agent", "result": nil}}); err != nil {
		t.Fatalf("Upsert() = %v", err)
	}
	if upsertBody["namespace"] != "agent_tasks" {
		t.Errorf("namespace = %v", upsertBody["namespace"])
	}
	vec := upsertBody["vectors"].([]any)[0].(map[string]any)
	if _, ok := vec["metadata"].(map[string]any)["result"]; ok {
		t.Error("null metadata value should be dropped")
	}

	f := &Filter{Must: []Condition{Eq("agent", "QA Agent"), In("status", "pending", "failed")}}
	matches, err := p.Query(ctx, "agent_tasks", []float32{1, 0}, 5, f)
	if err != nil {
		t.Fatalf("Query() = %v", err)
	}
	if len(matches) != 1 || matches[0].Metadata.String("agent") != "QA Agent" {
		t.Errorf("matches = %+v", matches)
	}
	filter := queryBody["filter"].(map[string]any)
	if len(filter["$and"].([]any)) != 2 {
		t.Errorf("filter = %v", filter)
	}

	rec, err := p.Fetch(ctx, "agent_tasks", "t1")
	if err != nil || rec.ID != "t1" {
		t.Errorf("Fetch() = %+v, %v", rec, err)
	}
	if _, err := p.Fetch(ctx, "agent_tasks", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch(nope) = %v, want ErrNotFound", err)
	}
}

func TestPineconeFilterShapes(t *testing.T) {
	if pineconeFilter(nil) != nil {
		t.Error("nil filter should produce no pinecone filter")
	}
	single := pineconeFilter(&Filter{Must: []Condition{Eq("agent", "a")}})
	if _, ok := single["agent"]; !ok {
		t.Errorf("single condition = %v", single)
	}
	or := pineconeFilter(&Filter{Should: []Condition{Eq("fromAgent", "a"), Eq("toAgent", "a")}})
	if len(or["$or"].([]any)) != 2 {
		t.Errorf("or filter = %v", or)
	}
}
