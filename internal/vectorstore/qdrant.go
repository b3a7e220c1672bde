package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Payload keys reserved by the Qdrant backend. Every partition shares one
// collection and is told apart by partitionKey.
const (
	partitionKey = "_partition"
	idKey        = "_id"
)

// Qdrant implements Store using Qdrant's REST API.
type Qdrant struct {
	endpoint   string
	collection string
	dimension  int
	apiKey     string
	client     *http.Client

	// ensureMu guards ready, which is set once the collection is known to
	// exist. Failures leave it unset so the next call tries again.
	ensureMu sync.Mutex
	ready    bool
}

// NewQdrant creates a Qdrant-backed vector store.
func NewQdrant(endpoint string, opts ...Option) (*Qdrant, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("qdrant endpoint is required")
	}
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Qdrant{
		endpoint:   strings.TrimRight(endpoint, "/"),
		collection: o.Collection,
		dimension:  o.EmbeddingDimension,
		apiKey:     o.APIKey,
		client:     o.HTTPClient,
	}, nil
}

func (q *Qdrant) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.endpoint+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	return req, nil
}

// ensureCollection creates the collection if it doesn't exist.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	q.ensureMu.Lock()
	defer q.ensureMu.Unlock()
	if q.ready {
		return nil
	}

	path := "/collections/" + q.collection
	req, err := q.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		q.ready = true
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	}
	req, err = q.newRequest(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	resp, err = q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to create collection: %s %s", resp.Status, string(b))
	}
	q.ready = true
	return nil
}

// pointID produces a deterministic uint64 FNV-1a hash for use as a Qdrant point ID.
func pointID(partition, id string) uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	key := partition + "/" + id
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= 1099511628211 // FNV-1a prime
	}
	return h
}

func (q *Qdrant) Upsert(ctx context.Context, partition string, rec Record) error {
	if err := ValidateMetadata(rec.Metadata); err != nil {
		return err
	}
	if err := q.ensureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	payload := make(map[string]any, len(rec.Metadata)+2)
	for k, v := range rec.Metadata {
		payload[k] = v
	}
	payload[idKey] = rec.ID
	payload[partitionKey] = partition

	body := map[string]any{"points": []any{map[string]any{
		"id":      pointID(partition, rec.ID),
		"vector":  rec.Vector,
		"payload": payload,
	}}}
	req, err := q.newRequest(ctx, http.MethodPut, "/collections/"+q.collection+"/points?wait=true", body)
	if err != nil {
		return err
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant upsert failed: %s %s", resp.Status, string(b))
	}
	return nil
}

func qdrantCondition(c Condition) map[string]any {
	if len(c.Values) == 1 {
		return map[string]any{"key": c.Key, "match": map[string]any{"value": c.Values[0]}}
	}
	return map[string]any{"key": c.Key, "match": map[string]any{"any": c.Values}}
}

func qdrantFilter(partition string, f *Filter) map[string]any {
	must := []any{qdrantCondition(Eq(partitionKey, partition))}
	out := map[string]any{}
	if f != nil {
		for _, c := range f.Must {
			must = append(must, qdrantCondition(c))
		}
		if len(f.Should) > 0 {
			should := make([]any, 0, len(f.Should))
			for _, c := range f.Should {
				should = append(should, qdrantCondition(c))
			}
			out["should"] = should
		}
	}
	out["must"] = must
	return out
}

// splitPayload separates the reserved keys from caller metadata.
func splitPayload(p map[string]any) (string, Metadata) {
	md := make(Metadata, len(p))
	for k, v := range p {
		if k == idKey || k == partitionKey {
			continue
		}
		md[k] = v
	}
	id, _ := p[idKey].(string)
	return id, md
}

func (q *Qdrant) Query(ctx context.Context, partition string, vector []float32, topK int, filter *Filter) ([]Match, error) {
	if err := q.ensureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter":       qdrantFilter(partition, filter),
	}
	req, err := q.newRequest(ctx, http.MethodPost, "/collections/"+q.collection+"/points/search", body)
	if err != nil {
		return nil, err
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("qdrant search failed: %s %s", resp.Status, string(b))
	}

	var result struct {
		Result []struct {
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	matches := make([]Match, 0, len(result.Result))
	for _, r := range result.Result {
		id, md := splitPayload(r.Payload)
		matches = append(matches, Match{ID: id, Score: r.Score, Metadata: md})
	}
	return matches, nil
}

func (q *Qdrant) Fetch(ctx context.Context, partition, id string) (Record, error) {
	if err := q.ensureCollection(ctx); err != nil {
		return Record{}, fmt.Errorf("ensure collection: %w", err)
	}
	path := fmt.Sprintf("/collections/%s/points/%d", q.collection, pointID(partition, id))
	req, err := q.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Record{}, err
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return Record{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return Record{}, fmt.Errorf("%s/%s: %w", partition, id, ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return Record{}, fmt.Errorf("qdrant fetch failed: %s %s", resp.Status, string(b))
	}

	var result struct {
		Result *struct {
			Payload map[string]any `json:"payload"`
			Vector  []float32      `json:"vector"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Record{}, fmt.Errorf("decode fetch response: %w", err)
	}
	if result.Result == nil || result.Result.Payload[partitionKey] != partition {
		return Record{}, fmt.Errorf("%s/%s: %w", partition, id, ErrNotFound)
	}
	gotID, md := splitPayload(result.Result.Payload)
	return Record{ID: gotID, Vector: result.Result.Vector, Metadata: md}, nil
}

func (q *Qdrant) Health(ctx context.Context) error {
	req, err := q.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant unhealthy: %s", resp.Status)
	}
	return nil
}
