package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Pinecone implements Store against a Pinecone index data plane.
// endpoint is the index host; partitions map to namespaces.
type Pinecone struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewPinecone creates a Pinecone-backed vector store.
func NewPinecone(endpoint string, opts ...Option) (*Pinecone, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("pinecone index host is required")
	}
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return &Pinecone{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   o.APIKey,
		client:   o.HTTPClient,
	}, nil
}

func (p *Pinecone) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.endpoint+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone %s %s failed: %s %s", method, strings.SplitN(path, "?", 2)[0], resp.Status, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode pinecone response: %w", err)
	}
	return nil
}

type pineconeVector struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata Metadata  `json:"metadata,omitempty"`
}

func (p *Pinecone) Upsert(ctx context.Context, partition string, rec Record) error {
	if err := ValidateMetadata(rec.Metadata); err != nil {
		return err
	}
	// Pinecone rejects null metadata values.
	md := make(Metadata, len(rec.Metadata))
	for k, v := range rec.Metadata {
		if v != nil {
			md[k] = v
		}
	}
	body := map[string]any{
		"vectors":   []pineconeVector{{ID: rec.ID, Values: rec.Vector, Metadata: md}},
		"namespace": partition,
	}
	return p.do(ctx, http.MethodPost, "/vectors/upsert", body, nil)
}

func pineconeCondition(c Condition) map[string]any {
	if len(c.Values) == 1 {
		return map[string]any{c.Key: map[string]any{"$eq": c.Values[0]}}
	}
	return map[string]any{c.Key: map[string]any{"$in": c.Values}}
}

func pineconeFilter(f *Filter) map[string]any {
	if f.Empty() {
		return nil
	}
	var and []any
	for _, c := range f.Must {
		and = append(and, pineconeCondition(c))
	}
	if len(f.Should) > 0 {
		or := make([]any, 0, len(f.Should))
		for _, c := range f.Should {
			or = append(or, pineconeCondition(c))
		}
		and = append(and, map[string]any{"$or": or})
	}
	if len(and) == 1 {
		return and[0].(map[string]any)
	}
	return map[string]any{"$and": and}
}

func (p *Pinecone) Query(ctx context.Context, partition string, vector []float32, topK int, filter *Filter) ([]Match, error) {
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"namespace":       partition,
		"includeMetadata": true,
	}
	if pf := pineconeFilter(filter); pf != nil {
		body["filter"] = pf
	}
	var result struct {
		Matches []struct {
			ID       string   `json:"id"`
			Score    float32  `json:"score"`
			Metadata Metadata `json:"metadata"`
		} `json:"matches"`
	}
	if err := p.do(ctx, http.MethodPost, "/query", body, &result); err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(result.Matches))
	for _, m := range result.Matches {
		matches = append(matches, Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

func (p *Pinecone) Fetch(ctx context.Context, partition, id string) (Record, error) {
	q := url.Values{}
	q.Set("ids", id)
	q.Set("namespace", partition)
	var result struct {
		Vectors map[string]pineconeVector `json:"vectors"`
	}
	if err := p.do(ctx, http.MethodGet, "/vectors/fetch?"+q.Encode(), nil, &result); err != nil {
		return Record{}, err
	}
	v, ok := result.Vectors[id]
	if !ok {
		return Record{}, fmt.Errorf("%s/%s: %w", partition, id, ErrNotFound)
	}
	return Record{ID: v.ID, Vector: v.Values, Metadata: v.Metadata}, nil
}

func (p *Pinecone) Health(ctx context.Context) error {
	if err := p.do(ctx, http.MethodPost, "/describe_index_stats", map[string]any{}, nil); err != nil {
		return fmt.Errorf("pinecone health check failed: %w", err)
	}
	return nil
}
