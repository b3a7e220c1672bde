package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process Store that scores every record by cosine
// similarity. It is meant for tests and single-process runs.
type Memory struct {
	mu         sync.RWMutex
	partitions map[string]*memPartition
}

type memPartition struct {
	records map[string]Record
	order   []string // first-insertion order, used to break score ties
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{partitions: make(map[string]*memPartition)}
}

func cloneRecord(rec Record) Record {
	out := Record{ID: rec.ID, Vector: append([]float32(nil), rec.Vector...)}
	if rec.Metadata != nil {
		out.Metadata = make(Metadata, len(rec.Metadata))
		for k, v := range rec.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func (m *Memory) Upsert(_ context.Context, partition string, rec Record) error {
	if err := ValidateMetadata(rec.Metadata); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partitions[partition]
	if !ok {
		p = &memPartition{records: make(map[string]Record)}
		m.partitions[partition] = p
	}
	if _, exists := p.records[rec.ID]; !exists {
		p.order = append(p.order, rec.ID)
	}
	p.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *Memory) Query(_ context.Context, partition string, vector []float32, topK int, filter *Filter) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.partitions[partition]
	if !ok || topK <= 0 {
		return nil, nil
	}
	matches := make([]Match, 0, len(p.order))
	for _, id := range p.order {
		rec := p.records[id]
		if !filter.Matches(rec.Metadata) {
			continue
		}
		c := cloneRecord(rec)
		matches = append(matches, Match{ID: c.ID, Score: Cosine(vector, rec.Vector), Metadata: c.Metadata})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *Memory) Fetch(_ context.Context, partition, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.partitions[partition]; ok {
		if rec, ok := p.records[id]; ok {
			return cloneRecord(rec), nil
		}
	}
	return Record{}, fmt.Errorf("%s/%s: %w", partition, id, ErrNotFound)
}

func (m *Memory) Health(context.Context) error { return nil }

// Len returns the number of records in partition.
func (m *Memory) Len(partition string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.partitions[partition]; ok {
		return len(p.records)
	}
	return 0
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// length or the dimensions differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
