/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package semantic

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/embedding"
	"github.com/hortator-ai/conclave/internal/vectorstore"
)

// DefaultInboxLimit bounds Receive.
const DefaultInboxLimit = 20

// Bus is the inter-agent message store.
type Bus struct {
	Index    vectorstore.Store
	Embedder embedding.Provider
	Now      func() time.Time
	Limit    int
	Log      logr.Logger
}

// NewBus returns a message bus over index.
func NewBus(index vectorstore.Store, embedder embedding.Provider) *Bus {
	return &Bus{Index: index, Embedder: embedder, Now: time.Now, Limit: DefaultInboxLimit, Log: logr.Discard()}
}

// Send stores a message and returns its id. The stored vector embeds
// "<from> -> <to>: <message>".
func (b *Bus) Send(ctx context.Context, from, to, message string, typ v1alpha1.MessageType, data any) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("invalid message type %q", typ)
	}
	now := time.Now()
	if b.Now != nil {
		now = b.Now()
	}
	id := v1alpha1.NewMessageID(from, to, now)
	msg := v1alpha1.Communication{ID: id, From: from, To: to, Message: message, Type: typ, Data: data, Timestamp: now}
	if err := b.Put(ctx, msg); err != nil {
		return "", err
	}
	b.Log.V(1).Info("Sent message", "id", id, "from", from, "to", to, "type", typ)
	return id, nil
}

// Put writes msg as-is, replacing any record with the same id.
func (b *Bus) Put(ctx context.Context, msg v1alpha1.Communication) error {
	payload, err := encodeJSON(msg.Data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	vec, err := b.Embedder.Embed(ctx, msg.From+" -> "+msg.To+": "+msg.Message)
	if err != nil {
		return fmt.Errorf("embed message: %w", err)
	}
	rec := vectorstore.Record{ID: msg.ID, Vector: vec, Metadata: vectorstore.Metadata{
		"id":        msg.ID,
		"fromAgent": msg.From,
		"toAgent":   msg.To,
		"message":   msg.Message,
		"type":      string(msg.Type),
		"data":      payload,
		"timestamp": formatTime(msg.Timestamp),
	}}
	if err := b.Index.Upsert(ctx, PartitionCommunications, rec); err != nil {
		return fmt.Errorf("upsert message %s: %w", msg.ID, err)
	}
	return nil
}

// Receive returns messages sent by or to agent, ranked by similarity to
// "comunicación <agent>". It is not a queue: nothing is consumed and the
// order is not chronological.
func (b *Bus) Receive(ctx context.Context, agent string) ([]v1alpha1.Communication, error) {
	vec, err := b.Embedder.Embed(ctx, "comunicación "+agent)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	limit := b.Limit
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	filter := &vectorstore.Filter{Should: []vectorstore.Condition{
		vectorstore.Eq("fromAgent", agent),
		vectorstore.Eq("toAgent", agent),
	}}
	matches, err := b.Index.Query(ctx, PartitionCommunications, vec, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return decodeMessages(matches)
}

// Search returns the topK messages most similar to query across all agents.
func (b *Bus) Search(ctx context.Context, query string, topK int) ([]v1alpha1.Communication, error) {
	vec, err := b.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := b.Index.Query(ctx, PartitionCommunications, vec, topK, nil)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return decodeMessages(matches)
}

func decodeMessages(matches []vectorstore.Match) ([]v1alpha1.Communication, error) {
	out := make([]v1alpha1.Communication, 0, len(matches))
	for _, m := range matches {
		data, err := decodeAny(m.Metadata, "data")
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", m.ID, err)
		}
		id := m.Metadata.String("id")
		if id == "" {
			id = m.ID
		}
		out = append(out, v1alpha1.Communication{
			ID:        id,
			From:      m.Metadata.String("fromAgent"),
			To:        m.Metadata.String("toAgent"),
			Message:   m.Metadata.String("message"),
			Type:      v1alpha1.MessageType(m.Metadata.String("type")),
			Data:      data,
			Timestamp: parseTime(m.Metadata, "timestamp"),
		})
	}
	return out, nil
}
