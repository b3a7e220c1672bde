/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hortator-ai/conclave/api/v1alpha1"
)

// DefaultInboxLimit bounds Receive.
const DefaultInboxLimit = 20

// Bus is the SQL message store.
type Bus struct {
	DB    *sql.DB
	Now   func() time.Time
	Limit int
}

// Send inserts a message and returns its id.
func (b Bus) Send(ctx context.Context, from, to, message string, typ v1alpha1.MessageType, data any) (string, error) {
	msg, err := b.Deliver(ctx, from, to, message, typ, data)
	return msg.ID, err
}

// Deliver inserts a message and returns it as stored.
func (b Bus) Deliver(ctx context.Context, from, to, message string, typ v1alpha1.MessageType, data any) (v1alpha1.Communication, error) {
	if !typ.Valid() {
		return v1alpha1.Communication{}, fmt.Errorf("invalid message type %q", typ)
	}
	now := time.Now()
	if b.Now != nil {
		now = b.Now()
	}
	payload, err := nullableJSON(data)
	if err != nil {
		return v1alpha1.Communication{}, fmt.Errorf("encode payload: %w", err)
	}
	id := v1alpha1.NewMessageID(from, to, now)
	_, err = b.DB.ExecContext(ctx,
		`INSERT INTO communications(id, from_agent, to_agent, message, type, data_json, created_at) VALUES (?,?,?,?,?,?,?)`,
		id, from, to, message, string(typ), payload, nanos(now))
	if err != nil {
		var n int
		if b.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM communications WHERE id=?`, id).Scan(&n) == nil && n > 0 {
			return v1alpha1.Communication{}, fmt.Errorf("message %s: %w: id already exists", id, ErrConflict)
		}
		return v1alpha1.Communication{}, fmt.Errorf("insert message: %w", err)
	}
	return v1alpha1.Communication{
		ID: id, From: from, To: to, Message: message, Type: typ, Data: data, Timestamp: fromNanos(nanos(now)),
	}, nil
}

// Receive returns messages sent by or to agent, newest first.
func (b Bus) Receive(ctx context.Context, agent string) ([]v1alpha1.Communication, error) {
	limit := b.Limit
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	rows, err := b.DB.QueryContext(ctx,
		`SELECT id, from_agent, to_agent, message, type, data_json, created_at FROM communications
		 WHERE from_agent=? OR to_agent=? ORDER BY created_at DESC, seq DESC LIMIT ?`,
		agent, agent, limit)
	if err != nil {
		return nil, fmt.Errorf("receive messages: %w", err)
	}
	defer rows.Close()
	out := []v1alpha1.Communication{}
	for rows.Next() {
		var (
			c    v1alpha1.Communication
			typ  string
			data sql.NullString
			at   int64
		)
		if err := rows.Scan(&c.ID, &c.From, &c.To, &c.Message, &typ, &data, &at); err != nil {
			return nil, err
		}
		c.Type = v1alpha1.MessageType(typ)
		c.Timestamp = fromNanos(at)
		if c.Data, err = decodeNullAny(data); err != nil {
			return nil, fmt.Errorf("message %s payload: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
