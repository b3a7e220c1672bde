/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hortator-ai/conclave/api/v1alpha1"
)

// Send delivers a message from one agent to another and returns its id. An
// empty type means notification.
func (c *Coordinator) Send(ctx context.Context, from, to, message string, typ v1alpha1.MessageType, data any) (id string, err error) {
	ctx, done := c.observe(ctx, "send_message",
		attribute.String("conclave.from", from), attribute.String("conclave.to", to))
	defer func() { done(&err) }()

	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("%w: from and to are required", ErrInvalid)
	}
	if typ == "" {
		typ = v1alpha1.MessageNotification
	}
	if !typ.Valid() {
		return "", fmt.Errorf("%w: message type %q", ErrInvalid, typ)
	}
	var msg v1alpha1.Communication
	if d, ok := c.Bus.(MessageDeliverer); ok {
		msg, err = d.Deliver(ctx, from, to, message, typ, data)
	} else {
		msg = v1alpha1.Communication{From: from, To: to, Message: message, Type: typ, Data: data, Timestamp: time.Now()}
		msg.ID, err = c.Bus.Send(ctx, from, to, message, typ, data)
	}
	c.record(ctx, from, "message.send", err, map[string]any{"id": msg.ID, "to": to, "type": string(typ)})
	if err != nil {
		return "", err
	}
	c.mirrorMessage(ctx, msg)
	return msg.ID, nil
}

// Inbox returns messages sent by or to agent.
func (c *Coordinator) Inbox(ctx context.Context, agent string) (msgs []v1alpha1.Communication, err error) {
	ctx, done := c.observe(ctx, "receive_messages", attribute.String("conclave.agent", agent))
	defer func() { done(&err) }()
	return c.Bus.Receive(ctx, agent)
}

// RelatedMessages returns the topK messages most similar to query.
func (c *Coordinator) RelatedMessages(ctx context.Context, query string, topK int) (msgs []v1alpha1.Communication, err error) {
	ctx, done := c.observe(ctx, "related_messages")
	defer func() { done(&err) }()

	if c.Messages == nil {
		return nil, ErrUnsupported
	}
	return c.Messages.Search(ctx, query, boundTopK(topK))
}
