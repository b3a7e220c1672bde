/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package v1alpha1

import (
	"fmt"
	"time"
)

// MessageType classifies a Communication.
type MessageType string

const (
	MessageRequest      MessageType = "request"
	MessageResponse     MessageType = "response"
	MessageNotification MessageType = "notification"
	MessageData         MessageType = "data"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageRequest, MessageResponse, MessageNotification, MessageData:
		return true
	}
	return false
}

// ParseMessageType validates a message type string.
func ParseMessageType(s string) (MessageType, error) {
	t := MessageType(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid message type %q (want one of request, response, notification, data)", s)
	}
	return t, nil
}

// Communication is an immutable message from one agent to another.
type Communication struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Message   string      `json:"message"`
	Type      MessageType `json:"type"`
	Data      any         `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessageID builds a communication id from both agent names and the send
// time in milliseconds.
func NewMessageID(from, to string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", Slug(from), Slug(to), now.UnixMilli())
}
