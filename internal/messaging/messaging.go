// Package messaging carries extraction results to the chat transport and
// conversation input from it over a message broker.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Message is a message received from or sent to the broker.
type Message struct {
	Subject  string
	Data     []byte
	Metadata map[string]string
}

// MessageHandler processes a received message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher publishes messages to subjects.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PublishJSON(ctx context.Context, subject string, v any) error
	Close() error
}

// Subscriber receives every message published on a subject.
type Subscriber interface {
	Subscribe(subject string, handler MessageHandler) error
}

// Result statuses published for flushed conversations.
const (
	StatusSaved  = "saved"
	StatusFailed = "failed"
)

// ExtractionResult is published once a buffered conversation was processed.
type ExtractionResult struct {
	ConversationID string    `json:"conversation_id"`
	Status         string    `json:"status"`
	EventID        int64     `json:"event_id,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	// Text is the reply to show the operator.
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationMessage is one chat message or cancel request received from
// the transport.
type ConversationMessage struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text,omitempty"`
}

// NoopPublisher drops every message. It is used when NATS is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return ctx.Err()
}

func (NoopPublisher) PublishJSON(ctx context.Context, subject string, v any) error {
	return ctx.Err()
}

func (NoopPublisher) Close() error { return nil }

// MemoryPublisher keeps published messages in memory.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
}

func (p *MemoryPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Subject: subject, Data: append([]byte(nil), data...)})
	return nil
}

func (p *MemoryPublisher) PublishJSON(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return p.Publish(ctx, subject, data)
}

func (p *MemoryPublisher) Close() error { return nil }

// Messages returns a copy of everything published so far.
func (p *MemoryPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}
