// Package memory records phase notices in-memory for tests and dry runs.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Publisher keeps every notice together with the JSON body Pub/Sub would carry.
type Publisher struct {
	logger *zap.Logger

	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload any
	// Data is the JSON encoding of Payload.
	Data []byte
}

// New returns a memory Publisher. A non-nil logger receives one info line per
// notice, which is how dry runs surface what would have been sent.
func New(logger ...*zap.Logger) *Publisher {
	p := &Publisher{logger: zap.NewNop()}
	if len(logger) > 0 && logger[0] != nil {
		p.logger = logger[0]
	}
	return p
}

// Publish encodes and records the notice, returning a sequential pseudo ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", errors.New("topic is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	id := fmt.Sprintf("memory-%d", len(p.messages)+1)
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Payload: payload, Data: data})
	p.mu.Unlock()

	p.logger.Info("notice recorded",
		zap.String("topic", topic),
		zap.String("message_id", id),
		zap.ByteString("data", data))
	return id, nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
