// Package memory keeps published lead events in process. It backs the
// "memory" publisher for local runs and is used in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/freelance-lead-finder/internal/lead"
)

var _ lead.Publisher = (*Publisher)(nil)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", fmt.Errorf("publish: empty topic")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns a copy of every recorded publish.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Events returns the lead events published to topic, in publish order.
func (p *Publisher) Events(topic string) []lead.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []lead.Event
	for _, msg := range p.messages {
		if msg.Topic != topic {
			continue
		}
		if evt, ok := msg.Payload.(lead.Event); ok {
			out = append(out, evt)
		}
	}
	return out
}
