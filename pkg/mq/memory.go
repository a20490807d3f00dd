package mq

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MemoryBus is an in-process stand-in for the exchange. Delivery is synchronous and
// happens outside the bus lock, so handlers may publish.
type MemoryBus struct {
	mu   sync.RWMutex
	subs []memorySub
}

type memorySub struct {
	binding string
	handler MessageHandler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Subscribe registers handler for every routing key matching binding.
func (b *MemoryBus) Subscribe(binding string, handler MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, memorySub{binding: binding, handler: handler})
}

// Publish has the same contract as Publisher.Publish. Handler errors are dropped
// like a nacked control event.
func (b *MemoryBus) Publish(routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	subs := make([]memorySub, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if TopicMatch(s.binding, routingKey) {
			_ = s.handler(context.Background(), body)
		}
	}
	return nil
}

// TopicMatch reports whether routingKey matches an AMQP topic binding
// ('*' matches one word, '#' matches zero or more).
func TopicMatch(binding, routingKey string) bool {
	return matchWords(strings.Split(binding, "."), strings.Split(routingKey, "."))
}

func matchWords(pattern, words []string) bool {
	if len(pattern) == 0 {
		return len(words) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(words); i++ {
			if matchWords(pattern[1:], words[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(words) > 0 && matchWords(pattern[1:], words[1:])
	default:
		return len(words) > 0 && pattern[0] == words[0] && matchWords(pattern[1:], words[1:])
	}
}
