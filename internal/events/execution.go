// Package events fans out execution progress to interested consumers.
package events

import (
	"sync"
	"time"
)

// Kind classifies an ExecutionEvent.
type Kind string

const (
	// KindTick a scan tick finished with a decision.
	KindTick Kind = "tick"
	// KindTransition the orchestrator moved to a new state.
	KindTransition Kind = "transition"
)

// ExecutionEvent is a domain event describing scan outcomes and state transitions.
// Uses string fields to avoid float precision issues when consumed by web/UI layers.
type ExecutionEvent struct {
	Timestamp time.Time `json:"ts"`
	Kind      Kind      `json:"kind"`
	Pair      string    `json:"pair"`
	State     string    `json:"state,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	BuyVenue  string    `json:"buy_venue,omitempty"`
	SellVenue string    `json:"sell_venue,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	NetProfit string    `json:"net_profit,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Broadcaster fans out events to all subscribers via buffered channels.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan ExecutionEvent]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan ExecutionEvent]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping if a reader is slow.
func (b *Broadcaster) Publish(e ExecutionEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *Broadcaster) Subscribe() chan ExecutionEvent {
	ch := make(chan ExecutionEvent, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan ExecutionEvent) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
