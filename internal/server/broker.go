package server

import (
	"encoding/json"
	"sync"

	"github.com/playperu/odysseus/internal/hunt"
)

// Broker is an in-process pub/sub for engine events, keyed by participant.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the participant.
func (b *Broker) Subscribe(participant string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[participant] == nil {
		b.subs[participant] = make(map[chan []byte]struct{})
	}
	b.subs[participant][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(participant string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[participant], ch)
	if len(b.subs[participant]) == 0 {
		delete(b.subs, participant)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the participant.
func (b *Broker) Publish(participant string, event hunt.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		// Only a non-finite float can fail, and the engine never emits one.
		return
	}
	b.mu.RLock()
	for ch := range b.subs[participant] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// Notifier routes an attempt's events to the participant's subscribers.
func (b *Broker) Notifier(participant string) hunt.Notifier {
	return hunt.NotifierFunc(func(e hunt.Event) { b.Publish(participant, e) })
}
