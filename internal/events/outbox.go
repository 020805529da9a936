package events

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/MiriamFinn/cipher-trust-connect/internal/models"
)

// Outbox buffers committed ledger events until the drain worker flushes them
// to the journal and the websocket feed. Emit is called inside serialized
// ledger operations, so sequence numbers follow commit order.
type Outbox struct {
	mu      sync.Mutex
	seq     int64
	pending []models.Event
	now     func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{now: func() time.Time { return time.Now().UTC() }}
}

func (o *Outbox) Emit(kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("outbox: drop %s event: %v", kind, err)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	o.pending = append(o.pending, models.Event{
		Seq:       o.seq,
		Kind:      kind,
		Payload:   data,
		CreatedAt: o.now(),
	})
}

// Drain removes and returns up to max pending events in emit order.
func (o *Outbox) Drain(max int) []models.Event {
	o.mu.Lock()
	defer o.mu.Unlock()

	if max <= 0 || max > len(o.pending) {
		max = len(o.pending)
	}
	if max == 0 {
		return nil
	}
	batch := make([]models.Event, max)
	copy(batch, o.pending[:max])
	o.pending = o.pending[max:]
	return batch
}

// Requeue puts events back at the front after a failed flush.
func (o *Outbox) Requeue(evs []models.Event) {
	if len(evs) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(append([]models.Event{}, evs...), o.pending...)
}
