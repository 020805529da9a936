package worker

import (
	"context"
	"log"
	"time"

	"github.com/MiriamFinn/cipher-trust-connect/internal/events"
	"github.com/MiriamFinn/cipher-trust-connect/internal/models"
)

type EventWriter interface {
	Insert(ctx context.Context, ev models.Event) error
}

type Broadcaster interface {
	Broadcast(ev models.Event)
}

// Worker drains the ledger outbox on a ticker, journaling each batch and
// broadcasting it to websocket subscribers. Journal may be nil (no database
// configured); the feed still runs.
type Worker struct {
	Outbox    *events.Outbox
	Journal   EventWriter
	Hub       Broadcaster
	Interval  time.Duration
	BatchSize int
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		if err := w.DrainOnce(ctx); err != nil {
			log.Printf("event drain error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) DrainOnce(ctx context.Context) error {
	batch := w.Outbox.Drain(w.BatchSize)
	if len(batch) == 0 {
		return nil
	}

	if w.Journal != nil {
		for _, ev := range batch {
			if err := w.Journal.Insert(ctx, ev); err != nil {
				// Requeue the whole batch: inserts are idempotent on seq,
				// and broadcast happens only after the journal succeeds.
				w.Outbox.Requeue(batch)
				return err
			}
		}
	}

	for _, ev := range batch {
		if w.Hub != nil {
			w.Hub.Broadcast(ev)
		}
	}
	log.Printf("drained %d events through seq=%d", len(batch), batch[len(batch)-1].Seq)
	return nil
}
