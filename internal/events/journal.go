package events

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MiriamFinn/cipher-trust-connect/internal/models"
)

// Journal is the durable record of ledger events. Inserts are idempotent on
// seq so a re-flushed batch never duplicates rows.
type Journal struct {
	Pool *pgxpool.Pool
}

func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{Pool: pool}
}

func (j *Journal) Insert(ctx context.Context, ev models.Event) error {
	_, err := j.Pool.Exec(ctx, `
		INSERT INTO ledger_events (seq, kind, payload, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (seq) DO NOTHING
	`, ev.Seq, ev.Kind, ev.Payload, ev.CreatedAt)
	return err
}

func (j *Journal) ListAfter(ctx context.Context, afterSeq int64, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.Pool.Query(ctx, `
		SELECT seq, kind, payload, created_at
		FROM ledger_events
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2
	`, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evs []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.Seq, &ev.Kind, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}
