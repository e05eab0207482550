package repository

import (
	"context"
	"fmt"
)

func (r *pgQueries) InsertOutbox(ctx context.Context, event OutboxEvent) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO outbox (event_id, event_type, key, payload, status)
	VALUES ($1, $2, $3, $4, 'new')`, event.EventID, event.Type, event.Key, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert outbox: %w", err)
	}
	return nil
}

func (r *pgQueries) FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, event_id, event_type, key, payload, created_at
	FROM outbox
	WHERE status = 'new'
	ORDER BY id
	LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.Type, &e.Key, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *pgQueries) MarkOutboxProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox SET status = 'processed' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox %d: %w", id, err)
	}
	return nil
}
