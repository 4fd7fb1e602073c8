package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/foodtruck-orders/internal/events"
)

var _ events.EventStore = (*Queries)(nil)

// InsertDomainEvent appends an event to the domain_events table.
func (q *Queries) InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	row, err := q.queryRow(ctx, q.sb.Insert("domain_events").
		Columns("topic", "aggregate_id", "payload").
		Values(topic, aggregateID, payload).
		Suffix("RETURNING id, occurred_at"))
	if err != nil {
		return events.Event{}, err
	}
	ev := events.Event{Topic: topic, AggregateID: aggregateID, Payload: payload}
	var id pgtype.UUID
	if err := row.Scan(&id, &ev.OccurredAt); err != nil {
		return events.Event{}, fmt.Errorf("insert domain event: %w", err)
	}
	ev.ID = uuidString(id)
	return ev, nil
}
