package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one observed status transition for a job, recorded as it
// happens so a client can see the timeline leading to a terminal status
// rather than only the current snapshot (supplement to spec C8's
// queue-depth observability).
type Event struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

func eventsKey(id string) string { return "job:" + id + ":events" }

// recordEvent appends a status-transition event to the job's event list,
// trimming it to the most recent 50 entries and matching the job
// record's own TTL so the two never diverge.
func (b *RedisBroker) recordEvent(ctx context.Context, id string, status Status) {
	data, err := json.Marshal(Event{Status: status, At: time.Now().UTC()})
	if err != nil {
		return
	}

	key := eventsKey(id)
	pipe := b.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -50, -1)
	if status.Terminal() {
		pipe.Expire(ctx, key, b.cfg.ResultTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		// Best-effort: the event timeline is a diagnostic convenience,
		// never the source of truth for status (that's the job hash).
		return
	}
}

// ListEvents returns the recorded status-transition timeline for id, in
// the order they were observed. Returns an empty slice, not an error, for
// a job with no recorded events (either none yet, or the id is unknown).
func (b *RedisBroker) ListEvents(ctx context.Context, id string) ([]Event, error) {
	raw, err := b.client.LRange(ctx, eventsKey(id), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("broker: list events failed: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var e Event
		if err := json.Unmarshal([]byte(r), &e); err == nil {
			events = append(events, e)
		}
	}
	return events, nil
}
