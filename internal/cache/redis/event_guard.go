package redis

import (
	"context"
	"fmt"
	"time"
)

const eventGuardTTL = 24 * time.Hour

// EventGuard remembers processed webhook event ids so redelivered events can
// be acknowledged without re-running the workflow. It is a first-line
// optimization only: the database-level idempotency checks remain the real
// guard, so callers fail open when Redis is unavailable.
type EventGuard struct {
	client *Client
}

func NewEventGuard(c *Client) *EventGuard {
	return &EventGuard{client: c}
}

func eventKey(eventID string) string {
	return "webhook:event:" + eventID
}

// MarkProcessed records the event id if it has not been seen inside the TTL.
// It returns true when this is the first delivery.
func (g *EventGuard) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	first, err := g.client.rdb.SetNX(ctx, eventKey(eventID), time.Now().UTC().Format(time.RFC3339), eventGuardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: mark event processed: %w", err)
	}
	return first, nil
}

// Forget clears the processed marker, letting a redelivery re-run the
// workflow. Used when processing failed after the marker was set.
func (g *EventGuard) Forget(ctx context.Context, eventID string) error {
	if err := g.client.rdb.Del(ctx, eventKey(eventID)).Err(); err != nil {
		return fmt.Errorf("redis: forget event: %w", err)
	}
	return nil
}
