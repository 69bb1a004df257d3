package cache

import (
	"context"
	"fmt"
	"time"
)

// reminderPrefix is the Redis key prefix for sent deadline reminders.
const reminderPrefix = "reminder:sent:"

// MarkReminderSent records that a reminder of kind was sent for taskID.
// It returns false when the reminder was already recorded within ttl.
func (c *Cache) MarkReminderSent(ctx context.Context, taskID, kind string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, reminderKey(taskID, kind), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder: %w", err)
	}
	return ok, nil
}

func reminderKey(taskID, kind string) string {
	return reminderPrefix + kind + ":" + taskID
}
