// Package retention expires archived cases and audit history once their
// retention window has elapsed. Purges run as asynq tasks on a schedule, or
// directly from casectl.
package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskPurgeArchive = "retention:purge-archive"
	TaskPurgeAudit   = "retention:purge-audit"
)

// Tasks lists every retention task type.
func Tasks() []string {
	return []string{TaskPurgeArchive, TaskPurgeAudit}
}

// uniqueFor keeps repeated enqueues of the same purge from piling up while one
// is pending.
const uniqueFor = 10 * time.Minute

func newTask(taskType string) *asynq.Task {
	return asynq.NewTask(taskType, nil, asynq.MaxRetry(3), asynq.Unique(uniqueFor))
}

// Enqueue schedules an immediate run of taskType. A run that is already
// pending satisfies the request.
func Enqueue(ctx context.Context, client *asynq.Client, taskType string) error {
	if _, err := client.EnqueueContext(ctx, newTask(taskType)); err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

// Register adds every retention task to scheduler, firing once per interval.
func Register(scheduler *asynq.Scheduler, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("retention interval must be positive, got %s", interval)
	}
	spec := "@every " + interval.String()
	for _, taskType := range Tasks() {
		if _, err := scheduler.Register(spec, newTask(taskType)); err != nil {
			return fmt.Errorf("register %s: %w", taskType, err)
		}
	}
	return nil
}
