package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCacheWarmup pre-populates the authorization caches.
	TaskCacheWarmup = "cache:warmup"
)

// CacheWarmupPayload selects what the warmup pass covers. An empty subject
// list means warm only the shared catalog entries.
type CacheWarmupPayload struct {
	SubjectIDs   []int64 `json:"subject_ids,omitempty"`
	RecentWindow string  `json:"recent_window,omitempty"`
}

// NewCacheWarmupTask constructs an Asynq task. The task carries a unique id
// so a scheduled run and a manual run never merge.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarmup, data, asynq.TaskID(uuid.NewString())), nil
}
