package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention prunes old audit log entries.
	TaskAuditRetention = "audit:retention"
	// TaskChatPrune removes idle conversations.
	TaskChatPrune = "chat:prune"
)

// AuditRetentionPayload configures how far back audit logs are kept.
type AuditRetentionPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditRetentionTask constructs an audit retention task.
func NewAuditRetentionTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditRetentionPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// ChatPrunePayload configures the idle cutoff for conversation pruning.
type ChatPrunePayload struct {
	MaxIdle time.Duration `json:"maxIdle"`
}

// NewChatPruneTask constructs a chat prune task.
func NewChatPruneTask(maxIdle time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(ChatPrunePayload{MaxIdle: maxIdle})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChatPrune, data), nil
}
