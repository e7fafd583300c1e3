package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/finquery/finquery/internal/audit"
	"github.com/finquery/finquery/internal/chat"
)

// AuditRetentionJob deletes audit events past the retention window.
type AuditRetentionJob struct {
	repo   audit.Repository
	logger *slog.Logger
}

// NewAuditRetentionJob constructs the job.
func NewAuditRetentionJob(repo audit.Repository, logger *slog.Logger) *AuditRetentionJob {
	return &AuditRetentionJob{repo: repo, logger: logger}
}

// Handle processes TaskAuditRetention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		return asynq.SkipRetry
	}
	cutoff := time.Now().UTC().Add(-payload.Retention)
	deleted, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	j.logger.Info("audit retention",
		slog.Time("cutoff", cutoff),
		slog.Int64("deleted", deleted))
	return nil
}

// ChatPruneJob removes conversations idle past the configured window.
type ChatPruneJob struct {
	service *chat.Service
	logger  *slog.Logger
}

// NewChatPruneJob constructs the job.
func NewChatPruneJob(service *chat.Service, logger *slog.Logger) *ChatPruneJob {
	return &ChatPruneJob{service: service, logger: logger}
}

// Handle processes TaskChatPrune tasks.
func (j *ChatPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ChatPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MaxIdle <= 0 {
		return asynq.SkipRetry
	}
	deleted, err := j.service.PruneIdle(ctx, payload.MaxIdle)
	if err != nil {
		return err
	}
	j.logger.Info("chat prune", slog.Int64("deleted", deleted))
	return nil
}
