package audit

import (
	"context"
	"log/slog"
	"time"
)

// Recorder writes audit events. Write failures are logged and
// swallowed so auditing never fails the request being audited.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Record persists the event, best effort.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.repo == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := r.repo.Insert(ctx, event); err != nil && r.logger != nil {
		r.logger.Error("audit record",
			slog.String("action", string(event.Action)),
			slog.String("user_id", event.UserID),
			slog.Any("error", err))
	}
}

// Service exposes audit reads.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Recent lists the newest events, capped at 200 per page.
func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.repo.ListRecent(ctx, limit)
}
