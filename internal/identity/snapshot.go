package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const snapshotCacheKey = "identity:snapshot"

// snapshotPayload is the cache wire format for a Snapshot.
type snapshotPayload struct {
	Roles       []Role       `json:"roles"`
	Departments []Department `json:"departments"`
}

// SnapshotLoader fetches the roles/departments snapshot for a request,
// serving from Redis when fresh and collapsing concurrent misses into
// a single repository round trip.
type SnapshotLoader struct {
	repo   Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewSnapshotLoader constructs a loader. A nil client disables caching.
func NewSnapshotLoader(repo Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *SnapshotLoader {
	if ttl <= 0 || ttl > time.Minute {
		ttl = 30 * time.Second
	}
	return &SnapshotLoader{repo: repo, client: client, ttl: ttl, logger: logger}
}

// Load returns the current snapshot. Redis failures degrade to a
// direct repository fetch.
func (l *SnapshotLoader) Load(ctx context.Context) (Snapshot, error) {
	if l.client != nil {
		payload, err := l.client.Get(ctx, snapshotCacheKey).Bytes()
		if err == nil {
			var cached snapshotPayload
			if err := json.Unmarshal(payload, &cached); err == nil {
				return buildSnapshot(cached), nil
			}
		} else if err != redis.Nil && l.logger != nil {
			l.logger.Warn("snapshot cache read", slog.Any("error", err))
		}
	}

	value, err, _ := l.group.Do(snapshotCacheKey, func() (any, error) {
		return l.fetch(ctx)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return value.(Snapshot), nil
}

// Invalidate drops the cached snapshot, forcing the next Load to hit
// the repository.
func (l *SnapshotLoader) Invalidate(ctx context.Context) {
	if l.client == nil {
		return
	}
	if err := l.client.Del(ctx, snapshotCacheKey).Err(); err != nil && l.logger != nil {
		l.logger.Warn("snapshot cache invalidate", slog.Any("error", err))
	}
}

func (l *SnapshotLoader) fetch(ctx context.Context) (Snapshot, error) {
	roles, err := l.repo.ListRoles(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	departments, err := l.repo.ListDepartments(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	payload := snapshotPayload{Roles: roles, Departments: departments}

	if l.client != nil {
		if raw, err := json.Marshal(payload); err == nil {
			if err := l.client.Set(ctx, snapshotCacheKey, raw, l.ttl).Err(); err != nil && l.logger != nil {
				l.logger.Warn("snapshot cache write", slog.Any("error", err))
			}
		}
	}
	return buildSnapshot(payload), nil
}

func buildSnapshot(payload snapshotPayload) Snapshot {
	snap := Snapshot{
		RolesByID:       make(map[string]Role, len(payload.Roles)),
		DepartmentsByID: make(map[string]Department, len(payload.Departments)),
	}
	for _, role := range payload.Roles {
		snap.RolesByID[role.ID] = role
	}
	for _, dept := range payload.Departments {
		snap.DepartmentsByID[dept.ID] = dept
	}
	return snap
}
