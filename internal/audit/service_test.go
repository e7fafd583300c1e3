package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finquery/finquery/internal/audit"
	"github.com/finquery/finquery/internal/authz"
	"github.com/finquery/finquery/internal/identity"
	_ "github.com/finquery/finquery/testing"
)

type fakeAuditRepo struct {
	events    []audit.Event
	insertErr error
	lastLimit int
}

func (f *fakeAuditRepo) Insert(ctx context.Context, event audit.Event) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditRepo) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	f.lastLimit = limit
	if limit > len(f.events) {
		limit = len(f.events)
	}
	return f.events[:limit], nil
}

func (f *fakeAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var kept []audit.Event
	var removed int64
	for _, event := range f.events {
		if event.OccurredAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, event)
	}
	f.events = kept
	return removed, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderStampsTime(t *testing.T) {
	repo := &fakeAuditRepo{}
	recorder := audit.NewRecorder(repo, testLogger())

	recorder.Record(context.Background(), audit.Event{UserID: "user-1", Action: audit.ActionLogin, Success: true})

	require.Len(t, repo.events, 1)
	assert.False(t, repo.events[0].OccurredAt.IsZero())
}

func TestRecorderSwallowsFailures(t *testing.T) {
	repo := &fakeAuditRepo{insertErr: errors.New("store down")}
	recorder := audit.NewRecorder(repo, testLogger())

	// Must not panic or propagate; auditing never fails the request.
	recorder.Record(context.Background(), audit.Event{UserID: "user-1", Action: audit.ActionQuery})

	var nilRecorder *audit.Recorder
	nilRecorder.Record(context.Background(), audit.Event{UserID: "user-1"})
}

func TestRecentClampsLimit(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := audit.NewService(repo)
	ctx := context.Background()

	_, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, repo.lastLimit)

	_, err = svc.Recent(ctx, 10_000)
	require.NoError(t, err)
	assert.Equal(t, 200, repo.lastLimit)

	_, err = svc.Recent(ctx, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, repo.lastLimit)
}

func newAuditRouter(repo *fakeAuditRepo, principal *authz.Principal) chi.Router {
	handler := audit.NewHandler(testLogger(), audit.NewService(repo))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if principal != nil {
				ctx = authz.ContextWithPrincipal(ctx, principal)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	handler.MountRoutes(r)
	return r
}

func TestListRecentAdminOnly(t *testing.T) {
	repo := &fakeAuditRepo{events: []audit.Event{
		{ID: "evt-1", UserID: "user-3", Action: audit.ActionDenied, OccurredAt: time.Now()},
	}}

	admin := &authz.Principal{
		User:        &identity.User{ID: "user-1"},
		Permissions: authz.PermissionSet{UserID: "user-1", IsAdmin: true},
	}
	analyst := &authz.Principal{
		User:        &identity.User{ID: "user-4"},
		Permissions: authz.PermissionSet{UserID: "user-4"},
	}

	rec := httptest.NewRecorder()
	newAuditRouter(repo, admin).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "evt-1")

	rec = httptest.NewRecorder()
	newAuditRouter(repo, analyst).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	newAuditRouter(repo, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
