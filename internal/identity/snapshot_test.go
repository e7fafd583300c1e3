package identity_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finquery/finquery/internal/identity"
	"github.com/finquery/finquery/internal/shared"
	_ "github.com/finquery/finquery/testing"
)

type countingRepo struct {
	mu        sync.Mutex
	listCalls int
	failList  bool

	roles       []identity.Role
	departments []identity.Department
}

func (c *countingRepo) GetUserByID(ctx context.Context, id string) (*identity.User, error) {
	return nil, shared.ErrNotFound
}

func (c *countingRepo) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	return nil, shared.ErrNotFound
}

func (c *countingRepo) CreateUser(ctx context.Context, user identity.User) (*identity.User, error) {
	return nil, errors.New("not implemented")
}

func (c *countingRepo) ListRoles(ctx context.Context) ([]identity.Role, error) {
	c.mu.Lock()
	c.listCalls++
	fail := c.failList
	c.mu.Unlock()
	if fail {
		return nil, errors.New("store down")
	}
	return c.roles, nil
}

func (c *countingRepo) ListDepartments(ctx context.Context) ([]identity.Department, error) {
	return c.departments, nil
}

func (c *countingRepo) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

func fixtureRepo() *countingRepo {
	return &countingRepo{
		roles: []identity.Role{{
			ID: "role-hr-junior", Name: "HR Junior", Priority: 30,
			Permissions: []identity.Permission{
				{Kind: identity.KindTable, Resource: "client", Action: identity.ActionAllow},
				{Kind: identity.KindTable, Resource: "trans", Action: identity.ActionDeny},
			},
		}},
		departments: []identity.Department{{
			ID: "dept-hr", Name: "Human Resources",
			AllowedTables: []string{"client", "account"},
		}},
	}
}

func snapshotLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSnapshotLoadCachesInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := fixtureRepo()
	loader := identity.NewSnapshotLoader(repo, client, 30*time.Second, snapshotLogger())
	ctx := context.Background()

	first, err := loader.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, first.RolesByID, "role-hr-junior")
	require.Contains(t, first.DepartmentsByID, "dept-hr")
	assert.Equal(t, 1, repo.calls())

	// Second load is served from the cache.
	second, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls())
	assert.Equal(t, first.RolesByID["role-hr-junior"].Permissions, second.RolesByID["role-hr-junior"].Permissions)

	// Once the TTL passes, the next load refetches.
	mr.FastForward(31 * time.Second)
	_, err = loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls())
}

func TestSnapshotInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := fixtureRepo()
	loader := identity.NewSnapshotLoader(repo, client, 30*time.Second, snapshotLogger())
	ctx := context.Background()

	_, err := loader.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls())

	loader.Invalidate(ctx)

	_, err = loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls())
}

func TestSnapshotDegradesWithoutRedis(t *testing.T) {
	repo := fixtureRepo()
	loader := identity.NewSnapshotLoader(repo, nil, 30*time.Second, snapshotLogger())

	for i := 0; i < 3; i++ {
		snap, err := loader.Load(context.Background())
		require.NoError(t, err)
		assert.Contains(t, snap.RolesByID, "role-hr-junior")
	}
	// No cache means every load hits the repository.
	assert.Equal(t, 3, repo.calls())
}

func TestSnapshotRepoFailure(t *testing.T) {
	repo := fixtureRepo()
	repo.failList = true
	loader := identity.NewSnapshotLoader(repo, nil, 30*time.Second, snapshotLogger())

	_, err := loader.Load(context.Background())
	assert.Error(t, err)
}
