package query_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finquery/finquery/internal/audit"
	"github.com/finquery/finquery/internal/authz"
	"github.com/finquery/finquery/internal/identity"
	"github.com/finquery/finquery/internal/query"
	_ "github.com/finquery/finquery/testing"
)

type stubGenerator struct {
	sql string
	err error

	gotPrompt  string
	gotAllowed []string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, allowedTables []string) (string, error) {
	s.gotPrompt = prompt
	s.gotAllowed = allowedTables
	return s.sql, s.err
}

type stubExecutor struct {
	rows []map[string]any
	err  error

	gotSQL      string
	gotRowLimit int
}

func (s *stubExecutor) Execute(ctx context.Context, sql string, rowLimit int) ([]map[string]any, error) {
	s.gotSQL = sql
	s.gotRowLimit = rowLimit
	return s.rows, s.err
}

type memAuditRepo struct {
	events []audit.Event
}

func (m *memAuditRepo) Insert(ctx context.Context, event audit.Event) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAuditRepo) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return m.events, nil
}

func (m *memAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func hrJuniorPerms() authz.PermissionSet {
	return authz.PermissionSet{
		UserID: "user-3",
		AllowedTables: map[string]struct{}{
			"account": {}, "client": {}, "disp": {}, "district": {},
		},
		DeniedTables: map[string]struct{}{"trans": {}, "loan": {}},
		RowLimit:     authz.DefaultRowLimit,
	}
}

func discardTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGate(gen *stubGenerator, exec *stubExecutor, auditRepo *memAuditRepo) *query.Service {
	logger := discardTestLogger()
	return query.NewService(gen, exec, audit.NewRecorder(auditRepo, logger), logger)
}

func TestRunSuccess(t *testing.T) {
	gen := &stubGenerator{sql: "SELECT * FROM account LIMIT 10"}
	exec := &stubExecutor{rows: []map[string]any{{"account_id": int64(1)}, {"account_id": int64(2)}}}
	auditRepo := &memAuditRepo{}
	user := &identity.User{ID: "user-3", Email: "hr.junior@bank.com"}

	result, err := newGate(gen, exec, auditRepo).Run(context.Background(), user, hrJuniorPerms(), "show accounts")
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM account LIMIT 10", result.SQL)
	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, "show accounts", gen.gotPrompt)
	assert.Equal(t, []string{"account", "client", "disp", "district"}, gen.gotAllowed)
	assert.Equal(t, authz.DefaultRowLimit, exec.gotRowLimit)

	require.Len(t, auditRepo.events, 1)
	assert.Equal(t, audit.ActionQuery, auditRepo.events[0].Action)
	assert.True(t, auditRepo.events[0].Success)
	assert.Equal(t, []string{"account"}, auditRepo.events[0].Tables)
}

func TestRunForbiddenTable(t *testing.T) {
	gen := &stubGenerator{sql: "SELECT * FROM trans JOIN account ON trans.account_id = account.account_id"}
	exec := &stubExecutor{}
	auditRepo := &memAuditRepo{}
	user := &identity.User{ID: "user-3", Email: "hr.junior@bank.com"}

	_, err := newGate(gen, exec, auditRepo).Run(context.Background(), user, hrJuniorPerms(), "show transactions")
	require.Error(t, err)

	var forbidden *query.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, gen.sql, forbidden.SQL)
	assert.Equal(t, []string{"trans"}, forbidden.DeniedTables)
	assert.Equal(t, []string{"account", "client", "disp", "district"}, forbidden.AllowedTables)
	assert.Contains(t, forbidden.Error(), "access denied to tables: trans")
	assert.Contains(t, forbidden.Error(), "Your allowed tables are: account, client, disp, district")

	// The warehouse was never touched.
	assert.Empty(t, exec.gotSQL)

	require.Len(t, auditRepo.events, 1)
	assert.Equal(t, audit.ActionDenied, auditRepo.events[0].Action)
	assert.False(t, auditRepo.events[0].Success)
	assert.Equal(t, []string{"trans"}, auditRepo.events[0].Tables)
}

func TestRunGenerationFailure(t *testing.T) {
	genErr := errors.New("model unavailable")
	gen := &stubGenerator{err: genErr}
	exec := &stubExecutor{}

	_, err := newGate(gen, exec, &memAuditRepo{}).Run(context.Background(), &identity.User{ID: "u"}, hrJuniorPerms(), "anything")

	var generation *query.GenerationError
	require.ErrorAs(t, err, &generation)
	assert.ErrorIs(t, err, genErr)
	assert.Empty(t, exec.gotSQL)
}

func TestRunExecutionFailure(t *testing.T) {
	gen := &stubGenerator{sql: "SELECT * FROM client"}
	execErr := errors.New("relation does not exist")
	exec := &stubExecutor{err: execErr}
	auditRepo := &memAuditRepo{}

	_, err := newGate(gen, exec, auditRepo).Run(context.Background(), &identity.User{ID: "u"}, hrJuniorPerms(), "clients")

	var execution *query.ExecutionError
	require.ErrorAs(t, err, &execution)
	assert.Equal(t, "SELECT * FROM client", execution.SQL)
	assert.ErrorIs(t, err, execErr)

	require.Len(t, auditRepo.events, 1)
	assert.Equal(t, audit.ActionQuery, auditRepo.events[0].Action)
	assert.False(t, auditRepo.events[0].Success)
}

func TestRunAdminUnboundedLimit(t *testing.T) {
	gen := &stubGenerator{sql: "SELECT * FROM trans"}
	exec := &stubExecutor{rows: nil}
	perms := authz.PermissionSet{
		UserID:        "user-1",
		AllowedTables: authz.CatalogSet(),
		DeniedTables:  map[string]struct{}{},
		RowLimit:      authz.RowLimitUnbounded,
		IsAdmin:       true,
	}

	result, err := newGate(gen, exec, &memAuditRepo{}).Run(context.Background(), &identity.User{ID: "user-1"}, perms, "everything")
	require.NoError(t, err)
	assert.Equal(t, 0, exec.gotRowLimit)
	assert.Equal(t, 0, result.RowCount)
}

func TestCleanSQL(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1\n```":  "SELECT 1",
		"```\nSELECT 1\n```":     "SELECT 1",
		"  SELECT 1  ":           "SELECT 1",
		"SELECT 1":               "SELECT 1",
		"```SQL\nSELECT 1\n```":  "SELECT 1",
	}
	for raw, want := range cases {
		assert.Equal(t, want, query.CleanSQL(raw), "raw: %q", raw)
	}
}

func TestBuildPromptRestrictsTables(t *testing.T) {
	prompt := query.BuildPrompt([]string{"account", "district"})

	assert.Contains(t, prompt, "Reference ONLY these tables: account, district")
	assert.Contains(t, prompt, "**account**")
	assert.Contains(t, prompt, "**district**")
	assert.NotContains(t, prompt, "**trans**")
	assert.NotContains(t, prompt, "**client**")
}
