package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/finquery/finquery/internal/audit"
	"github.com/finquery/finquery/internal/authz"
	"github.com/finquery/finquery/internal/identity"
	"github.com/finquery/finquery/internal/sqlparse"
)

// ForbiddenError reports generated SQL touching tables outside the
// caller's allowed set. The SQL is kept for transparency even though
// it was never executed.
type ForbiddenError struct {
	SQL           string
	DeniedTables  []string
	AllowedTables []string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("access denied to tables: %s. Your allowed tables are: %s",
		strings.Join(e.DeniedTables, ", "), strings.Join(e.AllowedTables, ", "))
}

// GenerationError wraps a failure from the SQL generation collaborator.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "sql generation failed: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }

// ExecutionError wraps a failure from the warehouse. The generated SQL
// is still surfaced to the caller for debugging.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string { return "query execution failed: " + e.Err.Error() }
func (e *ExecutionError) Unwrap() error { return e.Err }

// Result is a successful gate outcome.
type Result struct {
	SQL         string
	Rows        []map[string]any
	RowCount    int
	ExecutionMs int64
}

// Service is the authorization gate around SQL generation and
// execution: generation is constrained to the resolved allowed set,
// the generated SQL is validated against it, and only validated SQL
// reaches the warehouse.
type Service struct {
	generator Generator
	executor  Executor
	recorder  *audit.Recorder
	logger    *slog.Logger
}

// NewService constructs the gate.
func NewService(generator Generator, executor Executor, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{generator: generator, executor: executor, recorder: recorder, logger: logger}
}

// Run takes an authenticated caller through generation, validation and
// execution. The three external calls happen sequentially: each step's
// output gates the next.
func (s *Service) Run(ctx context.Context, user *identity.User, perms authz.PermissionSet, prompt string) (Result, error) {
	allowed := perms.AllowedList()

	sql, err := s.generator.Generate(ctx, prompt, allowed)
	if err != nil {
		return Result{}, &GenerationError{Err: err}
	}

	referenced := sqlparse.ExtractTables(sql)
	if deniedTables := perms.CheckTables(referenced); len(deniedTables) > 0 {
		s.logger.Warn("query denied",
			slog.String("user_id", user.ID),
			slog.String("email", user.Email),
			slog.Any("requested_tables", sqlparse.Sorted(referenced)),
			slog.Any("denied_tables", deniedTables),
			slog.Any("allowed_tables", allowed))
		s.recorder.Record(ctx, audit.Event{
			UserID:       user.ID,
			Action:       audit.ActionDenied,
			Query:        sql,
			Tables:       deniedTables,
			Success:      false,
			ErrorMessage: "forbidden table access",
		})
		return Result{}, &ForbiddenError{SQL: sql, DeniedTables: deniedTables, AllowedTables: allowed}
	}

	rowLimit := perms.RowLimit
	if perms.IsAdmin {
		rowLimit = 0
	}

	started := time.Now()
	rows, err := s.executor.Execute(ctx, sql, rowLimit)
	if err != nil {
		s.recorder.Record(ctx, audit.Event{
			UserID:       user.ID,
			Action:       audit.ActionQuery,
			Query:        sql,
			Tables:       sqlparse.Sorted(referenced),
			Success:      false,
			ErrorMessage: err.Error(),
		})
		return Result{}, &ExecutionError{SQL: sql, Err: err}
	}

	s.recorder.Record(ctx, audit.Event{
		UserID:  user.ID,
		Action:  audit.ActionQuery,
		Query:   sql,
		Tables:  sqlparse.Sorted(referenced),
		Success: true,
	})

	return Result{
		SQL:         sql,
		Rows:        rows,
		RowCount:    len(rows),
		ExecutionMs: time.Since(started).Milliseconds(),
	}, nil
}
