package query

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/finquery/finquery/internal/authz"
	"github.com/finquery/finquery/internal/chat"
	"github.com/finquery/finquery/internal/platform/httpx"
)

// Handler exposes the gate over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	history   *chat.Service
	validator *validator.Validate
}

// NewHandler constructs a Handler. A nil history disables conversation
// persistence.
func NewHandler(logger *slog.Logger, service *Service, history *chat.Service) *Handler {
	return &Handler{logger: logger, service: service, history: history, validator: validator.New()}
}

// MountRoutes registers query routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleQuery)
}

type queryRequest struct {
	Prompt         string `json:"prompt" validate:"required"`
	ConversationID string `json:"conversationId"`
}

type queryResponse struct {
	SQL           string           `json:"sql"`
	Rows          []map[string]any `json:"rows"`
	RowCount      int              `json:"rowCount"`
	ExecutionMs   int64            `json:"executionMs"`
	Error         *string          `json:"error"`
	DeniedTables  []string         `json:"deniedTables,omitempty"`
	AllowedTables []string         `json:"allowedTables,omitempty"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}

	var req queryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing prompt")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "missing prompt")
		return
	}

	result, err := h.service.Run(r.Context(), principal.User, principal.Permissions, req.Prompt)
	if err != nil {
		var forbidden *ForbiddenError
		if errors.As(err, &forbidden) {
			msg := forbidden.Error()
			h.recordExchange(r, principal.User.ID, req, chat.Message{
				Type:    chat.MessageAssistant,
				Content: msg,
				SQL:     forbidden.SQL,
				Error:   msg,
			})
			httpx.JSON(w, http.StatusForbidden, queryResponse{
				SQL:           forbidden.SQL,
				Rows:          nil,
				Error:         &msg,
				DeniedTables:  forbidden.DeniedTables,
				AllowedTables: forbidden.AllowedTables,
			})
			return
		}
		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			msg := execErr.Error()
			h.recordExchange(r, principal.User.ID, req, chat.Message{
				Type:    chat.MessageAssistant,
				Content: msg,
				SQL:     execErr.SQL,
				Error:   msg,
			})
			httpx.JSON(w, http.StatusInternalServerError, queryResponse{SQL: execErr.SQL, Error: &msg})
			return
		}
		h.logger.Error("run query", slog.Any("error", err))
		msg := err.Error()
		httpx.JSON(w, http.StatusInternalServerError, queryResponse{Error: &msg})
		return
	}

	h.recordExchange(r, principal.User.ID, req, chat.Message{
		Type:        chat.MessageAssistant,
		Content:     result.SQL,
		SQL:         result.SQL,
		ResultCount: result.RowCount,
		Results:     result.Rows,
		ExecutionMs: result.ExecutionMs,
	})

	httpx.JSON(w, http.StatusOK, queryResponse{
		SQL:         result.SQL,
		Rows:        result.Rows,
		RowCount:    result.RowCount,
		ExecutionMs: result.ExecutionMs,
	})
}

// recordExchange appends the prompt and outcome to the conversation
// when the caller named one. History persistence is best effort and
// never changes the query response.
func (h *Handler) recordExchange(r *http.Request, userID string, req queryRequest, reply chat.Message) {
	if h.history == nil || req.ConversationID == "" {
		return
	}
	ctx := r.Context()
	if _, err := h.history.Append(ctx, userID, chat.Message{
		ConversationID: req.ConversationID,
		Type:           chat.MessageUser,
		Content:        req.Prompt,
	}); err != nil {
		h.logger.Warn("record prompt", slog.String("conversation_id", req.ConversationID), slog.Any("error", err))
		return
	}
	reply.ConversationID = req.ConversationID
	if _, err := h.history.Append(ctx, userID, reply); err != nil {
		h.logger.Warn("record reply", slog.String("conversation_id", req.ConversationID), slog.Any("error", err))
	}
}
