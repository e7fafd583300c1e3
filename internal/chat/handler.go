package chat

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/finquery/finquery/internal/authz"
	"github.com/finquery/finquery/internal/platform/httpx"
	"github.com/finquery/finquery/internal/shared"
)

// Handler wires conversation endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers conversation routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listConversations)
	r.Post("/", h.createConversation)
	r.Delete("/{conversationID}", h.deleteConversation)
	r.Get("/{conversationID}/messages", h.listMessages)
	r.Post("/{conversationID}/messages", h.appendMessage)
}

type conversationResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	CreatedAt     string `json:"createdAt"`
	LastMessageAt string `json:"lastMessageAt"`
}

type createConversationRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type appendMessageRequest struct {
	Type        string           `json:"type" validate:"required,oneof=user assistant"`
	Content     string           `json:"content" validate:"required"`
	SQL         string           `json:"sql"`
	ResultCount int              `json:"resultCount"`
	Results     []map[string]any `json:"results"`
	ExecutionMs int64            `json:"executionMs"`
	Error       string           `json:"error"`
}

type messageResponse struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Content     string           `json:"content"`
	SQL         string           `json:"sql,omitempty"`
	ResultCount int              `json:"resultCount,omitempty"`
	Results     []map[string]any `json:"results,omitempty"`
	ExecutionMs int64            `json:"executionMs,omitempty"`
	Error       string           `json:"error,omitempty"`
	Timestamp   string           `json:"timestamp"`
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	conversations, err := h.service.ListConversations(r.Context(), principal.User.ID)
	if err != nil {
		h.logger.Error("list conversations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, toConversationResponse(conv))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"conversations": out})
}

func (h *Handler) createConversation(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	var req createConversationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing prompt")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "missing prompt")
		return
	}
	conv, err := h.service.StartConversation(r.Context(), principal.User.ID, req.Prompt)
	if err != nil {
		h.logger.Error("create conversation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toConversationResponse(*conv))
}

func (h *Handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	err := h.service.DeleteConversation(r.Context(), principal.User.ID, chi.URLParam(r, "conversationID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	messages, err := h.service.Messages(r.Context(), principal.User.ID, chi.URLParam(r, "conversationID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	out := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageResponse{
			ID:          msg.ID,
			Type:        string(msg.Type),
			Content:     msg.Content,
			SQL:         msg.SQL,
			ResultCount: msg.ResultCount,
			Results:     msg.Results,
			ExecutionMs: msg.ExecutionMs,
			Error:       msg.Error,
			Timestamp:   msg.Timestamp.Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (h *Handler) appendMessage(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	var req appendMessageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid message body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	msg, err := h.service.Append(r.Context(), principal.User.ID, Message{
		ConversationID: chi.URLParam(r, "conversationID"),
		Type:           MessageType(req.Type),
		Content:        req.Content,
		SQL:            req.SQL,
		ResultCount:    req.ResultCount,
		Results:        req.Results,
		ExecutionMs:    req.ExecutionMs,
		Error:          req.Error,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": msg.ID})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrNotOwner):
		httpx.RespondError(w, httpx.ErrForbidden)
	default:
		h.logger.Error("chat handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toConversationResponse(conv Conversation) conversationResponse {
	return conversationResponse{
		ID:            conv.ID,
		Title:         conv.Title,
		CreatedAt:     conv.CreatedAt.Format(time.RFC3339),
		LastMessageAt: conv.LastMessageAt.Format(time.RFC3339),
	}
}
