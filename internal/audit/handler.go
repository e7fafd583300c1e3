package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finquery/finquery/internal/authz"
	"github.com/finquery/finquery/internal/platform/httpx"
)

// Handler exposes the audit trail to administrators.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRecent)
}

type eventResponse struct {
	ID           string   `json:"id"`
	UserID       string   `json:"userId"`
	Action       string   `json:"action"`
	Query        string   `json:"query,omitempty"`
	Tables       []string `json:"tables,omitempty"`
	Success      bool     `json:"success"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	OccurredAt   string   `json:"occurredAt"`
}

func (h *Handler) listRecent(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthenticated)
		return
	}
	if !principal.Permissions.IsAdmin {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list audit events", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, eventResponse{
			ID:           event.ID,
			UserID:       event.UserID,
			Action:       string(event.Action),
			Query:        event.Query,
			Tables:       event.Tables,
			Success:      event.Success,
			ErrorMessage: event.ErrorMessage,
			OccurredAt:   event.OccurredAt.Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": out})
}
