package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/finquery/finquery/internal/audit"
	"github.com/finquery/finquery/internal/platform/httpx"
	"github.com/finquery/finquery/internal/token"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	issuer    *token.Issuer
	recorder  *audit.Recorder
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, issuer *token.Issuer, recorder *audit.Recorder) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		issuer:    issuer,
		recorder:  recorder,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/signup", h.handleSignup)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signupRequest struct {
	Email        string   `json:"email" validate:"required,email"`
	Password     string   `json:"password" validate:"required,min=6"`
	Name         string   `json:"name" validate:"required"`
	RoleIDs      []string `json:"roleIds" validate:"required,min=1"`
	DepartmentID string   `json:"departmentId" validate:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "email and password are required")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "invalid email or password")
		return
	}

	signed, err := h.issuer.Sign(user.ID, user.Email, user.RoleIDs, user.DepartmentID)
	if err != nil {
		h.logger.Error("sign token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.recorder.Record(r.Context(), audit.Event{
		UserID:  user.ID,
		Action:  audit.ActionLogin,
		Success: true,
	})

	httpx.JSON(w, http.StatusOK, tokenResponse{
		Token: signed,
		User:  userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "all fields are required")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Signup(r.Context(), req.Email, req.Password, req.Name, req.RoleIDs, req.DepartmentID)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "user with this email already exists")
			return
		}
		h.logger.Error("signup", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	signed, err := h.issuer.Sign(user.ID, user.Email, user.RoleIDs, user.DepartmentID)
	if err != nil {
		h.logger.Error("sign token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	httpx.JSON(w, http.StatusOK, tokenResponse{
		Token: signed,
		User:  userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}
