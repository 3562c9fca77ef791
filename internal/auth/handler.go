package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// Handler wires HTTP endpoints for login and logout.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	secure    bool
}

// NewHandler constructs a Handler. secure controls the cookie Secure flag.
func NewHandler(logger *slog.Logger, service *Service, secure bool) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), secure: secure}
}

// MountRoutes registers auth routes on the provided router. Logout requires
// a live token: revoking needs the claims behind it.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(Middleware{Service: h.service, Logger: h.logger}.RequireToken)
		r.Post("/logout", h.handleLogout)
	})
}

type loginRequest struct {
	Mail     string `json:"user_mail" validate:"required,email"`
	Password string `json:"user_pass" validate:"required"`
}

type loginResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
	Role    string `json:"user_role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Mail and password are required")
		return
	}

	ident, token, claims, err := h.service.Authenticate(r.Context(), req.Mail, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpx.Message(w, http.StatusUnauthorized, "Wrong mail or password")
			return
		}
		h.logger.Error("login failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	httpx.JSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		UserID:  ident.ID,
		Role:    ident.Role.String(),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		if err := h.service.Revoke(r.Context(), claims); err != nil {
			h.logger.Error("revoke token", slog.Any("error", err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	httpx.Message(w, http.StatusOK, "Logged out")
}
