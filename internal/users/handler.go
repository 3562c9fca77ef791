package users

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kevin-learn/kevin-server/internal/auth"
	"github.com/kevin-learn/kevin-server/internal/authz"
	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// Handler manages the /user endpoint.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authmw    auth.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authmw: authmw, validator: validator.New()}
}

// MountRoutes registers user routes. Registration carries an optional token:
// a plain signup needs none, creating a privileged account does.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireToken)
		r.Get("/", h.get)
		r.Put("/", h.put)
		r.Delete("/", h.del)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.OptionalToken)
		r.Post("/", h.post)
	})
}

type userView struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
	UserMail string `json:"user_mail"`
	UserRole string `json:"user_role"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID, err := intParam(q.Get("user_id"), 0)
	if err != nil {
		httpx.Message(w, http.StatusBadRequest, "ID of the user is malformed")
		return
	}
	offset, err := intParam(q.Get("user_offset"), 0)
	if err != nil || offset < 0 {
		httpx.Message(w, http.StatusBadRequest, "Start index not in range")
		return
	}
	limit, err := intParam(q.Get("user_limit"), h.service.MaxItems())
	if err != nil || limit < 0 || limit > h.service.MaxItems() {
		httpx.Message(w, http.StatusBadRequest, "Page limit not in range")
		return
	}

	var roleFilter *authz.Role
	if raw := q.Get("user_role"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Message(w, http.StatusBadRequest, "User role not in range")
			return
		}
		role, err := authz.ParseRole(v)
		if err != nil {
			httpx.Message(w, http.StatusBadRequest, "User role not in range")
			return
		}
		roleFilter = &role
	}

	caller, _ := authz.CallerFromContext(r.Context())
	target := int64(userID)
	if authz.Authorize(authz.Request{Caller: caller, Op: authz.OpRead, TargetID: &target}) != authz.Allow {
		httpx.Message(w, http.StatusForbidden, httpx.MsgNoAccess)
		return
	}

	found, err := h.service.Find(r.Context(), Filter{
		ID:     int64(userID),
		Name:   q.Get("user_name"),
		Mail:   q.Get("user_mail"),
		Role:   roleFilter,
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		h.logger.Error("find users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	result := make(map[int64]userView, len(found))
	for _, u := range found {
		result[u.ID] = userView{UserID: u.ID, UserName: u.Name, UserMail: u.Mail, UserRole: u.Role.String()}
	}
	httpx.JSON(w, http.StatusOK, result)
}

type createUserRequest struct {
	UserName string `json:"user_name" validate:"required"`
	UserPass string `json:"user_pass" validate:"required"`
	UserMail string `json:"user_mail" validate:"required,email"`
	UserRole *int   `json:"user_role" validate:"required"`
}

type createUserResponse struct {
	Message  string `json:"message"`
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
	UserMail string `json:"user_mail"`
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Name, credentials, mail and role of the user are required")
		return
	}
	role, err := authz.ParseRole(*req.UserRole)
	if err != nil {
		httpx.Message(w, http.StatusBadRequest, "User role not in range")
		return
	}

	// Self-service signup is open; privileged accounts take the gated path.
	if role.Privileged() {
		caller, ok := authz.CallerFromContext(r.Context())
		if !ok {
			httpx.Message(w, http.StatusUnauthorized, httpx.MsgLoginRequired)
			return
		}
		if authz.Authorize(authz.Request{Caller: caller, Op: authz.OpCreatePrivileged}) != authz.Allow {
			httpx.Message(w, http.StatusForbidden, httpx.MsgNoAccess)
			return
		}
	}

	created, err := h.service.Create(r.Context(), NewUser{
		Name:     req.UserName,
		Password: req.UserPass,
		Mail:     req.UserMail,
		Role:     role,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNameTaken):
			httpx.Message(w, http.StatusConflict, "A user with this name already exists")
		case errors.Is(err, ErrMailTaken):
			httpx.Message(w, http.StatusConflict, "A user with this mail already exists")
		case errors.Is(err, httpx.ErrValidation):
			httpx.RespondError(w, err)
		default:
			h.logger.Error("create user", slog.Any("error", err))
			httpx.Message(w, http.StatusInternalServerError, "An error occurred while creating the user")
		}
		return
	}

	httpx.JSON(w, http.StatusCreated, createUserResponse{
		Message:  "The user was created successfully",
		UserID:   created.ID,
		UserName: created.Name,
		UserMail: created.Mail,
	})
}

type updateUserRequest struct {
	UserID   *int64  `json:"user_id" validate:"required"`
	UserName *string `json:"user_name"`
	UserPass *string `json:"user_pass"`
	UserMail *string `json:"user_mail"`
	UserRole *int    `json:"user_role"`
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "ID of the user is missing")
		return
	}

	patch := Patch{Name: req.UserName, Password: req.UserPass, Mail: req.UserMail}
	if req.UserRole != nil {
		role, err := authz.ParseRole(*req.UserRole)
		if err != nil {
			httpx.Message(w, http.StatusBadRequest, "User role not in range")
			return
		}
		patch.Role = &role
	}

	caller, _ := authz.CallerFromContext(r.Context())
	if authz.Authorize(writeRequest(caller, *req.UserID, patch.Role != nil)) != authz.Allow {
		httpx.Message(w, http.StatusForbidden, httpx.MsgNoAccess)
		return
	}

	count, err := h.service.Update(r.Context(), *req.UserID, patch)
	if err != nil {
		if errors.Is(err, ErrNameTaken) {
			httpx.Message(w, http.StatusConflict, "A user with this name already exists")
			return
		}
		if errors.Is(err, ErrMailTaken) {
			httpx.Message(w, http.StatusConflict, "A user with this mail already exists")
			return
		}
		h.logger.Error("update user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if count == 0 {
		httpx.Message(w, http.StatusNotFound, fmt.Sprintf("User with user_id %d does not exist", *req.UserID))
		return
	}
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Successfully changed user with user_id %d", *req.UserID))
}

type deleteUserRequest struct {
	UserID *int64 `json:"user_id" validate:"required"`
}

func (h *Handler) del(w http.ResponseWriter, r *http.Request) {
	var req deleteUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "ID of the user is missing")
		return
	}

	caller, _ := authz.CallerFromContext(r.Context())
	if authz.Authorize(writeRequest(caller, *req.UserID, false)) != authz.Allow {
		httpx.Message(w, http.StatusForbidden, httpx.MsgNoAccess)
		return
	}

	count, err := h.service.Delete(r.Context(), *req.UserID)
	if err != nil {
		h.logger.Error("delete user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if count == 0 {
		httpx.Message(w, http.StatusNotFound, fmt.Sprintf("User with user_id %d does not exist", *req.UserID))
		return
	}
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Successfully deleted user with user_id %d", *req.UserID))
}

// writeRequest classifies a mutation on a user record for the decision
// engine. A role change is always WriteAdminFlag, even on the caller's own
// record.
func writeRequest(caller authz.Context, targetID int64, changesRole bool) authz.Request {
	op := authz.OpWriteOther
	if changesRole {
		op = authz.OpWriteAdminFlag
	} else if targetID == caller.UserID {
		op = authz.OpWriteOwn
	}
	return authz.Request{Caller: caller, Op: op, TargetID: &targetID}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
