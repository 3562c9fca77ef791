package exercises

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

// Handler manages the /exercise endpoint.
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

// MountRoutes registers exercise routes. Every route requires a token.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authmw.RequireToken)
	r.Get("/", h.get)
	r.Post("/", h.post)
	r.Put("/", h.put)
	r.Delete("/", h.del)
}

// exerciseView is the read representation. The stored sample solution is
// deliberately absent: listings are visible to every authenticated user.
type exerciseView struct {
	ExerciseID          int64  `json:"exercise_id"`
	ExerciseTitle       string `json:"exercise_title"`
	ExerciseDescription string `json:"exercise_description"`
	ExerciseType        string `json:"exercise_type"`
	ExerciseContent     string `json:"exercise_content"`
	ExerciseLanguage    string `json:"exercise_language"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	exerciseID, err := intParam(q.Get("exercise_id"), 0)
	if err != nil {
		httpx.Message(w, http.StatusBadRequest, "ID of the exercise is malformed")
		return
	}
	offset, err := intParam(q.Get("exercise_offset"), 0)
	if err != nil || offset < 0 {
		httpx.Message(w, http.StatusBadRequest, "Start index not in range")
		return
	}
	limit, err := intParam(q.Get("exercise_limit"), h.service.MaxItems())
	if err != nil || limit < 0 || limit > h.service.MaxItems() {
		httpx.Message(w, http.StatusBadRequest, "Page limit not in range")
		return
	}

	var typeFilter *Type
	if raw := q.Get("exercise_type"); raw != "" {
		v, atoiErr := strconv.Atoi(raw)
		if atoiErr != nil {
			httpx.Message(w, http.StatusBadRequest, "Exercise type not in range")
			return
		}
		t, parseErr := ParseType(v)
		if parseErr != nil {
			httpx.Message(w, http.StatusBadRequest, "Exercise type not in range")
			return
		}
		typeFilter = &t
	}
	var langFilter *Language
	if raw := q.Get("exercise_language"); raw != "" {
		v, atoiErr := strconv.Atoi(raw)
		if atoiErr != nil {
			httpx.Message(w, http.StatusBadRequest, "Exercise language not in range")
			return
		}
		l, parseErr := ParseLanguage(v)
		if parseErr != nil {
			httpx.Message(w, http.StatusBadRequest, "Exercise language not in range")
			return
		}
		langFilter = &l
	}

	caller, _ := authz.CallerFromContext(r.Context())
	if authz.Authorize(authz.Request{Caller: caller, Op: authz.OpRead}) != authz.Allow {
		httpx.Message(w, http.StatusForbidden, httpx.MsgNoAccess)
		return
	}

	found, err := h.service.Find(r.Context(), Filter{
		ID:          int64(exerciseID),
		Title:       q.Get("exercise_title"),
		Description: q.Get("exercise_description"),
		Type:        typeFilter,
		Language:    langFilter,
		Offset:      offset,
		Limit:       limit,
	})
	if err != nil {
		h.logger.Error("find exercises", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	result := make(map[int64]exerciseView, len(found))
	for _, e := range found {
		result[e.ID] = exerciseView{
			ExerciseID:          e.ID,
			ExerciseTitle:       e.Title,
			ExerciseDescription: e.Description,
			ExerciseType:        e.Type.String(),
			ExerciseContent:     e.Content,
			ExerciseLanguage:    e.Language.String(),
		}
	}
	httpx.JSON(w, http.StatusOK, result)
}

type createExerciseRequest struct {
	ExerciseTitle       string `json:"exercise_title" validate:"required"`
	ExerciseDescription string `json:"exercise_description" validate:"required"`
	ExerciseType        *int   `json:"exercise_type" validate:"required"`
	ExerciseContent     string `json:"exercise_content" validate:"required"`
	ExerciseSolution    string `json:"exercise_solution"`
	ExerciseLanguage    *int   `json:"exercise_language" validate:"required"`
}

type createExerciseResponse struct {
	Message       string `json:"message"`
	ExerciseID    int64  `json:"exercise_id"`
	ExerciseTitle string `json:"exercise_title"`
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req createExerciseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Title, description, type, content and language of the exercise are required")
		return
	}
	exType, err := ParseType(*req.ExerciseType)
	if err != nil {
		httpx.Message(w, http.StatusBadRequest, "Exercise type not in range")
		return
	}
	exLang, err := ParseLanguage(*req.ExerciseLanguage)
	if err != nil {
		httpx.Message(w, http.StatusBadRequest, "Exercise language not in range")
		return
	}

	caller, _ := authz.CallerFromContext(r.Context())
	if authz.Authorize(authz.Request{Caller: caller, Op: authz.OpWriteOther}) != authz.Allow {
		httpx.Message(w, http.StatusForbidden, httpx.MsgNoAccess)
		return
	}

	created, err := h.service.Create(r.Context(), Exercise{
		Title:       req.ExerciseTitle,
		Description: req.ExerciseDescription,
		Type:        exType,
		Content:     req.ExerciseContent,
		Solution:    req.ExerciseSolution,
		Language:    exLang,
	})
	if err != nil {
		if errors.Is(err, ErrTitleTaken) {
			httpx.Message(w, http.StatusConflict, "An exercise with this title already exists")
			return
		}
		h.logger.Error("create exercise", slog.Any("error", err))
		httpx.Message(w, http.StatusInternalServerError, "An error occurred while creating the exercise")
		return
	}

	httpx.JSON(w, http.StatusCreated, createExerciseResponse{
		Message:       "The exercise was created successfully",
		ExerciseID:    created.ID,
		ExerciseTitle: created.Title,
	})
}

type updateExerciseRequest struct {
	ExerciseID          *int64  `json:"exercise_id" validate:"required"`
	ExerciseTitle       *string `json:"exercise_title"`
	ExerciseDescription *string `json:"exercise_description"`
	ExerciseType        *int    `json:"exercise_type"`
	ExerciseContent     *string `json:"exercise_content"`
	ExerciseSolution    *string `json:"exercise_solution"`
	ExerciseLanguage    *int    `json:"exercise_language"`
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	var req updateExerciseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "ID of the exercise is missing")
		return
	}

	patch := Patch{
		Title:       req.ExerciseTitle,
		Description: req.ExerciseDescription,
		Content:     req.ExerciseContent,
		Solution:    req.ExerciseSolution,
	}
	if req.ExerciseType != nil {
		t, err := ParseType(*req.ExerciseType)
		if err != nil {
			httpx.Message(w, http.StatusBadRequest, "Exercise type not in range")
			return
		}
		patch.Type = &t
	}
	if req.ExerciseLanguage != nil {
		l, err := ParseLanguage(*req.ExerciseLanguage)
		if err != nil {
			httpx.Message(w, http.StatusBadRequest, "Exercise language not in range")
			return
		}
		patch.Language = &l
	}

	caller, _ := authz.CallerFromContext(r.Context())
	if authz.Authorize(authz.Request{Caller: caller, Op: authz.OpWriteOther}) != authz.Allow {
		httpx.Message(w, http.StatusForbidden, httpx.MsgNoAccess)
		return
	}

	count, err := h.service.Update(r.Context(), *req.ExerciseID, patch)
	if err != nil {
		if errors.Is(err, ErrTitleTaken) {
			httpx.Message(w, http.StatusConflict, "An exercise with this title already exists")
			return
		}
		h.logger.Error("update exercise", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if count == 0 {
		httpx.Message(w, http.StatusNotFound, fmt.Sprintf("Exercise with exercise_id %d does not exist", *req.ExerciseID))
		return
	}
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Successfully changed exercise with exercise_id %d", *req.ExerciseID))
}

type deleteExerciseRequest struct {
	ExerciseID *int64 `json:"exercise_id" validate:"required"`
}

func (h *Handler) del(w http.ResponseWriter, r *http.Request) {
	var req deleteExerciseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "ID of the exercise is missing")
		return
	}

	caller, _ := authz.CallerFromContext(r.Context())
	if authz.Authorize(authz.Request{Caller: caller, Op: authz.OpWriteOther}) != authz.Allow {
		httpx.Message(w, http.StatusForbidden, httpx.MsgNoAccess)
		return
	}

	count, err := h.service.Delete(r.Context(), *req.ExerciseID)
	if err != nil {
		h.logger.Error("delete exercise", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if count == 0 {
		httpx.Message(w, http.StatusNotFound, fmt.Sprintf("Exercise with exercise_id %d does not exist", *req.ExerciseID))
		return
	}
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Successfully deleted exercise with exercise_id %d", *req.ExerciseID))
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
