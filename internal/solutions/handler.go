package solutions

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kevin-learn/kevin-server/internal/auth"
	"github.com/kevin-learn/kevin-server/internal/authz"
	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// Handler manages the /solution endpoint.
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

// MountRoutes registers solution routes. Every route requires a token.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authmw.RequireToken)
	r.Get("/", h.get)
	r.Post("/", h.post)
	r.Delete("/", h.del)
}

type solutionView struct {
	SolutionID       int64  `json:"solution_id"`
	SolutionUser     int64  `json:"solution_user"`
	SolutionExercise int64  `json:"solution_exercise"`
	SolutionDate     string `json:"solution_date"`
	SolutionDuration int64  `json:"solution_duration"`
	SolutionCorrect  bool   `json:"solution_correct"`
	SolutionPending  bool   `json:"solution_pending"`
	SolutionContent  string `json:"solution_content"`
}

func viewOf(s Solution) solutionView {
	return solutionView{
		SolutionID:       s.ID,
		SolutionUser:     s.UserID,
		SolutionExercise: s.ExerciseID,
		SolutionDate:     s.Submitted.UTC().Format(time.RFC3339),
		SolutionDuration: int64(s.Duration / time.Second),
		SolutionCorrect:  s.Correct,
		SolutionPending:  s.Pending,
		SolutionContent:  s.Content,
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	solutionID, err := intParam(q.Get("solution_id"), 0)
	if err != nil {
		httpx.Message(w, http.StatusBadRequest, "ID of the solution is malformed")
		return
	}
	exerciseID, err := intParam(q.Get("solution_exercise"), 0)
	if err != nil {
		httpx.Message(w, http.StatusBadRequest, "ID of the exercise is malformed")
		return
	}
	offset, err := intParam(q.Get("solution_offset"), 0)
	if err != nil || offset < 0 {
		httpx.Message(w, http.StatusBadRequest, "Start index not in range")
		return
	}
	limit, err := intParam(q.Get("solution_limit"), h.service.MaxItems())
	if err != nil || limit < 0 || limit > h.service.MaxItems() {
		httpx.Message(w, http.StatusBadRequest, "Page limit not in range")
		return
	}

	caller, _ := authz.CallerFromContext(r.Context())

	// Without an explicit solution_user the query is scoped to the caller's
	// own submissions; privileged callers see everything.
	var filterUser int64
	req := authz.Request{Caller: caller, Op: authz.OpRead}
	if raw := q.Get("solution_user"); raw != "" {
		v, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			httpx.Message(w, http.StatusBadRequest, "ID of the user is malformed")
			return
		}
		filterUser = v
		req.TargetID = &v
	} else if !caller.Role.Privileged() {
		filterUser = caller.UserID
		req.TargetID = &caller.UserID
	}
	if authz.Authorize(req) != authz.Allow {
		httpx.Message(w, http.StatusForbidden, httpx.MsgNoAccess)
		return
	}

	found, err := h.service.Find(r.Context(), Filter{
		ID:         int64(solutionID),
		UserID:     filterUser,
		ExerciseID: int64(exerciseID),
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		h.logger.Error("find solutions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	result := make(map[int64]solutionView, len(found))
	for _, s := range found {
		result[s.ID] = viewOf(s)
	}
	httpx.JSON(w, http.StatusOK, result)
}

type createSolutionRequest struct {
	SolutionExercise *int64 `json:"solution_exercise" validate:"required"`
	SolutionContent  string `json:"solution_content" validate:"required"`
	SolutionDuration int64  `json:"solution_duration"`
}

type createSolutionResponse struct {
	Message         string `json:"message"`
	SolutionID      int64  `json:"solution_id"`
	SolutionPending bool   `json:"solution_pending"`
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req createSolutionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Exercise and content of the solution are required")
		return
	}

	caller, _ := authz.CallerFromContext(r.Context())
	if authz.Authorize(authz.Request{Caller: caller, Op: authz.OpWriteOwn, TargetID: &caller.UserID}) != authz.Allow {
		httpx.Message(w, http.StatusForbidden, httpx.MsgNoAccess)
		return
	}

	created, err := h.service.Submit(r.Context(), caller.UserID, *req.SolutionExercise,
		req.SolutionContent, time.Duration(req.SolutionDuration)*time.Second)
	if err != nil {
		if errors.Is(err, httpx.ErrValidation) {
			httpx.RespondError(w, err)
			return
		}
		h.logger.Error("submit solution", slog.Any("error", err))
		httpx.Message(w, http.StatusInternalServerError, "An error occurred while submitting the solution")
		return
	}

	httpx.JSON(w, http.StatusCreated, createSolutionResponse{
		Message:         "The solution was submitted successfully",
		SolutionID:      created.ID,
		SolutionPending: created.Pending,
	})
}

type deleteSolutionRequest struct {
	SolutionID *int64 `json:"solution_id" validate:"required"`
}

func (h *Handler) del(w http.ResponseWriter, r *http.Request) {
	var req deleteSolutionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "ID of the solution is missing")
		return
	}

	caller, _ := authz.CallerFromContext(r.Context())

	solution, err := h.service.Get(r.Context(), *req.SolutionID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			httpx.Message(w, http.StatusNotFound, fmt.Sprintf("Solution with solution_id %d does not exist", *req.SolutionID))
			return
		}
		h.logger.Error("get solution", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	op := authz.OpWriteOther
	if solution.UserID == caller.UserID {
		op = authz.OpWriteOwn
	}
	if authz.Authorize(authz.Request{Caller: caller, Op: op, TargetID: &solution.UserID}) != authz.Allow {
		// A denied caller gets the same answer as for a missing id, so the
		// endpoint cannot be used to enumerate other users' solutions.
		httpx.Message(w, http.StatusNotFound, fmt.Sprintf("Solution with solution_id %d does not exist", *req.SolutionID))
		return
	}

	count, err := h.service.Delete(r.Context(), *req.SolutionID)
	if err != nil {
		h.logger.Error("delete solution", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if count == 0 {
		httpx.Message(w, http.StatusNotFound, fmt.Sprintf("Solution with solution_id %d does not exist", *req.SolutionID))
		return
	}
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Successfully deleted solution with solution_id %d", *req.SolutionID))
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
