package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kevin-learn/kevin-server/internal/auth"
	"github.com/kevin-learn/kevin-server/internal/exercises"
	"github.com/kevin-learn/kevin-server/internal/observability"
	"github.com/kevin-learn/kevin-server/internal/solutions"
	"github.com/kevin-learn/kevin-server/internal/users"
	"github.com/kevin-learn/kevin-server/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	ExercisesHandler *exercises.Handler
	SolutionsHandler *solutions.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with the server defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.AuthHandler.MountRoutes(r)
	r.Route("/user", params.UsersHandler.MountRoutes)
	r.Route("/exercise", params.ExercisesHandler.MountRoutes)
	r.Route("/solution", params.SolutionsHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
