package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gatehouse-io/gatehouse/internal/observability"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/rbac"
	"github.com/gatehouse-io/gatehouse/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Handler    *rbac.Handler
	Metrics    *observability.Metrics
	JobHandler *jobs.Handler
	JobClient  *jobs.Client
}

// NewRouter constructs the chi.Router with Gatehouse defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AdminTokenAuth(params.Logger, params.Config.AdminTokenHash))
		r.Use(SubjectHeaderAuth)
		params.Handler.MountRoutes(r)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		if params.JobClient != nil {
			r.Post("/cache/warm", warmCacheHandler(params.Logger, params.JobClient))
		}
	})

	return r
}

// warmCacheHandler enqueues an on-demand cache warmup run.
func warmCacheHandler(logger *slog.Logger, client *jobs.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload jobs.CacheWarmupPayload
		if r.ContentLength > 0 {
			if err := httpx.DecodeJSON(r, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
				return
			}
		}
		info, err := client.EnqueueCacheWarmup(r.Context(), payload)
		if err != nil {
			logger.Error("enqueue cache warmup", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "could not enqueue warmup")
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": info.ID, "queue": info.Queue})
	}
}
