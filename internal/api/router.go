package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/spectraml/spectrajobs/internal/api/middleware"
	"github.com/spectraml/spectrajobs/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	WorkerAuth *mw.WorkerAuth
	RateLimit  *mw.RateLimit

	HealthHandler http.HandlerFunc

	InitializeJob http.HandlerFunc
	RetrieveJob   http.HandlerFunc
	EditJob       http.HandlerFunc
	RemoveJob     http.HandlerFunc
	ProcessJob    http.HandlerFunc
	EndJob        http.HandlerFunc
	ListJobs      http.HandlerFunc

	InitializeLabelling      http.HandlerFunc
	InitializeLabellingBatch http.HandlerFunc
	RetrieveLabelling        http.HandlerFunc
	EditLabelling            http.HandlerFunc
	EditLabellingBatch       http.HandlerFunc
	ListLabellings           http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
// The worker end-report route is a distinct network-facing operation from
// the client one, but both are served by the same handler so the transition
// rules cannot diverge between the two entry points.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Client-facing routes
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/jobs", orNotImplemented(deps.InitializeJob))
		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobs))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.RetrieveJob))
		r.Patch("/api/v1/jobs/{jobID}", orNotImplemented(deps.EditJob))
		r.Delete("/api/v1/jobs/{jobID}", orNotImplemented(deps.RemoveJob))
		r.Post("/api/v1/jobs/{jobID}/process/{processAction}", orNotImplemented(deps.ProcessJob))
		r.Post("/api/v1/jobs/{jobID}/end/{endAction}", orNotImplemented(deps.EndJob))

		r.Post("/api/v1/labellings", orNotImplemented(deps.InitializeLabelling))
		r.Get("/api/v1/labellings", orNotImplemented(deps.ListLabellings))
		r.Post("/api/v1/labellings/batch", orNotImplemented(deps.InitializeLabellingBatch))
		r.Patch("/api/v1/labellings/batch", orNotImplemented(deps.EditLabellingBatch))
		r.Get("/api/v1/labellings/{labellingID}", orNotImplemented(deps.RetrieveLabelling))
		r.Patch("/api/v1/labellings/{labellingID}", orNotImplemented(deps.EditLabelling))
	})

	// Worker-facing routes
	r.Group(func(r chi.Router) {
		r.Use(deps.WorkerAuth.Authenticate)

		r.Post("/api/v1/worker/jobs/{jobID}/end/{endAction}", orNotImplemented(deps.EndJob))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
