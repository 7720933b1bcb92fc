package api

import "net/http"

// registerAPIRoutes registers all API endpoints on the given mux
func registerAPIRoutes(mux *http.ServeMux, h *Handler) {
	// Job management
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("POST /api/jobs", h.CreateJobs)
	mux.HandleFunc("GET /api/jobs/stream", h.JobStream)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", h.CancelJob)
	mux.HandleFunc("POST /api/jobs/{id}/pause", h.PauseJob)
	mux.HandleFunc("POST /api/jobs/{id}/resume", h.ResumeJob)
	mux.HandleFunc("POST /api/jobs/{id}/remove", h.RemoveJob)

	// Queue control
	mux.HandleFunc("POST /api/queue/pause", h.PauseQueue)
	mux.HandleFunc("POST /api/queue/resume", h.ResumeQueue)
	mux.HandleFunc("POST /api/queue/cancel", h.CancelJobs)
	mux.HandleFunc("GET /api/queue/export", h.ExportQueue)
	mux.HandleFunc("POST /api/queue/import", h.ImportQueue)

	// Worker pool
	mux.HandleFunc("GET /api/workers", h.GetWorkers)
	mux.HandleFunc("PUT /api/workers", h.UpdateWorkers)

	// Misc
	mux.HandleFunc("GET /api/stats", h.Stats)
}

// NewRouter creates a new HTTP router with all API endpoints
func NewRouter(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	registerAPIRoutes(mux, h)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("downvid API"))
	})

	return mux
}
