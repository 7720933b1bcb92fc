package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/downvid/downvid/internal/config"
	"github.com/downvid/downvid/internal/jobs"
)

// Handler provides HTTP API handlers
type Handler struct {
	queue      *jobs.Queue
	workerPool *jobs.WorkerPool
	cfg        *config.Config
	cfgPath    string
}

// NewHandler creates a new API handler
func NewHandler(queue *jobs.Queue, workerPool *jobs.WorkerPool, cfg *config.Config, cfgPath string) *Handler {
	return &Handler{
		queue:      queue,
		workerPool: workerPool,
		cfg:        cfg,
		cfgPath:    cfgPath,
	}
}

// response helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// jobError maps a queue error to the right HTTP status.
func jobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrJobTerminal):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// ListJobs handles GET /api/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":      h.queue.List(),
		"completed": h.queue.Completed(),
		"stats":     h.queue.GetStats(),
	})
}

// CreateJobs handles POST /api/jobs. The URL may name a playlist; one job
// is created per resolved entry.
func (h *Handler) CreateJobs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL           string   `json:"url"`
		Kind          string   `json:"kind"`
		DestDir       string   `json:"destDir"`
		QualityHeight int      `json:"qualityHeight"`
		AudioQuality  int      `json:"audioQuality"`
		SubsLangs     []string `json:"subsLangs"`
		EmbedSubs     bool     `json:"embedSubs"`
		Container     string   `json:"container"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	kind := jobs.ParseKind(req.Kind)
	ref := req.URL
	if kind == jobs.KindInstall && ref == "" {
		ref = h.cfg.InstallURL
	}
	if ref == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	created, err := h.queue.Add(r.Context(), ref, jobs.Spec{
		Kind:          kind,
		DestDir:       req.DestDir,
		QualityHeight: req.QualityHeight,
		AudioQuality:  req.AudioQuality,
		SubsLangs:     req.SubsLangs,
		EmbedSubs:     req.EmbedSubs,
		Container:     req.Container,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"jobs":  created,
		"count": len(created),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.Get(r.PathValue("id"))
	if err != nil {
		jobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// PauseJob handles POST /api/jobs/{id}/pause
func (h *Handler) PauseJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.queue.Pause(id); err != nil {
		jobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused", "id": id})
}

// ResumeJob handles POST /api/jobs/{id}/resume
func (h *Handler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.queue.Resume(id); err != nil {
		jobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed", "id": id})
}

// CancelJob handles DELETE /api/jobs/{id}. Cancellation is cooperative:
// the job reaches its terminal state when the execution notices.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.queue.Cancel(id); err != nil {
		jobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling", "id": id})
}

// RemoveJob handles POST /api/jobs/{id}/remove, dropping a finished job
// from the list.
func (h *Handler) RemoveJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.queue.Remove(id); err != nil {
		jobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "id": id})
}

// PauseQueue handles POST /api/queue/pause
func (h *Handler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	h.queue.PauseAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// ResumeQueue handles POST /api/queue/resume
func (h *Handler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	h.queue.ResumeAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

// CancelJobs handles POST /api/queue/cancel. With a body listing IDs only
// those are cancelled, each reported individually; without one everything
// non-terminal is.
func (h *Handler) CancelJobs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if len(req.IDs) == 0 {
		h.queue.CancelAll()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
		return
	}

	results := h.queue.CancelSet(req.IDs)
	out := make(map[string]string, len(results))
	for id, err := range results {
		if err != nil {
			out[id] = err.Error()
		} else {
			out[id] = "cancelling"
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": out})
}

// GetWorkers handles GET /api/workers
func (h *Handler) GetWorkers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"workers": h.workerPool.Limit(),
		"running": h.workerPool.Running(),
	})
}

// UpdateWorkers handles PUT /api/workers, resizing the pool at runtime.
// Running jobs are never interrupted by a shrink.
func (h *Handler) UpdateWorkers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Workers int `json:"workers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Workers < 1 {
		writeError(w, http.StatusBadRequest, "workers must be at least 1")
		return
	}

	applied := h.workerPool.Resize(req.Workers)
	h.cfg.Workers = applied
	h.queue.NotifyResized(applied)
	if err := h.cfg.Save(h.cfgPath); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("resized but failed to save config: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"workers": applied})
}

// ExportQueue handles GET /api/queue/export
func (h *Handler) ExportQueue(w http.ResponseWriter, r *http.Request) {
	data, err := h.queue.ExportJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="downvid-queue.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ImportQueue handles POST /api/queue/import
func (h *Handler) ImportQueue(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}
	added, err := h.queue.ImportJSON(r.Context(), data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": added})
}

// Stats handles GET /api/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queue":   h.queue.GetStats(),
		"workers": h.workerPool.Limit(),
		"running": h.workerPool.Running(),
	})
}
