package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// JobStream handles GET /api/jobs/stream, pushing queue events over SSE.
func (h *Handler) JobStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	eventCh := h.queue.Subscribe()
	defer h.queue.Unsubscribe(eventCh)

	// Send initial state so a reconnecting client doesn't wait for the
	// next event to repaint.
	initialData, _ := json.Marshal(map[string]interface{}{
		"type":      "init",
		"jobs":      h.queue.List(),
		"completed": h.queue.Completed(),
		"stats":     h.queue.GetStats(),
	})
	fmt.Fprintf(w, "data: %s\n\n", initialData)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
