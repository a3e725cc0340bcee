package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sahil-03/fleetctl/pkg/metrics"
)

// handleEnqueue accepts the raw inference request body and hands it to
// the queue verbatim; pkg/dispatcher is the only thing that interprets
// its shape.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		metrics.APIRequestsTotal.WithLabelValues("enqueue", "error").Inc()
		return
	}

	requestID, err := s.queue.Enqueue(r.Context(), body)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		metrics.APIRequestsTotal.WithLabelValues("enqueue", "error").Inc()
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "queued", "request_id": requestID})
	metrics.APIRequestsTotal.WithLabelValues("enqueue", "success").Inc()
	timer.ObserveDurationVec(metrics.APIRequestDuration, "enqueue")
}

// handleStatus is a stub per spec.md §4.11: the queue carries no
// per-item status once dequeued, so every request id, known or not, reads
// back as "processing".
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	writeJSON(w, http.StatusOK, map[string]string{"status": "processing", "request_id": id})
	metrics.APIRequestsTotal.WithLabelValues("status", "success").Inc()
}
