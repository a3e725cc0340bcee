package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sahil-03/fleetctl/pkg/deploy"
	"github.com/sahil-03/fleetctl/pkg/fleet"
	"github.com/sahil-03/fleetctl/pkg/log"
	"github.com/sahil-03/fleetctl/pkg/metrics"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// queuer is the subset of queue.Queue the Control API needs.
type queuer interface {
	Enqueue(ctx context.Context, payload []byte) (string, error)
	Length(ctx context.Context) (int, error)
}

// fleetView is the subset of *fleet.Controller the Control API needs.
type fleetView interface {
	ActiveEndpoints() fleet.Snapshot
	Clusters() []types.ClusterDescriptor
	RegisterExternal(replica types.ReplicaRecord)
}

// deployExecutor is the subset of *deploy.Executor the /deploy handler
// needs, narrowed so tests can substitute a fake.
type deployExecutor interface {
	Execute(ctx context.Context, spec types.DeploymentSpec, cluster types.ClusterDescriptor, opts deploy.Options) (deploy.Result, error)
}

// Server is the Control API. It owns no state of its own: every route
// reads or mutates state through the queue, fleet, and executor it was
// built with.
type Server struct {
	queue    queuer
	fleet    fleetView
	executor deployExecutor
	router   *mux.Router
	logger   zerolog.Logger
}

// New wires a Server and registers its routes.
func New(q queuer, fleetCtl fleetView, executor deployExecutor) *Server {
	s := &Server{
		queue:    q,
		fleet:    fleetCtl,
		executor: executor,
		logger:   log.WithComponent("api"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/enqueue", s.handleEnqueue).Methods(http.MethodPost)
	r.HandleFunc("/status/{id}", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/deploy", s.handleDeploy).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler())
	s.router = r

	return s
}

// Start blocks serving the Control API on addr. /deploy requests may run
// for minutes (spec §5), so this server carries no WriteTimeout —
// ReadTimeout and IdleTimeout still
// bound the connection's idle phases.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return srv.ListenAndServe()
}

// Router exposes the underlying handler for tests and for embedding
// behind another server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer()

	length, err := s.queue.Length(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		metrics.APIRequestsTotal.WithLabelValues("stats", "error").Inc()
		return
	}

	active := s.fleet.ActiveEndpoints()
	endpoints := make([]string, 0, len(active))
	for _, replica := range active {
		endpoints = append(endpoints, replica.Endpoint)
	}

	writeJSON(w, http.StatusOK, statsResponse{
		QueueLength:    length,
		ActiveReplicas: len(active),
		Endpoints:      endpoints,
	})
	metrics.APIRequestsTotal.WithLabelValues("stats", "success").Inc()
	timer.ObserveDurationVec(metrics.APIRequestDuration, "stats")
}

type statsResponse struct {
	QueueLength    int      `json:"queue_length"`
	ActiveReplicas int      `json:"active_replicas"`
	Endpoints      []string `json:"endpoints"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil || s.fleet == nil || s.executor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn().Err(err).Msg("request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
