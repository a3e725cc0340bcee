package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sahil-03/fleetctl/pkg/deploy"
	"github.com/sahil-03/fleetctl/pkg/metrics"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// DeployRequest is the JSON body of POST /deploy: a Deployment Spec plus
// the id of an already-configured cluster to deploy onto.
type DeployRequest struct {
	ClusterID           string `json:"cluster_id"`
	ModelRef            string `json:"model_ref"`
	HFToken             string `json:"hf_token,omitempty"`
	InferenceEntrypoint string `json:"inference_entrypoint"`
	ImageTag            string `json:"image_tag"`
	Tunnel              bool   `json:"tunnel,omitempty"`
	Prune               bool   `json:"prune,omitempty"`
}

// handleDeploy runs one deployment synchronously within the request,
// streaming stage progress lines to the response as C5 produces them
// (spec.md §4.11: "synchronously invokes C5 with streamed logs to the
// response"). A malformed request is rejected with 400 before any
// deployment starts; once the deployment runs, both success and failure
// respond 200 — the failure case carries an "error" field in its closing
// JSON line, matching the original API's legacy response shape.
func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer()

	var req DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		metrics.APIRequestsTotal.WithLabelValues("deploy", "error").Inc()
		return
	}

	cluster, ok := s.lookupCluster(req.ClusterID)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown cluster_id %q", req.ClusterID))
		metrics.APIRequestsTotal.WithLabelValues("deploy", "error").Inc()
		return
	}

	modelRef, err := types.ParseModelRef(req.ModelRef, req.HFToken)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		metrics.APIRequestsTotal.WithLabelValues("deploy", "error").Inc()
		return
	}

	creds, err := cluster.Credentials()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		metrics.APIRequestsTotal.WithLabelValues("deploy", "error").Inc()
		return
	}

	spec, err := types.NewDeploymentSpec(modelRef, req.InferenceEntrypoint, req.ImageTag, creds)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		metrics.APIRequestsTotal.WithLabelValues("deploy", "error").Inc()
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("response does not support streaming"))
		metrics.APIRequestsTotal.WithLabelValues("deploy", "error").Inc()
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	pr, pw := io.Pipe()
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			fmt.Fprintln(w, scanner.Text())
			flusher.Flush()
		}
	}()

	result, execErr := s.executor.Execute(r.Context(), spec, cluster, deploy.Options{
		Tunnel:   req.Tunnel,
		Prune:    req.Prune,
		Progress: pw,
	})
	pw.Close()
	<-streamDone

	if execErr != nil {
		s.logger.Error().Err(execErr).Str("cluster", req.ClusterID).Msg("deploy request failed")
		json.NewEncoder(w).Encode(map[string]string{"error": execErr.Error()})
		flusher.Flush()
		metrics.APIRequestsTotal.WithLabelValues("deploy", "error").Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, "deploy")
		return
	}

	s.fleet.RegisterExternal(result.Replica)
	json.NewEncoder(w).Encode(map[string]any{
		"details": map[string]string{
			"instance_id": result.Replica.InstanceID,
			"endpoint":    result.Replica.Endpoint,
		},
	})
	flusher.Flush()
	metrics.APIRequestsTotal.WithLabelValues("deploy", "success").Inc()
	timer.ObserveDurationVec(metrics.APIRequestDuration, "deploy")
}

func (s *Server) lookupCluster(id string) (types.ClusterDescriptor, bool) {
	for _, c := range s.fleet.Clusters() {
		if c.ClusterID == id {
			return c, true
		}
	}
	return types.ClusterDescriptor{}, false
}
