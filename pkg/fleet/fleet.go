package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sahil-03/fleetctl/pkg/deploy"
	"github.com/sahil-03/fleetctl/pkg/log"
	"github.com/sahil-03/fleetctl/pkg/metrics"
	"github.com/sahil-03/fleetctl/pkg/shell"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// Snapshot is a copy-on-read view of replica state handed to readers like
// pkg/balancer; mutating it has no effect on the Controller.
type Snapshot []types.ReplicaRecord

// deployer is the subset of *deploy.Executor the Controller needs for its
// addition path; narrowed to an interface so tests can substitute a fake
// without standing up real clusters.
type deployer interface {
	Execute(ctx context.Context, spec types.DeploymentSpec, cluster types.ClusterDescriptor, opts deploy.Options) (deploy.Result, error)
}

// Controller is the single writer of fleet state. Mutation goes through
// ScaleTo and RegisterExternal; reads go through ActiveEndpoints,
// Snapshot, Count and Clusters.
type Controller struct {
	mu       sync.RWMutex
	replicas map[string]types.ReplicaRecord

	clusters []types.ClusterDescriptor
	executor deployer
	spec     types.DeploymentSpec
}

// NewController builds a Controller bound to a fixed cluster list, the
// Deployment Executor used for additions, and the spec that every new
// replica is deployed from.
func NewController(clusters []types.ClusterDescriptor, executor *deploy.Executor, spec types.DeploymentSpec) *Controller {
	return &Controller{
		replicas: make(map[string]types.ReplicaRecord),
		clusters: clusters,
		executor: executor,
		spec:     spec,
	}
}

// ScaleTo adjusts the replica count to n, adding or removing as needed.
// A scale-up that fails to add any replica returns types.ErrCapacity per
// spec.md §7, so the autoscaler can hold its cooldown instead of treating
// the attempt as a success.
func (c *Controller) ScaleTo(ctx context.Context, n int) error {
	c.mu.RLock()
	current := len(c.replicas)
	c.mu.RUnlock()

	switch {
	case n > current:
		return c.addReplicas(ctx, n-current)
	case n < current:
		c.removeReplicas(ctx, current-n)
	}
	return nil
}

// addReplicas deploys count new replicas, picking a cluster by
// round-robin over the current deployment count, per the original
// deployment manager's cluster_index = len(deployments) % len(clusters).
// It returns types.ErrCapacity if not a single replica could be added.
func (c *Controller) addReplicas(ctx context.Context, count int) error {
	if len(c.clusters) == 0 {
		log.WithComponent("fleet").Error().Msg("cannot add replicas: no clusters configured")
		return fmt.Errorf("%w: no clusters configured", types.ErrCapacity)
	}

	added := 0
	for i := 0; i < count; i++ {
		c.mu.RLock()
		clusterIndex := len(c.replicas) % len(c.clusters)
		c.mu.RUnlock()
		cluster := c.clusters[clusterIndex]

		logger := log.WithCluster(cluster.ClusterID)
		result, err := c.executor.Execute(ctx, c.spec, cluster, deploy.Options{})
		if err != nil {
			logger.Error().Err(err).Msg("failed to add replica")
			continue
		}

		c.mu.Lock()
		c.replicas[result.Replica.InstanceID] = result.Replica
		c.mu.Unlock()

		added++
		metrics.ReplicasTotal.WithLabelValues(cluster.ClusterID, string(result.Replica.Status)).Inc()
		logger.Info().Str("instance_id", result.Replica.InstanceID).Msg("added replica")
	}

	if added == 0 {
		return fmt.Errorf("%w: failed to add any of %d requested replicas", types.ErrCapacity, count)
	}
	return nil
}

// removeReplicas retires the oldest count replicas by created_at.
func (c *Controller) removeReplicas(ctx context.Context, count int) {
	c.mu.RLock()
	victims := make([]types.ReplicaRecord, 0, len(c.replicas))
	for _, r := range c.replicas {
		victims = append(victims, r)
	}
	c.mu.RUnlock()

	sort.Slice(victims, func(i, j int) bool { return victims[i].CreatedAt.Before(victims[j].CreatedAt) })
	if count > len(victims) {
		count = len(victims)
	}

	for _, replica := range victims[:count] {
		c.retire(ctx, replica)
	}
}

// retire opens a shell to the replica's cluster, stops and removes its
// container, then drops the record regardless of stop/remove warnings.
func (c *Controller) retire(ctx context.Context, replica types.ReplicaRecord) {
	logger := log.WithReplica(replica.InstanceID)

	c.mu.Lock()
	if existing, ok := c.replicas[replica.InstanceID]; ok {
		existing.Status = types.ReplicaStopping
		c.replicas[replica.InstanceID] = existing
	}
	c.mu.Unlock()

	sh, err := shell.Open(ctx, replica.Credentials)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open shell for replica removal")
	} else {
		defer sh.Close()

		if _, stderr, _, execErr := sh.Exec(ctx, fmt.Sprintf("sudo docker stop %s", replica.ContainerID)); execErr != nil || stderr != "" {
			logger.Warn().Str("stderr", stderr).Err(execErr).Msg("warning stopping container")
		}
		if _, stderr, _, execErr := sh.Exec(ctx, fmt.Sprintf("sudo docker rm %s", replica.ContainerID)); execErr != nil || stderr != "" {
			logger.Warn().Str("stderr", stderr).Err(execErr).Msg("warning removing container")
		}
	}

	c.mu.Lock()
	delete(c.replicas, replica.InstanceID)
	c.mu.Unlock()

	metrics.ReplicasTotal.WithLabelValues(replica.ClusterRef, string(types.ReplicaDead)).Inc()
	logger.Info().Msg("removed replica")
}

// ActiveEndpoints returns a copy-on-read snapshot of replicas currently
// in the running state, ordered by instance id. Balancer strategies like
// RoundRobin index into this slice by position across successive calls,
// so the order has to be stable across calls on the same replica set —
// map iteration order is randomized per call and would otherwise break
// fair cycling (spec.md §8 scenario 6).
func (c *Controller) ActiveEndpoints() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(Snapshot, 0, len(c.replicas))
	for _, r := range c.replicas {
		if r.Status == types.ReplicaRunning {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// Snapshot returns a copy-on-read view of every tracked replica,
// regardless of status.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(Snapshot, 0, len(c.replicas))
	for _, r := range c.replicas {
		out = append(out, r)
	}
	return out
}

// Count returns the current number of tracked replicas.
func (c *Controller) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.replicas)
}

// Clusters returns the configured Cluster Descriptors, read-only at
// runtime per spec.md §4.7.
func (c *Controller) Clusters() []types.ClusterDescriptor {
	return c.clusters
}

// RegisterExternal records a replica deployed outside ScaleTo's
// round-robin path — the Control API's POST /deploy invokes pkg/deploy
// directly (the operator names the target cluster and spec per request)
// and hands the resulting record here so it joins the fleet C7 owns.
func (c *Controller) RegisterExternal(replica types.ReplicaRecord) {
	c.mu.Lock()
	c.replicas[replica.InstanceID] = replica
	c.mu.Unlock()

	metrics.ReplicasTotal.WithLabelValues(replica.ClusterRef, string(replica.Status)).Inc()
}
