package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahil-03/fleetctl/pkg/deploy"
	"github.com/sahil-03/fleetctl/pkg/types"
)

type fakeDeployer struct {
	calls   []types.ClusterDescriptor
	nextErr error
	seq     int
}

func (f *fakeDeployer) Execute(_ context.Context, _ types.DeploymentSpec, cluster types.ClusterDescriptor, _ deploy.Options) (deploy.Result, error) {
	f.calls = append(f.calls, cluster)
	if f.nextErr != nil {
		return deploy.Result{}, f.nextErr
	}
	f.seq++
	containerID := "container" + string(rune('0'+f.seq))
	return deploy.Result{
		Replica: types.ReplicaRecord{
			InstanceID:  types.InstanceID(cluster.ClusterID, containerID),
			ContainerID: containerID,
			ClusterRef:  cluster.ClusterID,
			Endpoint:    cluster.Hostname + ":8001",
			Status:      types.ReplicaRunning,
			CreatedAt:   time.Now(),
		},
	}, nil
}

func testClusters() []types.ClusterDescriptor {
	return []types.ClusterDescriptor{
		{ClusterID: "cluster-a", Hostname: "10.0.0.1", Username: "ops", KeyPath: "/keys/a"},
		{ClusterID: "cluster-b", Hostname: "10.0.0.2", Username: "ops", KeyPath: "/keys/b"},
	}
}

func newTestController(executor deployer) *Controller {
	return &Controller{
		replicas: make(map[string]types.ReplicaRecord),
		clusters: testClusters(),
		executor: executor,
	}
}

func TestScaleToAddsReplicasRoundRobinAcrossClusters(t *testing.T) {
	fake := &fakeDeployer{}
	c := newTestController(fake)

	c.ScaleTo(context.Background(), 3)

	require.Equal(t, 3, c.Count())
	require.Len(t, fake.calls, 3)
	assert.Equal(t, "cluster-a", fake.calls[0].ClusterID)
	assert.Equal(t, "cluster-b", fake.calls[1].ClusterID)
	assert.Equal(t, "cluster-a", fake.calls[2].ClusterID)
}

func TestScaleToRemovesOldestReplicasFirst(t *testing.T) {
	fake := &fakeDeployer{}
	c := newTestController(fake)

	old := types.ReplicaRecord{InstanceID: "cluster-a-old", CreatedAt: time.Now().Add(-time.Hour), Status: types.ReplicaRunning}
	mid := types.ReplicaRecord{InstanceID: "cluster-a-mid", CreatedAt: time.Now().Add(-time.Minute), Status: types.ReplicaRunning}
	newer := types.ReplicaRecord{InstanceID: "cluster-a-new", CreatedAt: time.Now(), Status: types.ReplicaRunning}
	c.replicas[old.InstanceID] = old
	c.replicas[mid.InstanceID] = mid
	c.replicas[newer.InstanceID] = newer

	c.ScaleTo(context.Background(), 1)

	require.Equal(t, 1, c.Count())
	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, newer.InstanceID, snap[0].InstanceID)
}

func TestScaleToSkipsFailedDeploymentsWithoutRecording(t *testing.T) {
	fake := &fakeDeployer{nextErr: errors.New("ssh: connection refused")}
	c := newTestController(fake)

	err := c.ScaleTo(context.Background(), 2)

	require.ErrorIs(t, err, types.ErrCapacity)
	assert.Equal(t, 0, c.Count())
	assert.Len(t, fake.calls, 2)
}

func TestScaleToSucceedsWhenAtLeastOneReplicaIsAdded(t *testing.T) {
	fake := &failNTimes{failures: 1}
	c := newTestController(fake)

	err := c.ScaleTo(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, 1, c.Count())
}

// failNTimes fails the first `failures` calls to Execute, then succeeds,
// reproducing a partial scale-up that should not be reported as a
// capacity error.
type failNTimes struct {
	failures int
	calls    int
	seq      int
}

func (f *failNTimes) Execute(_ context.Context, _ types.DeploymentSpec, cluster types.ClusterDescriptor, _ deploy.Options) (deploy.Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return deploy.Result{}, errors.New("ssh: connection refused")
	}
	f.seq++
	containerID := "container" + string(rune('0'+f.seq))
	return deploy.Result{
		Replica: types.ReplicaRecord{
			InstanceID:  types.InstanceID(cluster.ClusterID, containerID),
			ContainerID: containerID,
			ClusterRef:  cluster.ClusterID,
			Endpoint:    cluster.Hostname + ":8001",
			Status:      types.ReplicaRunning,
			CreatedAt:   time.Now(),
		},
	}, nil
}

func TestActiveEndpointsFiltersNonRunningReplicas(t *testing.T) {
	fake := &fakeDeployer{}
	c := newTestController(fake)

	c.replicas["running"] = types.ReplicaRecord{InstanceID: "running", Status: types.ReplicaRunning}
	c.replicas["stopping"] = types.ReplicaRecord{InstanceID: "stopping", Status: types.ReplicaStopping}

	active := c.ActiveEndpoints()
	require.Len(t, active, 1)
	assert.Equal(t, "running", active[0].InstanceID)
}

func TestActiveEndpointsSnapshotIsIndependentOfController(t *testing.T) {
	fake := &fakeDeployer{}
	c := newTestController(fake)
	c.replicas["running"] = types.ReplicaRecord{InstanceID: "running", Status: types.ReplicaRunning}

	snap := c.ActiveEndpoints()
	snap[0].Status = types.ReplicaDead

	assert.Equal(t, types.ReplicaRunning, c.replicas["running"].Status)
}

func TestRegisterExternalAddsReplicaToFleet(t *testing.T) {
	fake := &fakeDeployer{}
	c := newTestController(fake)

	replica := types.ReplicaRecord{InstanceID: "cluster-a-ext", Status: types.ReplicaRunning, ClusterRef: "cluster-a"}
	c.RegisterExternal(replica)

	assert.Equal(t, 1, c.Count())
	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "cluster-a-ext", snap[0].InstanceID)
}

func TestClustersReturnsConfiguredDescriptors(t *testing.T) {
	fake := &fakeDeployer{}
	c := newTestController(fake)

	assert.Equal(t, testClusters(), c.Clusters())
}

func TestScaleToNoOpWhenAlreadyAtTarget(t *testing.T) {
	fake := &fakeDeployer{}
	c := newTestController(fake)
	c.replicas["a"] = types.ReplicaRecord{InstanceID: "a", Status: types.ReplicaRunning}

	c.ScaleTo(context.Background(), 1)

	assert.Empty(t, fake.calls)
	assert.Equal(t, 1, c.Count())
}
