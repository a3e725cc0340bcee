package deploy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahil-03/fleetctl/pkg/shell"
	"github.com/sahil-03/fleetctl/pkg/types"
)

func TestRunContainerPassesGPUsAndToken(t *testing.T) {
	fake := shell.NewFake()
	fake.On(
		"sudo docker run --gpus all -e HF_TOKEN=secret -e PORT=8001 -d -p 8001:8001 demo:latest",
		shell.FakeResponse{Stdout: "abc123\n"},
	)

	ref, err := types.ParseModelRef("https://huggingface.co/org/model", "secret")
	require.NoError(t, err)
	creds, err := types.NewPasswordCredentials("host", "user", "pw", 0)
	require.NoError(t, err)
	spec, err := types.NewDeploymentSpec(ref, "entrypoint.py", "demo:latest", creds)
	require.NoError(t, err)

	prof := types.ProfileRecord{HasGPUs: true}
	lease := types.PortLease{LocalPort: 9001, RemotePort: 8001}

	containerID, err := runContainer(context.Background(), fake, spec, prof, lease)
	require.NoError(t, err)
	assert.Equal(t, "abc123", containerID)
}

func TestRunContainerWithoutGPUsOrToken(t *testing.T) {
	fake := shell.NewFake()
	fake.On(
		"sudo docker run -e PORT=8001 -d -p 8001:8001 demo:latest",
		shell.FakeResponse{Stdout: "def456\n"},
	)

	ref, err := types.ParseModelRef("/models/local", "")
	require.NoError(t, err)
	creds, err := types.NewPasswordCredentials("host", "user", "pw", 0)
	require.NoError(t, err)
	spec, err := types.NewDeploymentSpec(ref, "entrypoint.py", "demo:latest", creds)
	require.NoError(t, err)

	prof := types.ProfileRecord{HasGPUs: false}
	lease := types.PortLease{LocalPort: 9001, RemotePort: 8001}

	containerID, err := runContainer(context.Background(), fake, spec, prof, lease)
	require.NoError(t, err)
	assert.Equal(t, "def456", containerID)
}

func TestRunContainerPropagatesStderrAsError(t *testing.T) {
	fake := shell.NewFake()
	fake.On(
		"sudo docker run -e PORT=8001 -d -p 8001:8001 demo:latest",
		shell.FakeResponse{Stderr: "no such image", ExitCode: 1},
	)

	ref, err := types.ParseModelRef("/models/local", "")
	require.NoError(t, err)
	creds, err := types.NewPasswordCredentials("host", "user", "pw", 0)
	require.NoError(t, err)
	spec, err := types.NewDeploymentSpec(ref, "entrypoint.py", "demo:latest", creds)
	require.NoError(t, err)

	_, err = runContainer(context.Background(), fake, spec, types.ProfileRecord{}, types.PortLease{RemotePort: 8001})
	assert.ErrorIs(t, err, types.ErrRun)
}

func TestEnsureRemotePrerequisitesSkipsInstallWhenPresent(t *testing.T) {
	fake := shell.NewFake()
	fake.On("command -v docker", shell.FakeResponse{Stdout: "/usr/bin/docker"})

	err := ensureRemotePrerequisites(context.Background(), fake)
	assert.NoError(t, err)
}

func TestEnsureRemotePrerequisitesInstallsWhenMissing(t *testing.T) {
	fake := shell.NewFake()
	fake.On("command -v docker", shell.FakeResponse{Stdout: ""})
	fake.On(
		"curl -fsSL https://get.docker.com -o get-docker.sh && sudo sh get-docker.sh && rm get-docker.sh",
		shell.FakeResponse{},
	)

	err := ensureRemotePrerequisites(context.Background(), fake)
	assert.NoError(t, err)
}

func TestPruneContainerRemovesImageAfterContainerGone(t *testing.T) {
	fake := shell.NewFake()
	fake.On("sudo docker ps -a -q --filter id=abc123", shell.FakeResponse{Stdout: ""})
	fake.On("sudo docker rmi -f demo:latest", shell.FakeResponse{})

	err := pruneContainer(context.Background(), fake, "abc123", "demo:latest")
	assert.NoError(t, err)
}

func TestPruneContainerForcesRemovalAfterRetriesExhausted(t *testing.T) {
	original := pruneInterval
	pruneInterval = time.Millisecond
	defer func() { pruneInterval = original }()

	fake := shell.NewFake()
	fake.On("sudo docker ps -a -q --filter id=abc123", shell.FakeResponse{Stdout: "abc123"})
	fake.On("sudo docker rm -f abc123", shell.FakeResponse{})
	fake.On("sudo docker rmi -f demo:latest", shell.FakeResponse{})

	err := pruneContainer(context.Background(), fake, "abc123", "demo:latest")
	assert.NoError(t, err)
}

func TestFirstNonEmptyReturnsFirstNonBlankValue(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", "  "))
}

func TestTunnelHandleClosesForwardThenShell(t *testing.T) {
	fake := shell.NewFake()
	handle := &tunnelHandle{forward: &closeRecorder{}, shell: fake}

	require.NoError(t, handle.Close())
	assert.True(t, fake.Closed)
}

func TestTunnelHandleClosesShellEvenWhenForwardFails(t *testing.T) {
	fake := shell.NewFake()
	handle := &tunnelHandle{forward: &closeRecorder{err: errors.New("forward teardown failed")}, shell: fake}

	err := handle.Close()
	assert.Error(t, err)
	assert.True(t, fake.Closed)
}

type closeRecorder struct {
	err error
}

func (c *closeRecorder) Close() error {
	return c.err
}
