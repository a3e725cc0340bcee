package portalloc

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahil-03/fleetctl/pkg/shell"
	"github.com/sahil-03/fleetctl/pkg/types"
)

var errTransport = errors.New("ssh: connection reset")

func TestFindLocalSkipsOccupiedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	occupied := ln.Addr().(*net.TCPAddr).Port

	port, err := FindLocal(occupied, occupied+5)
	require.NoError(t, err)
	assert.NotEqual(t, occupied, port)
	assert.GreaterOrEqual(t, port, occupied)
	assert.LessOrEqual(t, port, occupied+5)
}

func TestFindLocalExhaustedRangeReturnsErrNoFreePort(t *testing.T) {
	listeners := make([]net.Listener, 0, 3)
	defer func() {
		for _, ln := range listeners {
			ln.Close()
		}
	}()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	listeners = append(listeners, ln)
	base := ln.Addr().(*net.TCPAddr).Port

	for p := base + 1; p <= base+2; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
		if err != nil {
			t.Skipf("could not reserve port %d for test: %v", p, err)
		}
		listeners = append(listeners, l)
	}

	_, err = FindLocal(base, base+2)
	assert.ErrorIs(t, err, types.ErrNoFreePort)
}

func TestFindRemoteReturnsFirstFreePort(t *testing.T) {
	fake := shell.NewFake()
	fake.On("netstat -tuln | grep ':8000 '", shell.FakeResponse{Stdout: "tcp 0 0 0.0.0.0:8000 LISTEN"})
	fake.On("netstat -tuln | grep ':8001 '", shell.FakeResponse{Stdout: ""})

	port, err := FindRemote(context.Background(), fake, 8000, 8005)
	require.NoError(t, err)
	assert.Equal(t, 8001, port)
}

func TestFindRemoteTreatsExecErrorAsNotFree(t *testing.T) {
	fake := shell.NewFake()
	fake.On("netstat -tuln | grep ':8000 '", shell.FakeResponse{Err: errTransport})
	fake.On("netstat -tuln | grep ':8001 '", shell.FakeResponse{Err: errTransport})
	fake.On("netstat -tuln | grep ':8002 '", shell.FakeResponse{Stdout: ""})

	port, err := FindRemote(context.Background(), fake, 8000, 8005)
	require.NoError(t, err)
	assert.Equal(t, 8002, port)
}

func TestAllocatePairWrapsRemoteStartWhenLocalAtRangeEnd(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	start := busy.Addr().(*net.TCPAddr).Port
	end := start + 1

	fake := shell.NewFake()
	fake.On("netstat -tuln | grep ':"+strconv.Itoa(start)+" '", shell.FakeResponse{Stdout: ""})

	lease, err := AllocatePairInRange(context.Background(), fake, start, end)
	require.NoError(t, err)
	assert.Equal(t, end, lease.LocalPort)
	assert.Equal(t, start, lease.RemotePort)
}

func freeLocalPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}
