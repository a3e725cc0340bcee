/*
Package portalloc implements the Port Allocator (C2): it finds a free TCP
port on the local host and on a remote host reachable over pkg/shell,
within a configured range.
*/
package portalloc

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sahil-03/fleetctl/pkg/shell"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// DefaultStart and DefaultEnd bound the port range used when the operator
// does not override it, matching the source's 8000-9000 default.
const (
	DefaultStart = 8000
	DefaultEnd   = 9000
)

// dialTimeout bounds each local connect probe (spec §5: "port probes:
// 100ms").
const dialTimeout = 100 * time.Millisecond

// FindLocal returns the first port in [start, end] with no local listener,
// probed via a short-timeout TCP connect to loopback: a refused connection
// denotes "free".
func FindLocal(start, end int) (int, error) {
	for port := start; port <= end; port++ {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), dialTimeout)
		if err != nil {
			return port, nil
		}
		conn.Close()
	}
	return 0, types.ErrNoFreePort
}

// FindRemote returns the first port in [start, end] with no listener on
// the host reached through sh, probed with a listen-table query. A query
// error is treated as "not free" — safety first.
func FindRemote(ctx context.Context, sh shell.Shell, start, end int) (int, error) {
	for port := start; port <= end; port++ {
		free, err := remotePortFree(ctx, sh, port)
		if err != nil {
			continue
		}
		if free {
			return port, nil
		}
	}
	return 0, types.ErrNoFreePort
}

func remotePortFree(ctx context.Context, sh shell.Shell, port int) (bool, error) {
	cmd := fmt.Sprintf("netstat -tuln | grep ':%d '", port)
	stdout, _, _, err := sh.Exec(ctx, cmd)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(stdout) == "", nil
}

// AllocatePair finds a local port and a remote port (reached through sh)
// within [DefaultStart, DefaultEnd], with the remote search starting at
// local+1 (or, if local is already at the high end, covering
// [start, end-1]) so the pair is reproducibly distinct.
func AllocatePair(ctx context.Context, sh shell.Shell) (types.PortLease, error) {
	return AllocatePairInRange(ctx, sh, DefaultStart, DefaultEnd)
}

// AllocatePairInRange is AllocatePair parameterized over the port range.
func AllocatePairInRange(ctx context.Context, sh shell.Shell, start, end int) (types.PortLease, error) {
	local, err := FindLocal(start, end)
	if err != nil {
		return types.PortLease{}, fmt.Errorf("allocating local port: %w", err)
	}

	remoteStart, remoteEnd := local+1, end
	if local >= end {
		remoteStart, remoteEnd = start, end-1
	}

	remote, err := FindRemote(ctx, sh, remoteStart, remoteEnd)
	if err != nil {
		return types.PortLease{}, fmt.Errorf("allocating remote port: %w", err)
	}

	return types.PortLease{LocalPort: local, RemotePort: remote}, nil
}
