package balancer

import (
	"sync"

	"github.com/sahil-03/fleetctl/pkg/fleet"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// LeastConnections tracks a per-instance in-flight count and always
// acquires the instance with the smallest count. Reconciles its tracked
// set against the snapshot on every acquire: newly-seen instances start
// at 0, instances no longer active are dropped.
type LeastConnections struct {
	mu       sync.Mutex
	inFlight map[string]int
}

// NewLeastConnections returns an empty LeastConnections strategy.
func NewLeastConnections() *LeastConnections {
	return &LeastConnections{inFlight: make(map[string]int)}
}

func (l *LeastConnections) Acquire(snapshot fleet.Snapshot) (*types.ReplicaRecord, bool) {
	if len(snapshot) == 0 {
		return nil, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.reconcile(snapshot)

	var best *types.ReplicaRecord
	bestCount := -1
	for i := range snapshot {
		replica := snapshot[i]
		count := l.inFlight[replica.InstanceID]
		if bestCount == -1 || count < bestCount {
			bestCount = count
			best = &replica
		}
	}
	if best == nil {
		return nil, false
	}

	l.inFlight[best.InstanceID]++
	return best, true
}

func (l *LeastConnections) Release(instanceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count, ok := l.inFlight[instanceID]; ok && count > 0 {
		l.inFlight[instanceID] = count - 1
	}
}

// reconcile must be called with l.mu held.
func (l *LeastConnections) reconcile(snapshot fleet.Snapshot) {
	active := make(map[string]struct{}, len(snapshot))
	for _, replica := range snapshot {
		active[replica.InstanceID] = struct{}{}
		if _, ok := l.inFlight[replica.InstanceID]; !ok {
			l.inFlight[replica.InstanceID] = 0
		}
	}
	for instanceID := range l.inFlight {
		if _, ok := active[instanceID]; !ok {
			delete(l.inFlight, instanceID)
		}
	}
}
