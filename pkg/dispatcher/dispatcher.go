package dispatcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sahil-03/fleetctl/pkg/balancer"
	"github.com/sahil-03/fleetctl/pkg/fleet"
	"github.com/sahil-03/fleetctl/pkg/log"
	"github.com/sahil-03/fleetctl/pkg/metrics"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// noRequestSleep/noEndpointSleep are vars, not consts, so tests can
// shrink them instead of waiting out real sleeps. requestTimeout is read
// once, when httpClient is built at package init; changing it later does
// not affect httpClient.
var (
	noRequestSleep  = time.Second
	noEndpointSleep = 5 * time.Second
	requestTimeout  = 30 * time.Second
)

var httpClient = &http.Client{Timeout: requestTimeout}

// dequeuer is the subset of queue.Queue a worker needs.
type dequeuer interface {
	Dequeue(ctx context.Context) (types.QueuedRequest, bool, error)
	Enqueue(ctx context.Context, payload []byte) (string, error)
}

// fleetSnapshotter is the subset of fleet.Controller a worker needs.
type fleetSnapshotter interface {
	ActiveEndpoints() fleet.Snapshot
}

// Dispatcher runs a fixed pool of worker goroutines over a shared queue
// and load-balancing strategy.
type Dispatcher struct {
	queue    dequeuer
	strategy balancer.Strategy
	fleet    fleetSnapshotter
	workers  int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Dispatcher with the given number of worker goroutines.
func New(queue dequeuer, strategy balancer.Strategy, fleet fleetSnapshotter, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		queue:    queue,
		strategy: strategy,
		fleet:    fleet,
		workers:  workers,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(ctx, i)
	}
}

// Stop signals every worker to exit and waits for them to finish.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Dispatcher) runWorker(ctx context.Context, id int) {
	defer d.wg.Done()
	logger := log.WithComponent("dispatcher").With().Int("worker", id).Logger()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if d.step(ctx, logger) {
			return
		}
	}
}

// step runs one iteration of the worker loop and reports whether the
// worker should exit (true when a shutdown signal interrupted a sleep).
func (d *Dispatcher) step(ctx context.Context, logger zerolog.Logger) bool {
	item, ok, err := d.queue.Dequeue(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("dequeue failed")
		return d.sleep(noRequestSleep)
	}
	if !ok {
		return d.sleep(noRequestSleep)
	}

	replica, ok := d.strategy.Acquire(d.fleet.ActiveEndpoints())
	if !ok {
		if _, reErr := d.queue.Enqueue(ctx, item.Payload); reErr != nil {
			logger.Error().Err(reErr).Msg("re-enqueue failed after no endpoint available")
		}
		metrics.DispatchedTotal.WithLabelValues("no_endpoint").Inc()
		return d.sleep(noEndpointSleep)
	}

	timer := metrics.NewTimer()
	delivered := d.deliver(ctx, replica.Endpoint, item.Payload)
	timer.ObserveDuration(metrics.DispatchLatency)

	d.strategy.Release(replica.InstanceID)

	if delivered {
		metrics.DispatchedTotal.WithLabelValues("success").Inc()
		return false
	}

	if _, reErr := d.queue.Enqueue(ctx, item.Payload); reErr != nil {
		logger.Error().Err(reErr).Msg("re-enqueue failed after delivery failure")
	}
	metrics.DispatchedTotal.WithLabelValues("retry").Inc()
	return false
}

// deliver POSTs payload to the replica's /query endpoint. Connection
// errors, timeouts, and 5xx responses are all treated as failed delivery.
func (d *Dispatcher) deliver(ctx context.Context, endpoint string, payload []byte) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("http://%s/query", endpoint), bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode < 500
}

// sleep waits for dur or an exit signal, reporting whether it was
// interrupted by shutdown.
func (d *Dispatcher) sleep(dur time.Duration) bool {
	select {
	case <-time.After(dur):
		return false
	case <-d.stopCh:
		return true
	}
}
