package autoscaler

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sahil-03/fleetctl/pkg/config"
	"github.com/sahil-03/fleetctl/pkg/log"
	"github.com/sahil-03/fleetctl/pkg/metrics"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// lengther is the one piece of pkg/queue the Autoscaler needs.
type lengther interface {
	Length(ctx context.Context) (int, error)
}

// fleetController is the one piece of pkg/fleet the Autoscaler needs.
type fleetController interface {
	ScaleTo(ctx context.Context, n int) error
	Count() int
}

// Autoscaler runs a cooldown-gated ticker loop comparing queue length
// against replica count, scaling pkg/fleet up or down per spec.md §4.9.
type Autoscaler struct {
	queue  lengther
	fleet  fleetController
	cfg    config.AutoscalerConfig
	logger zerolog.Logger

	mu        sync.Mutex
	lastScale time.Time

	stopCh chan struct{}
}

// New builds an Autoscaler bound to a queue, a fleet controller, and the
// parameters from spec.md §4.9.
func New(queue lengther, fleet fleetController, cfg config.AutoscalerConfig) *Autoscaler {
	return &Autoscaler{
		queue:  queue,
		fleet:  fleet,
		cfg:    cfg,
		logger: log.WithComponent("autoscaler"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the monitor loop in a background goroutine.
func (a *Autoscaler) Start(ctx context.Context) {
	go a.run(ctx)
}

// Stop halts the monitor loop.
func (a *Autoscaler) Stop() {
	close(a.stopCh)
}

func (a *Autoscaler) run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.tick(ctx); err != nil {
				a.logger.Error().Err(err).Msg("scaling decision failed")
			}
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick reads queue length and replica count, and scales the fleet if the
// cooldown has elapsed and load crosses a threshold.
func (a *Autoscaler) tick(ctx context.Context) error {
	queueLength, err := a.queue.Length(ctx)
	if err != nil {
		return err
	}
	replicas := a.fleet.Count()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.lastScale.IsZero() && time.Since(a.lastScale) < a.cfg.Cooldown() {
		return nil
	}

	load := float64(queueLength) / float64(max(1, replicas))
	metrics.AutoscalerLoad.Set(load)

	switch {
	case load > a.cfg.ScaleUpThreshold && replicas < a.cfg.MaxReplicas:
		needed := int(math.Floor(float64(queueLength)/a.cfg.ScaleUpThreshold)) - replicas
		target := min(a.cfg.MaxReplicas, replicas+max(1, needed))
		if target <= replicas {
			return nil
		}
		a.logger.Info().Int("from", replicas).Int("to", target).Float64("load", load).Msg("scaling up")
		if err := a.fleet.ScaleTo(ctx, target); err != nil {
			if errors.Is(err, types.ErrCapacity) {
				a.logger.Warn().Err(err).Msg("scale-up hit capacity, holding cooldown")
				return nil
			}
			return err
		}
		a.lastScale = time.Now()
		metrics.AutoscalerActionsTotal.WithLabelValues("up").Inc()

	case load < a.cfg.ScaleDownThreshold && replicas > a.cfg.MinReplicas:
		target := max(a.cfg.MinReplicas, min(replicas, int(math.Floor(float64(queueLength)/a.cfg.ScaleDownThreshold))+1))
		if target >= replicas {
			return nil
		}
		a.logger.Info().Int("from", replicas).Int("to", target).Float64("load", load).Msg("scaling down")
		if err := a.fleet.ScaleTo(ctx, target); err != nil {
			return err
		}
		a.lastScale = time.Now()
		metrics.AutoscalerActionsTotal.WithLabelValues("down").Inc()
	}

	return nil
}
