package fleetctl

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"

	"github.com/sahil-03/fleetctl/pkg/api"
	"github.com/sahil-03/fleetctl/pkg/autoscaler"
	"github.com/sahil-03/fleetctl/pkg/balancer"
	"github.com/sahil-03/fleetctl/pkg/config"
	"github.com/sahil-03/fleetctl/pkg/deploy"
	"github.com/sahil-03/fleetctl/pkg/dispatcher"
	"github.com/sahil-03/fleetctl/pkg/fleet"
	"github.com/sahil-03/fleetctl/pkg/packager"
	"github.com/sahil-03/fleetctl/pkg/queue"
	"github.com/sahil-03/fleetctl/pkg/queue/boltqueue"
	"github.com/sahil-03/fleetctl/pkg/queue/memqueue"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// defaultDispatchWorkers is the dispatcher worker-pool size; the operator
// config has no setting for it. spec.md leaves this as an implementation
// detail.
const defaultDispatchWorkers = 4

// FleetController is the fully-wired process: every C1-C11 collaborator
// bound to the others and ready to run.
type FleetController struct {
	Queue      queue.Queue
	Fleet      *fleet.Controller
	Strategy   balancer.Strategy
	Executor   *deploy.Executor
	Autoscaler *autoscaler.Autoscaler
	Dispatcher *dispatcher.Dispatcher
	API        *api.Server

	dockerCli *client.Client
	boltQueue *boltqueue.Queue
}

// New builds a FleetController from operator configuration and the
// Deployment Spec that newly auto-scaled replicas are deployed from.
func New(cfg *config.Config, spec types.DeploymentSpec) (*FleetController, error) {
	cli, err := packager.NewDockerClient()
	if err != nil {
		return nil, err
	}
	pkgr := packager.New(cli)
	executor := deploy.NewExecutor(pkgr)

	clusters := make([]types.ClusterDescriptor, 0, len(cfg.Clusters))
	for _, c := range cfg.Clusters {
		clusters = append(clusters, c.Descriptor())
	}
	fleetCtl := fleet.NewController(clusters, executor, spec)

	q, boltQ, err := newQueue(cfg.Queue)
	if err != nil {
		cli.Close()
		return nil, err
	}

	strategy, err := newStrategy(cfg.LoadBalancer.Strategy)
	if err != nil {
		cli.Close()
		return nil, err
	}

	scaler := autoscaler.New(q, fleetCtl, cfg.Autoscaler)
	disp := dispatcher.New(q, strategy, fleetCtl, defaultDispatchWorkers)
	apiServer := api.New(q, fleetCtl, executor)

	return &FleetController{
		Queue:      q,
		Fleet:      fleetCtl,
		Strategy:   strategy,
		Executor:   executor,
		Autoscaler: scaler,
		Dispatcher: disp,
		API:        apiServer,
		dockerCli:  cli,
		boltQueue:  boltQ,
	}, nil
}

func newQueue(cfg config.QueueConfig) (queue.Queue, *boltqueue.Queue, error) {
	switch cfg.Backend {
	case "bolt":
		q, err := boltqueue.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return q, q, nil
	default:
		return memqueue.New(), nil, nil
	}
}

func newStrategy(name string) (balancer.Strategy, error) {
	switch name {
	case config.StrategyRandom:
		return balancer.NewRandom(), nil
	case config.StrategyLeastConnections:
		return balancer.NewLeastConnections(), nil
	case config.StrategyRoundRobin, "":
		return balancer.NewRoundRobin(), nil
	default:
		return nil, fmt.Errorf("%w: unknown load_balancer.strategy %q", types.ErrConfiguration, name)
	}
}

// StartWorkers launches the autoscaler and dispatcher pool in the
// background. Call Serve afterward to block on the Control API.
func (fc *FleetController) StartWorkers(ctx context.Context) {
	fc.Autoscaler.Start(ctx)
	fc.Dispatcher.Start(ctx)
}

// Serve blocks, serving the Control API on addr.
func (fc *FleetController) Serve(addr string) error {
	return fc.API.Start(addr)
}

// Stop halts the autoscaler and dispatcher and releases the docker client
// and (if configured) the bolt queue's database file.
func (fc *FleetController) Stop() {
	fc.Autoscaler.Stop()
	fc.Dispatcher.Stop()
	if fc.boltQueue != nil {
		fc.boltQueue.Close()
	}
	if fc.dockerCli != nil {
		fc.dockerCli.Close()
	}
}
