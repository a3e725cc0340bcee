/*
Package deploy implements the Deployment Executor (C5): it orchestrates
C1-C4 end to end — pre-flight, remote profiling, port allocation,
packaging, transfer, load, run, optional tunnel, optional prune — and
always finalizes (removes the remote tarball, closes the shell) whether
the sequence succeeded or failed.
*/
package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sahil-03/fleetctl/pkg/log"
	"github.com/sahil-03/fleetctl/pkg/metrics"
	"github.com/sahil-03/fleetctl/pkg/packager"
	"github.com/sahil-03/fleetctl/pkg/portalloc"
	"github.com/sahil-03/fleetctl/pkg/profiler"
	"github.com/sahil-03/fleetctl/pkg/shell"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// pruneRetries/pruneInterval bound step 9's wait for container exit before
// forcing removal (spec §4.5: "~10 probes at ~2s cadence"). pruneInterval
// is a var, not a const, so tests can shrink the cadence.
const pruneRetries = 10

var pruneInterval = 2 * time.Second

// Options controls the optional tail of the deployment sequence, and an
// optional sink for human-readable stage progress (pkg/api streams this
// straight to the /deploy response).
type Options struct {
	Tunnel   bool
	Prune    bool
	Progress io.Writer
}

// progressf writes a stage-progress line if w is set; a no-op otherwise.
func progressf(w io.Writer, format string, args ...any) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// Result is what a completed deployment hands back to the caller. Tunnel
// is non-nil only when Options.Tunnel was set; closing it tears down the
// forward and the underlying shell session together.
type Result struct {
	Replica types.ReplicaRecord
	Profile types.ProfileRecord
	Tunnel  io.Closer
}

// Executor drives one deployment from a DeploymentSpec to a running
// replica on a target cluster.
type Executor struct {
	pkgr *packager.Packager
}

// NewExecutor binds an Executor to an already-open Packager.
func NewExecutor(pkgr *packager.Packager) *Executor {
	return &Executor{pkgr: pkgr}
}

// Execute runs the full ten-step sequence from spec.md §4.5.
func (e *Executor) Execute(ctx context.Context, spec types.DeploymentSpec, cluster types.ClusterDescriptor, opts Options) (Result, error) {
	logger := log.WithCluster(cluster.ClusterID)
	timer := metrics.NewTimer()
	logger.Info().Str("image_tag", spec.ImageTag()).Str("cluster", cluster.ClusterID).Msg("starting deployment")

	result, err := e.execute(ctx, spec, cluster, opts, logger)

	status := "success"
	if err != nil {
		status = "failure"
		logger.Error().Err(err).Msg("deployment failed")
	} else {
		logger.Info().Str("instance_id", result.Replica.InstanceID).Msg("deployment complete")
	}
	metrics.DeploymentsTotal.WithLabelValues(status).Inc()
	timer.ObserveDurationVec(metrics.DeploymentDuration, "total")
	return result, err
}

func (e *Executor) execute(ctx context.Context, spec types.DeploymentSpec, cluster types.ClusterDescriptor, opts Options, logger zerolog.Logger) (Result, error) {
	// step 0 (spec.md §4.1's early check, folded into packaging per
	// SPEC_FULL.md §4.4): verify a hosted model reference before any
	// local or remote work begins.
	if spec.IsHostedRef() {
		progressf(opts.Progress, "verifying hosted model is accessible")
		if err := e.pkgr.CheckHostedModelAccessible(ctx, spec.ModelRef()); err != nil {
			return Result{}, types.NewDeployError("verify-model", err)
		}
	}

	// step 1: pre-flight on the operator host.
	progressf(opts.Progress, "checking local prerequisites")
	if err := ensureLocalPrerequisites(ctx); err != nil {
		return Result{}, types.NewDeployError("preflight", err)
	}

	creds, err := cluster.Credentials()
	if err != nil {
		return Result{}, types.NewDeployError("credentials", err)
	}
	progressf(opts.Progress, "connecting to %s", cluster.Hostname)
	sh, err := shell.Open(ctx, creds)
	if err != nil {
		return Result{}, types.NewDeployError("connect", err)
	}

	var remoteTarPath string
	var tunnelEstablished bool
	defer func() {
		if remoteTarPath != "" {
			if _, stderr, _, rmErr := sh.Exec(ctx, "rm -f "+remoteTarPath); rmErr != nil || strings.TrimSpace(stderr) != "" {
				logger.Warn().Str("stderr", stderr).AnErr("err", rmErr).Msg("failed to remove remote tarball")
			}
		}
		// The tunnel rides the same SSH connection; when one is active,
		// ownership of the shell passes to the returned Result.Tunnel
		// closer instead of being torn down here.
		if !tunnelEstablished {
			if closeErr := sh.Close(); closeErr != nil {
				logger.Warn().Err(closeErr).Msg("failed to close shell")
			}
		}
	}()

	// step 2: profile & verify remote.
	progressf(opts.Progress, "checking remote prerequisites")
	if err := ensureRemotePrerequisites(ctx, sh); err != nil {
		return Result{}, types.NewDeployError("remote-preflight", err)
	}
	progressf(opts.Progress, "profiling remote host")
	prof, err := profiler.New(sh).Profile(ctx)
	if err != nil {
		return Result{}, types.NewDeployError("profile", err)
	}
	if profilePath, pathErr := profiler.DefaultProfilePath(); pathErr != nil {
		logger.Warn().Err(pathErr).Msg("failed to resolve profile path")
	} else if saveErr := profiler.Save(profilePath, prof); saveErr != nil {
		logger.Warn().Err(saveErr).Msg("failed to save profile record")
	}

	// step 3: allocate ports.
	progressf(opts.Progress, "allocating ports")
	lease, err := portalloc.AllocatePair(ctx, sh)
	if err != nil {
		return Result{}, types.NewDeployError("allocate-ports", err)
	}

	// step 4: package.
	progressf(opts.Progress, "assembling build context")
	buildCtx, err := e.pkgr.AssembleContext(spec)
	if err != nil {
		return Result{}, types.NewDeployError("package", err)
	}
	defer e.pkgr.Cleanup(buildCtx)

	progressf(opts.Progress, "building image %s", spec.ImageTag())
	if err := e.pkgr.Build(ctx, buildCtx, spec.ImageTag(), prof.ContainerPlatform()); err != nil {
		return Result{}, types.NewDeployError("build", err)
	}

	tarballPath := filepath.Join(os.TempDir(), buildCtx.TarballTag)
	progressf(opts.Progress, "exporting image")
	if err := e.pkgr.Export(ctx, spec.ImageTag(), tarballPath); err != nil {
		return Result{}, types.NewDeployError("export", err)
	}
	defer os.Remove(tarballPath)

	// step 5: transfer.
	progressf(opts.Progress, "transferring image to remote host")
	remoteTarPath = buildCtx.TarballTag
	if err := sh.Upload(ctx, tarballPath, remoteTarPath); err != nil {
		return Result{}, types.NewDeployError("transfer", err)
	}

	// step 6: load.
	progressf(opts.Progress, "loading image on remote host")
	if _, stderr, _, err := sh.Exec(ctx, "sudo docker load -i "+remoteTarPath); err != nil {
		return Result{}, types.NewDeployError("load", fmt.Errorf("%w: %v", types.ErrLoad, err))
	} else if strings.TrimSpace(stderr) != "" {
		return Result{}, types.NewDeployError("load", fmt.Errorf("%w: %s", types.ErrLoad, stderr))
	}

	// step 7: run.
	progressf(opts.Progress, "starting container")
	containerID, err := runContainer(ctx, sh, spec, prof, lease)
	if err != nil {
		return Result{}, types.NewDeployError("run", err)
	}

	replica := types.ReplicaRecord{
		InstanceID:  types.InstanceID(cluster.ClusterID, containerID),
		ContainerID: containerID,
		ClusterRef:  cluster.ClusterID,
		Credentials: creds,
		Endpoint:    fmt.Sprintf("%s:%d", cluster.Hostname, lease.RemotePort),
		Status:      types.ReplicaRunning,
		Metrics:     types.ReplicaMetrics{LastHealthyAt: time.Now()},
		CreatedAt:   time.Now(),
	}

	// step 8: optionally tunnel.
	var tunnel io.Closer
	if opts.Tunnel {
		fwd, err := sh.Forward(ctx, lease.LocalPort, lease.RemotePort)
		if err != nil {
			return Result{}, types.NewDeployError("tunnel", err)
		}
		tunnelEstablished = true
		tunnel = &tunnelHandle{forward: fwd, shell: sh}
		fmt.Printf("TUNNEL_PORT:%d\n", lease.LocalPort)
		progressf(opts.Progress, "tunnel established on local port %d", lease.LocalPort)
	}

	// step 9: optionally prune.
	if opts.Prune {
		progressf(opts.Progress, "pruning container")
		if err := pruneContainer(ctx, sh, containerID, spec.ImageTag()); err != nil {
			logger.Warn().Err(err).Msg("prune encountered errors")
		}
	}

	progressf(opts.Progress, "deployment complete: %s", replica.InstanceID)
	return Result{Replica: replica, Profile: prof, Tunnel: tunnel}, nil
}

// tunnelHandle closes the port forward before the shell that carries it,
// so Result.Tunnel.Close() fully releases the deployment's SSH session.
type tunnelHandle struct {
	forward io.Closer
	shell   shell.Shell
}

func (t *tunnelHandle) Close() error {
	if err := t.forward.Close(); err != nil {
		t.shell.Close()
		return err
	}
	return t.shell.Close()
}

func runContainer(ctx context.Context, sh shell.Shell, spec types.DeploymentSpec, prof types.ProfileRecord, lease types.PortLease) (string, error) {
	args := []string{"sudo", "docker", "run"}
	if prof.HasGPUs {
		args = append(args, "--gpus", "all")
	}
	if token, ok := spec.HostedToken(); ok {
		args = append(args, "-e", "HF_TOKEN="+token)
	}
	args = append(args,
		"-e", fmt.Sprintf("PORT=%d", lease.RemotePort),
		"-d", "-p", fmt.Sprintf("%d:%d", lease.RemotePort, lease.RemotePort),
		spec.ImageTag(),
	)

	stdout, stderr, exitCode, err := sh.Exec(ctx, strings.Join(args, " "))
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrRun, err)
	}
	if exitCode != 0 || strings.TrimSpace(stderr) != "" {
		return "", fmt.Errorf("%w: %s", types.ErrRun, firstNonEmpty(stderr, stdout))
	}
	return strings.TrimSpace(stdout), nil
}

func pruneContainer(ctx context.Context, sh shell.Shell, containerID, imageTag string) error {
	for i := 0; i < pruneRetries; i++ {
		stdout, _, _, err := sh.Exec(ctx, fmt.Sprintf("sudo docker ps -a -q --filter id=%s", containerID))
		if err == nil && strings.TrimSpace(stdout) == "" {
			break
		}
		if i == pruneRetries-1 {
			sh.Exec(ctx, "sudo docker rm -f "+containerID)
			break
		}
		time.Sleep(pruneInterval)
	}

	_, stderr, _, err := sh.Exec(ctx, "sudo docker rmi -f "+imageTag)
	if err != nil {
		return fmt.Errorf("pruning image %s: %w", imageTag, err)
	}
	if strings.TrimSpace(stderr) != "" {
		return fmt.Errorf("pruning image %s: %s", imageTag, stderr)
	}
	return nil
}

// ensureLocalPrerequisites checks the operator host for the container
// runtime, installing it when the host is Linux and failing instructively
// on macOS (spec.md §4.5 step 1). File-sync is handled by pkg/shell's SFTP
// client rather than a separate local binary, so rsync is not checked here.
func ensureLocalPrerequisites(ctx context.Context) error {
	if localToolPresent(ctx, "docker") {
		return nil
	}
	if runtime.GOOS == "darwin" {
		return fmt.Errorf("%w: docker is not installed; install Docker Desktop from https://www.docker.com/products/docker-desktop", types.ErrConfiguration)
	}
	installCmd := "curl -fsSL https://get.docker.com -o get-docker.sh && sudo sh get-docker.sh && rm get-docker.sh"
	if err := exec.CommandContext(ctx, "sh", "-c", installCmd).Run(); err != nil {
		return fmt.Errorf("%w: installing docker locally: %v", types.ErrConfiguration, err)
	}
	return nil
}

func localToolPresent(ctx context.Context, tool string) bool {
	return exec.CommandContext(ctx, "sh", "-c", "command -v "+tool).Run() == nil
}

// ensureRemotePrerequisites installs docker on the remote host when
// missing (spec.md §4.5 step 2).
func ensureRemotePrerequisites(ctx context.Context, sh shell.Shell) error {
	stdout, _, _, err := sh.Exec(ctx, "command -v docker")
	if err == nil && strings.TrimSpace(stdout) != "" {
		return nil
	}
	installCmd := "curl -fsSL https://get.docker.com -o get-docker.sh && sudo sh get-docker.sh && rm get-docker.sh"
	if _, _, _, err := sh.Exec(ctx, installCmd); err != nil {
		return fmt.Errorf("%w: installing docker on remote host: %v", types.ErrConfiguration, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
