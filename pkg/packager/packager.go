package packager

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"

	"github.com/sahil-03/fleetctl/pkg/log"
	"github.com/sahil-03/fleetctl/pkg/metrics"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// defaultPortRangeStart/End match pkg/portalloc's default search window;
// the recipe's EXPOSE range has to cover whatever port got negotiated.
const (
	defaultPortRangeStart = 8000
	defaultPortRangeEnd   = 9000
)

// hostedModelAPIBase is the metadata endpoint used to verify a hosted
// model reference is reachable before any build work starts.
const hostedModelAPIBase = "https://huggingface.co/api/models/"

// Packager assembles build contexts and drives the local container engine
// to build and export images.
type Packager struct {
	cli *client.Client
}

// NewDockerClient opens a client to the local Docker Engine, negotiating
// the API version the daemon supports.
func NewDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: opening docker client: %v", types.ErrConfiguration, err)
	}
	return cli, nil
}

// New returns a Packager bound to an already-open docker client.
func New(cli *client.Client) *Packager {
	return &Packager{cli: cli}
}

// BuildContext is the assembled on-disk directory passed to Build, along
// with the file name for the tarball Export will produce (callers choose
// its directory). Cleanup removes Dir unconditionally; callers defer it
// from the point of assembly.
type BuildContext struct {
	Dir        string
	TarballTag string
}

// CheckHostedModelAccessible verifies a hosted model reference resolves
// before any local disk or engine work happens, matching the original
// deployer's early HfApi().model_info() check.
func (p *Packager) CheckHostedModelAccessible(ctx context.Context, ref types.ModelRef) error {
	return p.checkHostedModelAccessibleAt(ctx, hostedModelAPIBase, ref)
}

// checkHostedModelAccessibleAt is CheckHostedModelAccessible parameterized
// over the metadata endpoint base, so tests can point it at a local server.
func (p *Packager) checkHostedModelAccessibleAt(ctx context.Context, apiBase string, ref types.ModelRef) error {
	repoID, ok := ref.RepoID()
	if !ok {
		return fmt.Errorf("%w: model_ref is not a hosted reference", types.ErrConfiguration)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+repoID, nil)
	if err != nil {
		return fmt.Errorf("%w: building model-info request: %v", types.ErrHostedModelUnavailable, err)
	}
	if token := ref.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", types.ErrHostedModelUnavailable, repoID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %q is private and no usable token was provided", types.ErrHostedModelUnavailable, repoID)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %q does not exist", types.ErrHostedModelUnavailable, repoID)
	default:
		return fmt.Errorf("%w: %q returned status %d", types.ErrHostedModelUnavailable, repoID, resp.StatusCode)
	}
}

// AssembleContext materializes a build context directory for spec: the
// model (copied locally, or a link file for hosted refs), the operator's
// inference script, the core-authored entrypoint that resolves the
// model before handing off to it, the pinned requirements, and a
// rendered Dockerfile.
func (p *Packager) AssembleContext(spec types.DeploymentSpec) (BuildContext, error) {
	dir, err := os.MkdirTemp("", "fleetctl-build-*")
	if err != nil {
		return BuildContext{}, fmt.Errorf("%w: creating build context: %v", types.ErrBuild, err)
	}

	if err := p.stageModel(dir, spec.ModelRef()); err != nil {
		os.RemoveAll(dir)
		return BuildContext{}, err
	}

	if err := copyFile(spec.InferenceEntrypoint(), filepath.Join(dir, "inference_script.py")); err != nil {
		os.RemoveAll(dir)
		return BuildContext{}, fmt.Errorf("%w: copying inference script: %v", types.ErrBuild, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "entrypoint.py"), []byte(entrypointScript), 0o755); err != nil {
		os.RemoveAll(dir)
		return BuildContext{}, fmt.Errorf("%w: writing entrypoint: %v", types.ErrBuild, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte(requirements), 0o644); err != nil {
		os.RemoveAll(dir)
		return BuildContext{}, fmt.Errorf("%w: writing requirements: %v", types.ErrBuild, err)
	}

	recipe, err := renderRecipe(recipeParams{
		DefaultPort:    defaultPortRangeStart,
		PortRangeStart: defaultPortRangeStart,
		PortRangeEnd:   defaultPortRangeEnd,
	})
	if err != nil {
		os.RemoveAll(dir)
		return BuildContext{}, fmt.Errorf("%w: rendering Dockerfile: %v", types.ErrBuild, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), recipe, 0o644); err != nil {
		os.RemoveAll(dir)
		return BuildContext{}, fmt.Errorf("%w: writing Dockerfile: %v", types.ErrBuild, err)
	}

	return BuildContext{Dir: dir, TarballTag: strings.ReplaceAll(spec.ImageTag(), ":", "_") + ".tar"}, nil
}

func (p *Packager) stageModel(dir string, ref types.ModelRef) error {
	modelDir := filepath.Join(dir, "model")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating model directory: %v", types.ErrBuild, err)
	}

	if ref.IsHosted() {
		repoID, _ := ref.RepoID()
		return os.WriteFile(filepath.Join(modelDir, "hf_model_link.txt"), []byte(repoID), 0o644)
	}

	localPath, _ := ref.Path()
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("%w: reading model path %q: %v", types.ErrBuild, localPath, err)
	}
	if info.IsDir() {
		return copyTree(localPath, modelDir)
	}
	return copyFile(localPath, filepath.Join(modelDir, filepath.Base(localPath)))
}

// Build drives the local docker engine to build an image from ctx.Dir,
// scoped to platform (e.g. "linux/amd64" from a Profile Record).
func (p *Packager) Build(ctx context.Context, buildCtx BuildContext, imageTag, platform string) error {
	logger := log.WithComponent("packager")
	timer := metrics.NewTimer()

	tarStream, err := archive.TarWithOptions(buildCtx.Dir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("%w: taring build context: %v", types.ErrBuild, err)
	}
	defer tarStream.Close()

	resp, err := p.cli.ImageBuild(ctx, tarStream, dockertypes.ImageBuildOptions{
		Tags:       []string{imageTag},
		Dockerfile: "Dockerfile",
		Platform:   platform,
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrBuild, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("%w: draining build output: %v", types.ErrBuild, err)
	}

	timer.ObserveDurationVec(metrics.DeploymentDuration, "build")
	logger.Info().Str("image_tag", imageTag).Str("platform", platform).Msg("image built")
	return nil
}

// Export saves imageTag to a tarball on the local filesystem at tarPath.
func (p *Packager) Export(ctx context.Context, imageTag, tarPath string) error {
	logger := log.WithComponent("packager")
	timer := metrics.NewTimer()

	rc, err := p.cli.ImageSave(ctx, []string{imageTag}, image.SaveOptions{})
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrBuild, err)
	}
	defer rc.Close()

	out, err := os.Create(tarPath)
	if err != nil {
		return fmt.Errorf("%w: creating tarball: %v", types.ErrBuild, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("%w: writing tarball: %v", types.ErrBuild, err)
	}

	timer.ObserveDurationVec(metrics.DeploymentDuration, "export")
	logger.Info().Str("image_tag", imageTag).Str("tarball", tarPath).Msg("image exported")
	return nil
}

// Cleanup removes the build context directory. Safe to call more than
// once; callers defer it from the point AssembleContext succeeds.
func (p *Packager) Cleanup(buildCtx BuildContext) {
	if buildCtx.Dir == "" {
		return
	}
	if err := os.RemoveAll(buildCtx.Dir); err != nil {
		log.WithComponent("packager").Warn().Err(err).Str("dir", buildCtx.Dir).Msg("failed to remove build context")
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target)
	})
}
