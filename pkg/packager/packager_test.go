package packager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahil-03/fleetctl/pkg/types"
)

func TestRenderRecipeIncludesPortRangeAndDefaultPort(t *testing.T) {
	out, err := renderRecipe(recipeParams{DefaultPort: 8000, PortRangeStart: 8000, PortRangeEnd: 9000})
	require.NoError(t, err)
	assert.Contains(t, string(out), "ENV PORT=8000")
	assert.Contains(t, string(out), "EXPOSE 8000-9000")
}

func TestStageModelHostedWritesLinkFile(t *testing.T) {
	dir := t.TempDir()
	ref, err := types.ParseModelRef("https://huggingface.co/org/model", "tok")
	require.NoError(t, err)

	p := &Packager{}
	require.NoError(t, p.stageModel(dir, ref))

	data, err := os.ReadFile(filepath.Join(dir, "model", "hf_model_link.txt"))
	require.NoError(t, err)
	assert.Equal(t, "org/model", string(data))
}

func TestStageModelLocalFileCopiesIntoModelDir(t *testing.T) {
	srcDir := t.TempDir()
	modelFile := filepath.Join(srcDir, "weights.bin")
	require.NoError(t, os.WriteFile(modelFile, []byte("weights"), 0o644))

	ref, err := types.ParseModelRef(modelFile, "")
	require.NoError(t, err)

	dstDir := t.TempDir()
	p := &Packager{}
	require.NoError(t, p.stageModel(dstDir, ref))

	data, err := os.ReadFile(filepath.Join(dstDir, "model", "weights.bin"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
}

func TestStageModelLocalDirCopiesTree(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "config.json"), []byte("{}"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "shards"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "shards", "shard0"), []byte("x"), 0o644))

	ref, err := types.ParseModelRef(srcDir, "")
	require.NoError(t, err)

	dstDir := t.TempDir()
	p := &Packager{}
	require.NoError(t, p.stageModel(dstDir, ref))

	assert.FileExists(t, filepath.Join(dstDir, "model", "config.json"))
	assert.FileExists(t, filepath.Join(dstDir, "model", "shards", "shard0"))
}

func TestCheckHostedModelAccessibleOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := &Packager{}
	ref, err := types.ParseModelRef("https://huggingface.co/org/model", "")
	require.NoError(t, err)

	err = p.checkHostedModelAccessibleAt(context.Background(), srv.URL+"/", ref)
	assert.NoError(t, err)
}

func TestCheckHostedModelAccessibleRejectsPrivateWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := &Packager{}
	ref, err := types.ParseModelRef("https://huggingface.co/org/private-model", "")
	require.NoError(t, err)

	err = p.checkHostedModelAccessibleAt(context.Background(), srv.URL+"/", ref)
	assert.ErrorIs(t, err, types.ErrHostedModelUnavailable)
}

func TestAssembleContextBuildsCompleteDirectory(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "weights.bin"), []byte("w"), 0o644))

	entrypoint := filepath.Join(t.TempDir(), "entrypoint.py")
	require.NoError(t, os.WriteFile(entrypoint, []byte("print('hi')"), 0o644))

	ref, err := types.ParseModelRef(srcDir, "")
	require.NoError(t, err)
	creds, err := types.NewPasswordCredentials("host", "user", "pw", 0)
	require.NoError(t, err)
	spec, err := types.NewDeploymentSpec(ref, entrypoint, "demo:latest", creds)
	require.NoError(t, err)

	p := &Packager{}
	buildCtx, err := p.AssembleContext(spec)
	require.NoError(t, err)
	defer p.Cleanup(buildCtx)

	assert.FileExists(t, filepath.Join(buildCtx.Dir, "Dockerfile"))
	assert.FileExists(t, filepath.Join(buildCtx.Dir, "requirements.txt"))
	assert.FileExists(t, filepath.Join(buildCtx.Dir, "inference_script.py"))
	assert.FileExists(t, filepath.Join(buildCtx.Dir, "model", "weights.bin"))
	assert.Equal(t, "demo_latest.tar", buildCtx.TarballTag)

	launcher, err := os.ReadFile(filepath.Join(buildCtx.Dir, "entrypoint.py"))
	require.NoError(t, err)
	assert.Contains(t, string(launcher), "snapshot_download")
	assert.Contains(t, string(launcher), "inference_script.py")
}

func TestAssembleContextHostedRefEntrypointDownloadsBeforeHandoff(t *testing.T) {
	entrypointSrc := filepath.Join(t.TempDir(), "inference.py")
	require.NoError(t, os.WriteFile(entrypointSrc, []byte("print('serve')"), 0o644))

	ref, err := types.ParseModelRef("https://huggingface.co/org/model", "tok")
	require.NoError(t, err)
	creds, err := types.NewPasswordCredentials("host", "user", "pw", 0)
	require.NoError(t, err)
	spec, err := types.NewDeploymentSpec(ref, entrypointSrc, "demo:latest", creds)
	require.NoError(t, err)

	p := &Packager{}
	buildCtx, err := p.AssembleContext(spec)
	require.NoError(t, err)
	defer p.Cleanup(buildCtx)

	assert.FileExists(t, filepath.Join(buildCtx.Dir, "model", "hf_model_link.txt"))
	assert.FileExists(t, filepath.Join(buildCtx.Dir, "inference_script.py"))

	entrypoint, err := os.ReadFile(filepath.Join(buildCtx.Dir, "entrypoint.py"))
	require.NoError(t, err)
	assert.Contains(t, string(entrypoint), "hf_model_link.txt")
	assert.Contains(t, string(entrypoint), "HF_TOKEN")
}
