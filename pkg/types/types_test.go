package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPasswordCredentials(t *testing.T) {
	creds, err := NewPasswordCredentials("host1", "op", "hunter2", 0)
	require.NoError(t, err)
	assert.False(t, creds.IsKeyAuth())
	assert.Equal(t, defaultSSHPort, creds.Port)

	pw, ok := creds.Password()
	assert.True(t, ok)
	assert.Equal(t, "hunter2", pw)

	_, ok = creds.KeyPath()
	assert.False(t, ok)
}

func TestNewKeyCredentials(t *testing.T) {
	creds, err := NewKeyCredentials("host1", "op", "/home/op/.ssh/id_ed25519", 2222)
	require.NoError(t, err)
	assert.True(t, creds.IsKeyAuth())
	assert.Equal(t, 2222, creds.Port)

	key, ok := creds.KeyPath()
	assert.True(t, ok)
	assert.Equal(t, "/home/op/.ssh/id_ed25519", key)
}

func TestCredentialsRejectMissingSecret(t *testing.T) {
	_, err := NewPasswordCredentials("host1", "op", "", 0)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewKeyCredentials("host1", "op", "", 0)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestParseModelRefLocal(t *testing.T) {
	ref, err := ParseModelRef("/home/op/models/llama-1b", "")
	require.NoError(t, err)
	assert.False(t, ref.IsHosted())

	path, ok := ref.Path()
	assert.True(t, ok)
	assert.Equal(t, "/home/op/models/llama-1b", path)
}

func TestParseModelRefHosted(t *testing.T) {
	ref, err := ParseModelRef("https://huggingface.co/org/name", "T")
	require.NoError(t, err)
	assert.True(t, ref.IsHosted())

	repoID, ok := ref.RepoID()
	assert.True(t, ok)
	assert.Equal(t, "org/name", repoID)
	assert.Equal(t, "T", ref.Token())
}

func TestParseModelRefRejectsEmpty(t *testing.T) {
	_, err := ParseModelRef("", "")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestInstanceIDTruncatesContainerID(t *testing.T) {
	id := InstanceID("cluster1", "abcdef0123456789")
	assert.Equal(t, "cluster1-abcdef012345", id)
}

func TestInstanceIDShortContainerID(t *testing.T) {
	id := InstanceID("cluster1", "abc")
	assert.Equal(t, "cluster1-abc", id)
}

func TestDeployErrorUnwraps(t *testing.T) {
	cause := errors.New("docker build failed")
	err := NewDeployError("package", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "package")
}

func TestProfileRecordContainerPlatform(t *testing.T) {
	p := ProfileRecord{ContainerPlatformKernel: "linux", MachineArch: "arm64"}
	assert.Equal(t, "linux/arm64", p.ContainerPlatform())
}
