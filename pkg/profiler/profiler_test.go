package profiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahil-03/fleetctl/pkg/shell"
)

func fakeRemoteUbuntu() *shell.Fake {
	fake := shell.NewFake()
	fake.On("command -v docker", shell.FakeResponse{ExitCode: 0})
	fake.On("command -v sudo", shell.FakeResponse{ExitCode: 0})
	fake.On("uname -s", shell.FakeResponse{Stdout: "Linux"})
	fake.On("cat /etc/os-release | grep ^ID=", shell.FakeResponse{Stdout: `ID=ubuntu`})
	fake.On("uname -m", shell.FakeResponse{Stdout: "x86_64"})
	fake.On("nproc", shell.FakeResponse{Stdout: "16"})
	fake.On(`free -g | grep "Mem" | awk '{print $2}'`, shell.FakeResponse{Stdout: "64"})
	fake.On("nvidia-smi -L | wc -l", shell.FakeResponse{Stdout: "2"})
	fake.On("nvidia-smi --query-gpu=gpu_name --format=csv,noheader | wc -l", shell.FakeResponse{Stdout: "2"})
	fake.On("nvidia-smi --query-gpu=gpu_name --format=csv", shell.FakeResponse{Stdout: "name\nA100\nA100"})
	fake.On(`df -h | grep "/$" | awk '{print substr($4, 1, length($4)-1)}'`, shell.FakeResponse{Stdout: "512G"})
	return fake
}

func TestProfileRemoteUbuntu(t *testing.T) {
	fake := fakeRemoteUbuntu()
	p := New(fake)

	record, err := p.Profile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ubuntu", record.OSFamily)
	assert.Equal(t, "Linux", record.KernelName)
	assert.Equal(t, "linux", record.ContainerPlatformKernel)
	assert.Equal(t, "x86_64", record.MachineArch)
	assert.Equal(t, 16, record.CPUCount)
	assert.Equal(t, 64.0, record.MemoryTotalGB)
	assert.True(t, record.HasGPUs)
	assert.Equal(t, 2, record.GPUCount)
	assert.Equal(t, "linux/x86_64", record.ContainerPlatform())
}

func TestProfileRejectsUnsupportedOS(t *testing.T) {
	fake := shell.NewFake()
	fake.On("command -v docker", shell.FakeResponse{ExitCode: 0})
	fake.On("command -v sudo", shell.FakeResponse{ExitCode: 0})
	fake.On("uname -s", shell.FakeResponse{Stdout: "Plan9"})
	fake.On("systeminfo", shell.FakeResponse{Stdout: "", Stderr: "not found", ExitCode: 127})

	p := New(fake)
	_, err := p.Profile(context.Background())
	assert.Error(t, err)
}

func TestProfileFailsWhenRemoteToolMissing(t *testing.T) {
	fake := shell.NewFake()
	fake.On("command -v docker", shell.FakeResponse{ExitCode: 0})
	fake.On("command -v sudo", shell.FakeResponse{Stderr: "not found", ExitCode: 127})

	p := New(fake)
	_, err := p.Profile(context.Background())
	assert.Error(t, err)
}

func TestContainerPlatformKernelNormalizesDarwin(t *testing.T) {
	assert.Equal(t, "linux", containerPlatformKernel("Darwin"))
	assert.Equal(t, "linux", containerPlatformKernel("Linux"))
}

func TestLinuxDistroRejectsUnsupported(t *testing.T) {
	fake := shell.NewFake()
	fake.On("cat /etc/os-release | grep ^ID=", shell.FakeResponse{Stdout: `ID=arch`})
	p := New(fake)

	_, err := p.linuxDistro(context.Background())
	assert.Error(t, err)
}

func TestParseIntOrZero(t *testing.T) {
	assert.Equal(t, 16, parseIntOrZero(" 16\n"))
	assert.Equal(t, 0, parseIntOrZero("not a number"))
}
