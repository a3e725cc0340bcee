/*
Package profiler implements the Host Profiler (C1): it probes a host's
kernel, architecture, CPU/memory, GPU presence, and free disk, and returns
the result as a Profile Record. Save writes a record to a JSON document
(pkg/deploy saves each remote profile to DefaultProfilePath) and
LoadProfile reads it back without reopening a shell.
*/
package profiler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sahil-03/fleetctl/pkg/log"
	"github.com/sahil-03/fleetctl/pkg/shell"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// Profiler probes a host — local if shell is nil, otherwise the remote
// host reachable through shell — and emits a Profile Record.
type Profiler struct {
	shell shell.Shell
}

// New returns a Profiler. A nil shell profiles the operator's own host.
func New(sh shell.Shell) *Profiler {
	return &Profiler{shell: sh}
}

// Profile verifies tooling presence, infers the OS family, runs the
// corresponding command table, and returns the resulting ProfileRecord.
func (p *Profiler) Profile(ctx context.Context) (types.ProfileRecord, error) {
	logger := log.WithComponent("profiler")

	if err := p.verifyEnvironment(ctx); err != nil {
		return types.ProfileRecord{}, err
	}

	osFamily, err := p.inferOS(ctx)
	if err != nil {
		return types.ProfileRecord{}, err
	}

	cmds, ok := osCommands[osFamily]
	if !ok {
		return types.ProfileRecord{}, fmt.Errorf("%w: %s", types.ErrUnsupportedPlatform, osFamily)
	}

	record := types.ProfileRecord{OSFamily: osFamily, ProfiledAt: time.Now()}

	if out, err := p.run(ctx, cmds["kernel_name"]); err == nil {
		record.KernelName = out
	}
	record.ContainerPlatformKernel = containerPlatformKernel(record.KernelName)

	if out, err := p.run(ctx, cmds["machine"]); err == nil {
		record.MachineArch = out
	}
	if out, err := p.run(ctx, cmds["cpu_count"]); err == nil {
		record.CPUCount = parseIntOrZero(out)
	}
	if out, err := p.run(ctx, cmds["memory_total"]); err == nil {
		record.MemoryTotalGB = parseFloatOrZero(out)
	}
	if cmd, ok := cmds["has_gpus"]; ok {
		if out, err := p.run(ctx, cmd); err == nil {
			record.HasGPUs = parseIntOrZero(out) > 0
		}
	}
	if cmd, ok := cmds["gpu_count"]; ok {
		if out, err := p.run(ctx, cmd); err == nil {
			record.GPUCount = parseIntOrZero(out)
		}
	}
	if out, err := p.run(ctx, cmds["gpu_info"]); err == nil {
		record.GPUInfo = out
		if !record.HasGPUs {
			record.HasGPUs = record.GPUCount > 0
		}
	}
	if out, err := p.run(ctx, cmds["free_disk_space"]); err == nil {
		record.FreeDisk = out
	}

	logger.Info().
		Str("os_family", record.OSFamily).
		Str("platform", record.ContainerPlatform()).
		Bool("has_gpus", record.HasGPUs).
		Msg("profiled host")

	return record, nil
}

// containerPlatformKernel normalizes the raw kernel identity to the token
// used by the container platform string. Darwin hosts always build Linux
// containers; the factual kernel name stays in KernelName.
func containerPlatformKernel(kernelName string) string {
	if kernelName == "Darwin" {
		return "linux"
	}
	return strings.ToLower(kernelName)
}

func (p *Profiler) inferOS(ctx context.Context) (string, error) {
	out, err := p.run(ctx, "uname -s")
	if err == nil && out != "" {
		switch out {
		case "Darwin":
			return "mac_os", nil
		case "Linux":
			distro, derr := p.linuxDistro(ctx)
			if derr == nil && distro != "" {
				return distro, nil
			}
		}
	}

	if out, err := p.run(ctx, "systeminfo"); err == nil && strings.Contains(out, "Windows") {
		return "windows", nil
	}

	return "", fmt.Errorf("%w: unable to infer OS family", types.ErrUnsupportedPlatform)
}

func (p *Profiler) linuxDistro(ctx context.Context) (string, error) {
	out, err := p.run(ctx, "cat /etc/os-release | grep ^ID=")
	if err != nil || out == "" {
		return "", fmt.Errorf("%w: could not read /etc/os-release", types.ErrUnsupportedPlatform)
	}
	parts := strings.SplitN(out, "=", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: malformed os-release ID line %q", types.ErrUnsupportedPlatform, out)
	}
	distro := strings.Trim(strings.TrimSpace(parts[1]), `"`)
	for _, supported := range supportedLinuxDistros {
		if distro == supported {
			return distro, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported linux distro %q", types.ErrUnsupportedPlatform, distro)
}

// verifyEnvironment checks that required tools exist: the container
// builder and file-sync tool locally, the container runtime and
// privileged-execute tool remotely.
func (p *Profiler) verifyEnvironment(ctx context.Context) error {
	logger := log.WithComponent("profiler")

	logger.Info().Msg("verifying local environment")
	for _, tool := range []string{"docker", "rsync"} {
		if !p.localToolPresent(ctx, tool) {
			return fmt.Errorf("%w: %s is not installed locally", types.ErrConfiguration, tool)
		}
	}

	if p.shell != nil {
		logger.Info().Msg("verifying remote environment")
		for _, tool := range []string{"docker", "sudo"} {
			if !p.remoteToolPresent(ctx, tool) {
				return fmt.Errorf("%w: %s is not installed on remote host", types.ErrConfiguration, tool)
			}
		}
	}

	logger.Info().Msg("environment verification complete")
	return nil
}

func (p *Profiler) localToolPresent(ctx context.Context, tool string) bool {
	cmd := exec.CommandContext(ctx, "sh", "-c", fmt.Sprintf("command -v %s", tool))
	return cmd.Run() == nil
}

func (p *Profiler) remoteToolPresent(ctx context.Context, tool string) bool {
	_, stderr, exitCode, err := p.shell.Exec(ctx, fmt.Sprintf("command -v %s", tool))
	return err == nil && exitCode == 0 && stderr == ""
}

// run executes cmd locally or remotely depending on whether a shell is
// configured, returning trimmed stdout.
func (p *Profiler) run(ctx context.Context, cmd string) (string, error) {
	if cmd == "" {
		return "", fmt.Errorf("empty command")
	}
	if p.shell != nil {
		stdout, _, _, err := p.shell.Exec(ctx, cmd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(stdout), nil
	}

	out, err := exec.CommandContext(ctx, "sh", "-c", cmd).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func parseIntOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseFloatOrZero(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// DefaultProfilePath returns $FLEETCTL_HOME/profile.json, defaulting
// FLEETCTL_HOME to ~/.fleetctl when unset.
func DefaultProfilePath() (string, error) {
	if home := os.Getenv("FLEETCTL_HOME"); home != "" {
		return filepath.Join(home, "profile.json"), nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, ".fleetctl", "profile.json"), nil
}

// Save persists a ProfileRecord as JSON to path, creating parent
// directories as needed. Overwrites any existing document at path.
func Save(path string, record types.ProfileRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating profile directory: %v", types.ErrConfiguration, err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling profile record: %v", types.ErrConfiguration, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing profile document: %v", types.ErrConfiguration, err)
	}
	return nil
}

// LoadProfile reads a previously-saved ProfileRecord from path.
func LoadProfile(path string) (types.ProfileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ProfileRecord{}, fmt.Errorf("%w: reading profile document: %v", types.ErrConfiguration, err)
	}
	var record types.ProfileRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return types.ProfileRecord{}, fmt.Errorf("%w: parsing profile document: %v", types.ErrConfiguration, err)
	}
	return record, nil
}
