package types

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ProfileRecord captures the probed characteristics of a host: kernel,
// architecture, CPU/memory, GPU presence, and free disk. Produced by
// pkg/profiler, consumed by pkg/packager (container platform string) and
// pkg/deploy (GPU passthrough decision).
type ProfileRecord struct {
	OSFamily string // "mac_os", "ubuntu", "centos", "windows", ...

	// KernelName is the raw kernel identity reported by the host (e.g.
	// "Darwin", "Linux"). ContainerPlatformKernel is the normalized token
	// used for the container platform string: macOS hosts always build
	// Linux containers, so that field reads "linux" even when KernelName
	// is "Darwin".
	KernelName               string
	ContainerPlatformKernel  string
	MachineArch              string
	CPUCount                 int
	MemoryTotalGB            float64
	HasGPUs                  bool
	GPUCount                 int
	GPUInfo                  string
	FreeDisk                 string
	ProfiledAt               time.Time
}

// ContainerPlatform returns the platform string passed to the image
// builder, e.g. "linux/amd64".
func (p ProfileRecord) ContainerPlatform() string {
	return p.ContainerPlatformKernel + "/" + p.MachineArch
}

// credentialKind distinguishes the one secret a ShellCredentials carries.
type credentialKind int

const (
	credentialPassword credentialKind = iota
	credentialKey
)

// ShellCredentials identifies a remote host and exactly one means of
// authenticating to it. The zero value is not usable; construct via
// NewPasswordCredentials or NewKeyCredentials, which enforce the
// password-XOR-key invariant at the boundary instead of leaving it to be
// checked ad hoc by every caller.
type ShellCredentials struct {
	Hostname string
	Port     int
	Username string

	kind     credentialKind
	password string
	keyPath  string
}

const defaultSSHPort = 22

// NewPasswordCredentials builds ShellCredentials authenticated by password.
// port of 0 selects the default SSH port.
func NewPasswordCredentials(hostname, username, password string, port int) (ShellCredentials, error) {
	if hostname == "" || username == "" {
		return ShellCredentials{}, fmt.Errorf("%w: hostname and username are required", ErrConfiguration)
	}
	if password == "" {
		return ShellCredentials{}, fmt.Errorf("%w: password must not be empty", ErrConfiguration)
	}
	if port == 0 {
		port = defaultSSHPort
	}
	return ShellCredentials{
		Hostname: hostname,
		Port:     port,
		Username: username,
		kind:     credentialPassword,
		password: password,
	}, nil
}

// NewKeyCredentials builds ShellCredentials authenticated by a private key
// file. port of 0 selects the default SSH port.
func NewKeyCredentials(hostname, username, keyPath string, port int) (ShellCredentials, error) {
	if hostname == "" || username == "" {
		return ShellCredentials{}, fmt.Errorf("%w: hostname and username are required", ErrConfiguration)
	}
	if keyPath == "" {
		return ShellCredentials{}, fmt.Errorf("%w: key_path must not be empty", ErrConfiguration)
	}
	if port == 0 {
		port = defaultSSHPort
	}
	return ShellCredentials{
		Hostname: hostname,
		Port:     port,
		Username: username,
		kind:     credentialKey,
		keyPath:  keyPath,
	}, nil
}

// IsKeyAuth reports whether these credentials authenticate via private key
// rather than password.
func (c ShellCredentials) IsKeyAuth() bool {
	return c.kind == credentialKey
}

// Password returns the password secret and whether one is set.
func (c ShellCredentials) Password() (string, bool) {
	return c.password, c.kind == credentialPassword
}

// KeyPath returns the private key path and whether one is set.
func (c ShellCredentials) KeyPath() (string, bool) {
	return c.keyPath, c.kind == credentialKey
}

// modelRefKind distinguishes a local checkpoint from a hosted repository
// reference.
type modelRefKind int

const (
	modelRefLocal modelRefKind = iota
	modelRefHosted
)

// ModelRef is either a filesystem path to a local model checkpoint or a
// reference to a model hosted on an external hub. Construct via
// ParseModelRef; the interpretation is inferred from the shape of raw
// rather than carried as a separate flag.
type ModelRef struct {
	kind   modelRefKind
	path   string
	repoID string
	token  string
}

// ParseModelRef interprets raw as a hosted-repo URL when it carries a
// scheme, otherwise as a local filesystem path. token is attached to
// hosted refs only; it is ignored (and should be empty) for local refs.
func ParseModelRef(raw string, token string) (ModelRef, error) {
	if raw == "" {
		return ModelRef{}, fmt.Errorf("%w: model_ref must not be empty", ErrConfiguration)
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		repoID := strings.TrimPrefix(u.Path, "/")
		if repoID == "" {
			return ModelRef{}, fmt.Errorf("%w: hosted model_ref %q has no repository path", ErrConfiguration, raw)
		}
		return ModelRef{kind: modelRefHosted, repoID: repoID, token: token}, nil
	}
	return ModelRef{kind: modelRefLocal, path: raw}, nil
}

// IsHosted reports whether this reference names a hosted model repository.
func (m ModelRef) IsHosted() bool {
	return m.kind == modelRefHosted
}

// Path returns the local filesystem path and whether this ref is local.
func (m ModelRef) Path() (string, bool) {
	return m.path, m.kind == modelRefLocal
}

// RepoID returns the hosted repository identifier and whether this ref is
// hosted.
func (m ModelRef) RepoID() (string, bool) {
	return m.repoID, m.kind == modelRefHosted
}

// Token returns the operator-supplied hub token, if any.
func (m ModelRef) Token() string {
	return m.token
}

// DeploymentSpec fully describes one deployment request. Immutable once
// constructed.
type DeploymentSpec struct {
	modelRef            ModelRef
	inferenceEntrypoint string
	imageTag            string
	credentials         ShellCredentials
}

// NewDeploymentSpec validates and constructs a DeploymentSpec.
func NewDeploymentSpec(modelRef ModelRef, inferenceEntrypoint, imageTag string, credentials ShellCredentials) (DeploymentSpec, error) {
	if inferenceEntrypoint == "" {
		return DeploymentSpec{}, fmt.Errorf("%w: inference_entrypoint must not be empty", ErrConfiguration)
	}
	if imageTag == "" {
		return DeploymentSpec{}, fmt.Errorf("%w: image_tag must not be empty", ErrConfiguration)
	}
	if modelRef.IsHosted() {
		if _, ok := modelRef.RepoID(); !ok {
			return DeploymentSpec{}, fmt.Errorf("%w: hosted model_ref missing repo id", ErrConfiguration)
		}
	}
	return DeploymentSpec{
		modelRef:            modelRef,
		inferenceEntrypoint: inferenceEntrypoint,
		imageTag:            imageTag,
		credentials:         credentials,
	}, nil
}

func (d DeploymentSpec) ModelRef() ModelRef                   { return d.modelRef }
func (d DeploymentSpec) InferenceEntrypoint() string           { return d.inferenceEntrypoint }
func (d DeploymentSpec) ImageTag() string                      { return d.imageTag }
func (d DeploymentSpec) Credentials() ShellCredentials         { return d.credentials }
func (d DeploymentSpec) IsHostedRef() bool                     { return d.modelRef.IsHosted() }
func (d DeploymentSpec) HostedToken() (string, bool) {
	if !d.modelRef.IsHosted() {
		return "", false
	}
	return d.modelRef.Token(), d.modelRef.Token() != ""
}

// ReplicaStatus is the lifecycle state of a ReplicaRecord.
type ReplicaStatus string

const (
	ReplicaStarting ReplicaStatus = "starting"
	ReplicaRunning  ReplicaStatus = "running"
	ReplicaStopping ReplicaStatus = "stopping"
	ReplicaDead     ReplicaStatus = "dead"
)

// ReplicaMetrics carries per-replica state that the distilled spec omits
// but the original deployer's polling loop maintains. pkg/deploy sets
// LastHealthyAt when it creates the record; nothing updates either field
// afterwards, and InFlight is not populated (balancer.LeastConnections
// keeps its own in-flight counts).
type ReplicaMetrics struct {
	InFlight      int
	LastHealthyAt time.Time
}

// ReplicaRecord is a single running container instance of the inference
// server, owned exclusively by pkg/fleet.
type ReplicaRecord struct {
	InstanceID  string
	ContainerID string
	ClusterRef  string
	Credentials ShellCredentials
	Endpoint    string // host:port
	Status      ReplicaStatus
	Metrics     ReplicaMetrics
	CreatedAt   time.Time
}

// InstanceID derives the canonical replica identifier from a cluster id and
// a container id, truncating the container id the way the original deployer
// does ("{cluster_id}-{container_id[:12]}").
func InstanceID(clusterID, containerID string) string {
	short := containerID
	if len(short) > 12 {
		short = short[:12]
	}
	return clusterID + "-" + short
}

// ClusterDescriptor names a remote host reachable by shell credentials.
// Loaded from operator configuration at startup; read-only at runtime.
type ClusterDescriptor struct {
	ClusterID string
	Hostname  string
	Username  string
	KeyPath   string
}

// Credentials builds ShellCredentials for this cluster.
func (c ClusterDescriptor) Credentials() (ShellCredentials, error) {
	return NewKeyCredentials(c.Hostname, c.Username, c.KeyPath, 0)
}

// QueuedRequest is one pending inference request sitting in pkg/queue.
type QueuedRequest struct {
	RequestID  string
	Payload    []byte
	EnqueuedAt time.Time
}

// PortLease is the transient {local, remote} port pair produced by
// pkg/portalloc for a single deployment. Never persisted.
type PortLease struct {
	LocalPort  int
	RemotePort int
}

// Error taxonomy (spec §7). Each sentinel is wrapped with stage-specific
// detail via fmt.Errorf("...: %w", ErrX); callers match with errors.Is.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrHostedModelUnavailable = errors.New("hosted model unavailable")
	ErrTransport            = errors.New("transport error")
	ErrBuild                = errors.New("build error")
	ErrLoad                 = errors.New("load error")
	ErrRun                  = errors.New("run error")
	ErrCapacity             = errors.New("capacity error")
	ErrDispatch             = errors.New("dispatch error")
	ErrFatalInternal        = errors.New("fatal internal error")
	ErrAuthFailure          = errors.New("authentication failure")
	ErrUnsupportedPlatform  = errors.New("unsupported platform")
	ErrNoFreePort           = errors.New("no free port in range")
)

// DeployError names the pipeline stage that failed alongside the
// underlying cause, so callers can report the failing stage without
// string-matching the error text.
type DeployError struct {
	Stage string
	Err   error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy failed at stage %q: %v", e.Stage, e.Err)
}

func (e *DeployError) Unwrap() error {
	return e.Err
}

// NewDeployError wraps err with the name of the failing deployment stage.
func NewDeployError(stage string, err error) *DeployError {
	return &DeployError{Stage: stage, Err: err}
}
