package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/sahil-03/fleetctl/pkg/log"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// uploadStallTimeout bounds how long a single upload may go without
// progress (spec §5: "~120s per stall").
const uploadStallTimeout = 120 * time.Second

// Shell is the minimal remote-execution capability every upstream
// component depends on. Defined as an interface so tests can substitute a
// local fake instead of dialing a real host.
type Shell interface {
	// Exec runs cmd and returns its combined stdout, stderr, and exit
	// code. A non-zero exit code is not itself an error; callers inspect
	// it explicitly.
	Exec(ctx context.Context, cmd string) (stdout, stderr string, exitCode int, err error)

	// Upload streams the local file at localPath to remotePath over SFTP.
	Upload(ctx context.Context, localPath, remotePath string) error

	// Forward opens a local listener that tunnels accepted connections to
	// remotePort on the far side of the shell's transport, over loopback.
	// The returned io.Closer tears the forward down.
	Forward(ctx context.Context, localPort, remotePort int) (io.Closer, error)

	Close() error
}

// sshShell is the production Shell backed by golang.org/x/crypto/ssh.
type sshShell struct {
	client *ssh.Client
	host   string
}

// Open dials a remote host and returns an authenticated Shell. Host keys
// are accepted automatically: operators run controlled clusters (spec
// §4.3), mirroring the source's paramiko AutoAddPolicy.
func Open(ctx context.Context, creds types.ShellCredentials) (Shell, error) {
	logger := log.WithComponent("shell")

	authMethods, err := authMethodsFor(creds)
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", creds.Hostname, creds.Port)
	cfg := &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", types.ErrTransport, addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		if isAuthError(err) {
			return nil, fmt.Errorf("%w: %s@%s: %v", types.ErrAuthFailure, creds.Username, addr, err)
		}
		return nil, fmt.Errorf("%w: handshake with %s: %v", types.ErrTransport, addr, err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	logger.Info().Str("host", addr).Msg("opened remote shell session")
	return &sshShell{client: client, host: addr}, nil
}

func authMethodsFor(creds types.ShellCredentials) ([]ssh.AuthMethod, error) {
	if pw, ok := creds.Password(); ok {
		return []ssh.AuthMethod{ssh.Password(pw)}, nil
	}

	keyPath, ok := creds.KeyPath()
	if !ok {
		return nil, fmt.Errorf("%w: credentials carry neither password nor key", types.ErrConfiguration)
	}
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading key file %s: %v", types.ErrConfiguration, keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing key file %s: %v", types.ErrConfiguration, keyPath, err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

func isAuthError(err error) bool {
	_, ok := err.(*ssh.PermanentCredentialError)
	if ok {
		return true
	}
	// golang.org/x/crypto/ssh reports rejected auth as an opaque "unable
	// to authenticate" error rather than a typed one.
	return err != nil && bytes.Contains([]byte(err.Error()), []byte("unable to authenticate"))
}

func (s *sshShell) Exec(ctx context.Context, cmd string) (string, string, int, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", "", -1, fmt.Errorf("%w: opening session on %s: %v", types.ErrTransport, s.host, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return stdout.String(), stderr.String(), -1, ctx.Err()
	case err := <-done:
		if err == nil {
			return stdout.String(), stderr.String(), 0, nil
		}
		var exitErr *ssh.ExitError
		if ok := errorsAsExitError(err, &exitErr); ok {
			return stdout.String(), stderr.String(), exitErr.ExitStatus(), nil
		}
		return stdout.String(), stderr.String(), -1, fmt.Errorf("%w: running %q on %s: %v", types.ErrTransport, cmd, s.host, err)
	}
}

func errorsAsExitError(err error, target **ssh.ExitError) bool {
	if ee, ok := err.(*ssh.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

func (s *sshShell) Upload(ctx context.Context, localPath, remotePath string) error {
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return fmt.Errorf("%w: opening sftp subsystem on %s: %v", types.ErrTransport, s.host, err)
	}
	defer client.Close()

	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", types.ErrTransport, localPath, err)
	}
	defer local.Close()

	remote, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("%w: creating %s on %s: %v", types.ErrTransport, remotePath, s.host, err)
	}
	defer remote.Close()

	return copyWithStallTimeout(ctx, remote, local)
}

// copyWithStallTimeout copies src to dst in chunks, failing if any single
// chunk takes longer than uploadStallTimeout — the transfer may legitimately
// run long overall, but it must keep making progress.
func copyWithStallTimeout(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, 256*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		type chunk struct {
			n   int
			err error
		}
		ch := make(chan chunk, 1)
		go func() {
			n, err := src.Read(buf)
			ch <- chunk{n, err}
		}()

		select {
		case c := <-ch:
			if c.n > 0 {
				if _, werr := dst.Write(buf[:c.n]); werr != nil {
					return fmt.Errorf("%w: writing during upload: %v", types.ErrTransport, werr)
				}
			}
			if c.err == io.EOF {
				return nil
			}
			if c.err != nil {
				return fmt.Errorf("%w: reading during upload: %v", types.ErrTransport, c.err)
			}
		case <-time.After(uploadStallTimeout):
			return fmt.Errorf("%w: upload stalled for %s", types.ErrTransport, uploadStallTimeout)
		}
	}
}

// forwardHandle closes a local port forward started by Forward.
type forwardHandle struct {
	listener net.Listener
}

func (f *forwardHandle) Close() error {
	return f.listener.Close()
}

// Forward implements a local-to-remote TCP forward over the SSH transport:
// connections accepted on loopback:localPort are proxied to
// loopback:remotePort as seen by the remote host (the §4.5.1 tunnel
// contract).
func (s *sshShell) Forward(ctx context.Context, localPort, remotePort int) (io.Closer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", localPort))
	if err != nil {
		return nil, fmt.Errorf("%w: listening on local port %d: %v", types.ErrTransport, localPort, err)
	}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return // listener closed
			}
			go s.proxyConn(conn, remotePort)
		}
	}()

	return &forwardHandle{listener: listener}, nil
}

func (s *sshShell) proxyConn(local net.Conn, remotePort int) {
	remote, err := s.client.Dial("tcp", fmt.Sprintf("localhost:%d", remotePort))
	if err != nil {
		local.Close()
		return
	}

	go func() {
		defer local.Close()
		defer remote.Close()
		io.Copy(remote, local)
	}()
	io.Copy(local, remote)
}

func (s *sshShell) Close() error {
	return s.client.Close()
}
