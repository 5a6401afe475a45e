package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 30 * time.Second
)

// SSHConfig holds native SSH transport configuration
type SSHConfig struct {
	// User is the login on every target
	User string

	// Password enables password and keyboard-interactive auth when set
	Password string

	// KeyFile is a private key path; "~" is expanded
	KeyFile string

	// UseAgent adds the keys offered by $SSH_AUTH_SOCK
	UseAgent bool

	// Port is the target SSH port. If zero, 22 is used.
	Port int

	// Jump is an optional bastion as [user@]host[:port]. Targets are reached
	// through a TCP forward on the bastion connection.
	Jump string

	// DialTimeout bounds TCP connect plus handshake for each hop.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, host keys are not checked (StrictHostKeyChecking=no).
	HostKeyCallback ssh.HostKeyCallback
}

// SSHRunner runs remote jobs over golang.org/x/crypto/ssh.
// Credentials are resolved once at construction; if that fails every Run
// returns an InvocationError.
type SSHRunner struct {
	config    SSHConfig
	auth      []ssh.AuthMethod
	authErr   error
	agentConn net.Conn
}

var _ Runner = (*SSHRunner)(nil)

// NewSSHRunner creates a native SSH runner
func NewSSHRunner(cfg SSHConfig) *SSHRunner {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // lab targets are rebuilt constantly
	}

	r := &SSHRunner{config: cfg}
	r.auth, r.agentConn, r.authErr = authMethods(cfg)
	return r
}

// Close releases the agent connection, if any
func (r *SSHRunner) Close() error {
	if r.agentConn != nil {
		return r.agentConn.Close()
	}
	return nil
}

// Run executes command on t, returning ErrTimeout if it exceeds timeout.
// Failing to reach or authenticate to the target is reported as exit code
// 255 so it is retried like any other failed attempt.
func (r *SSHRunner) Run(ctx context.Context, t target.Target, command string, timeout time.Duration) (Result, error) {
	if r.authErr != nil {
		return Result{}, &InvocationError{Target: t.Name, Err: r.authErr}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := Result{Command: r.describe(t, command)}

	client, err := r.dial(ctx, t.Address)
	if err != nil {
		if ctxErr := contextErr(ctx); ctxErr != nil {
			return res, ctxErr
		}
		res.ExitCode = ExitConnectFailure
		res.Stderr = err.Error()
		return res, nil
	}
	defer func() { _ = client.Close() }()

	// Closing the client unblocks session.Run when the attempt times out
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	session, err := client.NewSession()
	if err != nil {
		if ctxErr := contextErr(ctx); ctxErr != nil {
			return res, ctxErr
		}
		res.ExitCode = ExitConnectFailure
		res.Stderr = fmt.Sprintf("failed to create SSH session on %s: %v", t.Address, err)
		return res, nil
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	runErr := session.Run(command)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if ctxErr := contextErr(ctx); ctxErr != nil {
		return res, ctxErr
	}

	var exitErr *ssh.ExitError
	switch {
	case runErr == nil:
		res.ExitCode = 0
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitStatus()
	default:
		// Connection lost or the server never sent an exit status
		res.ExitCode = ExitConnectFailure
		if res.Stderr != "" && !strings.HasSuffix(res.Stderr, "\n") {
			res.Stderr += "\n"
		}
		res.Stderr += runErr.Error()
	}
	return res, nil
}

// dial connects to address, through the jump host when one is configured
func (r *SSHRunner) dial(ctx context.Context, address string) (*ssh.Client, error) {
	addr := hostPort(address, r.config.Port)

	if r.config.Jump == "" {
		return r.dialDirect(ctx, addr, r.config.User)
	}

	jumpUser, jumpAddr := parseJump(r.config.Jump, r.config.User)
	jump, err := r.dialDirect(ctx, jumpAddr, jumpUser)
	if err != nil {
		return nil, fmt.Errorf("jump host %s: %w", jumpAddr, err)
	}

	conn, err := jump.DialContext(ctx, "tcp", addr)
	if err != nil {
		_ = jump.Close()
		return nil, fmt.Errorf("failed to reach %s via %s: %w", addr, jumpAddr, err)
	}

	client, err := r.handshake(ctx, conn, addr, r.config.User)
	if err != nil {
		_ = jump.Close()
		return nil, err
	}

	go func() {
		_ = client.Wait()
		_ = jump.Close()
	}()
	return client, nil
}

func (r *SSHRunner) dialDirect(ctx context.Context, addr, user string) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: r.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return r.handshake(ctx, conn, addr, user)
}

// handshake runs the SSH handshake over conn, abandoning it if ctx ends
func (r *SSHRunner) handshake(ctx context.Context, conn net.Conn, addr, user string) (*ssh.Client, error) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            r.auth,
		HostKeyCallback: r.config.HostKeyCallback,
		Timeout:         r.config.DialTimeout,
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("SSH handshake with %s failed: %w", addr, err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func (r *SSHRunner) describe(t target.Target, command string) string {
	var b strings.Builder
	b.WriteString("ssh ")
	if r.config.Jump != "" {
		fmt.Fprintf(&b, "-J %s ", r.config.Jump)
	}
	fmt.Fprintf(&b, "-p %d %s@%s %q", r.config.Port, r.config.User, t.Address, command)
	return b.String()
}

// authMethods builds the auth chain from the configured credential sources
func authMethods(cfg SSHConfig) ([]ssh.AuthMethod, net.Conn, error) {
	var methods []ssh.AuthMethod
	var agentConn net.Conn

	if cfg.User == "" {
		return nil, nil, errors.New("ssh user is not set")
	}

	if cfg.KeyFile != "" {
		path, err := homedir.Expand(cfg.KeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("expand key path %q: %w", cfg.KeyFile, err)
		}
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if cfg.UseAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				return nil, nil, fmt.Errorf("connect to ssh-agent: %w", err)
			}
			agentConn = conn
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if cfg.Password != "" {
		password := cfg.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(methods) == 0 {
		return nil, nil, errors.New("no SSH credentials configured (set ssh.password, ssh.key_file or run an ssh-agent)")
	}
	return methods, agentConn, nil
}

// HostKeyCallback returns a known_hosts verifier when strict is set, or
// nil (accept any key) otherwise.
func HostKeyCallback(strict bool, knownHostsPath string) (ssh.HostKeyCallback, error) {
	if !strict {
		return nil, nil
	}
	if knownHostsPath == "" {
		knownHostsPath = "~/.ssh/known_hosts"
	}
	path, err := homedir.Expand(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("expand known_hosts path: %w", err)
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", path, err)
	}
	return cb, nil
}

// hostPort appends the default port unless address already carries one
func hostPort(address string, port int) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(port))
}

// parseJump splits [user@]host[:port], defaulting user and port 22
func parseJump(jump, defaultUser string) (user, addr string) {
	user = defaultUser
	host := jump
	if i := strings.LastIndex(jump, "@"); i >= 0 {
		user = jump[:i]
		host = jump[i+1:]
	}
	return user, hostPort(host, defaultPort)
}
