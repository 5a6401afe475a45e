package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/mitchellh/go-homedir"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

// OpenSSHConfig configures the exec-based transport
type OpenSSHConfig struct {
	// SSHBinary is the ssh client. If empty, "ssh" from $PATH is used.
	SSHBinary string

	// SSHPassBinary wraps ssh when Password is set. If empty, "sshpass".
	SSHPassBinary string

	User     string
	Password string
	KeyFile  string
	Port     int
	Jump     string

	// StrictHostKey keeps the client's host key checking instead of
	// disabling it
	StrictHostKey bool

	// ExtraOptions is appended verbatim, split with shell quoting rules
	ExtraOptions string
}

// OpenSSHRunner runs remote jobs by executing the OpenSSH client
type OpenSSHRunner struct {
	config OpenSSHConfig
	extra  []string
	err    error
}

var _ Runner = (*OpenSSHRunner)(nil)

// NewOpenSSHRunner creates an exec-based runner. Problems with the
// configuration surface as an InvocationError on every Run.
func NewOpenSSHRunner(cfg OpenSSHConfig) *OpenSSHRunner {
	if cfg.SSHBinary == "" {
		cfg.SSHBinary = "ssh"
	}
	if cfg.SSHPassBinary == "" {
		cfg.SSHPassBinary = "sshpass"
	}

	r := &OpenSSHRunner{config: cfg}
	if cfg.User == "" {
		r.err = errors.New("ssh user is not set")
		return r
	}
	if cfg.ExtraOptions != "" {
		extra, err := shellwords.Parse(cfg.ExtraOptions)
		if err != nil {
			r.err = fmt.Errorf("parse ssh extra options: %w", err)
			return r
		}
		r.extra = extra
	}
	if cfg.KeyFile != "" {
		path, err := homedir.Expand(cfg.KeyFile)
		if err != nil {
			r.err = fmt.Errorf("expand key path %q: %w", cfg.KeyFile, err)
			return r
		}
		r.config.KeyFile = path
	}
	return r
}

// Args returns the argv for running command on address. The first element
// is the binary to execute.
func (r *OpenSSHRunner) Args(address, command string) []string {
	var args []string
	if r.config.Password != "" {
		args = append(args, r.config.SSHPassBinary, "-e")
	}
	args = append(args, r.config.SSHBinary)
	if !r.config.StrictHostKey {
		args = append(args,
			"-o", "StrictHostKeyChecking=no",
			"-o", "UserKnownHostsFile=/dev/null",
		)
	}
	args = append(args, "-o", "LogLevel=ERROR")
	if r.config.Port != 0 && r.config.Port != defaultPort {
		args = append(args, "-p", strconv.Itoa(r.config.Port))
	}
	if r.config.KeyFile != "" {
		args = append(args, "-i", r.config.KeyFile)
	}
	if r.config.Jump != "" {
		args = append(args, "-J", r.config.Jump)
	}
	args = append(args, r.extra...)
	args = append(args, r.config.User+"@"+address, command)
	return args
}

// Run executes command on t via the ssh client
func (r *OpenSSHRunner) Run(ctx context.Context, t target.Target, command string, timeout time.Duration) (Result, error) {
	if r.err != nil {
		return Result{}, &InvocationError{Target: t.Name, Err: r.err}
	}

	args := r.Args(t.Address, command)
	if _, err := exec.LookPath(args[0]); err != nil {
		return Result{}, &InvocationError{Target: t.Name, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = os.Environ()
	if r.config.Password != "" {
		// sshpass -e reads the password from the environment, keeping it off argv
		cmd.Env = append(cmd.Env, "SSHPASS="+r.config.Password)
	}
	// Give the client a moment to exit after the kill before Wait gives up
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	res := Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Command: strings.Join(args, " "),
	}

	if ctxErr := contextErr(ctx); ctxErr != nil {
		return res, ctxErr
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, &InvocationError{Target: t.Name, Err: runErr}
	}
	return res, nil
}
