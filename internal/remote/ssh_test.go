package remote

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

type execHandler func(command string) (stdout, stderr string, code int)

type testServer struct {
	addr     string
	forwards atomic.Int32
}

// startTestServer runs an in-process SSH server that accepts password and
// (optionally) one public key, answers exec requests with handler and
// forwards direct-tcpip channels.
func startTestServer(t *testing.T, password string, authorized ssh.PublicKey, handler execHandler) *testServer {
	t.Helper()

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(hostKey)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			if password != "" && string(pw) == password {
				return nil, nil
			}
			return nil, errors.New("password rejected")
		},
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if authorized != nil && bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("key rejected")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	srv := &testServer{addr: ln.Addr().String()}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serveConn(conn, cfg, handler)
		}
	}()
	return srv
}

func (s *testServer) serveConn(conn net.Conn, cfg *ssh.ServerConfig, handler execHandler) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return
	}
	defer func() { _ = sconn.Close() }()
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		switch nc.ChannelType() {
		case "session":
			go serveSession(nc, handler)
		case "direct-tcpip":
			s.forwards.Add(1)
			go serveForward(nc)
		default:
			_ = nc.Reject(ssh.UnknownChannelType, "unsupported channel type")
		}
	}
}

func serveSession(nc ssh.NewChannel, handler execHandler) {
	ch, reqs, err := nc.Accept()
	if err != nil {
		return
	}
	defer func() { _ = ch.Close() }()

	for req := range reqs {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		stdout, stderr, code := handler(payload.Command)
		_, _ = io.WriteString(ch, stdout)
		_, _ = io.WriteString(ch.Stderr(), stderr)
		status := struct{ Status uint32 }{uint32(code)}
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&status))
		return
	}
}

func serveForward(nc ssh.NewChannel) {
	var p struct {
		Host       string
		Port       uint32
		OriginHost string
		OriginPort uint32
	}
	if err := ssh.Unmarshal(nc.ExtraData(), &p); err != nil {
		_ = nc.Reject(ssh.ConnectionFailed, err.Error())
		return
	}
	dst, err := net.Dial("tcp", net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port))))
	if err != nil {
		_ = nc.Reject(ssh.ConnectionFailed, err.Error())
		return
	}
	ch, reqs, err := nc.Accept()
	if err != nil {
		_ = dst.Close()
		return
	}
	go ssh.DiscardRequests(reqs)
	go func() {
		_, _ = io.Copy(dst, ch)
		_ = dst.Close()
	}()
	go func() {
		_, _ = io.Copy(ch, dst)
		_ = ch.Close()
	}()
}

func echoHandler(command string) (string, string, int) {
	switch command {
	case "fail":
		return "partial\n", "boom\n", 3
	default:
		return "ran: " + command + "\n", "", 0
	}
}

func TestSSHRunner_Success(t *testing.T) {
	srv := startTestServer(t, "secret", nil, echoHandler)
	r := NewSSHRunner(SSHConfig{User: "cyberrange", Password: "secret", DialTimeout: 5 * time.Second})

	res, err := r.Run(context.Background(), target.New("dc01", srv.addr, 1), "deploy", 10*time.Second)

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "ran: deploy\n", res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.Contains(t, res.Command, "cyberrange@"+srv.addr)
	assert.NotContains(t, res.Command, "secret")
}

func TestSSHRunner_NonZeroExit(t *testing.T) {
	srv := startTestServer(t, "secret", nil, echoHandler)
	r := NewSSHRunner(SSHConfig{User: "u", Password: "secret"})

	res, err := r.Run(context.Background(), target.New("dc01", srv.addr, 1), "fail", 10*time.Second)

	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "partial\n", res.Stdout)
	assert.Equal(t, "boom\n", res.Stderr)
}

func TestSSHRunner_Timeout(t *testing.T) {
	srv := startTestServer(t, "secret", nil, func(string) (string, string, int) {
		time.Sleep(2 * time.Second)
		return "", "", 0
	})
	r := NewSSHRunner(SSHConfig{User: "u", Password: "secret"})

	start := time.Now()
	_, err := r.Run(context.Background(), target.New("dc01", srv.addr, 1), "sleep", 200*time.Millisecond)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSSHRunner_Cancelled(t *testing.T) {
	srv := startTestServer(t, "secret", nil, func(string) (string, string, int) {
		time.Sleep(2 * time.Second)
		return "", "", 0
	})
	r := NewSSHRunner(SSHConfig{User: "u", Password: "secret"})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := r.Run(ctx, target.New("dc01", srv.addr, 1), "sleep", time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestSSHRunner_WrongPasswordIsConnectFailure(t *testing.T) {
	srv := startTestServer(t, "secret", nil, echoHandler)
	r := NewSSHRunner(SSHConfig{User: "u", Password: "nope"})

	res, err := r.Run(context.Background(), target.New("dc01", srv.addr, 1), "deploy", 10*time.Second)

	require.NoError(t, err)
	assert.Equal(t, ExitConnectFailure, res.ExitCode)
	assert.Contains(t, res.Stderr, "handshake")
}

func TestSSHRunner_UnreachableIsConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	r := NewSSHRunner(SSHConfig{User: "u", Password: "secret", DialTimeout: time.Second})
	res, err := r.Run(context.Background(), target.New("dc01", addr, 1), "deploy", 10*time.Second)

	require.NoError(t, err)
	assert.Equal(t, ExitConnectFailure, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
}

func TestSSHRunner_NoCredentialsIsInvocationError(t *testing.T) {
	r := NewSSHRunner(SSHConfig{User: "u"})

	_, err := r.Run(context.Background(), target.New("dc01", "127.0.0.1:1", 1), "deploy", time.Second)

	require.Error(t, err)
	assert.True(t, IsInvocationError(err))
	assert.Contains(t, err.Error(), "dc01")
}

func TestSSHRunner_MissingUserIsInvocationError(t *testing.T) {
	r := NewSSHRunner(SSHConfig{Password: "secret"})

	_, err := r.Run(context.Background(), target.New("dc01", "127.0.0.1:1", 1), "deploy", time.Second)

	assert.True(t, IsInvocationError(err))
}

func TestSSHRunner_BadKeyFileIsInvocationError(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_bad")
	require.NoError(t, os.WriteFile(keyPath, []byte("not a key"), 0o600))

	r := NewSSHRunner(SSHConfig{User: "u", KeyFile: keyPath})
	_, err := r.Run(context.Background(), target.New("dc01", "127.0.0.1:1", 1), "deploy", time.Second)

	require.Error(t, err)
	assert.True(t, IsInvocationError(err))
	assert.Contains(t, err.Error(), "parse private key")
}

func TestSSHRunner_KeyAuth(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "test")
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	srv := startTestServer(t, "", sshPub, echoHandler)
	r := NewSSHRunner(SSHConfig{User: "u", KeyFile: keyPath})

	res, err := r.Run(context.Background(), target.New("dc01", srv.addr, 1), "deploy", 10*time.Second)

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestSSHRunner_ThroughJumpHost(t *testing.T) {
	jump := startTestServer(t, "secret", nil, func(string) (string, string, int) {
		return "", "commands must not run on the jump host", 1
	})
	dest := startTestServer(t, "secret", nil, echoHandler)

	r := NewSSHRunner(SSHConfig{User: "cyberrange", Password: "secret", Jump: "sshjump@" + jump.addr})
	res, err := r.Run(context.Background(), target.New("dc01", dest.addr, 1), "deploy", 10*time.Second)

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "ran: deploy\n", res.Stdout)
	assert.Equal(t, int32(1), jump.forwards.Load())
	assert.Contains(t, res.Command, "-J sshjump@"+jump.addr)
}

func TestParseJump(t *testing.T) {
	tests := []struct {
		jump     string
		wantUser string
		wantAddr string
	}{
		{"sshjump@ssh.cyberrange.rit.edu", "sshjump", "ssh.cyberrange.rit.edu:22"},
		{"bastion.example.com:2222", "default", "bastion.example.com:2222"},
		{"ops@10.0.0.1:2200", "ops", "10.0.0.1:2200"},
	}
	for _, tt := range tests {
		user, addr := parseJump(tt.jump, "default")
		assert.Equal(t, tt.wantUser, user, tt.jump)
		assert.Equal(t, tt.wantAddr, addr, tt.jump)
	}
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "10.1.1.5:22", hostPort("10.1.1.5", 22))
	assert.Equal(t, "10.1.1.5:2222", hostPort("10.1.1.5:2222", 22))
	assert.Equal(t, "[fe80::1]:22", hostPort("fe80::1", 22))
}

func TestHostKeyCallback_NotStrict(t *testing.T) {
	cb, err := HostKeyCallback(false, "/does/not/exist")
	require.NoError(t, err)
	assert.Nil(t, cb)
}

func TestHostKeyCallback_MissingKnownHosts(t *testing.T) {
	_, err := HostKeyCallback(true, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLines(t *testing.T) {
	assert.Nil(t, Lines(""))
	assert.Equal(t, []string{"a", "b"}, Lines("a\nb\n"))
	assert.Equal(t, []string{"a", "", "b"}, Lines("a\n\nb"))
}
