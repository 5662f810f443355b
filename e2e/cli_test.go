package e2e_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croftja/parley/internal/api"
	"github.com/croftja/parley/internal/chat"
	"github.com/croftja/parley/internal/factory"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	chatAddr   string
}

func newCLIRunner(t *testing.T, serverURL, chatAddr string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(projectRoot, "bin", "parley-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/parley")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		chatAddr:   chatAddr,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--chat-addr", r.chatAddr,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

func freePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return port
}

// startTestServer runs a full application: chat listener plus status API.
func startTestServer(t *testing.T) (serverURL, chatAddr string) {
	t.Helper()

	chatCfg := chat.DefaultServerConfig()
	chatCfg.Host = "127.0.0.1"
	chatCfg.Port = freePort(t)
	chatCfg.ShutdownTimeout = 5 * time.Second

	apiCfg := api.DefaultServerConfig()
	apiCfg.Host = "127.0.0.1"
	apiCfg.Port = freePort(t)

	app, err := factory.New(factory.Config{
		ChatConfig: chatCfg,
		APIConfig:  apiCfg,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, app.ChatServer.Listen())
	go func() { _ = app.ChatServer.Serve(ctx) }()
	go func() { _ = app.StatusServer.Start() }()

	t.Cleanup(func() {
		_ = app.ChatServer.Shutdown(context.Background())
		_ = app.StatusServer.Shutdown(context.Background())
		cancel()
	})

	serverURL = fmt.Sprintf("http://127.0.0.1:%d", apiCfg.Port)
	chatAddr = fmt.Sprintf("127.0.0.1:%d", chatCfg.Port)

	waitForHealth(t, serverURL)
	return serverURL, chatAddr
}

func waitForHealth(t *testing.T, serverURL string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(serverURL + "/api/v1/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("server did not become healthy")
}

func TestHealthCommand(t *testing.T) {
	serverURL, chatAddr := startTestServer(t)
	cli := newCLIRunner(t, serverURL, chatAddr)

	output, err := cli.run("health")
	require.NoError(t, err, "health failed: %s", output)

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &health))
	assert.Equal(t, "ok", health.Status)
}

func TestStatusCommand(t *testing.T) {
	serverURL, chatAddr := startTestServer(t)
	cli := newCLIRunner(t, serverURL, chatAddr)

	output, err := cli.run("status")
	require.NoError(t, err, "status failed: %s", output)

	var status struct {
		Online      []string `json:"online"`
		OnlineCount int      `json:"online_count"`
		MaxSessions int      `json:"max_sessions"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &status))
	assert.Empty(t, status.Online)
	assert.Equal(t, 10, status.MaxSessions)
}

// chatProc drives the interactive chat command through pipes.
type chatProc struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu  sync.Mutex
	out strings.Builder
}

func startChat(t *testing.T, cli *cliRunner) *chatProc {
	t.Helper()

	cmd := exec.Command(cli.binaryPath, "--chat-addr", cli.chatAddr, "chat")
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)

	p := &chatProc{cmd: cmd, stdin: stdin}
	require.NoError(t, cmd.Start())

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				p.mu.Lock()
				p.out.Write(buf[:n])
				p.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	t.Cleanup(func() {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	return p
}

func (p *chatProc) output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

// expect waits until the accumulated output contains substr.
func (p *chatProc) expect(t *testing.T, substr string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(p.output(), substr) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected output to contain %q, got:\n%s", substr, p.output())
}

func (p *chatProc) send(t *testing.T, line string) {
	t.Helper()
	_, err := io.WriteString(p.stdin, line+"\n")
	require.NoError(t, err)
}

func TestChatCommandFullSession(t *testing.T) {
	serverURL, chatAddr := startTestServer(t)
	cli := newCLIRunner(t, serverURL, chatAddr)

	p := startChat(t, cli)
	p.expect(t, "You need to log in or create an account.")

	p.send(t, "2")
	p.expect(t, "Create username: ")
	p.send(t, "Alice123")
	p.expect(t, "Create password:")
	p.send(t, "pass1")
	p.expect(t, "[Alice123] has entered the chat.")

	// Status API now sees the user online
	output, err := cli.run("status")
	require.NoError(t, err, "status failed: %s", output)
	var status struct {
		Online []string `json:"online"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &status))
	assert.Equal(t, []string{"Alice123"}, status.Online)

	// A broadcast is echoed back to its sender
	p.send(t, "talking to myself")
	p.expect(t, "Alice123: talking to myself")

	p.send(t, "quit()")
	require.NoError(t, p.cmd.Wait())
}
