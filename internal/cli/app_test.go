package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evault-dev/evault/internal/logging"
	"github.com/evault-dev/evault/internal/vault"
	"github.com/evault-dev/evault/internal/vault/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{StorageRoot: t.TempDir(), Difficulty: 1}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	v, err := vault.New(cfg, logger)
	require.NoError(t, err)

	var out bytes.Buffer
	return &App{vault: v, out: &out}, &out
}

func stubPassword(t *testing.T, password string) {
	t.Helper()
	old := readPassword
	readPassword = func(fd int) ([]byte, error) { return []byte(password), nil }
	t.Cleanup(func() { readPassword = old })
}

func feed(a *App, lines ...string) {
	a.reader = bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func registerAndLogin(t *testing.T, a *App, username string) {
	t.Helper()
	ctx := context.Background()
	stubPassword(t, "pw1")

	feed(a, username, username+"@x")
	require.NoError(t, a.dispatch(ctx, "register", nil))
	feed(a, username)
	require.NoError(t, a.dispatch(ctx, "login", nil))
	require.True(t, a.loggedIn())
}

func TestApp_RegisterLoginLogout(t *testing.T) {
	a, out := newTestApp(t)
	registerAndLogin(t, a, "alice")

	assert.Contains(t, out.String(), "logged in as alice")
	assert.Equal(t, "alice", a.prompt())

	require.NoError(t, a.dispatch(context.Background(), "logout", nil))
	assert.False(t, a.loggedIn())
	assert.Equal(t, "guest", a.prompt())
}

func TestApp_CommandsRequireLogin(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	for _, cmd := range []string{"upload", "get", "list", "transfer", "history", "transactions", "passwd"} {
		err := a.dispatch(ctx, cmd, []string{"x", "y"})
		assert.Error(t, err, "command %q must fail while logged out", cmd)
	}
}

func TestApp_UploadListHistoryVerify(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()
	registerAndLogin(t, a, "alice")

	path := filepath.Join(t.TempDir(), "greet.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	require.NoError(t, a.dispatch(ctx, "upload", []string{path}))
	output := out.String()
	assert.Contains(t, output, "uploaded greet.txt")
	assert.Contains(t, output, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")

	out.Reset()
	require.NoError(t, a.dispatch(ctx, "list", nil))
	assert.Contains(t, out.String(), "greet.txt")

	out.Reset()
	require.NoError(t, a.dispatch(ctx, "history",
		[]string{"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"}))
	assert.Contains(t, out.String(), "upload")

	out.Reset()
	require.NoError(t, a.dispatch(ctx, "verify", nil))
	assert.Contains(t, out.String(), "ledger OK")
}

func TestApp_GetWritesFile(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()
	registerAndLogin(t, a, "alice")

	src := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(src, []byte("round trip"), 0o600))
	require.NoError(t, a.dispatch(ctx, "upload", []string{src}))

	hash := ""
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "hash: ") {
			hash = strings.TrimPrefix(line, "hash: ")
		}
	}
	require.NotEmpty(t, hash)

	dst := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, a.dispatch(ctx, "get", []string{hash, dst}))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("round trip"), got)
}

func TestApp_UnknownCommandIsNotAnError(t *testing.T) {
	a, out := newTestApp(t)

	require.NoError(t, a.dispatch(context.Background(), "frobnicate", nil))
	assert.Contains(t, out.String(), "unknown command")
}
