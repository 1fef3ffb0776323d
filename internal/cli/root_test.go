package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Makepad-fr/basket/internal/feed"
	"github.com/Makepad-fr/basket/internal/server"
	"github.com/Makepad-fr/basket/internal/store/boltstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "basket", cmd.Use)
	assert.Contains(t, cmd.Long, "room")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"serve", "ls", "add", "done", "qty", "rm", "clear", "tui", "share", "room", "auth", "export", "import"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	roomFlag := cmd.PersistentFlags().Lookup("room")
	require.NotNil(t, roomFlag)
	assert.Equal(t, "r", roomFlag.Shorthand)

	for _, name := range []string{"config", "server", "theme", "no-color"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

// env isolates HOME and BASKET_* for one test.
func env(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"SERVER_URL", "API_KEY", "ROOM", "LISTEN", "STORE", "DATA_DIR", "THEME", "DEBUG"} {
		t.Setenv("BASKET_"+k, "")
	}
	t.Setenv("BASKET_DELETE_DELAY", "1ms")
	return home
}

// startServer runs a feed server for the test and returns its URL.
func startServer(t *testing.T, apiKey string) string {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), boltstore.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	srv := server.New(feed.NewLocal(s, zap.NewNop()), server.Options{APIKey: apiKey})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Hub().Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

type result struct {
	code int
	out  string
	err  string
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Run(context.Background(), append(args, "--no-color"), Options{
		In:  strings.NewReader(stdin),
		Out: &out,
		Err: &errOut,
	})
	return result{code: code, out: out.String(), err: errOut.String()}
}

func TestListLifecycle(t *testing.T) {
	env(t)
	url := startServer(t, "")

	r := run(t, "", "--server", url, "add", "-q", "2", "Milk")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "added Milk ×2")

	r = run(t, "", "--server", url, "add", "  milk ")
	require.Equal(t, 0, r.code, r.err)

	r = run(t, "", "--server", url, "add", "Bread")
	require.Equal(t, 0, r.code, r.err)

	r = run(t, "", "--server", url, "ls")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "Milk ×3")
	assert.Contains(t, r.out, "Bread ×1")
	assert.Contains(t, r.out, "2 remaining")
	assert.Equal(t, 1, strings.Count(strings.ToLower(r.out), "milk"))

	r = run(t, "", "--server", url, "done", "milk")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "Milk marked done")

	r = run(t, "", "--server", url, "ls", "--group")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "1 remaining")
	assert.Less(t, strings.Index(r.out, "Bread"), strings.Index(r.out, "Done"))
	assert.Greater(t, strings.Index(r.out, "Milk"), strings.Index(r.out, "Done"))

	r = run(t, "", "--server", url, "qty", "1", "5")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "Milk ×5")

	r = run(t, "", "--server", url, "qty", "1", "+")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "Milk ×6")

	r = run(t, "", "--server", url, "rm", "--yes", "1")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "removed Milk")

	r = run(t, "", "--server", url, "ls")
	require.Equal(t, 0, r.code, r.err)
	assert.NotContains(t, r.out, "Milk")
}

func TestRemoveAsks(t *testing.T) {
	env(t)
	url := startServer(t, "")
	require.Equal(t, 0, run(t, "", "--server", url, "add", "Eggs").code)

	r := run(t, "n\n", "--server", url, "rm", "eggs")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, `"Eggs" will be removed for everyone.`)
	assert.Contains(t, r.err, "cancelled")

	r = run(t, "", "--server", url, "ls")
	assert.Contains(t, r.out, "Eggs")
}

func TestClear(t *testing.T) {
	env(t)
	url := startServer(t, "")

	r := run(t, "", "--server", url, "clear")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "already empty")

	require.Equal(t, 0, run(t, "", "--server", url, "add", "a").code)
	require.Equal(t, 0, run(t, "", "--server", url, "add", "b").code)

	r = run(t, "no\n", "--server", url, "clear")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "Clear the entire list for everyone in this room?")
	assert.Contains(t, r.err, "cancelled")

	r = run(t, "y\n", "--server", url, "clear")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "cleared")

	r = run(t, "", "--server", url, "ls")
	assert.Contains(t, r.out, "no items")
}

func TestUsageErrors(t *testing.T) {
	env(t)
	url := startServer(t, "")

	assert.Equal(t, 2, run(t, "", "--server", url, "add").code)
	assert.Equal(t, 2, run(t, "", "--server", url, "done", "9").code)
	assert.Equal(t, 2, run(t, "", "bogus").code)
	assert.Equal(t, 2, run(t, "", "--room", "not a room", "ls").code)
	assert.Equal(t, 2, run(t, "", "--server", url, "--theme", "sepia", "ls").code)
	assert.Equal(t, 1, run(t, "", "--server", url, "done", "nothing-here").code)
}

func TestNotConfigured(t *testing.T) {
	env(t)
	r := run(t, "", "ls")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.err, "not configured: set server_url")
}

func TestServerDown(t *testing.T) {
	env(t)
	r := run(t, "", "--server", "http://127.0.0.1:1", "ls")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.err, "Is the feed server running?")
}

func TestRooms(t *testing.T) {
	env(t)
	url := startServer(t, "")

	r := run(t, "", "--server", url, "share")
	require.Equal(t, 0, r.code, r.err)
	assert.Equal(t, url+"/?room=global\n", r.out)

	require.Equal(t, 0, run(t, "", "--server", url, "--room", url+"/?room=kitchen", "add", "Salt").code)
	r = run(t, "", "--server", url, "-r", "kitchen", "ls")
	assert.Contains(t, r.out, "Salt")
	r = run(t, "", "--server", url, "ls")
	assert.NotContains(t, r.out, "Salt")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o600))
	r = run(t, "", "--config", cfgPath, "room", "new", "--save")
	require.Equal(t, 0, r.code, r.err)
	id := strings.TrimSpace(strings.SplitN(r.out, "\n", 2)[0])
	assert.Len(t, id, 12)

	r = run(t, "", "--config", cfgPath, "room")
	require.Equal(t, 0, r.code, r.err)
	assert.Equal(t, id+"\n", r.out)
}

func TestExportImport(t *testing.T) {
	env(t)
	url := startServer(t, "")
	require.Equal(t, 0, run(t, "", "--server", url, "add", "-q", "4", "Apples").code)
	require.Equal(t, 0, run(t, "", "--server", url, "add", "Pears").code)

	file := filepath.Join(t.TempDir(), "out.json")
	r := run(t, "", "--server", url, "export", file)
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "exported 2 items")

	r = run(t, "", "--server", url, "-r", "copy", "import", file)
	require.Equal(t, 0, r.code, r.err)

	r = run(t, "", "--server", url, "-r", "copy", "ls")
	assert.Contains(t, r.out, "Apples ×4")
	assert.Contains(t, r.out, "Pears ×1")

	r = run(t, "", "--server", url, "-r", "copy", "import", "--replace", file)
	require.Equal(t, 0, r.code, r.err)
	r = run(t, "", "--server", url, "-r", "copy", "ls")
	assert.Equal(t, 1, strings.Count(r.out, "Apples"))

	assert.Equal(t, 2, run(t, "", "--server", url, "import", filepath.Join(t.TempDir(), "missing.json")).code)
}

func TestAuth(t *testing.T) {
	home := env(t)
	url := startServer(t, "s3cret-key")

	r := run(t, "", "--server", url, "ls")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.err, "invalid API key")

	r = run(t, "", "--server", url, "auth", "login", "--key", "wrong")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.err, "server rejected the key")

	r = run(t, "s3cret-key\n", "--server", url, "auth", "login")
	require.Equal(t, 0, r.code, r.err)
	_, err := os.Stat(filepath.Join(home, ".basket", "credentials.json"))
	require.NoError(t, err)

	r = run(t, "", "--server", url, "auth", "status")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "-key (file)")
	assert.NotContains(t, r.out, "s3cret")

	assert.Equal(t, 0, run(t, "", "--server", url, "add", "Tea").code)

	require.Equal(t, 0, run(t, "", "auth", "logout").code)
	r = run(t, "", "auth", "status")
	assert.Contains(t, r.out, "not logged in")
	assert.Equal(t, 1, run(t, "", "--server", url, "ls").code)

	t.Setenv("BASKET_API_KEY", "s3cret-key")
	r = run(t, "", "--server", url, "auth", "status")
	assert.Contains(t, r.out, "-key (config)")
	assert.Equal(t, 0, run(t, "", "--server", url, "ls").code)
}
