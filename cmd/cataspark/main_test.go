package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWebex serves the subset of the chat API the CLI commands touch.
type fakeWebex struct {
	mu       sync.Mutex
	rooms    []map[string]string
	messages []map[string]string
	deleted  []string
	tokens   []string
}

func (f *fakeWebex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/rooms":
		json.NewEncoder(w).Encode(map[string]any{"items": f.rooms})
	case r.Method == http.MethodPost && r.URL.Path == "/rooms":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		room := map[string]string{"id": "room-new", "title": body["title"]}
		f.rooms = append(f.rooms, room)
		json.NewEncoder(w).Encode(room)
	case r.Method == http.MethodGet && r.URL.Path == "/messages":
		json.NewEncoder(w).Encode(map[string]any{"items": f.messages})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/messages/"):
		f.deleted = append(f.deleted, strings.TrimPrefix(r.URL.Path, "/messages/"))
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cataspark.yaml")
	content := `
webex:
  base_url: ` + baseURL + `
  room: Ops
  user_token: user-token
  bot_token: bot-token
logging:
  level: error
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		envPath = ""
		cleanupAs = "bot"
		bgpASN = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	oldVersion, oldBuild, oldCommit := Version, BuildTime, GitCommit
	defer func() { Version, BuildTime, GitCommit = oldVersion, oldBuild, oldCommit }()

	Version, BuildTime, GitCommit = "1.2.3", "2024-01-01", "abcdef"
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cataspark 1.2.3")
	assert.Contains(t, out, "Built: 2024-01-01")
	assert.Contains(t, out, "Commit: abcdef")

	BuildTime, GitCommit = "unknown", "unknown"
	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.NotContains(t, out, "Built:")
	assert.NotContains(t, out, "Commit:")
}

func TestRoomsCmd(t *testing.T) {
	api := &fakeWebex{rooms: []map[string]string{
		{"id": "r1", "title": "Ops"},
		{"id": "r2", "title": "Lab"},
	}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	out, err := execute(t, "rooms", "--config", writeConfig(t, srv.URL))
	require.NoError(t, err)
	assert.Contains(t, out, "r1\tOps")
	assert.Contains(t, out, "r2\tLab")
	assert.Equal(t, []string{"user-token"}, api.tokens)
}

func TestRoomCreateCmd(t *testing.T) {
	api := &fakeWebex{}
	srv := httptest.NewServer(api)
	defer srv.Close()
	cfgPath := writeConfig(t, srv.URL)

	out, err := execute(t, "room", "create", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, `Created room "Ops" (room-new)`)

	out, err = execute(t, "room", "create", "War Room", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"War Room"`)
}

func TestCleanupCmd(t *testing.T) {
	api := &fakeWebex{
		rooms:    []map[string]string{{"id": "r1", "title": "Ops"}},
		messages: []map[string]string{{"id": "m2"}, {"id": "m1"}},
	}
	srv := httptest.NewServer(api)
	defer srv.Close()

	out, err := execute(t, "cleanup", "--config", writeConfig(t, srv.URL))
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 2 messages")
	assert.Equal(t, []string{"m2", "m1"}, api.deleted)
	// Room lookup uses the user identity; deletions use the bot identity.
	assert.Equal(t, "user-token", api.tokens[0])
	assert.Equal(t, "bot-token", api.tokens[len(api.tokens)-1])
}

func TestCleanupRejectsUnknownIdentity(t *testing.T) {
	api := &fakeWebex{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := execute(t, "cleanup", "--as", "admin", "--config", writeConfig(t, srv.URL))
	assert.ErrorContains(t, err, "--as")
}

func TestRunRejectsIncompleteConfig(t *testing.T) {
	srv := httptest.NewServer(&fakeWebex{})
	defer srv.Close()

	_, err := execute(t, "run", "--config", writeConfig(t, srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device.host")
	assert.Contains(t, err.Error(), "dropbox.token")
}

func TestResolveRoomNotFound(t *testing.T) {
	srv := httptest.NewServer(&fakeWebex{rooms: []map[string]string{{"id": "r2", "title": "Lab"}}})
	defer srv.Close()

	_, err := execute(t, "cleanup", "--config", writeConfig(t, srv.URL))
	assert.ErrorContains(t, err, `room "Ops" not found`)
}

func TestBGPNeighborRejectsBadAddress(t *testing.T) {
	_, err := execute(t, "bgp", "down", "not-an-ip", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorContains(t, err, "not an IPv4 address")
}

func TestServeMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveMetricsOn(ctx, ln) }()

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ = io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, string(body), "cataspark_polls_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestServeMetricsListenError(t *testing.T) {
	old := listenFn
	defer func() { listenFn = old }()
	listenFn = func(network, addr string) (net.Listener, error) {
		return nil, &net.OpError{Op: "listen", Net: network, Err: os.ErrPermission}
	}

	err := serveMetrics(context.Background(), ":1")
	assert.ErrorIs(t, err, os.ErrPermission)
}
