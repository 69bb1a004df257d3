package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	dir     string
	config  string
	puts    atomic.Int32
	healthy atomic.Bool
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{dir: t.TempDir()}
	env.healthy.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/healthz" && env.healthy.Load():
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/healthz":
			w.WriteHeader(http.StatusServiceUnavailable)
		case r.Method == http.MethodPut:
			env.puts.Add(1)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	env.config = filepath.Join(env.dir, "pmt-sync.yaml")
	cfg := strings.Join([]string{
		"api_url: " + srv.URL,
		"token: test-token",
		"queue_file: " + filepath.Join(env.dir, "queue.json"),
		"translations_file: " + filepath.Join(env.dir, "translations.yaml"),
		"log_level: error",
	}, "\n")
	require.NoError(t, os.WriteFile(env.config, []byte(cfg), 0o600))
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCLI_QueueStatusSync(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "queue", "task-update", "--data", `{"id":"t1","status":"done"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "1 pending")

	_, err = env.run(t, "queue", "feature-update", "--data", `{"id":"t2"}`)
	require.NoError(t, err)

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "(online)")
	assert.Contains(t, out, "pending: 2")

	out, err = env.run(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "synced 2 change(s), 0 pending")
	assert.Equal(t, int32(2), env.puts.Load())
}

func TestCLI_SyncOffline(t *testing.T) {
	env := newCLIEnv(t)
	env.healthy.Store(false)

	_, err := env.run(t, "queue", "project-update", "--data", `{"id":"p1"}`)
	require.NoError(t, err)

	_, err = env.run(t, "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "You are offline")
	assert.Zero(t, env.puts.Load())
}

func TestCLI_QueueRejectsBadInput(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "queue", "task-update", "--data", `not json`)
	assert.Error(t, err)

	_, err = env.run(t, "queue", "milestone-update", "--data", `{"id":"m1"}`)
	assert.Error(t, err)

	_, err = env.run(t, "queue", "task-update", "--data", `{"title":"no id"}`)
	assert.Error(t, err)
}

func TestCLI_Translate(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "translate", "connectivity.lost")
	require.NoError(t, err)
	assert.Equal(t, "Connection lost\n", out)

	out, err = env.run(t, "translate", "nothing.here")
	require.NoError(t, err)
	assert.Equal(t, "nothing.here\n", out)

	_, err = os.Stat(filepath.Join(env.dir, "translations.yaml"))
	assert.NoError(t, err, "default bundle should be written on first use")
}

func TestCLI_FlagOverridesConfig(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "--language", "fr", "translate", "common.save")
	require.NoError(t, err)
	assert.Equal(t, "common.save\n", out, "no French bundle, key falls back")
}
