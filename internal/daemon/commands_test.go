package daemon

import (
	"fmt"
	"os"
	"testing"
	"time"

	"interviewer/internal/config"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForShutdownSucceedsWhenPidFileRemoved(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.ConfigPath = dir + "/config.toml"
	cfg.Paths.PidPath = dir + "/interviewer.pid"
	if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
		t.Fatalf("save cfg: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.Remove(cfg.Paths.PidPath)
	}()
	if err := waitForShutdown(cfg.Paths.ConfigPath, 2*time.Second); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestWaitForShutdownTimesOutOnAlivePid(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.ConfigPath = dir + "/config.toml"
	cfg.Paths.PidPath = dir + "/interviewer.pid"
	if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
		t.Fatalf("save cfg: %v", err)
	}
	selfPid := os.Getpid()
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", selfPid)), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := waitForShutdown(cfg.Paths.ConfigPath, 300*time.Millisecond); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestEnsureNotRunning(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.PidPath = dir + "/interviewer.pid"
	require.NoError(t, ensureNotRunning(cfg))

	require.NoError(t, os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644))
	err := ensureNotRunning(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestRunEnvFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	addRunFlags(cmd)
	assert.Empty(t, runEnv(cmd))

	require.NoError(t, cmd.Flags().Set("api-url", "http://backend:5000"))
	require.NoError(t, cmd.Flags().Set("no-camera", "true"))
	assert.Equal(t, []string{
		"INTERVIEWER_API_URL=http://backend:5000",
		"INTERVIEWER_CAMERA_ENABLED=0",
	}, runEnv(cmd))

	require.NoError(t, cmd.Flags().Set("metrics-addr", "127.0.0.1:9999"))
	assert.Contains(t, runEnv(cmd), "INTERVIEWER_METRICS_ADDR=127.0.0.1:9999")
}
