package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"interviewer/internal/config"
	"interviewer/internal/logging"
	"interviewer/internal/run"

	"github.com/spf13/cobra"
)

// runFlags are per-run overrides passed to the session as env.
var runFlags = []struct {
	name, env, usage string
}{
	{"api-url", "INTERVIEWER_API_URL", "backend base URL for this run (e.g., http://127.0.0.1:5000)"},
	{"metrics-addr", "INTERVIEWER_METRICS_ADDR", "enable metrics at address (e.g., 127.0.0.1:9318) for this run"},
	{"no-camera", "INTERVIEWER_CAMERA_ENABLED", "do not open the camera for this run"},
}

func addRunFlags(cmd *cobra.Command) {
	for _, f := range runFlags {
		if f.name == "no-camera" {
			cmd.Flags().Bool(f.name, false, f.usage)
			continue
		}
		cmd.Flags().String(f.name, "", f.usage)
	}
}

// runEnv maps set flags to env assignments.
func runEnv(cmd *cobra.Command) []string {
	var env []string
	for _, f := range runFlags {
		fl := cmd.Flag(f.name)
		if fl == nil || !fl.Changed {
			continue
		}
		v := fl.Value.String()
		if f.name == "no-camera" {
			if v != "true" {
				continue
			}
			v = "0"
		}
		if v == "" {
			continue
		}
		env = append(env, fmt.Sprintf("%s=%s", f.env, v))
	}
	return env
}

func applyRunEnv(cmd *cobra.Command) error {
	for _, kv := range runEnv(cmd) {
		k, v, _ := strings.Cut(kv, "=")
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// NewSessionCmd runs an interactive interview session in the terminal.
func NewSessionCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Run an interactive interview session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyRunEnv(cmd); err != nil {
				return err
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := ensureNotRunning(cfg); err != nil {
				return err
			}
			// The terminal belongs to the UI; log to file only.
			cfg.Logging.Stdout = false
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			return run.Serve(cfg, logger, true)
		},
	}
	addRunFlags(cmd)
	return cmd
}

// NewStartCmd starts a headless session in the background.
func NewStartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a background session (drive it with ptt)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := ensureNotRunning(cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(cfg.Paths.PidPath), 0o755); err != nil {
				return err
			}
			self, err := os.Executable()
			if err != nil {
				return err
			}
			child := exec.Command(self, "serve", "--config", cfg.Paths.ConfigPath)
			// propagate runtime flags via env overrides
			child.Env = append(os.Environ(), runEnv(cmd)...)
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr
			if err := child.Start(); err != nil {
				return err
			}
			// Wait a moment and confirm pid file appears.
			waited := 0
			for waited < 20 {
				if _, err := os.Stat(cfg.Paths.PidPath); err == nil {
					break
				}
				time.Sleep(100 * time.Millisecond)
				waited++
			}
			cmd.Printf("interviewer started (pid %d)\n", child.Process.Pid)
			return nil
		},
	}
	addRunFlags(cmd)
	return cmd
}

// NewServeCmd runs the headless session in the foreground (internal).
func NewServeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Run headless session (internal)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyRunEnv(cmd); err != nil {
				return err
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			return run.Serve(cfg, logger, false)
		},
	}
	addRunFlags(cmd)
	return cmd
}

// NewStopCmd stops the background session.
func NewStopCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			pid, err := readPID(cfg.Paths.PidPath)
			if err != nil {
				return err
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return err
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				return err
			}
			cmd.Println("stop signal sent")
			return nil
		},
	}
}

// NewRestartCmd stops then starts.
func NewRestartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the background session",
		RunE: func(cmd *cobra.Command, args []string) error {
			stopCmd := NewStopCmd(cfgPath)
			_ = stopCmd.RunE(stopCmd, args) // ignore error if not running

			if err := waitForShutdown(*cfgPath, 5*time.Second); err != nil {
				return err
			}

			startCmd := NewStartCmd(cfgPath)
			startCmd.SetOut(cmd.OutOrStdout())
			for _, f := range runFlags {
				if fl := cmd.Flag(f.name); fl != nil && fl.Changed {
					_ = startCmd.Flags().Set(f.name, fl.Value.String())
				}
			}
			return startCmd.RunE(startCmd, args)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func ensureNotRunning(cfg *config.Config) error {
	pid, err := readPID(cfg.Paths.PidPath)
	if err != nil {
		return nil
	}
	// Check if process alive.
	proc, err := os.FindProcess(pid)
	if err == nil {
		if err := proc.Signal(syscall.Signal(0)); err == nil {
			return fmt.Errorf("already running with pid %d", pid)
		}
	}
	return nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}

func waitForShutdown(cfgPath string, timeout time.Duration) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pid, err := readPID(cfg.Paths.PidPath)
		if err != nil {
			return nil // pid file gone
		}
		proc, _ := os.FindProcess(pid)
		if proc != nil {
			if err := proc.Signal(syscall.Signal(0)); err != nil {
				_ = os.Remove(cfg.Paths.PidPath)
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("restart: session did not stop within %s", timeout)
}
