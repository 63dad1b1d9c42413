package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"interviewer/internal/config"
	"interviewer/internal/media"
	"interviewer/internal/playback"

	"github.com/go-resty/resty/v2"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(ctx context.Context, cfg *config.Config) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkStateDir(cfg.Paths.StateDir),
		checkBackend(ctx, cfg.Backend.BaseURL, 3*time.Second),
	}
	usesPortAudio := false
	switch strings.ToLower(cfg.Audio.Backend) {
	case "portaudio":
		usesPortAudio = true
	case "command":
		argv, err := media.CaptureArgs(cfg)
		if err != nil {
			results = append(results, Result{Name: "capture", Pass: false, Detail: err.Error()})
		} else {
			results = append(results, checkExecutable("capture", argv[0]))
		}
	default:
		results = append(results, Result{Name: "capture", Pass: false, Detail: fmt.Sprintf("audio.backend %q: no microphone", cfg.Audio.Backend)})
	}
	if strings.EqualFold(cfg.Playback.Backend, "portaudio") {
		usesPortAudio = true
	} else {
		argv, err := playback.ParsePlayerCommand(cfg.Playback.Command)
		if err != nil {
			results = append(results, Result{Name: "player", Pass: false, Detail: err.Error()})
		} else {
			results = append(results, checkExecutable("player", argv[0]))
		}
	}
	if cfg.Camera.Enabled {
		results = append(results, checkCamera(cfg.Camera.Device))
	}
	if usesPortAudio {
		results = append(results, checkPortAudioPkgConfig(), checkPortAudio())
	}
	return results
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkStateDir(dir string) Result {
	label := "state dir"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Result{Name: label, Pass: false, Detail: "not writable: " + err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return Result{Name: label, Pass: true, Detail: dir}
}

// checkBackend passes on any HTTP reply; only transport errors fail.
func checkBackend(ctx context.Context, baseURL string, timeout time.Duration) Result {
	label := "backend"
	if baseURL == "" {
		return Result{Name: label, Pass: false, Detail: "backend.base_url not set"}
	}
	resp, err := resty.New().SetTimeout(timeout).R().SetContext(ctx).Get(baseURL)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("%s unreachable: %v", baseURL, err)}
	}
	return Result{Name: label, Pass: true, Detail: fmt.Sprintf("%s (HTTP %d)", baseURL, resp.StatusCode())}
}

func checkExecutable(label, cmd string) Result {
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	// Else search PATH.
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkCamera(device string) Result {
	label := "camera"
	if device == "" {
		return Result{Name: label, Pass: false, Detail: "camera.device not set"}
	}
	info, err := os.Stat(filepath.Clean(device))
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return Result{Name: label, Pass: false, Detail: device + " is not a character device"}
	}
	return Result{Name: label, Pass: true, Detail: device}
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "pkg-config", Pass: false, Detail: "pkg-config not found (brew install pkg-config)"}
	}
	cmd := exec.Command(pkg, "--exists", "portaudio-2.0")
	if err := cmd.Run(); err != nil {
		return Result{Name: "portaudio", Pass: false, Detail: "portaudio-2.0 not found (brew install portaudio)"}
	}
	// Optional display version
	versionCmd := exec.Command(pkg, "--modversion", "portaudio-2.0")
	if out, err := versionCmd.Output(); err == nil {
		return Result{Name: "portaudio", Pass: true, Detail: strings.TrimSpace(string(out))}
	}
	return Result{Name: "portaudio", Pass: true, Detail: "found via pkg-config"}
}
