package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultBaseURL       = "http://127.0.0.1:5000"
	DefaultUploadPath    = "/api/upload"
	DefaultMime          = "audio/wav"
	defaultHistoryTail   = 10
	defaultStateDirLinux = ".local/state/interviewer"
	defaultConfigDir     = ".config/interviewer"
)

// Config holds user configuration loaded from TOML.
type Config struct {
	Backend struct {
		BaseURL    string  `toml:"base_url"`
		UploadPath string  `toml:"upload_path"`
		TimeoutSec float64 `toml:"timeout_sec"`
	} `toml:"backend"`

	Audio struct {
		Backend        string `toml:"backend"` // portaudio, command, none
		DeviceName     string `toml:"device_name"`
		SampleRate     int    `toml:"sample_rate"`
		Channels       int    `toml:"channels"`
		FrameMS        int    `toml:"frame_ms"`
		CaptureCommand string `toml:"capture_command"`
	} `toml:"audio"`

	Recorder struct {
		MimePreferences []string `toml:"mime_preferences"`
		DefaultMime     string   `toml:"default_mime"`
		ChunkBytes      int      `toml:"chunk_bytes"`
		RequireSpeech   bool     `toml:"require_speech"`
		VADMode         int      `toml:"vad_mode"`
	} `toml:"recorder"`

	Level struct {
		FFTSize     int     `toml:"fft_size"`
		FrameMS     int     `toml:"frame_ms"`
		MinDecibels float64 `toml:"min_decibels"`
		MaxDecibels float64 `toml:"max_decibels"`
		Smoothing   float64 `toml:"smoothing"`
	} `toml:"level"`

	Camera struct {
		Enabled bool   `toml:"enabled"`
		Device  string `toml:"device"`
	} `toml:"camera"`

	Playback struct {
		Backend    string  `toml:"backend"` // command, portaudio
		Command    string  `toml:"command"`
		TimeoutSec float64 `toml:"timeout_sec"`
	} `toml:"playback"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stdout bool   `toml:"stdout"`
	} `toml:"logging"`

	Paths struct {
		StateDir   string `toml:"state_dir"`
		LogPath    string `toml:"log_path"`
		TurnsPath  string `toml:"turns_path"`
		SocketPath string `toml:"socket_path"`
		PidPath    string `toml:"pid_path"`
		CacheDir   string `toml:"cache_dir"`
		ConfigPath string `toml:"-"`
	} `toml:"paths"`

	UI struct {
		HistoryTail int `toml:"history_tail"`
		RefreshMS   int `toml:"refresh_ms"`
	} `toml:"ui"`

	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"metrics"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "interviewer")
	}

	cfg := &Config{}

	cfg.Backend.BaseURL = DefaultBaseURL
	cfg.Backend.UploadPath = DefaultUploadPath
	cfg.Backend.TimeoutSec = 60

	cfg.Audio.Backend = "command"
	if isMac() {
		cfg.Audio.Backend = "portaudio"
	}
	cfg.Audio.SampleRate = 16000
	cfg.Audio.Channels = 1
	cfg.Audio.FrameMS = 20
	cfg.Audio.CaptureCommand = "arecord -q -f S16_LE -r {rate} -c {channels} -t raw"

	cfg.Recorder.MimePreferences = []string{"audio/webm;codecs=opus", "audio/ogg;codecs=opus", "audio/wav"}
	cfg.Recorder.DefaultMime = DefaultMime
	cfg.Recorder.ChunkBytes = 32 * 1024
	cfg.Recorder.RequireSpeech = false
	cfg.Recorder.VADMode = 2

	cfg.Level.FFTSize = 2048
	cfg.Level.FrameMS = 16
	cfg.Level.MinDecibels = -100
	cfg.Level.MaxDecibels = -30
	cfg.Level.Smoothing = 0.8

	cfg.Camera.Enabled = runtime.GOOS == "linux"
	cfg.Camera.Device = "/dev/video0"

	cfg.Playback.Backend = "command"
	cfg.Playback.Command = "ffplay -nodisp -autoexit -loglevel quiet {file}"
	if isMac() {
		cfg.Playback.Command = "afplay {file}"
	}
	cfg.Playback.TimeoutSec = 30

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "interviewer.log")
	cfg.Paths.TurnsPath = filepath.Join(stateDir, "turns.log")
	cfg.Paths.SocketPath = filepath.Join(stateDir, "interviewer.sock")
	cfg.Paths.PidPath = filepath.Join(stateDir, "interviewer.pid")
	cfg.Paths.CacheDir = filepath.Join(stateDir, "cache")

	cfg.UI.HistoryTail = defaultHistoryTail
	cfg.UI.RefreshMS = 66

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9318"

	return cfg, nil
}

// Load loads config from file, applying defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	return cfg, nil
}

// validate rejects audio settings that would yield empty capture frames.
func validate(cfg *Config) error {
	a := cfg.Audio
	switch {
	case a.SampleRate <= 0:
		return fmt.Errorf("audio.sample_rate must be positive, got %d", a.SampleRate)
	case a.Channels <= 0:
		return fmt.Errorf("audio.channels must be positive, got %d", a.Channels)
	case a.FrameMS <= 0:
		return fmt.Errorf("audio.frame_ms must be positive, got %d", a.FrameMS)
	case cfg.FrameSamples() < 1:
		return fmt.Errorf("audio.frame_ms %d is too short for %d Hz", a.FrameMS, a.SampleRate)
	}
	return nil
}

// FrameSamples is the interleaved sample count of one capture frame.
func (c *Config) FrameSamples() int {
	return c.Audio.SampleRate * c.Audio.FrameMS / 1000 * c.Audio.Channels
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath), filepath.Dir(cfg.Paths.TurnsPath), cfg.Paths.CacheDir} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// UploadURL joins the backend origin and upload path.
func (c *Config) UploadURL() string {
	return strings.TrimRight(c.Backend.BaseURL, "/") + "/" + strings.TrimLeft(c.Backend.UploadPath, "/")
}

// BackendTimeout returns the upload timeout; zero disables it.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSec * float64(time.Second))
}

// loadDotEnv reads KEY=VAL pairs next to the config without overriding the
// process environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INTERVIEWER_API_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("INTERVIEWER_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("INTERVIEWER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INTERVIEWER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("INTERVIEWER_CAMERA_ENABLED"); v != "" {
		cfg.Camera.Enabled = envBool(v)
	}
	if v := os.Getenv("INTERVIEWER_AUDIO_BACKEND"); v != "" {
		cfg.Audio.Backend = v
	}
	if v := os.Getenv("INTERVIEWER_PLAYBACK_COMMAND"); v != "" {
		cfg.Playback.Command = v
	}
}

func envBool(v string) bool {
	return v != "0" && strings.ToLower(v) != "false"
}
