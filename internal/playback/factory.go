package playback

import (
	"strings"
	"time"

	"interviewer/internal/config"

	"github.com/sirupsen/logrus"
)

// NewFactory returns the handle constructor for playback.backend.
func NewFactory(cfg *config.Config, logger *logrus.Logger) Factory {
	timeout := time.Duration(cfg.Playback.TimeoutSec * float64(time.Second))
	switch strings.ToLower(cfg.Playback.Backend) {
	case "portaudio":
		return func(url string) (Handle, error) {
			return newPortAudioHandle(url, cfg.Paths.CacheDir, timeout, logger)
		}
	default:
		return func(url string) (Handle, error) {
			return NewCommandHandle(url, cfg.Playback.Command, cfg.Paths.CacheDir, timeout, logger)
		}
	}
}
