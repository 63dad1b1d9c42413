//go:build !portaudio

package playback

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

func newPortAudioHandle(string, string, time.Duration, *logrus.Logger) (Handle, error) {
	return nil, errors.New("portaudio playback requires '-tags portaudio'; set playback.backend = \"command\"")
}
