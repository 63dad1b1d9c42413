//go:build !portaudio

package media

import (
	"context"
	"fmt"

	"interviewer/internal/config"

	"github.com/sirupsen/logrus"
)

type portAudioMic struct{}

func newPortAudioMic(_ *config.Config, _ *logrus.Logger) MicSource {
	return portAudioMic{}
}

func (portAudioMic) Open(context.Context) (*AudioStream, error) {
	return nil, fmt.Errorf("%w: build with '-tags portaudio' or set audio.backend = \"command\"", ErrNoStream)
}
