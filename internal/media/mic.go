package media

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"interviewer/internal/config"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// ErrNoStream reports that no capture backend is available.
var ErrNoStream = errors.New("no audio stream available")

// MicSource acquires a live microphone stream.
type MicSource interface {
	Open(ctx context.Context) (*AudioStream, error)
}

// NewMicSource picks the capture backend named by audio.backend.
func NewMicSource(cfg *config.Config, logger *logrus.Logger) MicSource {
	switch strings.ToLower(cfg.Audio.Backend) {
	case "portaudio":
		return newPortAudioMic(cfg, logger)
	case "command":
		return &commandMic{cfg: cfg, logger: logger}
	default:
		return nil
	}
}

// commandMic runs an external recorder that writes raw S16LE PCM to stdout.
type commandMic struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func (m *commandMic) Open(ctx context.Context) (*AudioStream, error) {
	frameSamples, err := frameSize(m.cfg)
	if err != nil {
		return nil, err
	}
	argv, err := CaptureArgs(m.cfg)
	if err != nil {
		return nil, err
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("capture command: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start capture: %w", err)
	}

	done := make(chan struct{})
	stream := NewAudioStream(argv[0], m.cfg.Audio.SampleRate, m.cfg.Audio.Channels, func() error {
		cancel()
		<-done
		return nil
	})

	go func() {
		defer close(done)
		defer func() { _ = cmd.Wait() }()
		r := bufio.NewReader(stdout)
		for {
			buf := make([]int16, frameSamples)
			if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && runCtx.Err() == nil {
					m.logger.Warnf("capture read: %v", err)
				}
				return
			}
			stream.Publish(buf)
		}
	}()
	m.logger.Infof("capturing via %s @ %d Hz", argv[0], m.cfg.Audio.SampleRate)
	return stream, nil
}

// frameSize is the interleaved sample count per capture read.
func frameSize(cfg *config.Config) (int, error) {
	if cfg.Audio.Channels < 1 || cfg.FrameSamples() < 1 {
		return 0, fmt.Errorf("audio frame of %d ms at %d Hz x%d holds no samples",
			cfg.Audio.FrameMS, cfg.Audio.SampleRate, cfg.Audio.Channels)
	}
	return cfg.FrameSamples(), nil
}

// CaptureArgs expands audio.capture_command placeholders and splits it.
func CaptureArgs(cfg *config.Config) ([]string, error) {
	raw := strings.NewReplacer(
		"{rate}", strconv.Itoa(cfg.Audio.SampleRate),
		"{channels}", strconv.Itoa(cfg.Audio.Channels),
		"{device}", cfg.Audio.DeviceName,
	).Replace(cfg.Audio.CaptureCommand)
	argv, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("parse capture_command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("audio.capture_command is empty")
	}
	return argv, nil
}
