//go:build portaudio

package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"interviewer/internal/config"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

type portAudioMic struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func newPortAudioMic(cfg *config.Config, logger *logrus.Logger) MicSource {
	return &portAudioMic{cfg: cfg, logger: logger}
}

func (m *portAudioMic) Open(ctx context.Context) (*AudioStream, error) {
	total, err := frameSize(m.cfg)
	if err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	dev, err := SelectDevice(m.cfg.Audio.DeviceName)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	frameSamples := total / m.cfg.Audio.Channels
	buf := make([]int16, total)
	pa, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: m.cfg.Audio.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(m.cfg.Audio.SampleRate),
		FramesPerBuffer: frameSamples,
	}, &buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := pa.Start(); err != nil {
		_ = pa.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	stream := NewAudioStream(dev.Name, m.cfg.Audio.SampleRate, m.cfg.Audio.Channels, func() error {
		cancel()
		<-done
		err := pa.Stop()
		if cerr := pa.Close(); err == nil {
			err = cerr
		}
		_ = portaudio.Terminate()
		return err
	})

	go func() {
		defer close(done)
		for readCtx.Err() == nil {
			if err := pa.Read(); err != nil {
				if errors.Is(err, portaudio.InputOverflowed) {
					m.logger.Warn("input overflow")
					continue
				}
				m.logger.Errorf("stream read: %v", err)
				return
			}
			frame := make([]int16, len(buf))
			copy(frame, buf)
			stream.Publish(frame)
		}
	}()

	m.logger.Infof("listening on mic: %s @ %d Hz", dev.Name, m.cfg.Audio.SampleRate)
	return stream, nil
}

// SelectDevice finds an input device by substring, else the default input.
func SelectDevice(preferred string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if preferred != "" {
		for _, d := range devs {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(preferred)) {
				return d, nil
			}
		}
	}
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		return def, nil
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input devices found")
}
