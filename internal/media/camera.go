package media

import (
	"context"
	"fmt"
	"os"
	"sync"

	"interviewer/internal/config"
)

// VideoStream is a held camera device.
type VideoStream struct {
	device string
	file   *os.File

	closeOnce sync.Once
	closeErr  error
}

// NewVideoStream wraps an opened device node; f may be nil for fakes.
func NewVideoStream(device string, f *os.File) *VideoStream {
	return &VideoStream{device: device, file: f}
}

func (v *VideoStream) Device() string { return v.device }

// Stop releases the device exactly once.
func (v *VideoStream) Stop() error {
	v.closeOnce.Do(func() {
		if v.file != nil {
			v.closeErr = v.file.Close()
		}
	})
	return v.closeErr
}

// CameraSource acquires a video stream.
type CameraSource interface {
	Open(ctx context.Context) (*VideoStream, error)
}

type deviceCamera struct {
	path string
}

// NewCameraSource returns the configured camera, or nil when disabled.
func NewCameraSource(cfg *config.Config) CameraSource {
	if !cfg.Camera.Enabled || cfg.Camera.Device == "" {
		return nil
	}
	return deviceCamera{path: cfg.Camera.Device}
}

func (c deviceCamera) Open(ctx context.Context) (*VideoStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(c.path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", c.path, err)
	}
	return NewVideoStream(c.path, f), nil
}
