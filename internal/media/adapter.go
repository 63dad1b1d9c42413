// Package media owns the microphone and camera for the lifetime of a session.
package media

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Adapter acquires the microphone and camera independently. A failed
// acquisition is logged and leaves the corresponding stream nil.
type Adapter struct {
	mic    MicSource
	camera CameraSource
	logger *logrus.Logger

	mu    sync.Mutex
	audio *AudioStream
	video *VideoStream

	releaseOnce sync.Once
}

// NewAdapter accepts nil sources; they behave as unavailable devices.
func NewAdapter(mic MicSource, camera CameraSource, logger *logrus.Logger) *Adapter {
	return &Adapter{mic: mic, camera: camera, logger: logger}
}

// Acquire requests both devices. It never fails; callers inspect Audio and Video.
func (a *Adapter) Acquire(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if a.mic == nil {
			a.logger.Warn("microphone disabled; recording will be unavailable")
			return
		}
		stream, err := a.mic.Open(ctx)
		if err != nil {
			a.logger.Errorf("error accessing microphone: %v", err)
			return
		}
		a.mu.Lock()
		a.audio = stream
		a.mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		if a.camera == nil {
			a.logger.Debug("camera disabled")
			return
		}
		stream, err := a.camera.Open(ctx)
		if err != nil {
			a.logger.Errorf("error accessing camera: %v", err)
			return
		}
		a.mu.Lock()
		a.video = stream
		a.mu.Unlock()
	}()
	wg.Wait()
}

func (a *Adapter) Audio() *AudioStream {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.audio
}

func (a *Adapter) Video() *VideoStream {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.video
}

// Release stops every acquired track. Safe to call more than once.
func (a *Adapter) Release() {
	a.releaseOnce.Do(func() {
		a.mu.Lock()
		audio, video := a.audio, a.video
		a.mu.Unlock()
		if audio != nil {
			if err := audio.Stop(); err != nil {
				a.logger.Warnf("stop microphone: %v", err)
			}
		}
		if video != nil {
			if err := video.Stop(); err != nil {
				a.logger.Warnf("stop camera: %v", err)
			}
		}
	})
}
