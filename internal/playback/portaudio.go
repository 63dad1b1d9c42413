//go:build portaudio

package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

const framesPerBuffer = 1024

// portAudioHandle decodes the reply and writes it to the default output device.
type portAudioHandle struct {
	fetch  *fetcher
	logger *logrus.Logger

	mu      sync.Mutex
	src     string
	pcm     *PCM
	cancel  context.CancelFunc
	done    chan struct{}
	playing bool
}

func newPortAudioHandle(src, cacheDir string, timeout time.Duration, logger *logrus.Logger) (Handle, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &portAudioHandle{
		fetch:  newFetcher(cacheDir, timeout, CrossOriginAnonymous),
		logger: logger,
		src:    src,
	}, nil
}

func (h *portAudioHandle) SetSource(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.src = url
	h.pcm = nil
}

func (h *portAudioHandle) Load(ctx context.Context) error {
	h.stop()
	h.mu.Lock()
	src := h.src
	h.mu.Unlock()

	local, err := h.fetch.fetch(ctx, src)
	if err != nil {
		return err
	}
	pcm, err := DecodeFile(local)
	if err != nil {
		return err
	}
	h.mu.Lock()
	if h.src == src {
		h.pcm = pcm
	}
	h.mu.Unlock()
	return nil
}

func (h *portAudioHandle) Play(ctx context.Context) error {
	h.mu.Lock()
	needLoad := h.pcm == nil
	h.mu.Unlock()
	if needLoad {
		if err := h.Load(ctx); err != nil {
			return err
		}
	}
	h.stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	pcm := h.pcm
	out := make([]int16, framesPerBuffer*pcm.Channels)
	stream, err := portaudio.OpenDefaultStream(0, pcm.Channels, float64(pcm.SampleRate), framesPerBuffer, &out)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start output: %w", err)
	}
	playCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.cancel, h.done, h.playing = cancel, done, true

	go func() {
		defer close(done)
		defer func() {
			_ = stream.Stop()
			_ = stream.Close()
			h.mu.Lock()
			if h.done == done {
				h.playing = false
			}
			h.mu.Unlock()
		}()
		for off := 0; off < len(pcm.Samples) && playCtx.Err() == nil; off += len(out) {
			n := copy(out, pcm.Samples[off:])
			for i := n; i < len(out); i++ {
				out[i] = 0
			}
			if err := stream.Write(); err != nil {
				h.logger.Warnf("output write: %v", err)
				return
			}
		}
	}()
	return nil
}

func (h *portAudioHandle) stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.playing = false
	h.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (h *portAudioHandle) Stop() { h.stop() }

func (h *portAudioHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *portAudioHandle) Close() error {
	h.stop()
	return portaudio.Terminate()
}
