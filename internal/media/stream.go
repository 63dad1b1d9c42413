package media

import (
	"sync"
)

// Tap receives every PCM frame read from the microphone.
type Tap interface {
	WritePCM(pcm []int16)
}

// AudioStream is a live microphone stream. Frames are fanned out to taps;
// consumers never own the underlying device.
type AudioStream struct {
	device     string
	sampleRate int
	channels   int

	mu   sync.Mutex
	taps map[int]Tap
	next int

	stop     func() error
	stopOnce sync.Once
	stopErr  error
}

// NewAudioStream wraps a capture backend. stop is invoked at most once.
func NewAudioStream(device string, sampleRate, channels int, stop func() error) *AudioStream {
	return &AudioStream{
		device:     device,
		sampleRate: sampleRate,
		channels:   channels,
		taps:       map[int]Tap{},
		stop:       stop,
	}
}

func (s *AudioStream) Device() string  { return s.device }
func (s *AudioStream) SampleRate() int { return s.sampleRate }
func (s *AudioStream) Channels() int   { return s.channels }

// AddTap registers t and returns a func that removes it.
func (s *AudioStream) AddTap(t Tap) (remove func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.taps[id] = t
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.taps, id)
		s.mu.Unlock()
	}
}

// Publish delivers a frame to all taps. Backends call it from their read loop.
func (s *AudioStream) Publish(pcm []int16) {
	s.mu.Lock()
	taps := make([]Tap, 0, len(s.taps))
	for _, t := range s.taps {
		taps = append(taps, t)
	}
	s.mu.Unlock()
	for _, t := range taps {
		t.WritePCM(pcm)
	}
}

// Stop releases the device. Later calls return the first result.
func (s *AudioStream) Stop() error {
	s.stopOnce.Do(func() {
		if s.stop != nil {
			s.stopErr = s.stop()
		}
	})
	return s.stopErr
}
