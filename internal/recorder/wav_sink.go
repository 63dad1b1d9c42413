package recorder

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"interviewer/internal/media"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Stream is the part of a live audio stream a sink needs.
type Stream interface {
	AddTap(t media.Tap) (remove func())
	SampleRate() int
	Channels() int
}

// SpeechDetector reports whether captured PCM contains voice.
type SpeechDetector interface {
	HasSpeech(pcm []int16, sampleRate int) bool
}

// IsTypeSupported is the capability query for WAVSink.
func IsTypeSupported(mime string) bool {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
	switch base {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return true
	default:
		return false
	}
}

// WAVSink buffers 16-bit PCM while started and, on Stop, encodes a WAV file
// that it emits as fixed-size chunks followed by the stop event.
type WAVSink struct {
	stream     Stream
	mime       string
	chunkBytes int
	handlers   Handlers
	speech     SpeechDetector

	mu        sync.Mutex
	recording bool
	pcm       []int16
	removeTap func()
}

// SinkOption configures a WAVSink.
type SinkOption func(*WAVSink)

// WithChunkBytes sets the emitted chunk size.
func WithChunkBytes(n int) SinkOption {
	return func(s *WAVSink) {
		if n > 0 {
			s.chunkBytes = n
		}
	}
}

// WithSpeechGate drops recordings without detected speech: the sink then
// emits no chunks before the stop event.
func WithSpeechGate(d SpeechDetector) SinkOption {
	return func(s *WAVSink) { s.speech = d }
}

// NewWAVSink binds a sink to stream. mime is the negotiated type ("" for default).
func NewWAVSink(stream Stream, mime string, h Handlers, opts ...SinkOption) (*WAVSink, error) {
	if stream == nil {
		return nil, media.ErrNoStream
	}
	if mime != "" && !IsTypeSupported(mime) {
		return nil, fmt.Errorf("unsupported mime type %q", mime)
	}
	s := &WAVSink{
		stream:     stream,
		mime:       mime,
		chunkBytes: 32 * 1024,
		handlers:   h,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *WAVSink) MimeType() string { return s.mime }

func (s *WAVSink) chunkType() string {
	if s.mime != "" {
		return s.mime
	}
	return "audio/wav"
}

func (s *WAVSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return ErrAlreadyRecording
	}
	s.pcm = s.pcm[:0]
	s.recording = true
	s.removeTap = s.stream.AddTap(s)
	return nil
}

// WritePCM implements media.Tap.
func (s *WAVSink) WritePCM(pcm []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		s.pcm = append(s.pcm, pcm...)
	}
}

// Stop ends capture. Encoding and the events happen asynchronously.
func (s *WAVSink) Stop() error {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return ErrNotRecording
	}
	s.recording = false
	if s.removeTap != nil {
		s.removeTap()
		s.removeTap = nil
	}
	pcm := make([]int16, len(s.pcm))
	copy(pcm, s.pcm)
	s.pcm = s.pcm[:0]
	s.mu.Unlock()

	go s.flush(pcm)
	return nil
}

func (s *WAVSink) flush(pcm []int16) {
	defer func() {
		if s.handlers.Stop != nil {
			s.handlers.Stop()
		}
	}()
	if s.speech != nil && !s.speech.HasSpeech(pcm, s.stream.SampleRate()) {
		return
	}
	data, err := EncodeWAV(pcm, s.stream.SampleRate(), s.stream.Channels())
	if err != nil || s.handlers.Data == nil {
		return
	}
	typ := s.chunkType()
	for len(data) > 0 {
		n := min(s.chunkBytes, len(data))
		s.handlers.Data(Chunk{Data: data[:n:n], Type: typ})
		data = data[n:]
	}
}

// EncodeWAV writes 16-bit PCM as a RIFF/WAVE file.
func EncodeWAV(pcm []int16, sampleRate, channels int) ([]byte, error) {
	if channels < 1 {
		channels = 1
	}
	out := &memFile{}
	enc := wav.NewEncoder(out, sampleRate, 16, channels, 1)
	ints := make([]int, len(pcm))
	for i, v := range pcm {
		ints[i] = int(v)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finish wav: %w", err)
	}
	return out.buf, nil
}

// memFile is an in-memory io.WriteSeeker for the WAV encoder, which patches
// the header sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memfile: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("memfile: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
