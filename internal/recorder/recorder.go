// Package recorder encodes a live audio stream into chunks and assembles the
// uploadable artifact once capture stops.
package recorder

import (
	"bytes"
	"errors"
	"strings"
)

var (
	ErrAlreadyRecording = errors.New("capture already in progress")
	ErrNotRecording     = errors.New("capture not in progress")
)

// Chunk is one piece of encoded audio emitted by a sink.
type Chunk struct {
	Data []byte
	Type string
}

// Handlers receive sink events. Data is called zero or more times after Stop,
// then Stop exactly once; both are called from the same goroutine.
type Handlers struct {
	Data func(Chunk)
	Stop func()
}

// Sink is a capture sink bound to one audio stream.
type Sink interface {
	// MimeType is the negotiated encoding, or "" when the sink default is used.
	MimeType() string
	Start() error
	Stop() error
}

// Negotiate returns the first preference the sink supports, or "" so the
// sink falls back to its default.
func Negotiate(prefs []string, supported func(string) bool) string {
	if supported == nil {
		return ""
	}
	for _, p := range prefs {
		if p = strings.TrimSpace(p); p != "" && supported(p) {
			return p
		}
	}
	return ""
}

// Artifact is a finalized recording ready for upload.
type Artifact struct {
	SessionID string
	Data      []byte
	Type      string
	Filename  string
}

// Finalize concatenates chunks and picks a concrete audio content type: the
// first chunk's type when it is audio/*, else negotiated, else fallback.
func Finalize(chunks []Chunk, negotiated, fallback string) Artifact {
	var buf bytes.Buffer
	for _, c := range chunks {
		buf.Write(c.Data)
	}
	typ := ""
	if len(chunks) > 0 && strings.HasPrefix(chunks[0].Type, "audio/") {
		typ = chunks[0].Type
	}
	if typ == "" {
		typ = negotiated
	}
	if typ == "" {
		typ = fallback
	}
	return Artifact{
		Data:     buf.Bytes(),
		Type:     typ,
		Filename: "voice" + Extension(typ),
	}
}

// Extension maps an audio content type to a file extension.
func Extension(mime string) string {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
	switch base {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/aac":
		return ".m4a"
	case "audio/flac":
		return ".flac"
	default:
		return ".bin"
	}
}

// TypeForFile guesses an audio content type from a file name.
func TypeForFile(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".webm"):
		return "audio/webm"
	case strings.HasSuffix(lower, ".ogg"), strings.HasSuffix(lower, ".opus"):
		return "audio/ogg"
	case strings.HasSuffix(lower, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(lower, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(lower, ".m4a"):
		return "audio/mp4"
	case strings.HasSuffix(lower, ".flac"):
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
