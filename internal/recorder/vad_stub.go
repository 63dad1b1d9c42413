//go:build !portaudio

package recorder

import "errors"

// NewSpeechDetector is unavailable without the portaudio build.
func NewSpeechDetector(int) (SpeechDetector, error) {
	return nil, errors.New("speech detection requires '-tags portaudio'")
}
