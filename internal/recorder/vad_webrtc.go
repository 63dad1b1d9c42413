//go:build portaudio

package recorder

import (
	"encoding/binary"
	"fmt"

	vad "github.com/maxhawkins/go-webrtcvad"
)

// webrtcDetector flags a recording as speech when enough 20 ms frames are voiced.
type webrtcDetector struct {
	v         *vad.VAD
	minVoiced int
}

// NewSpeechDetector returns a WebRTC VAD detector with the given aggressiveness (0-3).
func NewSpeechDetector(mode int) (SpeechDetector, error) {
	v, err := vad.New()
	if err != nil {
		return nil, fmt.Errorf("vad init: %w", err)
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("vad mode: %w", err)
	}
	return &webrtcDetector{v: v, minVoiced: 5}, nil
}

func (d *webrtcDetector) HasSpeech(pcm []int16, sampleRate int) bool {
	frame := sampleRate / 50
	if !d.v.ValidRateAndFrameLength(sampleRate, frame) {
		// Unsupported rate: do not drop the recording.
		return true
	}
	buf := make([]byte, frame*2)
	voiced := 0
	for off := 0; off+frame <= len(pcm); off += frame {
		for i, s := range pcm[off : off+frame] {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
		}
		active, err := d.v.Process(sampleRate, buf)
		if err != nil {
			return true
		}
		if active {
			voiced++
			if voiced >= d.minVoiced {
				return true
			}
		}
	}
	return false
}
