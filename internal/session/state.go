package session

import "time"

// Phase is the recording state machine position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseArmed
	PhaseRecording
	PhaseFinalizing
)

func (p Phase) String() string {
	switch p {
	case PhaseArmed:
		return "armed"
	case PhaseRecording:
		return "recording"
	case PhaseFinalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

// User-visible messages.
const (
	MsgNothingToPlay   = "No assistant audio available to play."
	MsgPlaybackBlocked = "Playback blocked. Press p to play the response."
	MsgPlaybackFailed  = "Playback failed"
	MsgNoSpeech        = "No speech detected. Hold the mic and try again."
)

// UIState is the snapshot the presentation layer renders.
type UIState struct {
	Phase         string  `json:"phase"`
	Recording     bool    `json:"recording"`
	Level         float64 `json:"level"`
	Busy          bool    `json:"busy"`
	Error         string  `json:"error,omitempty"`
	AssistantText string  `json:"assistant_text,omitempty"`
	Transcript    string  `json:"transcript,omitempty"`
	AudioURL      string  `json:"audio_url,omitempty"`
	MicReady      bool    `json:"mic_ready"`
	CameraReady   bool    `json:"camera_ready"`
	CameraDevice  string  `json:"camera_device,omitempty"`
}

var timeNow = time.Now

// Turn is one applied backend reply.
type Turn struct {
	SessionID  string
	Transcript string
	Reply      string
	AudioURL   string
	Timestamp  time.Time
}

// Observer receives pipeline events, e.g. for metrics.
type Observer interface {
	Recorded()
	Uploaded()
	UploadFailed()
	Played()
	PlaybackBlocked()
}

type nopObserver struct{}

func (nopObserver) Recorded()        {}
func (nopObserver) Uploaded()        {}
func (nopObserver) UploadFailed()    {}
func (nopObserver) Played()          {}
func (nopObserver) PlaybackBlocked() {}
