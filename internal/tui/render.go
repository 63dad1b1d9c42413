// Package tui renders the session state in a terminal and maps keys to
// push-to-talk gestures.
package tui

import (
	"fmt"
	"strings"

	"interviewer/internal/session"
)

const (
	barBase  = 20.0
	barRange = 60.0
	barCount = 10
)

var blocks = []rune("▁▂▃▄▅▆▇█")

// Bars returns n bar heights: barBase plus level*barRange while recording,
// barBase otherwise.
func Bars(level float64, recording bool, n int) []float64 {
	if n <= 0 {
		n = barCount
	}
	h := barBase
	if recording {
		h = barBase + level*barRange
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = h
	}
	return out
}

func glyph(height float64) rune {
	idx := int(height / (barBase + barRange) * float64(len(blocks)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(blocks) {
		idx = len(blocks) - 1
	}
	return blocks[idx]
}

// StatusText is the one-line activity summary.
func StatusText(s session.UIState) string {
	switch {
	case s.Recording:
		return "Listening to your response..."
	case s.Busy:
		return "Processing..."
	default:
		return "Ready for input"
	}
}

// Render draws the full screen. Lines end in \r\n for raw-mode terminals.
func Render(s session.UIState) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	badge := "○ Standby"
	if s.Recording {
		badge = "● Recording"
	}
	line("AI Interviewer  %s", badge)

	mic := "unavailable"
	if s.MicReady {
		mic = "ready"
	}
	cam := "off"
	if s.CameraReady {
		cam = s.CameraDevice
	}
	line("mic: %s  camera: %s", mic, cam)
	line("")

	var bars strings.Builder
	for _, h := range Bars(s.Level, s.Recording, barCount) {
		bars.WriteRune(glyph(h))
		bars.WriteRune(' ')
	}
	listening := "Idle"
	if s.Recording {
		listening = "Listening..."
	}
	line("%s %s", bars.String(), listening)
	line("")
	line("%s", StatusText(s))

	if s.Transcript != "" {
		line("you: %s", s.Transcript)
	}
	if s.AssistantText != "" {
		line("interviewer: %s", s.AssistantText)
	}
	if s.Error != "" {
		line("! %s", s.Error)
	}
	line("")
	help := "[space] hold/release mic  [esc] cancel hold  [q] quit"
	if s.AudioURL != "" {
		help = "[p] Play Response  " + help
	}
	line("%s", help)
	return b.String()
}
