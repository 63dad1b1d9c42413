package main

import (
	"fmt"

	"interviewer/internal/config"
	"interviewer/internal/recorder"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	fmt.Printf("config=%s\n", cfg.Paths.ConfigPath)
	fmt.Printf("upload=%s timeout=%s\n", cfg.UploadURL(), cfg.BackendTimeout())
	fmt.Printf("audio backend=%s device=%q rate=%d channels=%d\n", cfg.Audio.Backend, cfg.Audio.DeviceName, cfg.Audio.SampleRate, cfg.Audio.Channels)
	mime := recorder.Negotiate(cfg.Recorder.MimePreferences, recorder.IsTypeSupported)
	if mime == "" {
		mime = cfg.Recorder.DefaultMime + " (default)"
	}
	fmt.Printf("recorder prefs=%v negotiated=%s\n", cfg.Recorder.MimePreferences, mime)
	fmt.Printf("playback backend=%s command=%q\n", cfg.Playback.Backend, cfg.Playback.Command)
	fmt.Printf("camera enabled=%v device=%s\n", cfg.Camera.Enabled, cfg.Camera.Device)
}
