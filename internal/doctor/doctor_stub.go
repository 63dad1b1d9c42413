//go:build !portaudio

package doctor

func checkPortAudio() Result {
	return Result{Name: "portaudio", Pass: false, Detail: "built without '-tags portaudio'"}
}
