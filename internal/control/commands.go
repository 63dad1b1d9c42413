package control

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"interviewer/internal/config"
	"interviewer/internal/doctor"
	"interviewer/internal/logging"
	"interviewer/internal/playback"
	"interviewer/internal/recorder"
	"interviewer/internal/upload"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewStatusCmd queries session status.
func NewStatusCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			var status Status
			if err := Call(cfg.Paths.SocketPath, Request{Op: OpStatus}, &status); err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(status)
			}
			printStatus(cmd, status)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func printStatus(cmd *cobra.Command, status Status) {
	st := status.State
	cmd.Printf("running: %v\nuptime: %.1fs\n", status.Running, status.UptimeSec)
	cmd.Printf("phase: %s  recording: %v  busy: %v  level: %.2f\n", st.Phase, st.Recording, st.Busy, st.Level)
	cmd.Printf("mic: %v  camera: %v %s\n", st.MicReady, st.CameraReady, st.CameraDevice)
	if st.Error != "" {
		cmd.Printf("error: %s\n", st.Error)
	}
	if st.AudioURL != "" {
		cmd.Printf("latest audio: %s\n", st.AudioURL)
	}
	for _, t := range status.Turns {
		cmd.Printf("%s  you: %s\n", t.Timestamp.Format("15:04:05"), t.Transcript)
		cmd.Printf("          interviewer: %s\n", t.Reply)
	}
}

// NewHealthCmd pings the session.
func NewHealthCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Ping the running session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return simpleCall(cmd, cfg.Paths.SocketPath, OpHealth)
		},
	}
}

// NewPTTCmd sends press-and-hold gestures, e.g. from a global hotkey tool
// bound to key down and key up.
func NewPTTCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ptt",
		Short: "Push-to-talk gestures for the running session",
	}
	for _, g := range []struct{ op, short string }{
		{OpDown, "Start recording (press)"},
		{OpUp, "Stop recording and submit (release)"},
		{OpLeave, "Pointer left the mic control; stops like release"},
	} {
		op := g.op
		cmd.AddCommand(&cobra.Command{
			Use:   op,
			Short: g.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(*cfgPath)
				if err != nil {
					return err
				}
				return simpleCall(cmd, cfg.Paths.SocketPath, op)
			},
		})
	}
	return cmd
}

// NewPlayCmd replays the latest reply in the running session.
func NewPlayCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the latest interviewer response",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return simpleCall(cmd, cfg.Paths.SocketPath, OpPlay)
		},
	}
}

func simpleCall(cmd *cobra.Command, socketPath, op string) error {
	var resp SimpleResponse
	if err := Call(socketPath, Request{Op: op}, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s: %s", op, resp.Message)
	}
	cmd.Println(resp.Message)
	return nil
}

// NewUploadCmd submits a recorded answer file without a live session.
func NewUploadCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an audio file and print the interviewer response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if url, _ := cmd.Flags().GetString("api-url"); url != "" {
				cfg.Backend.BaseURL = url
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			typ := recorder.TypeForFile(args[0])
			if t, _ := cmd.Flags().GetString("type"); t != "" {
				typ = t
			}
			art := recorder.Artifact{
				SessionID: uuid.NewString(),
				Data:      data,
				Type:      typ,
				Filename:  "voice" + recorder.Extension(typ),
			}
			client := upload.NewClient(cfg.Backend.BaseURL, cfg.Backend.UploadPath, cfg.BackendTimeout(), logger)
			res, err := client.Upload(cmd.Context(), art)
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			}
			if res.Transcript != "" {
				cmd.Printf("you: %s\n", res.Transcript)
			}
			if res.Text != "" {
				cmd.Printf("interviewer: %s\n", res.Text)
			}
			if res.AudioURL != "" {
				cmd.Printf("audio: %s\n", res.AudioURL)
			}
			if play, _ := cmd.Flags().GetBool("play"); play && res.AudioURL != "" {
				return playAndWait(cmd, cfg, res.AudioURL)
			}
			return nil
		},
	}
	cmd.Flags().String("api-url", "", "override backend.base_url")
	cmd.Flags().String("type", "", "content type (default from file extension)")
	cmd.Flags().Bool("play", false, "play the spoken response")
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func playAndWait(cmd *cobra.Command, cfg *config.Config, url string) error {
	logger, err := logging.Configure(cfg)
	if err != nil {
		return err
	}
	player := playback.NewController(playback.NewFactory(cfg, logger), logger)
	defer player.Close()
	player.SetLatest(url)
	if err := player.PlayLatest(cmd.Context()); err != nil {
		return err
	}
	for player.Playing() {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

// NewTailLogCmd tails the main log file (simple last N lines).
func NewTailLogCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail-log",
		Short: "Show the last log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("lines")
			turns, _ := cmd.Flags().GetBool("turns")
			path := cfg.Paths.LogPath
			if turns {
				path = cfg.Paths.TurnsPath
			}
			return tailFile(cmd, path, n)
		},
	}
	cmd.Flags().IntP("lines", "n", 50, "number of lines")
	cmd.Flags().Bool("turns", false, "show the turn log instead of the main log")
	return cmd
}

func tailFile(cmd *cobra.Command, path string, n int) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	for _, l := range lastLines(string(data), n) {
		cmd.Println(l)
	}
	return nil
}

func lastLines(data string, n int) []string {
	var lines []string
	for _, l := range strings.Split(data, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies and config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			results := doctor.Run(cmd.Context(), cfg)
			failed := false
			for _, r := range results {
				status := "ok"
				if !r.Pass {
					status = "fail"
					failed = true
				}
				cmd.Printf("%-12s %-4s %s\n", r.Name, status, r.Detail)
			}
			if failed {
				return fmt.Errorf("doctor found issues")
			}
			return nil
		},
	}
}
