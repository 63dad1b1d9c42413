package main

import (
	"fmt"
	"os"

	"interviewer/internal/control"
	"interviewer/internal/daemon"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "interviewer",
		Short: "Interviewer — push-to-talk voice client for an AI interview backend",
		Long: `Interviewer records your answer while the mic is held, uploads it to the interview backend,
shows the interviewer's reply and plays its spoken response.

Key commands:
  session                   Interactive terminal session (space = hold/release mic)
  start|stop|restart        Background session lifecycle
  ptt down|up|leave         Press-and-hold gestures for a background session
  play                      Replay the latest response
  status [--json]           Session state + recent turns
  upload <file>             Submit a recorded answer without a session
  mic list|set              Select microphone
  doctor|health|tail-log    Checks, liveness, log tail

Notable flags/env:
  --api-url <url>           Backend base URL (default http://127.0.0.1:5000)
  --metrics-addr <addr>     Enable /metrics (Prometheus text)
  Env overrides: INTERVIEWER_API_URL, INTERVIEWER_METRICS_ADDR,
                 INTERVIEWER_LOG_LEVEL/FORMAT, INTERVIEWER_CAMERA_ENABLED`,
		Example: `  interviewer session --api-url http://127.0.0.1:5000
  interviewer start --metrics-addr 127.0.0.1:9318
  interviewer ptt down && sleep 3 && interviewer ptt up
  interviewer play
  interviewer upload answer.wav --play`,
		DisableFlagsInUseLine: true,
	}

	root.Version = version
	root.SetVersionTemplate("Interviewer v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/interviewer/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(daemon.NewSessionCmd(cfgPath))
	root.AddCommand(daemon.NewStartCmd(cfgPath))
	root.AddCommand(daemon.NewStopCmd(cfgPath))
	root.AddCommand(daemon.NewRestartCmd(cfgPath))
	root.AddCommand(control.NewStatusCmd(cfgPath))
	root.AddCommand(control.NewHealthCmd(cfgPath))
	root.AddCommand(control.NewPTTCmd(cfgPath))
	root.AddCommand(control.NewPlayCmd(cfgPath))
	root.AddCommand(control.NewUploadCmd(cfgPath))
	root.AddCommand(control.NewMicCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))

	// Hidden internal serve command used by start.
	root.AddCommand(daemon.NewServeCmd(cfgPath))

	applyColorHelp(root)

	if err := root.Execute(); err != nil {
		return err
	}
	return nil
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			// Subcommands keep cobra's usage with their own flags.
			_, _ = fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%sInterviewer%s — push-to-talk AI interview client %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sHold the mic, answer, release; the interviewer replies in text and voice.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  interviewer [command] [flags]\n\n")

		write("%sKey commands%s\n", bold, reset)
		writeln("  session                     interactive terminal session")
		writeln("  start|stop|restart          background session lifecycle")
		writeln("  ptt down|up|leave           press-and-hold from a hotkey tool")
		writeln("  play                        replay the latest response")
		writeln("  status [--json]             state + recent turns")
		writeln("  upload <file> [--play]      submit an answer file")
		writeln("  mic list|set                select input device")
		writeln("  doctor                      check backend/capture/player/camera")
		writeln("  health                      control-socket liveness ping")
		writeln("  tail-log [--turns]          show last log lines")
		writeln("")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  --api-url <url>         backend base URL")
		writeln("  --metrics-addr <addr>   enable /metrics (Prometheus)")
		writeln("  --no-camera             skip the camera for this run")
		writeln("  -c, --config <path>     config file (default ~/.config/interviewer/config.toml)")
		writeln("  Env: INTERVIEWER_API_URL=http://host:5000, INTERVIEWER_METRICS_ADDR=host:port,")
		writeln("       INTERVIEWER_LOG_LEVEL=debug, INTERVIEWER_LOG_FORMAT=json,")
		writeln("       INTERVIEWER_CAMERA_ENABLED=0 (also read from .env beside the config)")
		writeln("")

		write("%sSession keys%s\n", bold, reset)
		writeln("  space   hold / release the mic")
		writeln("  esc     cancel the hold (stops and submits)")
		writeln("  p       play response")
		writeln("  q       quit")
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
