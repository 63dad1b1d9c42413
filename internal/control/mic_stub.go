//go:build !portaudio

package control

import (
	"interviewer/internal/config"

	"github.com/spf13/cobra"
)

// NewMicCmd groups mic subcommands.
func NewMicCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mic",
		Short: "Microphone management",
	}
	cmd.AddCommand(newMicListCmd(cfgPath))
	cmd.AddCommand(newMicSetCmd(cfgPath))
	return cmd
}

func newMicListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available microphones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			cmd.Printf("capture command: %s\n", cfg.Audio.CaptureCommand)
			cmd.Println("build with '-tags portaudio' to enable microphone listing (PortAudio required)")
			return nil
		},
	}
}
