package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/neuromind/neuromind/internal/voice"
)

func newAnalyzeCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <audio-file>",
		Short: "Compute voice markers for a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath := filepath.Clean(args[0])
			if _, err := os.Stat(audioPath); err != nil {
				return fmt.Errorf("audio file not found: %w", err)
			}

			markers, err := app.analyzeFn(audioPath)
			if err != nil {
				return err
			}

			printMarkers(cmd, markers)
			return nil
		},
	}
}

func printMarkers(cmd *cobra.Command, markers voice.Markers) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Stress:            %.0f%%\n", markers.Stress*100)
	fmt.Fprintf(out, "Anxiety:           %.0f%%\n", markers.Anxiety*100)
	fmt.Fprintf(out, "Low mood:          %.0f%%\n", markers.Depression*100)
	fmt.Fprintf(out, "Pitch jitter:      %.2f Hz\n", markers.JitterHz)
	fmt.Fprintf(out, "Voiced segments:   %d\n", markers.VoicedSegments)
	fmt.Fprintf(out, "Spectral centroid: %.1f Hz\n", markers.SpectralCentroid)
}
