package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neuromind/neuromind/internal/config"
	"github.com/neuromind/neuromind/internal/download"
	"github.com/neuromind/neuromind/internal/whisper"
)

func newSetupCmd(app *appState) *cobra.Command {
	var writeConfig bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Download model assets and prepare the local directories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if writeConfig {
				path, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				if err := config.CreateSample(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\n", path)
			}

			if err := app.cfg.EnsureDirectories(); err != nil {
				return err
			}

			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			resolved, err := whisper.ResolveModel(app.model, modelDir)
			if err != nil {
				return err
			}
			if resolved.IsCustomPath {
				return fmt.Errorf("setup expects a named model; got custom path %s", resolved.Path)
			}

			if !resolved.NeedsDownload {
				if err := download.VerifyFileChecksum(resolved.Path, resolved.SHA256); err != nil {
					app.log().Warn("model checksum verification failed; downloading fresh copy", zap.String("model", resolved.Name), zap.Error(err))
					resolved.NeedsDownload = true
				}
			}

			if !resolved.NeedsDownload {
				app.log().Info("model already present", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
				fmt.Fprintf(cmd.OutOrStdout(), "Model %s already present at %s\n", resolved.Name, resolved.Path)
				return nil
			}

			app.log().Info("downloading model", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
			if err := download.DownloadFile(cmd.Context(), download.Options{
				URL:            resolved.URL,
				Destination:    resolved.Path,
				ExpectedSHA256: resolved.SHA256,
				NoProgress:     app.noProgress,
				Logger:         app.log(),
			}); err != nil {
				return fmt.Errorf("download model %s: %w", resolved.Name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Model %s installed at %s\n", resolved.Name, resolved.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "Write a sample configuration file if none exists")

	return cmd
}
