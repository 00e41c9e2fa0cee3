package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/neuromind/neuromind/internal/assessment"
	"github.com/neuromind/neuromind/internal/report"
	"github.com/neuromind/neuromind/internal/session"
)

func newReportCmd(app *appState) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Regenerate the PDF report for a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(func(store *session.Store) error {
				sess, err := findSession(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				if sess.Status != session.StatusCompleted {
					return fmt.Errorf("session %s is %s; only completed sessions have reports", shortID(sess.ID), sess.Status)
				}

				responses, err := store.Responses(cmd.Context(), sess.ID)
				if err != nil {
					return err
				}

				data := report.Data{
					Participant:   sess.Participant,
					Age:           sess.Age,
					SessionID:     sess.ID,
					CompletedAt:   sess.UpdatedAt,
					Score:         sess.Score,
					MaxScore:      sess.MaxScore,
					Severity:      assessment.Severity(sess.Score, sess.MaxScore),
					StressAvg:     sess.StressAvg,
					AnxietyAvg:    sess.AnxietyAvg,
					DepressionAvg: sess.DepressionAvg,
				}
				for _, resp := range responses {
					data.Tasks = append(data.Tasks, report.TaskResult{
						Group:      resp.TaskGroup,
						Question:   resp.Question,
						Transcript: resp.Transcript,
						Points:     resp.Points,
						MaxPoints:  resp.MaxPoints,
					})
				}

				target := outputPath
				if target == "" {
					target = filepath.Join(app.cfg.Paths.ReportDir, report.FileName(sess.Participant, sess.UpdatedAt))
				}

				if err := report.Generate(data, target); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), target)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&outputPath, "output", "", "Output PDF file path")

	return cmd
}
