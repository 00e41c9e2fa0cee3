package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neuromind/neuromind/internal/session"
)

func newSessionsCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage stored assessment sessions",
	}

	cmd.AddCommand(newSessionsListCmd(app))
	cmd.AddCommand(newSessionsShowCmd(app))
	cmd.AddCommand(newSessionsRemoveCmd(app))
	cmd.AddCommand(newSessionsClearCmd(app))

	return cmd
}

func newSessionsListCmd(app *appState) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withStore(func(store *session.Store) error {
				var statuses []session.Status
				if statusFilter != "" {
					status := session.Status(strings.ToLower(statusFilter))
					if !session.ValidStatus(status) {
						return fmt.Errorf("unknown status %q", statusFilter)
					}
					statuses = append(statuses, status)
				}

				sessions, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions stored.")
					return nil
				}

				rows := make([][]string, 0, len(sessions))
				for _, sess := range sessions {
					synced := ""
					if sess.SyncedAt != nil {
						synced = sess.SyncedAt.Local().Format("2006-01-02 15:04")
					}
					rows = append(rows, []string{
						shortID(sess.ID),
						sess.Participant,
						string(sess.Status),
						fmt.Sprintf("%d/%d", sess.Score, sess.MaxScore),
						sess.CreatedAt.Local().Format("2006-01-02 15:04"),
						synced,
					})
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Participant", "Status", "Score", "Created", "Synced"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))

				if statusFilter == "" {
					stats, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), formatStats(stats))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show sessions with this status (in_progress|completed|failed|abandoned)")

	return cmd
}

func newSessionsShowCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session with its task responses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(func(store *session.Store) error {
				sess, err := findSession(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session:     %s\n", sess.ID)
				fmt.Fprintf(out, "Participant: %s\n", sess.Participant)
				if sess.Age > 0 {
					fmt.Fprintf(out, "Age:         %d\n", sess.Age)
				}
				fmt.Fprintf(out, "Status:      %s\n", sess.Status)
				fmt.Fprintf(out, "Score:       %d/%d\n", sess.Score, sess.MaxScore)
				fmt.Fprintf(out, "Stress:      %.0f%%  Anxiety: %.0f%%  Low mood: %.0f%%\n",
					sess.StressAvg*100, sess.AnxietyAvg*100, sess.DepressionAvg*100)
				if sess.ReportFile != "" {
					fmt.Fprintf(out, "Report:      %s\n", sess.ReportFile)
				}
				if sess.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:       %s\n", sess.ErrorMessage)
				}

				responses, err := store.Responses(cmd.Context(), sess.ID)
				if err != nil {
					return err
				}
				if len(responses) == 0 {
					return nil
				}

				rows := make([][]string, 0, len(responses))
				for _, resp := range responses {
					transcript := resp.Transcript
					if transcript == "" {
						transcript = "(no answer)"
					}
					rows = append(rows, []string{
						resp.TaskGroup,
						truncate(transcript, 40),
						fmt.Sprintf("%d/%d", resp.Points, resp.MaxPoints),
						fmt.Sprintf("%.0f%%", resp.Stress*100),
					})
				}

				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"Task", "Answer", "Points", "Stress"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newSessionsRemoveCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <session-id>",
		Short: "Delete a session and its responses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(func(store *session.Store) error {
				sess, err := findSession(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}

				removed, err := store.Remove(cmd.Context(), sess.ID)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("session %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session %s\n", sess.ID)
				return nil
			})
		},
	}
}

func newSessionsClearCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all completed sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withStore(func(store *session.Store) error {
				cleared, err := store.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed session(s)\n", cleared)
				return nil
			})
		},
	}
}

func (a *appState) withStore(fn func(store *session.Store) error) error {
	store, err := session.Open(a.cfg.Paths.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	a.log().Debug("session store opened", zap.String("path", store.Path()))
	return fn(store)
}

// findSession resolves a full or abbreviated session identifier.
func findSession(ctx context.Context, store *session.Store, ref string) (*session.Session, error) {
	sess, err := store.GetByID(ctx, ref)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}

	sessions, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	var match *session.Session
	for _, candidate := range sessions {
		if strings.HasPrefix(candidate.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("session id %q is ambiguous", ref)
			}
			match = candidate
		}
	}
	if match == nil {
		return nil, fmt.Errorf("session %s not found", ref)
	}
	return match, nil
}

func formatStats(stats map[session.Status]int) string {
	order := []session.Status{
		session.StatusInProgress,
		session.StatusCompleted,
		session.StatusFailed,
		session.StatusAbandoned,
	}

	var parts []string
	for _, status := range order {
		if count := stats[status]; count > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", count, status))
		}
	}
	if len(parts) == 0 {
		return "No sessions stored."
	}
	return strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
