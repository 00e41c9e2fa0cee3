package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neuromind/neuromind/internal/assessment"
	"github.com/neuromind/neuromind/internal/cloud"
	"github.com/neuromind/neuromind/internal/report"
	"github.com/neuromind/neuromind/internal/session"
	"github.com/neuromind/neuromind/internal/voice"
)

const consentText = `This assessment records your voice, transcribes it locally and derives
cognitive and voice marker scores. Recordings and results are stored on this
machine. When cloud sync is enabled in the configuration, results and the
report are also uploaded to the configured Firebase project.`

type assessOptions struct {
	participant string
	age         int
	yes         bool
	keepAudio   bool
}

func newAssessCmd(app *appState) *cobra.Command {
	opts := &assessOptions{}

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Run a full assessment session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runAssessment(cmd.Context(), *opts)
		},
	}

	cmd.Flags().StringVar(&opts.participant, "participant", "", "Participant name (prompted when empty)")
	cmd.Flags().IntVar(&opts.age, "age", 0, "Participant age")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Accept the consent prompt without asking")
	cmd.Flags().BoolVar(&opts.keepAudio, "keep-audio", false, "Keep the recorded answer clips on disk")

	return cmd
}

// taskOutcome carries the per-task results used for aggregation and the
// report.
type taskOutcome struct {
	task       assessment.Task
	transcript string
	result     assessment.Result
	markers    voice.Markers
}

func (a *appState) runAssessment(ctx context.Context, opts assessOptions) error {
	if err := a.obtainConsent(opts.yes); err != nil {
		return err
	}

	participant, age, err := a.collectParticipant(opts)
	if err != nil {
		return err
	}

	battery, err := a.loadBattery()
	if err != nil {
		return err
	}

	if err := a.preflightFn(ctx); err != nil {
		return err
	}

	store, err := session.Open(a.cfg.Paths.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.CreateSession(ctx, participant, age)
	if err != nil {
		return err
	}
	a.log().Info("assessment session started",
		zap.String("session_id", sess.ID),
		zap.String("participant", participant),
	)

	outcome, runErr := a.runSessionTasks(ctx, battery, sess.ID, store, opts.keepAudio)
	if runErr != nil {
		// A cancelled session is abandoned, anything else is a failure.
		// Bookkeeping must not run on the cancelled context.
		finishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if errors.Is(runErr, context.Canceled) {
			if abandonErr := store.Abandon(finishCtx, sess.ID); abandonErr != nil {
				a.log().Warn("failed to mark session abandoned", zap.Error(abandonErr))
			}
			return runErr
		}
		if failErr := store.Fail(finishCtx, sess.ID, runErr.Error()); failErr != nil {
			a.log().Warn("failed to mark session failed", zap.Error(failErr))
		}
		return runErr
	}

	if err := store.Complete(ctx, sess.ID, outcome.storeOutcome); err != nil {
		return err
	}

	a.printSummary(outcome)

	if a.cfg.Firebase.Enabled {
		a.syncToCloud(ctx, store, sess.ID)
	}

	return nil
}

type sessionOutcome struct {
	storeOutcome session.Outcome
	severity     string
	tasks        []taskOutcome
	reportPath   string
}

func (a *appState) runSessionTasks(ctx context.Context, battery assessment.Battery, sessionID string, store *session.Store, keepAudio bool) (sessionOutcome, error) {
	var outcome sessionOutcome

	baseline, err := a.recordBaseline(ctx, keepAudio)
	if err != nil {
		return outcome, err
	}

	markerSamples := []voice.Markers{baseline}
	totalScore := 0

	for i, task := range battery.Tasks {
		fmt.Fprintf(a.outWriter(), "\n[%s] %d/%d: %s\n", task.Group, i+1, len(battery.Tasks), task.Question)

		result, err := a.administerTask(ctx, task, sessionID, store, keepAudio)
		if err != nil {
			return outcome, err
		}

		totalScore += result.result.Points
		markerSamples = append(markerSamples, result.markers)
		outcome.tasks = append(outcome.tasks, result)

		fmt.Fprintf(a.outWriter(), "Points: %d/%d\n", result.result.Points, result.result.MaxPoints)
	}

	stressAvg, anxietyAvg, depressionAvg := averageMarkers(markerSamples)
	maxScore := battery.MaxScore()
	outcome.severity = assessment.Severity(totalScore, maxScore)

	reportPath, err := a.writeReport(store, sessionID, outcome.tasks, totalScore, maxScore, outcome.severity, stressAvg, anxietyAvg, depressionAvg)
	if err != nil {
		return outcome, err
	}
	outcome.reportPath = reportPath

	outcome.storeOutcome = session.Outcome{
		Score:         totalScore,
		MaxScore:      maxScore,
		StressAvg:     stressAvg,
		AnxietyAvg:    anxietyAvg,
		DepressionAvg: depressionAvg,
		ReportFile:    reportPath,
	}
	return outcome, nil
}

func (a *appState) recordBaseline(ctx context.Context, keepAudio bool) (voice.Markers, error) {
	duration := time.Duration(a.cfg.Recording.BaselineSeconds) * time.Second
	fmt.Fprintf(a.outWriter(), "\nBaseline: please speak freely for %d seconds (for example, describe your day).\n", a.cfg.Recording.BaselineSeconds)

	audioPath, err := a.recordFn(ctx, recordOptions{duration: duration, label: "baseline", input: a.input, format: a.inputFormat})
	if err != nil {
		return voice.Markers{}, fmt.Errorf("record baseline: %w", err)
	}
	defer a.cleanupClip(audioPath, keepAudio)

	markers, err := a.analyzeFn(audioPath)
	if err != nil {
		return voice.Markers{}, fmt.Errorf("analyze baseline: %w", err)
	}

	a.log().Debug("baseline recorded",
		zap.Float64("stress", markers.Stress),
		zap.Float64("anxiety", markers.Anxiety),
		zap.Float64("depression", markers.Depression),
	)
	return markers, nil
}

func (a *appState) administerTask(ctx context.Context, task assessment.Task, sessionID string, store *session.Store, keepAudio bool) (taskOutcome, error) {
	duration := time.Duration(a.cfg.Recording.AnswerSeconds) * time.Second

	audioPath, err := a.recordFn(ctx, recordOptions{duration: duration, label: "answer", input: a.input, format: a.inputFormat})
	if err != nil {
		return taskOutcome{}, fmt.Errorf("record answer: %w", err)
	}
	defer a.cleanupClip(audioPath, keepAudio)

	transcript, skipped, err := a.silenceGateTranscript(audioPath)
	if err != nil {
		return taskOutcome{}, err
	}

	var markers voice.Markers
	if skipped {
		transcript = ""
	} else {
		transcript, err = a.transcribeFn(ctx, audioPath)
		if err != nil {
			return taskOutcome{}, err
		}
		if isBlankTranscript(transcript) {
			transcript = ""
		}

		markers, err = a.analyzeFn(audioPath)
		if err != nil {
			return taskOutcome{}, err
		}
	}

	result := assessment.Score(task, transcript)

	resp := &session.Response{
		SessionID:        sessionID,
		TaskGroup:        task.Group,
		Question:         task.Question,
		Transcript:       transcript,
		Points:           result.Points,
		MaxPoints:        result.MaxPoints,
		Stress:           markers.Stress,
		Anxiety:          markers.Anxiety,
		Depression:       markers.Depression,
		JitterHz:         markers.JitterHz,
		VoicedSegments:   markers.VoicedSegments,
		SpectralCentroid: markers.SpectralCentroid,
	}
	if keepAudio {
		resp.AudioFile = audioPath
	}
	if err := store.AddResponse(ctx, resp); err != nil {
		return taskOutcome{}, err
	}

	return taskOutcome{task: task, transcript: transcript, result: result, markers: markers}, nil
}

func (a *appState) writeReport(store *session.Store, sessionID string, tasks []taskOutcome, score, maxScore int, severity string, stressAvg, anxietyAvg, depressionAvg float64) (string, error) {
	sess, err := store.GetByID(context.Background(), sessionID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", fmt.Errorf("session %s not found", sessionID)
	}

	completedAt := a.now()
	data := report.Data{
		Participant:   sess.Participant,
		Age:           sess.Age,
		SessionID:     sessionID,
		CompletedAt:   completedAt,
		Score:         score,
		MaxScore:      maxScore,
		Severity:      severity,
		StressAvg:     stressAvg,
		AnxietyAvg:    anxietyAvg,
		DepressionAvg: depressionAvg,
	}
	for _, task := range tasks {
		data.Tasks = append(data.Tasks, report.TaskResult{
			Group:      task.task.Group,
			Question:   task.task.Question,
			Transcript: task.transcript,
			Points:     task.result.Points,
			MaxPoints:  task.result.MaxPoints,
		})
	}

	reportPath := filepath.Join(a.cfg.Paths.ReportDir, report.FileName(sess.Participant, completedAt))
	if err := report.Generate(data, reportPath); err != nil {
		return "", err
	}
	return reportPath, nil
}

func (a *appState) printSummary(outcome sessionOutcome) {
	out := a.outWriter()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Score: %d/%d (%s)\n", outcome.storeOutcome.Score, outcome.storeOutcome.MaxScore, outcome.severity)
	fmt.Fprintf(out, "Stress: %.0f%%  Anxiety: %.0f%%  Low mood: %.0f%%\n",
		outcome.storeOutcome.StressAvg*100,
		outcome.storeOutcome.AnxietyAvg*100,
		outcome.storeOutcome.DepressionAvg*100,
	)
	fmt.Fprintf(out, "Report: %s\n", outcome.reportPath)
}

func (a *appState) obtainConsent(accepted bool) error {
	fmt.Fprintln(a.outWriter(), consentText)
	if accepted {
		return nil
	}

	ok, err := a.confirmFn("Do you consent to the recording and processing described above?")
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("assessment aborted: consent not given")
	}
	return nil
}

func (a *appState) collectParticipant(opts assessOptions) (string, int, error) {
	participant := opts.participant
	if participant == "" {
		var err error
		participant, err = a.promptFn("Participant name:")
		if err != nil {
			return "", 0, err
		}
	}
	if participant == "" {
		return "", 0, errors.New("participant name is required")
	}

	age := opts.age
	if age == 0 {
		answer, err := a.promptFn("Age (optional):")
		if err != nil {
			return "", 0, err
		}
		if answer != "" {
			parsed, err := strconv.Atoi(answer)
			if err != nil || parsed < 0 {
				return "", 0, fmt.Errorf("invalid age %q", answer)
			}
			age = parsed
		}
	}

	return participant, age, nil
}

func (a *appState) loadBattery() (assessment.Battery, error) {
	if a.cfg.Assessment.TasksFile != "" {
		return assessment.LoadBattery(a.cfg.Assessment.TasksFile)
	}
	return assessment.Default(a.now()), nil
}

func (a *appState) syncToCloud(ctx context.Context, store *session.Store, sessionID string) {
	client, err := cloud.NewClient(ctx, cloud.Config{
		CredentialsFile: a.cfg.Firebase.CredentialsFile,
		ProjectID:       a.cfg.Firebase.ProjectID,
		StorageBucket:   a.cfg.Firebase.StorageBucket,
		Collection:      a.cfg.Firebase.Collection,
	}, a.log())
	if err != nil {
		a.log().Warn("cloud sync skipped", zap.Error(err))
		return
	}

	sess, err := store.GetByID(ctx, sessionID)
	if err != nil || sess == nil {
		a.log().Warn("cloud sync skipped: session not readable", zap.Error(err))
		return
	}
	responses, err := store.Responses(ctx, sessionID)
	if err != nil {
		a.log().Warn("cloud sync skipped: responses not readable", zap.Error(err))
		return
	}

	if err := client.SyncSession(ctx, sess, responses); err != nil {
		a.log().Warn("session sync failed; results remain local", zap.Error(err))
		return
	}

	if sess.ReportFile != "" {
		if _, err := client.UploadReport(ctx, sess.Participant, sess.ReportFile); err != nil {
			a.log().Warn("report upload failed; report remains local", zap.Error(err))
		}
	}

	if err := store.MarkSynced(ctx, sessionID, a.now()); err != nil {
		a.log().Warn("failed to record sync time", zap.Error(err))
	}
}

func (a *appState) cleanupClip(path string, keepAudio bool) {
	if keepAudio || path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.log().Warn("failed to remove recording", zap.String("path", path), zap.Error(err))
	}
}

func averageMarkers(samples []voice.Markers) (stress, anxiety, depression float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	for _, m := range samples {
		stress += m.Stress
		anxiety += m.Anxiety
		depression += m.Depression
	}
	n := float64(len(samples))
	return stress / n, anxiety / n, depression / n
}
