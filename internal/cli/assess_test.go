package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neuromind/neuromind/internal/session"
	"github.com/neuromind/neuromind/internal/voice"
)

const testBatteryTOML = `
[[tasks]]
group = "orientation"
question = "What city are we in?"
kind = "single"
answers = ["madrid"]
points = 1

[[tasks]]
group = "attention"
question = "Count down from five by ones, three numbers."
kind = "sequence"
sequence = [5, 4, 3]
points = 3
`

func newAssessApp(t *testing.T, transcripts []string) *appState {
	t.Helper()

	app := newTestApp(t)

	tasksFile := filepath.Join(t.TempDir(), "tasks.toml")
	require.NoError(t, os.WriteFile(tasksFile, []byte(testBatteryTOML), 0o644))
	app.cfg.Assessment.TasksFile = tasksFile

	clipDir := t.TempDir()
	clips := 0
	app.preflightFn = func(context.Context) error { return nil }
	app.recordFn = func(_ context.Context, opts recordOptions) (string, error) {
		clips++
		path := filepath.Join(clipDir, fmt.Sprintf("%s-%d.wav", opts.label, clips))
		writeSineWAV(t, path, 220, 0.5)
		return path, nil
	}

	answers := 0
	app.transcribeFn = func(context.Context, string) (string, error) {
		if answers >= len(transcripts) {
			return "", nil
		}
		answer := transcripts[answers]
		answers++
		return answer, nil
	}
	app.analyzeFn = func(string) (voice.Markers, error) {
		return voice.Markers{Stress: 0.2, Anxiety: 0.4, Depression: 0.1, JitterHz: 1.5, VoicedSegments: 3, SpectralCentroid: 240}, nil
	}

	return app
}

func openTestStore(t *testing.T, app *appState) *session.Store {
	t.Helper()

	store, err := session.Open(app.cfg.Paths.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunAssessmentCompletesSession(t *testing.T) {
	t.Parallel()

	app := newAssessApp(t, []string{"we are in madrid", "5 4 3"})

	err := app.runAssessment(context.Background(), assessOptions{participant: "Alice Example", age: 71, yes: true})
	require.NoError(t, err)

	store := openTestStore(t, app)
	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	sess := sessions[0]
	require.Equal(t, session.StatusCompleted, sess.Status)
	require.Equal(t, "Alice Example", sess.Participant)
	require.Equal(t, 71, sess.Age)
	// "madrid" earns the single point, "5 4 3" walks two steps of the chain.
	require.Equal(t, 3, sess.Score)
	require.Equal(t, 4, sess.MaxScore)
	require.InDelta(t, 0.2, sess.StressAvg, 1e-9)
	require.NotEmpty(t, sess.ReportFile)
	requirePDF(t, sess.ReportFile)

	responses, err := store.Responses(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	require.Equal(t, "we are in madrid", responses[0].Transcript)
	require.Equal(t, 1, responses[0].Points)
	require.Equal(t, 2, responses[1].Points)
	// Audio is discarded unless --keep-audio is set.
	require.Empty(t, responses[0].AudioFile)
}

func TestRunAssessmentKeepsAudioWhenRequested(t *testing.T) {
	t.Parallel()

	app := newAssessApp(t, []string{"madrid", "5 4 3"})

	err := app.runAssessment(context.Background(), assessOptions{participant: "Bob", yes: true, keepAudio: true})
	require.NoError(t, err)

	store := openTestStore(t, app)
	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	responses, err := store.Responses(context.Background(), sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	for _, resp := range responses {
		require.NotEmpty(t, resp.AudioFile)
		require.FileExists(t, resp.AudioFile)
	}
}

func TestRunAssessmentAbandonsOnCancellation(t *testing.T) {
	t.Parallel()

	app := newAssessApp(t, nil)
	app.recordFn = func(context.Context, recordOptions) (string, error) {
		return "", context.Canceled
	}

	err := app.runAssessment(context.Background(), assessOptions{participant: "Carol", yes: true})
	require.ErrorIs(t, err, context.Canceled)

	store := openTestStore(t, app)
	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, session.StatusAbandoned, sessions[0].Status)
}

func TestRunAssessmentMarksFailureOnError(t *testing.T) {
	t.Parallel()

	app := newAssessApp(t, nil)
	app.transcribeFn = func(context.Context, string) (string, error) {
		return "", errors.New("engine crashed")
	}

	err := app.runAssessment(context.Background(), assessOptions{participant: "Dave", yes: true})
	require.Error(t, err)
	require.Contains(t, err.Error(), "engine crashed")

	store := openTestStore(t, app)
	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, session.StatusFailed, sessions[0].Status)
	require.Contains(t, sessions[0].ErrorMessage, "engine crashed")
}

func TestRunAssessmentRequiresConsent(t *testing.T) {
	t.Parallel()

	app := newAssessApp(t, nil)
	app.confirmFn = func(string) (bool, error) { return false, nil }

	err := app.runAssessment(context.Background(), assessOptions{participant: "Erin"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "consent")

	store := openTestStore(t, app)
	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestRunAssessmentScoresSilentAnswersAsZero(t *testing.T) {
	t.Parallel()

	app := newAssessApp(t, []string{"madrid", "5 4 3"})
	clipDir := t.TempDir()
	clips := 0
	app.recordFn = func(_ context.Context, opts recordOptions) (string, error) {
		clips++
		path := filepath.Join(clipDir, fmt.Sprintf("%s-%d.wav", opts.label, clips))
		writeSilentWAV(t, path, 0.5)
		return path, nil
	}

	err := app.runAssessment(context.Background(), assessOptions{participant: "Frank", yes: true})
	require.NoError(t, err)

	store := openTestStore(t, app)
	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, 0, sessions[0].Score)

	responses, err := store.Responses(context.Background(), sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	for _, resp := range responses {
		require.Empty(t, resp.Transcript)
		require.Zero(t, resp.Points)
	}
}

func TestCollectParticipantPromptsWhenFlagsMissing(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	prompts := []string{"Grace", "82"}
	calls := 0
	app.promptFn = func(string) (string, error) {
		answer := prompts[calls]
		calls++
		return answer, nil
	}

	participant, age, err := app.collectParticipant(assessOptions{})
	require.NoError(t, err)
	require.Equal(t, "Grace", participant)
	require.Equal(t, 82, age)
}

func TestCollectParticipantRejectsInvalidAge(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.promptFn = func(string) (string, error) { return "old", nil }

	_, _, err := app.collectParticipant(assessOptions{participant: "Heidi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid age")
}

func TestAverageMarkers(t *testing.T) {
	t.Parallel()

	stress, anxiety, depression := averageMarkers([]voice.Markers{
		{Stress: 0.2, Anxiety: 0.4, Depression: 0.0},
		{Stress: 0.6, Anxiety: 0.0, Depression: 0.2},
	})
	require.InDelta(t, 0.4, stress, 1e-9)
	require.InDelta(t, 0.2, anxiety, 1e-9)
	require.InDelta(t, 0.1, depression, 1e-9)

	stress, anxiety, depression = averageMarkers(nil)
	require.Zero(t, stress)
	require.Zero(t, anxiety)
	require.Zero(t, depression)
}
