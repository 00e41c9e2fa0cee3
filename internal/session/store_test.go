package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "neuromind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateSessionAssignsIDAndDefaults(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "alice", 74)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, "alice", sess.Participant)
	require.Equal(t, 74, sess.Age)
	require.Equal(t, StatusInProgress, sess.Status)
	require.False(t, sess.CreatedAt.IsZero())
	require.Nil(t, sess.SyncedAt)
}

func TestCreateSessionRejectsEmptyParticipant(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	_, err := store.CreateSession(context.Background(), "", 60)
	require.Error(t, err)
}

func TestGetByIDReturnsNilForUnknownSession(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	sess, err := store.GetByID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestAddResponseAndReadBack(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "bob", 68)
	require.NoError(t, err)

	resp := &Response{
		SessionID:        sess.ID,
		TaskGroup:        "Orientation",
		Question:         "What year is it?",
		Transcript:       "it is twenty twenty six",
		Points:           1,
		MaxPoints:        1,
		Stress:           0.25,
		Anxiety:          0.1,
		JitterHz:         2.1,
		VoicedSegments:   1,
		SpectralCentroid: 430.5,
		AudioFile:        "/tmp/answer.wav",
	}
	require.NoError(t, store.AddResponse(ctx, resp))
	require.NotZero(t, resp.ID)

	responses, err := store.Responses(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, "Orientation", responses[0].TaskGroup)
	require.Equal(t, "it is twenty twenty six", responses[0].Transcript)
	require.Equal(t, 1, responses[0].Points)
	require.InDelta(t, 0.25, responses[0].Stress, 1e-9)
	require.InDelta(t, 430.5, responses[0].SpectralCentroid, 1e-9)
}

func TestAddResponseRequiresSessionID(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	require.Error(t, store.AddResponse(context.Background(), &Response{}))
	require.Error(t, store.AddResponse(context.Background(), nil))
}

func TestCompleteStoresOutcome(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "carol", 81)
	require.NoError(t, err)

	outcome := Outcome{
		Score:         9,
		MaxScore:      11,
		StressAvg:     0.42,
		AnxietyAvg:    0.3,
		DepressionAvg: 0.15,
		ReportFile:    "/reports/carol.pdf",
	}
	require.NoError(t, store.Complete(ctx, sess.ID, outcome))

	got, err := store.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, 9, got.Score)
	require.Equal(t, 11, got.MaxScore)
	require.InDelta(t, 0.42, got.StressAvg, 1e-9)
	require.Equal(t, "/reports/carol.pdf", got.ReportFile)
	require.Empty(t, got.ErrorMessage)
}

func TestFailStoresErrorMessage(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "dave", 59)
	require.NoError(t, err)

	require.NoError(t, store.Fail(ctx, sess.ID, "transcription engine not found"))

	got, err := store.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, "transcription engine not found", got.ErrorMessage)
}

func TestAbandonOnlyAffectsInProgressSessions(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "erin", 72)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, sess.ID, Outcome{Score: 11, MaxScore: 11}))

	require.NoError(t, store.Abandon(ctx, sess.ID))

	got, err := store.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
}

func TestMarkSyncedSetsTimestamp(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "frank", 66)
	require.NoError(t, err)

	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	require.NoError(t, store.MarkSynced(ctx, sess.ID, at))

	got, err := store.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SyncedAt)
	require.True(t, got.SyncedAt.Equal(at))
}

func TestListFiltersByStatus(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.CreateSession(ctx, "gina", 70)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, first.ID, Outcome{Score: 10, MaxScore: 11}))

	second, err := store.CreateSession(ctx, "hank", 77)
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, second.ID, "boom"))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	completed, err := store.List(ctx, StatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, first.ID, completed[0].ID)
}

func TestStatsCountsByStatus(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "iris", 64)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, sess.ID, Outcome{Score: 8, MaxScore: 11}))

	_, err = store.CreateSession(ctx, "jack", 69)
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats[StatusCompleted])
	require.Equal(t, 1, stats[StatusInProgress])
}

func TestRemoveDeletesSessionAndResponses(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "kate", 73)
	require.NoError(t, err)
	require.NoError(t, store.AddResponse(ctx, &Response{SessionID: sess.ID, TaskGroup: "Recall", Question: "Repeat the words."}))

	removed, err := store.Remove(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, removed)

	responses, err := store.Responses(ctx, sess.ID)
	require.NoError(t, err)
	require.Empty(t, responses)

	removed, err = store.Remove(ctx, sess.ID)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestClearCompletedLeavesOtherSessions(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	done, err := store.CreateSession(ctx, "liam", 62)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, done.ID, Outcome{Score: 11, MaxScore: 11}))

	_, err = store.CreateSession(ctx, "mona", 58)
	require.NoError(t, err)

	cleared, err := store.ClearCompleted(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, cleared)

	remaining, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, StatusInProgress, remaining[0].Status)
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "neuromind.db")

	store, err := Open(dbPath)
	require.NoError(t, err)
	_, err = store.db.Exec("UPDATE schema_version SET version = 99")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(dbPath)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestValidStatus(t *testing.T) {
	t.Parallel()

	require.True(t, ValidStatus(StatusInProgress))
	require.True(t, ValidStatus(StatusAbandoned))
	require.False(t, ValidStatus(Status("paused")))
}
