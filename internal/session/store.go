package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store manages session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the session database at the given path.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("database path must not be empty")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	return s.path
}

// CreateSession inserts a new in-progress session for a participant.
func (s *Store) CreateSession(ctx context.Context, participant string, age int) (*Session, error) {
	if participant == "" {
		return nil, errors.New("participant name must not be empty")
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (id, participant, age, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		participant,
		age,
		StatusInProgress,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a session by identifier, or nil when it does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// AddResponse records the outcome of a single task within a session.
func (s *Store) AddResponse(ctx context.Context, resp *Response) error {
	if resp == nil {
		return errors.New("response is nil")
	}
	if resp.SessionID == "" {
		return errors.New("response session id must not be empty")
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO responses (
            session_id, task_group, question, transcript, points, max_points,
            stress, anxiety, depression, jitter_hz, voiced_segments,
            spectral_centroid, audio_file, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		resp.SessionID,
		resp.TaskGroup,
		resp.Question,
		nullableString(resp.Transcript),
		resp.Points,
		resp.MaxPoints,
		resp.Stress,
		resp.Anxiety,
		resp.Depression,
		resp.JitterHz,
		resp.VoicedSegments,
		resp.SpectralCentroid,
		nullableString(resp.AudioFile),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	resp.ID = id
	resp.CreatedAt = now
	return nil
}

// Responses returns the responses of a session in task order.
func (s *Store) Responses(ctx context.Context, sessionID string) ([]*Response, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+responseColumns+` FROM responses WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var responses []*Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

// Outcome holds the aggregated results written when a session completes.
type Outcome struct {
	Score         int
	MaxScore      int
	StressAvg     float64
	AnxietyAvg    float64
	DepressionAvg float64
	ReportFile    string
}

// Complete marks a session as finished and stores its aggregated results.
func (s *Store) Complete(ctx context.Context, id string, outcome Outcome) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions
         SET status = ?, score = ?, max_score = ?, stress_avg = ?, anxiety_avg = ?,
             depression_avg = ?, report_file = ?, error_message = NULL, updated_at = ?
         WHERE id = ?`,
		StatusCompleted,
		outcome.Score,
		outcome.MaxScore,
		outcome.StressAvg,
		outcome.AnxietyAvg,
		outcome.DepressionAvg,
		nullableString(outcome.ReportFile),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}

// Fail marks a session as failed with an error message.
func (s *Store) Fail(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StatusFailed,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("fail session: %w", err)
	}
	return nil
}

// Abandon marks an interrupted session so partial runs are distinguishable
// from failures.
func (s *Store) Abandon(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusAbandoned,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("abandon session: %w", err)
	}
	return nil
}

// MarkSynced records the time a session was uploaded to cloud storage.
func (s *Store) MarkSynced(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET synced_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark session synced: %w", err)
	}
	return nil
}

// List returns sessions filtered by status set (or all sessions when no
// status is provided), newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Session, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + sessionColumns + ` FROM sessions`
	orderClause := ` ORDER BY created_at DESC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Stats returns a count of sessions grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Remove deletes a session and its responses.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed sessions.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

const sessionColumns = "id, participant, age, status, score, max_score, stress_avg, anxiety_avg, depression_avg, report_file, error_message, created_at, updated_at, synced_at"

const responseColumns = "id, session_id, task_group, question, transcript, points, max_points, stress, anxiety, depression, jitter_hz, voiced_segments, spectral_centroid, audio_file, created_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id            string
		participant   string
		age           int
		statusStr     string
		score         int
		maxScore      int
		stressAvg     float64
		anxietyAvg    float64
		depressionAvg float64
		reportFile    sql.NullString
		errorMessage  sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		syncedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&participant,
		&age,
		&statusStr,
		&score,
		&maxScore,
		&stressAvg,
		&anxietyAvg,
		&depressionAvg,
		&reportFile,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&syncedRaw,
	); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:            id,
		Participant:   participant,
		Age:           age,
		Status:        Status(statusStr),
		Score:         score,
		MaxScore:      maxScore,
		StressAvg:     stressAvg,
		AnxietyAvg:    anxietyAvg,
		DepressionAvg: depressionAvg,
		ReportFile:    reportFile.String,
		ErrorMessage:  errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		sess.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sess.UpdatedAt = updated
	}
	if syncedRaw.Valid {
		if synced, err := parseTimeString(syncedRaw.String); err == nil {
			sess.SyncedAt = &synced
		}
	}
	return sess, nil
}

func scanResponse(scanner interface{ Scan(dest ...any) error }) (*Response, error) {
	var (
		resp       Response
		transcript sql.NullString
		audioFile  sql.NullString
		createdRaw sql.NullString
	)

	if err := scanner.Scan(
		&resp.ID,
		&resp.SessionID,
		&resp.TaskGroup,
		&resp.Question,
		&transcript,
		&resp.Points,
		&resp.MaxPoints,
		&resp.Stress,
		&resp.Anxiety,
		&resp.Depression,
		&resp.JitterHz,
		&resp.VoicedSegments,
		&resp.SpectralCentroid,
		&audioFile,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	resp.Transcript = transcript.String
	resp.AudioFile = audioFile.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		resp.CreatedAt = created
	}
	return &resp, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
