// Package cloud syncs completed assessment sessions to Firebase. Results go
// to Firestore and report PDFs to a storage bucket. Sync failures are meant
// to be reported and tolerated, a session never fails because the upload did.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/neuromind/neuromind/internal/session"
)

// Config holds the Firebase connection settings.
type Config struct {
	CredentialsFile string
	ProjectID       string
	StorageBucket   string
	Collection      string
}

// Validate checks that the settings are sufficient to connect.
func (c Config) Validate() error {
	if strings.TrimSpace(c.CredentialsFile) == "" {
		return errors.New("firebase credentials file must be set")
	}
	if strings.TrimSpace(c.Collection) == "" {
		return errors.New("firebase collection must be set")
	}
	return nil
}

// Client wraps the Firebase app used for uploads.
type Client struct {
	app        *firebase.App
	collection string
	logger     *zap.Logger
}

// NewClient connects to Firebase using a service account credentials file.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(cfg.CredentialsFile); err != nil {
		return nil, fmt.Errorf("firebase credentials file: %w", err)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	return &Client{app: app, collection: cfg.Collection, logger: logger}, nil
}

// SyncSession writes a session document with its responses to Firestore.
func (c *Client) SyncSession(ctx context.Context, sess *session.Session, responses []*session.Response) error {
	if sess == nil {
		return errors.New("session is nil")
	}

	fs, err := c.app.Firestore(ctx)
	if err != nil {
		return fmt.Errorf("firestore client: %w", err)
	}
	defer fs.Close()

	doc := map[string]any{
		"participant":    sess.Participant,
		"age":            sess.Age,
		"status":         string(sess.Status),
		"score":          sess.Score,
		"max_score":      sess.MaxScore,
		"stress_avg":     sess.StressAvg,
		"anxiety_avg":    sess.AnxietyAvg,
		"depression_avg": sess.DepressionAvg,
		"report_file":    sess.ReportFile,
		"created_at":     sess.CreatedAt,
		"responses":      responseDocs(responses),
	}

	_, err = fs.Collection(c.collection).
		Doc(participantKey(sess.Participant)).
		Collection("sessions").
		Doc(sess.ID).
		Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("write session document: %w", err)
	}

	c.logger.Info("session synced to firestore",
		zap.String("session_id", sess.ID),
		zap.String("participant", sess.Participant),
	)
	return nil
}

// UploadReport uploads a report PDF to the default storage bucket and returns
// the object path.
func (c *Client) UploadReport(ctx context.Context, participant, localPath string) (string, error) {
	storageClient, err := c.app.Storage(ctx)
	if err != nil {
		return "", fmt.Errorf("storage client: %w", err)
	}

	bucket, err := storageClient.DefaultBucket()
	if err != nil {
		return "", fmt.Errorf("default bucket: %w", err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	objectPath := ReportObjectPath(participant, localPath)
	writer := bucket.Object(objectPath).NewWriter(ctx)
	writer.ContentType = "application/pdf"

	if _, err := io.Copy(writer, f); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("upload report: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize report upload: %w", err)
	}

	c.logger.Info("report uploaded",
		zap.String("object", objectPath),
		zap.String("participant", participant),
	)
	return objectPath, nil
}

// ReportObjectPath builds the storage object path for a report file.
func ReportObjectPath(participant, localPath string) string {
	return path.Join(participantKey(participant), "reports", path.Base(localPath))
}

// participantKey normalizes a participant name into a document identifier.
func participantKey(participant string) string {
	key := strings.TrimSpace(strings.ToLower(participant))
	key = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	if key == "" {
		return "unknown"
	}
	return key
}

func responseDocs(responses []*session.Response) []map[string]any {
	docs := make([]map[string]any, 0, len(responses))
	for _, resp := range responses {
		if resp == nil {
			continue
		}
		docs = append(docs, map[string]any{
			"task_group": resp.TaskGroup,
			"question":   resp.Question,
			"transcript": resp.Transcript,
			"points":     resp.Points,
			"max_points": resp.MaxPoints,
			"stress":     resp.Stress,
			"anxiety":    resp.Anxiety,
			"depression": resp.Depression,
		})
	}
	return docs
}
