// Package session persists assessment sessions and per-task responses in a
// local SQLite database.
package session

import "time"

// Status represents the lifecycle of an assessment session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusAbandoned  Status = "abandoned"
)

var allStatuses = []Status{
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusAbandoned,
}

// ValidStatus reports whether the value is a known session status.
func ValidStatus(status Status) bool {
	for _, known := range allStatuses {
		if status == known {
			return true
		}
	}
	return false
}

// Session is one assessment run for a participant.
type Session struct {
	ID            string
	Participant   string
	Age           int
	Status        Status
	Score         int
	MaxScore      int
	StressAvg     float64
	AnxietyAvg    float64
	DepressionAvg float64
	ReportFile    string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SyncedAt      *time.Time
}

// Response is the outcome of a single task within a session.
type Response struct {
	ID               int64
	SessionID        string
	TaskGroup        string
	Question         string
	Transcript       string
	Points           int
	MaxPoints        int
	Stress           float64
	Anxiety          float64
	Depression       float64
	JitterHz         float64
	VoicedSegments   int
	SpectralCentroid float64
	AudioFile        string
	CreatedAt        time.Time
}
