// Package report renders assessment results as a PDF document.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// TaskResult is one scored task row in the report.
type TaskResult struct {
	Group      string
	Question   string
	Transcript string
	Points     int
	MaxPoints  int
}

// Data holds everything the report renders.
type Data struct {
	Participant   string
	Age           int
	SessionID     string
	CompletedAt   time.Time
	Score         int
	MaxScore      int
	Severity      string
	StressAvg     float64
	AnxietyAvg    float64
	DepressionAvg float64
	Tasks         []TaskResult
}

const (
	// specialistScoreThreshold is the 30-point-scale score below which the
	// report suggests seeing a specialist.
	specialistScoreThreshold = 24
	// breathingStressThreshold is the stress marker above which relaxation
	// exercises are suggested.
	breathingStressThreshold = 0.7
)

// FileName derives the report file name from the participant and timestamp.
func FileName(participant string, at time.Time) string {
	name := strings.TrimSpace(strings.ToLower(participant))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" {
		name = "participant"
	}
	return fmt.Sprintf("%s_%s.pdf", name, at.Format("20060102_150405"))
}

// Generate writes the assessment report to outputPath.
func Generate(data Data, outputPath string) error {
	if outputPath == "" {
		return errors.New("output path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Cognitive Assessment Report", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	writeField(pdf, "Participant", data.Participant)
	if data.Age > 0 {
		writeField(pdf, "Age", fmt.Sprintf("%d", data.Age))
	}
	writeField(pdf, "Session", data.SessionID)
	if !data.CompletedAt.IsZero() {
		writeField(pdf, "Date", data.CompletedAt.Format("2006-01-02 15:04"))
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Score: %d / %d", data.Score, data.MaxScore), "", 1, "L", false, 0, "")
	if data.Severity != "" {
		pdf.SetFont("Helvetica", "", 10)
		writeField(pdf, "Assessment", data.Severity)
	}
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Voice Markers", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	writeField(pdf, "Stress", formatMarker(data.StressAvg))
	writeField(pdf, "Anxiety", formatMarker(data.AnxietyAvg))
	writeField(pdf, "Low mood", formatMarker(data.DepressionAvg))
	pdf.Ln(2)

	if len(data.Tasks) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Task Results", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, task := range data.Tasks {
			pdf.MultiCell(0, 5, fmt.Sprintf("[%s] %s", task.Group, task.Question), "", "L", false)
			answer := task.Transcript
			if answer == "" {
				answer = "(no answer)"
			}
			pdf.MultiCell(0, 5, fmt.Sprintf("    Answer: %s", answer), "", "L", false)
			pdf.MultiCell(0, 5, fmt.Sprintf("    Points: %d / %d", task.Points, task.MaxPoints), "", "L", false)
			pdf.Ln(1)
		}
		pdf.Ln(1)
	}

	suggestions := Suggestions(data)
	if len(suggestions) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Suggestions", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, suggestion := range suggestions {
			pdf.MultiCell(0, 5, "- "+suggestion, "", "L", false)
		}
	}

	if err := pdf.OutputFileAndClose(outputPath); err != nil {
		return fmt.Errorf("write report pdf: %w", err)
	}
	return nil
}

// Suggestions returns the advice lines the report shows for the given
// results. The score is compared on a 30-point scale so the thresholds stay
// meaningful for shortened task batteries.
func Suggestions(data Data) []string {
	var suggestions []string

	if data.MaxScore > 0 {
		scaled := float64(data.Score) / float64(data.MaxScore) * 30
		if scaled < specialistScoreThreshold {
			suggestions = append(suggestions, "Consider discussing these results with a memory specialist.")
		}
	}

	if data.StressAvg > breathingStressThreshold {
		suggestions = append(suggestions, "Elevated vocal stress detected. Regular breathing or relaxation exercises may help.")
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, "Results are within the expected range. Keep up regular mental and physical activity.")
	}

	return suggestions
}

func writeField(pdf *fpdf.Fpdf, label, value string) {
	pdf.CellFormat(28, 6, label+":", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func formatMarker(value float64) string {
	return fmt.Sprintf("%.0f%%", value*100)
}
