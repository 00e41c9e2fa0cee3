package assessment

import (
	"strconv"
	"strings"
	"unicode"
)

// Result is the outcome of scoring one response.
type Result struct {
	Points    int
	MaxPoints int
	// Expected is a printable form of the accepted answer, for reports.
	Expected string
}

// Score evaluates a transcript against a task.
func Score(task Task, transcript string) Result {
	result := Result{MaxPoints: task.Points, Expected: task.expected()}
	words := normalizeWords(transcript)
	if len(words) == 0 {
		return result
	}

	switch task.Kind {
	case KindSingle:
		result.Points = scoreSingle(task, words)
	case KindRecall:
		result.Points = scoreRecall(task, words)
	case KindSequence:
		result.Points = scoreSequence(task, words)
	case KindPhrase:
		result.Points = scorePhrase(task, words)
	}

	if result.Points > task.Points {
		result.Points = task.Points
	}
	return result
}

// scoreSingle awards full points when any accepted answer appears anywhere
// in the response. Containment rather than a prefix match, so natural
// answers like "it is 2026" score.
func scoreSingle(task Task, words []string) int {
	for _, answer := range task.Answers {
		if containsPhrase(words, normalizeWords(answer)) {
			return task.Points
		}
	}
	return 0
}

// scoreRecall awards one point per recalled answer word, in any order.
func scoreRecall(task Task, words []string) int {
	present := make(map[string]struct{}, len(words))
	for _, word := range words {
		present[word] = struct{}{}
	}

	points := 0
	for _, answer := range task.Answers {
		if _, ok := present[strings.ToLower(answer)]; ok {
			points++
		}
	}
	return points
}

// scoreSequence extracts the numbers of the response and awards one point
// per correct step of the expected chain: both values must belong to the
// sequence and differ by its step.
func scoreSequence(task Task, words []string) int {
	var numbers []int
	for _, word := range words {
		if n, err := strconv.Atoi(word); err == nil {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) < 2 || len(task.Sequence) < 2 {
		return 0
	}

	expected := make(map[int]struct{}, len(task.Sequence))
	for _, n := range task.Sequence {
		expected[n] = struct{}{}
	}
	step := task.Sequence[1] - task.Sequence[0]

	points := 0
	for i := 1; i < len(numbers); i++ {
		if numbers[i]-numbers[i-1] != step {
			continue
		}
		if _, ok := expected[numbers[i]]; !ok {
			continue
		}
		if _, ok := expected[numbers[i-1]]; !ok {
			continue
		}
		points++
	}
	return points
}

// scorePhrase awards full points only for the complete phrase.
func scorePhrase(task Task, words []string) int {
	for _, answer := range task.Answers {
		if phrasesEqual(words, normalizeWords(answer)) {
			return task.Points
		}
	}
	return 0
}

// Severity maps a score to the standard interpretation bands, scaled to the
// 30-point instrument when the battery maximum differs.
func Severity(score, maxScore int) string {
	if maxScore <= 0 {
		return "unknown"
	}

	scaled := score * 30 / maxScore
	switch {
	case scaled >= 24:
		return "normal"
	case scaled >= 19:
		return "mild"
	case scaled >= 10:
		return "moderate"
	default:
		return "severe"
	}
}

// normalizeWords lowercases the text and splits it into words, dropping
// punctuation. Number words stay as digits when whisper emits them that way.
func normalizeWords(text string) []string {
	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
		default:
			builder.WriteRune(' ')
		}
	}
	return strings.Fields(builder.String())
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
	for start := 0; start+len(phrase) <= len(words); start++ {
		if phrasesEqual(words[start:start+len(phrase)], phrase) {
			return true
		}
	}
	return false
}

func phrasesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t Task) expected() string {
	if t.Kind == KindSequence {
		parts := make([]string, len(t.Sequence))
		for i, n := range t.Sequence {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ", ")
	}
	return strings.Join(t.Answers, ", ")
}
