// Package assessment defines the MMSE-style task battery and scores spoken
// responses against it.
package assessment

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Kind selects the scoring strategy for a task.
type Kind string

const (
	// KindSingle expects one answer word or number in the response.
	KindSingle Kind = "single"
	// KindRecall awards one point per recalled word from the answer list.
	KindRecall Kind = "recall"
	// KindSequence awards one point per correct value of a numeric sequence.
	KindSequence Kind = "sequence"
	// KindPhrase expects the full phrase to be repeated.
	KindPhrase Kind = "phrase"
)

// Task is a single question of the battery.
type Task struct {
	Group    string   `toml:"group"`
	Question string   `toml:"question"`
	Kind     Kind     `toml:"kind"`
	Answers  []string `toml:"answers"`
	Sequence []int    `toml:"sequence"`
	Points   int      `toml:"points"`
}

// Battery is an ordered set of tasks administered in one session.
type Battery struct {
	Tasks []Task `toml:"tasks"`
}

// MaxScore sums the attainable points across the battery.
func (b Battery) MaxScore() int {
	total := 0
	for _, task := range b.Tasks {
		total += task.Points
	}
	return total
}

// Groups returns the distinct task groups in battery order.
func (b Battery) Groups() []string {
	seen := make(map[string]struct{}, len(b.Tasks))
	var groups []string
	for _, task := range b.Tasks {
		if _, ok := seen[task.Group]; ok {
			continue
		}
		seen[task.Group] = struct{}{}
		groups = append(groups, task.Group)
	}
	return groups
}

// Default returns the built-in battery. Orientation answers are derived from
// the reference time instead of hard-coded values.
func Default(now time.Time) Battery {
	return Battery{Tasks: []Task{
		{
			Group:    "orientation",
			Question: "What year is it?",
			Kind:     KindSingle,
			Answers:  []string{fmt.Sprintf("%d", now.Year())},
			Points:   1,
		},
		{
			Group:    "orientation",
			Question: "What season is it?",
			Kind:     KindSingle,
			Answers:  seasonAnswers(now),
			Points:   1,
		},
		{
			Group:    "memory",
			Question: "Please repeat these three words: apple, table, penny.",
			Kind:     KindRecall,
			Answers:  []string{"apple", "table", "penny"},
			Points:   3,
		},
		{
			Group:    "attention",
			Question: "Count down from 20 by threes, as far as you can.",
			Kind:     KindSequence,
			Sequence: []int{20, 17, 14, 11, 8, 5, 2},
			Points:   5,
		},
		{
			Group:    "language",
			Question: "Please repeat after me: no ifs, ands, or buts.",
			Kind:     KindPhrase,
			Answers:  []string{"no ifs ands or buts"},
			Points:   1,
		},
	}}
}

// LoadBattery reads a custom battery from a TOML file.
func LoadBattery(path string) (Battery, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Battery{}, fmt.Errorf("read battery file: %w", err)
	}

	var battery Battery
	if err := toml.Unmarshal(raw, &battery); err != nil {
		return Battery{}, fmt.Errorf("parse battery file: %w", err)
	}

	if err := battery.validate(); err != nil {
		return Battery{}, fmt.Errorf("battery file %s: %w", path, err)
	}
	return battery, nil
}

func (b Battery) validate() error {
	if len(b.Tasks) == 0 {
		return errors.New("battery has no tasks")
	}
	for i, task := range b.Tasks {
		if strings.TrimSpace(task.Question) == "" {
			return fmt.Errorf("task %d has no question", i+1)
		}
		if task.Points <= 0 {
			return fmt.Errorf("task %d must award at least one point", i+1)
		}
		switch task.Kind {
		case KindSingle, KindRecall, KindPhrase:
			if len(task.Answers) == 0 {
				return fmt.Errorf("task %d (%s) has no answers", i+1, task.Kind)
			}
		case KindSequence:
			if len(task.Sequence) < 2 {
				return fmt.Errorf("task %d (sequence) needs at least two values", i+1)
			}
		default:
			return fmt.Errorf("task %d has unknown kind %q", i+1, task.Kind)
		}
	}
	return nil
}

func seasonAnswers(now time.Time) []string {
	switch now.Month() {
	case time.December, time.January, time.February:
		return []string{"winter"}
	case time.March, time.April, time.May:
		return []string{"spring"}
	case time.June, time.July, time.August:
		return []string{"summer"}
	default:
		return []string{"autumn", "fall"}
	}
}
