package cli

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

func noopStop() {}

// startSpinner shows an indeterminate spinner until the returned stop
// function is called.
func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return noopStop
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	return driveBar(bar, 120*time.Millisecond)
}

// startDurationProgress shows a bar that fills over the given duration, one
// tick per second.
func startDurationProgress(enabled bool, description string, duration time.Duration) stopFunc {
	if !enabled || duration <= 0 {
		return noopStop
	}

	total := int64(duration / time.Second)
	if total <= 0 {
		total = 1
	}

	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	return driveBar(bar, time.Second)
}

// driveBar advances the bar on every tick until stopped. The stop function
// blocks until the render goroutine has finished and is safe to call more
// than once.
func driveBar(bar *progressbar.ProgressBar, tick time.Duration) stopFunc {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}
