package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartSpinnerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	for _, enabled := range []bool{true, false} {
		stop := startSpinner(enabled, "testing")
		require.NotNil(t, stop)
		stop()
		stop()
	}
}

func TestStartDurationProgress(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		enabled  bool
		duration time.Duration
	}{
		{"enabled", true, 5 * time.Second},
		{"disabled", false, 5 * time.Second},
		{"zero duration", true, 0},
		{"sub-second duration", true, 500 * time.Millisecond},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			stop := startDurationProgress(tc.enabled, "testing", tc.duration)
			require.NotNil(t, stop)
			stop()
			stop()
		})
	}
}
