package cli

import "strings"

// blankAudioToken is what whisper-cli emits when it finds no speech. The
// silence gate reuses it for clips that never reach the engine.
const blankAudioToken = "[BLANK_AUDIO]"

// isBlankTranscript reports whether a transcript carries no usable speech.
func isBlankTranscript(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	return trimmed == "" || strings.EqualFold(trimmed, blankAudioToken)
}

func noSpeechHint() string {
	return "No speech detected. Check mic mute and selected input device, then try again."
}
