// Package stt listens to the conversation partner and turns final speech
// recognition results into transcripts.
package stt

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrRecognizerUnavailable = errors.New("speech recognizer unavailable")
	ErrPermissionDenied      = errors.New("microphone permission denied")
)

// Recognizer error codes that end listening for good.
const (
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
)

// Recognizer runs continuous recognition sessions. A session reports its
// results, errors and end back to the Listener that started it.
type Recognizer interface {
	// Start begins a session in lang. It may fail if one is already
	// running.
	Start(lang string) error
	// Stop ends the current session. The end is reported later through
	// HandleEnd, never from within Stop.
	Stop()
}

// Alternative is one recognition hypothesis.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Result is one recognized segment. Alternatives are best first.
type Result struct {
	Alternatives []Alternative `json:"alternatives"`
	IsFinal      bool          `json:"isFinal"`
}

// Config holds listener configuration
type Config struct {
	RestartDelay time.Duration `json:"restart_delay"`
	Language     string        `json:"language"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RestartDelay: 100 * time.Millisecond,
		Language:     "en-US",
	}
}
