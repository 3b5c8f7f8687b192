// Package tts provides the text-to-speech engines VoiceLink speaks through.
package tts

import (
	"context"
	"errors"

	"github.com/normanking/voicelink/internal/voice"
)

// Common errors
var (
	ErrEngineUnavailable = errors.New("TTS engine unavailable")
	ErrEmptyText         = errors.New("nothing to speak")
)

// Engine is a speech synthesizer that plays audio itself.
type Engine interface {
	// Name returns the engine identifier (e.g., "say", "espeak")
	Name() string

	// ListVoices enumerates installed voices in engine order
	ListVoices(ctx context.Context) ([]voice.Descriptor, error)

	// Speak plays an utterance and blocks until it finishes or ctx is done
	Speak(ctx context.Context, u Utterance) error

	// Cancel stops whatever the engine is currently saying
	Cancel()

	// OnVoicesChanged registers a callback for when the voice list changes
	OnVoicesChanged(fn func())
}

// Utterance is a single request to speak.
type Utterance struct {
	Text string `json:"text"`

	// Voice is nil when the engine default should be used
	Voice *voice.Descriptor `json:"voice,omitempty"`

	// Language is the BCP-47 tag the text is written in
	Language string `json:"lang"`

	Rate   float64 `json:"rate"`   // 0.5 to 2.0, 1.0 is normal
	Pitch  float64 `json:"pitch"`  // 0.5 to 2.0, 1.0 is normal
	Volume float64 `json:"volume"` // 0.0 to 1.0
}

// Config holds TTS configuration
type Config struct {
	Engine      string `mapstructure:"engine"`        // say, espeak
	EspeakPath  string `mapstructure:"espeak_path"`   // espeak-ng binary
	BaseRateWPM int    `mapstructure:"base_rate_wpm"` // words per minute at rate 1.0
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Engine:      "say",
		EspeakPath:  "espeak-ng",
		BaseRateWPM: 175,
	}
}
