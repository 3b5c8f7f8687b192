package tts

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/voice"
)

// SayEngine speaks through the macOS 'say' command.
type SayEngine struct {
	process
	baseRate int

	voicesMu sync.Mutex
	lastSeen []voice.Descriptor
}

// NewSayEngine creates a macOS speech engine.
func NewSayEngine(cfg Config, logger zerolog.Logger) *SayEngine {
	if cfg.BaseRateWPM <= 0 {
		cfg.BaseRateWPM = DefaultConfig().BaseRateWPM
	}
	return &SayEngine{
		process:  process{logger: logger.With().Str("engine", "say").Logger()},
		baseRate: cfg.BaseRateWPM,
	}
}

// Name returns the engine identifier
func (e *SayEngine) Name() string {
	return "say"
}

// IsAvailable checks if this is macOS and 'say' command exists
func (e *SayEngine) IsAvailable() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := exec.LookPath("say")
	return err == nil
}

// ListVoices runs `say -v ?` and reports every installed voice. When the
// list differs from the previous call, voices-changed listeners fire.
func (e *SayEngine) ListVoices(ctx context.Context) ([]voice.Descriptor, error) {
	if !e.IsAvailable() {
		return nil, ErrEngineUnavailable
	}

	output, err := exec.CommandContext(ctx, "say", "-v", "?").Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	voices := parseSayVoices(string(output))

	e.voicesMu.Lock()
	changed := e.lastSeen != nil && !sameVoices(e.lastSeen, voices)
	e.lastSeen = voices
	e.voicesMu.Unlock()

	if changed {
		e.voicesChanged()
	}
	return voices, nil
}

// Speak speaks an utterance through system audio, blocking until complete
func (e *SayEngine) Speak(ctx context.Context, u Utterance) error {
	if !e.IsAvailable() {
		return ErrEngineUnavailable
	}
	if strings.TrimSpace(u.Text) == "" {
		return ErrEmptyText
	}

	args := sayArgs(u, e.baseRate)
	e.logger.Debug().
		Int("textLen", len(u.Text)).
		Str("lang", u.Language).
		Msg("Speaking with say")

	return e.run(ctx, "say", args...)
}

// Cancel kills the running 'say' process
func (e *SayEngine) Cancel() {
	e.stop()
}

// OnVoicesChanged registers a voice list listener
func (e *SayEngine) OnVoicesChanged(fn func()) {
	e.onVoicesChanged(fn)
}

// sayArgs builds the command line. Volume and pitch are set with inline
// speech commands since 'say' has no flags for them.
func sayArgs(u Utterance, baseRate int) []string {
	var args []string
	if u.Voice != nil && u.Voice.URI != "" {
		args = append(args, "-v", u.Voice.URI)
	}
	if u.Rate > 0 {
		args = append(args, "-r", fmt.Sprintf("%d", int(math.Round(float64(baseRate)*u.Rate))))
	}

	var prefix strings.Builder
	if u.Volume >= 0 && u.Volume != 1 {
		fmt.Fprintf(&prefix, "[[volm %.2f]] ", u.Volume)
	}
	if u.Pitch > 0 && u.Pitch != 1 {
		// 'say' baseline pitch is roughly 50 on its own scale.
		fmt.Fprintf(&prefix, "[[pbas %d]] ", int(math.Round(50*u.Pitch)))
	}
	return append(args, prefix.String()+u.Text)
}

// parseSayVoices parses lines of the form
//
//	Samantha            en_US    # Hello, my name is Samantha.
//	Eddy (English (US)) en_US    # Hello! My name is Eddy.
func parseSayVoices(output string) []voice.Descriptor {
	var voices []voice.Descriptor
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		locale := fields[len(fields)-1]
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), locale))
		voices = append(voices, voice.Descriptor{
			Name:        name,
			LanguageTag: strings.ReplaceAll(locale, "_", "-"),
			URI:         name,
		})
	}
	return voices
}

func sameVoices(a, b []voice.Descriptor) bool {
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
