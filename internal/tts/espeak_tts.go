package tts

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/voice"
)

// EspeakEngine speaks through espeak-ng, for Linux and Windows desktops.
type EspeakEngine struct {
	process
	binary   string
	baseRate int
}

// NewEspeakEngine creates an espeak-ng engine.
func NewEspeakEngine(cfg Config, logger zerolog.Logger) *EspeakEngine {
	def := DefaultConfig()
	if cfg.EspeakPath == "" {
		cfg.EspeakPath = def.EspeakPath
	}
	if cfg.BaseRateWPM <= 0 {
		cfg.BaseRateWPM = def.BaseRateWPM
	}
	return &EspeakEngine{
		process:  process{logger: logger.With().Str("engine", "espeak").Logger()},
		binary:   cfg.EspeakPath,
		baseRate: cfg.BaseRateWPM,
	}
}

// Name returns the engine identifier
func (e *EspeakEngine) Name() string {
	return "espeak"
}

// IsAvailable checks that the espeak-ng binary is on PATH
func (e *EspeakEngine) IsAvailable() bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

// ListVoices runs `espeak-ng --voices`.
func (e *EspeakEngine) ListVoices(ctx context.Context) ([]voice.Descriptor, error) {
	if !e.IsAvailable() {
		return nil, ErrEngineUnavailable
	}
	output, err := exec.CommandContext(ctx, e.binary, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return parseEspeakVoices(string(output)), nil
}

// Speak blocks until espeak-ng finishes or ctx is done
func (e *EspeakEngine) Speak(ctx context.Context, u Utterance) error {
	if !e.IsAvailable() {
		return ErrEngineUnavailable
	}
	if strings.TrimSpace(u.Text) == "" {
		return ErrEmptyText
	}
	return e.run(ctx, e.binary, espeakArgs(u, e.baseRate)...)
}

// Cancel kills the running espeak-ng process
func (e *EspeakEngine) Cancel() {
	e.stop()
}

// OnVoicesChanged registers a voice list listener
func (e *EspeakEngine) OnVoicesChanged(fn func()) {
	e.onVoicesChanged(fn)
}

func espeakArgs(u Utterance, baseRate int) []string {
	var args []string
	switch {
	case u.Voice != nil && u.Voice.URI != "":
		args = append(args, "-v", u.Voice.URI)
	case u.Language != "":
		args = append(args, "-v", strings.ToLower(u.Language))
	}
	if u.Rate > 0 {
		args = append(args, "-s", fmt.Sprintf("%d", int(math.Round(float64(baseRate)*u.Rate))))
	}
	if u.Pitch > 0 {
		args = append(args, "-p", fmt.Sprintf("%d", clampInt(int(math.Round(50*u.Pitch)), 0, 99)))
	}
	if u.Volume >= 0 {
		args = append(args, "-a", fmt.Sprintf("%d", clampInt(int(math.Round(100*u.Volume)), 0, 200)))
	}
	return append(args, u.Text)
}

// parseEspeakVoices parses the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  hi              --/M      Hindi              inc/hi
func parseEspeakVoices(output string) []voice.Descriptor {
	var voices []voice.Descriptor
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		lang, gender, name := fields[1], fields[2], fields[3]
		switch {
		case strings.HasSuffix(gender, "/M"):
			name += " Male"
		case strings.HasSuffix(gender, "/F"):
			name += " Female"
		}
		voices = append(voices, voice.Descriptor{
			Name:        strings.ReplaceAll(name, "_", " "),
			LanguageTag: lang,
			URI:         lang,
		})
	}
	return voices
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
