package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/bus"
	"github.com/normanking/voicelink/internal/config"
	"github.com/normanking/voicelink/internal/gesture"
	"github.com/normanking/voicelink/internal/speech"
	"github.com/normanking/voicelink/internal/store"
	"github.com/normanking/voicelink/internal/voice"
)

// GestureTuner is the part of the camera session settings reach.
type GestureTuner interface {
	SetLanguage(lang voice.Language)
	SetStabilizerConfig(cfg gesture.Config)
}

// ListenLanguage is the part of the partner listener settings reach.
type ListenLanguage interface {
	SetLanguage(lang string)
}

// CueConfigurer applies sound cue settings.
type CueConfigurer interface {
	SetConfig(cfg config.CueConfig)
}

// SignToggle turns sign generation on and off.
type SignToggle interface {
	SetEnabled(enabled bool)
}

// ProfileStore persists the onboarding profile.
type ProfileStore interface {
	Profile(ctx context.Context) (store.Profile, error)
	SaveProfile(ctx context.Context, p store.Profile) error
}

// SettingsTargets are the components settings changes are applied to.
// Any of them may be nil.
type SettingsTargets struct {
	Gesture  GestureTuner
	Listener ListenLanguage
	Cues     CueConfigurer
	Signs    SignToggle
	Profiles ProfileStore
}

// OnboardingData is what the landing screen collects.
type OnboardingData struct {
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Language string `json:"language"`
}

// SettingsBridge exposes settings methods to the frontend
type SettingsBridge struct {
	binding
	dir      string
	targets  SettingsTargets
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu  sync.RWMutex
	cfg *config.Config
}

// NewSettingsBridge creates a new settings bridge. Saved settings are
// written to dir. The current config is applied to targets immediately.
func NewSettingsBridge(cfg *config.Config, dir string, targets SettingsTargets, eventBus *bus.EventBus, logger zerolog.Logger) *SettingsBridge {
	b := &SettingsBridge{
		dir:      dir,
		targets:  targets,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "settings").Logger(),
		cfg:      cfg,
	}
	b.apply(cfg)
	return b
}

// Bind sets the Wails runtime context
func (b *SettingsBridge) Bind(ctx context.Context) {
	b.bind(ctx)
}

// GetSettings returns current settings
func (b *SettingsBridge) GetSettings() config.Settings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Settings
}

// Speech returns the current settings as speech settings.
func (b *SettingsBridge) Speech() speech.Settings {
	return speech.FromConfig(b.GetSettings())
}

// SaveSettings validates, applies and persists settings.
func (b *SettingsBridge) SaveSettings(s config.Settings) error {
	s.Normalize()

	b.mu.Lock()
	next := *b.cfg
	next.Settings = s
	b.cfg = &next
	b.mu.Unlock()

	b.apply(&next)

	if err := config.SaveTo(b.dir, &next); err != nil {
		b.logger.Error().Err(err).Msg("Failed to save settings")
		return fmt.Errorf("save settings: %w", err)
	}

	b.logger.Info().
		Str("language", s.Language).
		Str("gender", s.Gender).
		Bool("signs", s.SignGenerationEnabled).
		Msg("Settings saved")
	b.emit(EventSettingsSaved, s)
	return nil
}

// SetSoundCues turns the sound cues on or off and persists the change.
func (b *SettingsBridge) SetSoundCues(enabled bool) error {
	b.mu.Lock()
	next := *b.cfg
	next.Cue.Enabled = enabled
	b.cfg = &next
	b.mu.Unlock()

	b.apply(&next)
	return config.SaveTo(b.dir, &next)
}

// SoundCuesEnabled reports whether sound cues play.
func (b *SettingsBridge) SoundCuesEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Cue.Enabled
}

// Reload applies a config read from disk. The in-memory API key is kept
// since it is never written to the file.
func (b *SettingsBridge) Reload(cfg *config.Config) {
	b.mu.Lock()
	next := *cfg
	if next.SignGen.APIKey == "" {
		next.SignGen.APIKey = b.cfg.SignGen.APIKey
	}
	b.cfg = &next
	b.mu.Unlock()

	b.apply(&next)
	b.logger.Info().Msg("Configuration reloaded")
	b.emit(EventSettingsSaved, next.Settings)
}

// GetProfile returns the onboarding profile.
func (b *SettingsBridge) GetProfile() (store.Profile, error) {
	if b.targets.Profiles == nil {
		return store.Profile{}, nil
	}
	return b.targets.Profiles.Profile(context.Background())
}

// NeedsOnboarding reports whether the landing screen should be shown.
func (b *SettingsBridge) NeedsOnboarding() bool {
	p, err := b.GetProfile()
	if err != nil {
		b.logger.Warn().Err(err).Msg("Failed to read profile")
		return true
	}
	return !p.OnboardingComplete
}

// CompleteOnboarding stores the profile and adopts its language and
// gender as settings.
func (b *SettingsBridge) CompleteOnboarding(data OnboardingData) error {
	s := b.GetSettings()
	s.Language = data.Language
	s.Gender = data.Gender
	s.Normalize()

	if b.targets.Profiles != nil {
		p := store.Profile{
			Name:               strings.TrimSpace(data.Name),
			Language:           s.Language,
			Gender:             s.Gender,
			OnboardingComplete: true,
		}
		if err := b.targets.Profiles.SaveProfile(context.Background(), p); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
	}
	return b.SaveSettings(s)
}

func (b *SettingsBridge) apply(cfg *config.Config) {
	s := speech.FromConfig(cfg.Settings)
	t := b.targets

	if t.Gesture != nil {
		t.Gesture.SetLanguage(s.Language)
		t.Gesture.SetStabilizerConfig(gesture.Config{
			ConfidenceThreshold: cfg.Gesture.ConfidenceThreshold,
			HoldDuration:        cfg.Gesture.HoldDuration,
			Cooldown:            cfg.Gesture.Cooldown,
		})
	}
	if t.Listener != nil {
		t.Listener.SetLanguage(s.Language.Tag())
	}
	if t.Cues != nil {
		t.Cues.SetConfig(cfg.Cue)
	}
	if t.Signs != nil {
		t.Signs.SetEnabled(cfg.Settings.SignGenerationEnabled)
	}

	b.eventBus.Publish(bus.Event{
		Type: bus.EventTypeSettingsChanged,
		Data: map[string]any{"language": cfg.Settings.Language, "gender": cfg.Settings.Gender},
	})
}
