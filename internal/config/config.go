// Package config provides configuration management for VoiceLink
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	appDirName     = ".voicelink"
	configFileName = "config.yaml"
)

// Config holds all application configuration
type Config struct {
	Settings Settings      `mapstructure:"settings" yaml:"settings"`
	Gesture  GestureConfig `mapstructure:"gesture" yaml:"gesture"`
	Vision   VisionConfig  `mapstructure:"vision" yaml:"vision"`
	TTS      TTSConfig     `mapstructure:"tts" yaml:"tts"`
	Listen   ListenConfig  `mapstructure:"listen" yaml:"listen"`
	Cue      CueConfig     `mapstructure:"cue" yaml:"cue"`
	SignGen  SignGenConfig `mapstructure:"signgen" yaml:"signgen"`
	Live     LiveConfig    `mapstructure:"live" yaml:"live"`
	Store    StoreConfig   `mapstructure:"store" yaml:"store"`
	Log      LogConfig     `mapstructure:"log" yaml:"log"`
	Window   WindowConfig  `mapstructure:"window" yaml:"window"`
}

// Settings are the user-facing preferences edited in the settings screen
type Settings struct {
	Language              string  `mapstructure:"language" yaml:"language" json:"language"` // en-US or hi-IN
	Gender                string  `mapstructure:"gender" yaml:"gender" json:"gender"`       // male or female
	Rate                  float64 `mapstructure:"rate" yaml:"rate" json:"rate"`             // 0.5 to 2.0
	Pitch                 float64 `mapstructure:"pitch" yaml:"pitch" json:"pitch"`          // 0.5 to 2.0
	Volume                float64 `mapstructure:"volume" yaml:"volume" json:"volume"`       // 0.0 to 1.0
	SelectedVoiceURI      string  `mapstructure:"selected_voice_uri" yaml:"selected_voice_uri" json:"selectedVoiceURI"`
	HighContrast          bool    `mapstructure:"high_contrast" yaml:"high_contrast" json:"highContrast"`
	TextSize              string  `mapstructure:"text_size" yaml:"text_size" json:"textSize"` // normal, large, extra
	PrivacyEnabled        bool    `mapstructure:"privacy_enabled" yaml:"privacy_enabled" json:"privacyEnabled"`
	SignGenerationEnabled bool    `mapstructure:"sign_generation_enabled" yaml:"sign_generation_enabled" json:"signGenerationEnabled"`
}

// GestureConfig tunes gesture stabilization
type GestureConfig struct {
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	HoldDuration        time.Duration `mapstructure:"hold_duration" yaml:"hold_duration"`
	Cooldown            time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	VocabularyPath      string        `mapstructure:"vocabulary_path" yaml:"vocabulary_path"` // optional YAML override
}

// VisionConfig configures the camera session and the gesture classifier
type VisionConfig struct {
	ClassifierURL string `mapstructure:"classifier_url" yaml:"classifier_url"` // gesture classifier service
	ModelAsset    string `mapstructure:"model_asset" yaml:"model_asset"`
	Delegate      string `mapstructure:"delegate" yaml:"delegate"`       // GPU or CPU
	FacingMode    string `mapstructure:"facing_mode" yaml:"facing_mode"` // user or environment
	MaxFPS        int    `mapstructure:"max_fps" yaml:"max_fps"`
}

// TTSConfig configures text-to-speech
type TTSConfig struct {
	Engine      string `mapstructure:"engine" yaml:"engine"` // say, espeak
	EspeakPath  string `mapstructure:"espeak_path" yaml:"espeak_path"`
	BaseRateWPM int    `mapstructure:"base_rate_wpm" yaml:"base_rate_wpm"`
}

// ListenConfig configures partner speech recognition
type ListenConfig struct {
	RestartDelay time.Duration `mapstructure:"restart_delay" yaml:"restart_delay"`
}

// CueConfig configures sound cues
type CueConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	MasterGain float64 `mapstructure:"master_gain" yaml:"master_gain"`
	SampleRate int     `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// SignGenConfig configures sign visualization
type SignGenConfig struct {
	Model     string        `mapstructure:"model" yaml:"model"`
	Debounce  time.Duration `mapstructure:"debounce" yaml:"debounce"`
	CacheSize int           `mapstructure:"cache_size" yaml:"cache_size"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

// LiveConfig configures the live voice assistant. It shares the sign
// generation API key.
type LiveConfig struct {
	Model string `mapstructure:"model" yaml:"model"`
}

// StoreConfig configures local persistence
type StoreConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LogConfig configures logging
type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Console bool   `mapstructure:"console" yaml:"console"`
}

// WindowConfig configures the window
type WindowConfig struct {
	Title       string `mapstructure:"title" yaml:"title"`
	Width       int    `mapstructure:"width" yaml:"width"`
	Height      int    `mapstructure:"height" yaml:"height"`
	AlwaysOnTop bool   `mapstructure:"always_on_top" yaml:"always_on_top"`
}

// DefaultSettings returns the preferences a new user starts with
func DefaultSettings() Settings {
	return Settings{
		Language:              "en-US",
		Gender:                "female",
		Rate:                  1.0,
		Pitch:                 1.0,
		Volume:                1.0,
		TextSize:              "normal",
		PrivacyEnabled:        true,
		SignGenerationEnabled: true,
	}
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Settings: DefaultSettings(),
		Gesture: GestureConfig{
			ConfidenceThreshold: 0.55,
			HoldDuration:        400 * time.Millisecond,
			Cooldown:            2 * time.Second,
		},
		Vision: VisionConfig{
			ClassifierURL: "ws://127.0.0.1:8765",
			ModelAsset:    "gesture_recognizer.task",
			Delegate:      "GPU",
			FacingMode:    "user",
			MaxFPS:        30,
		},
		TTS: TTSConfig{
			Engine:      "say",
			EspeakPath:  "espeak-ng",
			BaseRateWPM: 175,
		},
		Listen: ListenConfig{
			RestartDelay: 100 * time.Millisecond,
		},
		Cue: CueConfig{
			Enabled:    true,
			MasterGain: 0.2,
			SampleRate: 44100,
		},
		SignGen: SignGenConfig{
			Model:     "gemini-2.5-flash-image",
			Debounce:  500 * time.Millisecond,
			CacheSize: 64,
		},
		Live: LiveConfig{
			Model: "gemini-2.5-flash-native-audio-preview-09-2025",
		},
		Log: LogConfig{
			Level:   "debug",
			Console: true,
		},
		Window: WindowConfig{
			Title:  "VoiceLink",
			Width:  1024,
			Height: 768,
		},
	}
}

// Normalize replaces out-of-range settings with defaults. Rate, pitch and
// volume are only checked for sign, not clamped.
func (s *Settings) Normalize() {
	def := DefaultSettings()
	if s.Language != "en-US" && s.Language != "hi-IN" {
		s.Language = def.Language
	}
	if s.Gender != "male" && s.Gender != "female" {
		s.Gender = def.Gender
	}
	if s.Rate <= 0 {
		s.Rate = def.Rate
	}
	if s.Pitch <= 0 {
		s.Pitch = def.Pitch
	}
	if s.Volume < 0 {
		s.Volume = def.Volume
	}
	switch s.TextSize {
	case "normal", "large", "extra":
	default:
		s.TextSize = def.TextSize
	}
}

// Load reads configuration from ~/.voicelink and the environment
func Load() (*Config, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadFrom(dir)
}

// LoadFrom reads configuration from dir, creating the file with defaults
// when it does not exist yet.
func LoadFrom(dir string) (*Config, error) {
	cfg := DefaultConfig()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return cfg, err
	}

	defaults, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return cfg, fmt.Errorf("load defaults: %w", err)
	}

	v.SetConfigName("config")
	v.AddConfigPath(dir)

	// Environment variable overrides, e.g. VOICELINK_SETTINGS_LANGUAGE
	v.SetEnvPrefix("VOICELINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, err
		}
		if err := SaveTo(dir, cfg); err != nil {
			return cfg, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	cfg.Settings.Normalize()
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = filepath.Join(dir, "data")
	}
	if cfg.SignGen.APIKey == "" {
		cfg.SignGen.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}

	return cfg, nil
}

// Save writes the configuration to ~/.voicelink/config.yaml
func Save(cfg *Config) error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	return SaveTo(dir, cfg)
}

// SaveTo writes the configuration into dir. The API key is never written.
func SaveTo(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	out := *cfg
	out.SignGen.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	path := filepath.Join(dir, configFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, appDirName), nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
