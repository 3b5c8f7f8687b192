package cue

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/config"
)

// Player plays mono PCM.
type Player interface {
	Play(samples []float32, sampleRate int) error
	Close() error
}

// PortAudioPlayer plays through the default output device.
type PortAudioPlayer struct {
	mu          sync.Mutex
	initialized bool
}

// NewPortAudioPlayer creates a player. PortAudio is initialized on first
// use.
func NewPortAudioPlayer() *PortAudioPlayer {
	return &PortAudioPlayer{}
}

// Play writes samples to a fresh output stream and blocks until they
// have been queued.
func (p *PortAudioPlayer) Play(samples []float32, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
		p.initialized = true
	}

	bufferSize := 1024
	buffer := make([]float32, bufferSize)

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), bufferSize, &buffer)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	for position := 0; position < len(samples); position += bufferSize {
		for i := range buffer {
			if position+i < len(samples) {
				buffer[i] = samples[position+i]
			} else {
				buffer[i] = 0
			}
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("failed to write to stream: %w", err)
		}
	}
	return nil
}

// Close releases PortAudio.
func (p *PortAudioPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil
	}
	p.initialized = false
	return portaudio.Terminate()
}

// Service renders profiles and plays them in the background.
type Service struct {
	player Player
	logger zerolog.Logger

	mu       sync.Mutex
	cfg      config.CueConfig
	rendered map[Profile][]float32
	wg       sync.WaitGroup
}

// NewService creates a cue service.
func NewService(player Player, cfg config.CueConfig, logger zerolog.Logger) *Service {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	return &Service{
		player:   player,
		cfg:      cfg,
		rendered: make(map[Profile][]float32),
		logger:   logger.With().Str("component", "cue").Logger(),
	}
}

// SetConfig replaces the configuration.
func (s *Service) SetConfig(cfg config.CueConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = s.cfg.SampleRate
	}
	if cfg != s.cfg {
		s.rendered = make(map[Profile][]float32)
	}
	s.cfg = cfg
}

// Play starts p without waiting for it to finish. It does nothing when
// cues are disabled.
func (s *Service) Play(p Profile) {
	s.mu.Lock()
	if !s.cfg.Enabled || s.player == nil {
		s.mu.Unlock()
		return
	}
	samples, ok := s.rendered[p]
	if !ok {
		samples = Render(SoundFor(p), s.cfg.SampleRate, s.cfg.MasterGain)
		s.rendered[p] = samples
	}
	rate := s.cfg.SampleRate
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.player.Play(samples, rate); err != nil {
			s.logger.Warn().Err(err).Str("profile", string(p)).Msg("Cue playback failed")
		}
	}()
}

// Wait blocks until every started cue has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close waits for playback and releases the player.
func (s *Service) Close() error {
	s.wg.Wait()
	if s.player == nil {
		return nil
	}
	return s.player.Close()
}
