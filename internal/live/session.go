package live

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/bus"
	"github.com/normanking/voicelink/internal/conversation"
	"github.com/normanking/voicelink/internal/cue"
)

const playQueueSize = 256

// Cues plays UI sounds.
type Cues interface {
	Play(p cue.Profile)
}

// Session owns at most one live conversation at a time.
type Session struct {
	connector Connector
	mic       Microphone
	player    Player
	cues      Cues
	eventBus  *bus.EventBus
	logger    zerolog.Logger

	mu        sync.Mutex
	status    Status
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	onMessage func(text string, sender conversation.Sender)
	onStatus  func(Status)
}

// NewSession creates an idle session. cues and eventBus may be nil.
func NewSession(connector Connector, mic Microphone, player Player, cues Cues, eventBus *bus.EventBus, logger zerolog.Logger) *Session {
	return &Session{
		connector: connector,
		mic:       mic,
		player:    player,
		cues:      cues,
		eventBus:  eventBus,
		status:    Status{State: StateIdle},
		logger:    logger.With().Str("component", "live").Logger(),
	}
}

// OnMessage registers the handler for finished turns. What the partner
// said arrives as a partner message and the model's reply as a user
// message, since the model speaks on the user's behalf.
func (s *Session) OnMessage(fn func(text string, sender conversation.Sender)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

// OnStatus registers the handler for status changes.
func (s *Session) OnStatus(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start connects in the background. It fails only when a session is
// already connecting or active; connection errors are reported through
// Status.
func (s *Session) Start(opts Options) error {
	s.mu.Lock()
	if s.status.State == StateConnecting || s.status.State == StateActive {
		s.mu.Unlock()
		return ErrSessionActive
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	prev := s.done
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.status = Status{State: StateConnecting}
	st := s.status
	s.mu.Unlock()

	s.notify(st)
	if s.cues != nil {
		s.cues.Play(cue.Social)
	}
	s.logger.Info().Str("voice", opts.Voice).Msg("Live session connecting")

	go func() {
		if prev != nil {
			<-prev
		}
		s.run(ctx, gen, opts, done)
	}()
	return nil
}

// Stop ends the session and waits for its audio to be released.
func (s *Session) Stop() {
	s.mu.Lock()
	s.gen++
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	changed := s.status != Status{State: StateIdle}
	s.status = Status{State: StateIdle}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if changed {
		s.logger.Info().Msg("Live session stopped")
		s.notify(Status{State: StateIdle})
	}
}

func (s *Session) run(ctx context.Context, gen uint64, opts Options, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames, err := s.mic.Start(ctx, InputSampleRate, ChunkFrames)
	if err != nil {
		s.fail(gen, MsgUnavailable, err)
		return
	}
	defer func() {
		if err := s.mic.Stop(); err != nil {
			s.logger.Debug().Err(err).Msg("Microphone stop failed")
		}
	}()

	conn, err := s.connector.Connect(ctx, opts)
	if err != nil {
		s.fail(gen, MsgUnavailable, err)
		return
	}
	defer conn.Close()
	// Receive has no context, so cancellation closes the connection.
	context.AfterFunc(ctx, func() { conn.Close() })

	queue := make(chan []float32, playQueueSize)
	if !s.activate(gen) {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.sendLoop(ctx, conn, frames)
	}()
	go func() {
		defer wg.Done()
		s.playLoop(ctx, gen, queue)
	}()

	err = s.receiveLoop(gen, conn, queue)
	if ctx.Err() == nil {
		s.fail(gen, MsgConnectionLost, err)
	}
	cancel()
	wg.Wait()
}

func (s *Session) sendLoop(ctx context.Context, conn Conn, frames <-chan []float32) {
	for {
		select {
		case <-ctx.Done():
			return
		case samples, ok := <-frames:
			if !ok {
				return
			}
			if err := conn.SendAudio(EncodePCM16(samples)); err != nil {
				if ctx.Err() == nil {
					s.logger.Debug().Err(err).Msg("Audio send failed")
				}
				return
			}
		}
	}
}

func (s *Session) receiveLoop(gen uint64, conn Conn, queue chan []float32) error {
	var input, output string
	for {
		msg, err := conn.Receive()
		if err != nil {
			return err
		}

		input += msg.InputText
		output += msg.OutputText
		if msg.TurnComplete {
			s.deliver(input, conversation.SenderPartner)
			s.deliver(output, conversation.SenderUser)
			input, output = "", ""
		}

		if len(msg.Audio) > 0 {
			s.setTalking(gen, true)
			select {
			case queue <- DecodePCM16(msg.Audio):
			default:
				s.logger.Debug().Int("bytes", len(msg.Audio)).Msg("Playback queue full, audio dropped")
			}
		}

		if msg.Interrupted {
			drain(queue)
			s.setTalking(gen, false)
		}
	}
}

func (s *Session) playLoop(ctx context.Context, gen uint64, queue chan []float32) {
	for {
		select {
		case <-ctx.Done():
			return
		case samples := <-queue:
			if err := s.player.Play(samples, OutputSampleRate); err != nil {
				s.logger.Warn().Err(err).Msg("Live playback failed")
			}
			if len(queue) == 0 {
				s.setTalking(gen, false)
			}
		}
	}
}

func (s *Session) deliver(text string, sender conversation.Sender) {
	if text == "" {
		return
	}
	s.mu.Lock()
	fn := s.onMessage
	s.mu.Unlock()
	if fn != nil {
		fn(text, sender)
	}
}

func (s *Session) activate(gen uint64) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	s.status = Status{State: StateActive}
	s.mu.Unlock()

	s.logger.Info().Msg("Live session active")
	s.notify(Status{State: StateActive})
	return true
}

func (s *Session) setTalking(gen uint64, talking bool) {
	s.mu.Lock()
	if gen != s.gen || s.status.State != StateActive || s.status.Talking == talking {
		s.mu.Unlock()
		return
	}
	s.status.Talking = talking
	st := s.status
	s.mu.Unlock()
	s.notify(st)
}

func (s *Session) fail(gen uint64, msg string, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.status = Status{State: StateError, Error: msg}
	s.mu.Unlock()

	s.logger.Warn().Err(err).Msg(msg)
	s.notify(Status{State: StateError, Error: msg})
}

func (s *Session) notify(st Status) {
	s.mu.Lock()
	fn := s.onStatus
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
	s.eventBus.Publish(bus.Event{
		Type: bus.EventTypeLiveStatus,
		Data: map[string]any{"state": string(st.State), "error": st.Error, "talking": st.Talking},
	})
}

func drain(queue chan []float32) {
	for {
		select {
		case <-queue:
		default:
			return
		}
	}
}
