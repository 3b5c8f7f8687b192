package live

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/voicelink/internal/bus"
	"github.com/normanking/voicelink/internal/conversation"
	"github.com/normanking/voicelink/internal/cue"
)

type fakeConn struct {
	mu       sync.Mutex
	sent     [][]byte
	incoming chan Message
	closed   chan struct{}
	once     sync.Once
	lost     chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan Message, 16),
		closed:   make(chan struct{}),
		lost:     make(chan struct{}),
	}
}

func (c *fakeConn) SendAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, pcm)
	return nil
}

func (c *fakeConn) Receive() (Message, error) {
	select {
	case m := <-c.incoming:
		return m, nil
	case <-c.lost:
		return Message{}, io.ErrUnexpectedEOF
	case <-c.closed:
		return Message{}, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fakeConnector struct {
	mu    sync.Mutex
	err   error
	conns []*fakeConn
	opts  []Options
}

func (f *fakeConnector) Connect(_ context.Context, opts Options) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	c := newFakeConn()
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeConnector) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.conns) {
		return nil
	}
	return f.conns[i]
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

type fakeMic struct {
	mu      sync.Mutex
	err     error
	frames  chan []float32
	running bool
	stops   int
}

func (m *fakeMic) Start(_ context.Context, sampleRate, frames int) (<-chan []float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.frames = make(chan []float32, 4)
	m.running = true
	return m.frames, nil
}

func (m *fakeMic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.running = false
		m.stops++
	}
	return nil
}

func (m *fakeMic) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *fakeMic) push(samples []float32) {
	m.mu.Lock()
	ch := m.frames
	m.mu.Unlock()
	ch <- samples
}

type fakePlayer struct {
	mu     sync.Mutex
	chunks [][]float32
	rates  []int
	gate   chan struct{}
}

func (p *fakePlayer) Play(samples []float32, sampleRate int) error {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = append(p.chunks, samples)
	p.rates = append(p.rates, sampleRate)
	return nil
}

func (p *fakePlayer) played() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chunks)
}

type recordingCues struct {
	mu     sync.Mutex
	played []cue.Profile
}

func (r *recordingCues) Play(p cue.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, p)
}

type said struct {
	text   string
	sender conversation.Sender
}

type harness struct {
	session   *Session
	connector *fakeConnector
	mic       *fakeMic
	player    *fakePlayer
	cues      *recordingCues

	mu       sync.Mutex
	messages []said
}

func newHarness() *harness {
	h := &harness{
		connector: &fakeConnector{},
		mic:       &fakeMic{},
		player:    &fakePlayer{},
		cues:      &recordingCues{},
	}
	h.session = NewSession(h.connector, h.mic, h.player, h.cues, bus.NewEventBus(), zerolog.Nop())
	h.session.OnMessage(func(text string, sender conversation.Sender) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.messages = append(h.messages, said{text, sender})
	})
	return h
}

func (h *harness) said() []said {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]said(nil), h.messages...)
}

func (h *harness) state() State {
	return h.session.Status().State
}

func (h *harness) waitActive(t *testing.T) *fakeConn {
	t.Helper()
	require.Eventually(t, func() bool { return h.state() == StateActive }, time.Second, 5*time.Millisecond)
	return h.connector.conn(h.connector.count() - 1)
}

func TestSession_StartConnectsAndStreamsMicrophone(t *testing.T) {
	h := newHarness()
	defer h.session.Stop()

	require.NoError(t, h.session.Start(Options{Voice: "Kore", SystemInstruction: "hi"}))
	conn := h.waitActive(t)

	assert.Equal(t, []cue.Profile{cue.Social}, h.cues.played)
	assert.Equal(t, []Options{{Voice: "Kore", SystemInstruction: "hi"}}, h.connector.opts)

	h.mic.push([]float32{0, 0.5, -0.5})
	require.Eventually(t, func() bool { return conn.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	conn.mu.Lock()
	assert.Len(t, conn.sent[0], 6)
	conn.mu.Unlock()
}

func TestSession_SecondStartIsRejected(t *testing.T) {
	h := newHarness()
	defer h.session.Stop()

	require.NoError(t, h.session.Start(Options{}))
	assert.ErrorIs(t, h.session.Start(Options{}), ErrSessionActive)
	h.waitActive(t)
	assert.ErrorIs(t, h.session.Start(Options{}), ErrSessionActive)
	assert.Equal(t, 1, h.connector.count())
}

func TestSession_TranscriptsAreDeliveredOnTurnComplete(t *testing.T) {
	h := newHarness()
	defer h.session.Stop()

	require.NoError(t, h.session.Start(Options{}))
	conn := h.waitActive(t)

	conn.incoming <- Message{InputText: "how are "}
	conn.incoming <- Message{InputText: "you?"}
	conn.incoming <- Message{OutputText: "I am fine."}
	assert.Never(t, func() bool { return len(h.said()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	conn.incoming <- Message{TurnComplete: true}
	require.Eventually(t, func() bool { return len(h.said()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []said{
		{"how are you?", conversation.SenderPartner},
		{"I am fine.", conversation.SenderUser},
	}, h.said())

	// Empty turns are not reported.
	conn.incoming <- Message{TurnComplete: true}
	assert.Never(t, func() bool { return len(h.said()) > 2 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSession_PlaysModelAudio(t *testing.T) {
	h := newHarness()
	h.player.gate = make(chan struct{})
	defer h.session.Stop()

	require.NoError(t, h.session.Start(Options{}))
	conn := h.waitActive(t)

	conn.incoming <- Message{Audio: EncodePCM16([]float32{0.25, -0.25})}
	require.Eventually(t, func() bool { return h.session.Status().Talking }, time.Second, 5*time.Millisecond)

	close(h.player.gate)
	require.Eventually(t, func() bool { return h.player.played() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !h.session.Status().Talking }, time.Second, 5*time.Millisecond)

	h.player.mu.Lock()
	defer h.player.mu.Unlock()
	assert.Equal(t, OutputSampleRate, h.player.rates[0])
	assert.InDelta(t, 0.25, h.player.chunks[0][0], 0.001)
}

func TestSession_InterruptDropsQueuedAudio(t *testing.T) {
	h := newHarness()
	h.player.gate = make(chan struct{})
	defer h.session.Stop()

	require.NoError(t, h.session.Start(Options{}))
	conn := h.waitActive(t)

	chunk := EncodePCM16([]float32{0.1})
	for i := 0; i < 3; i++ {
		conn.incoming <- Message{Audio: chunk}
	}
	require.Eventually(t, func() bool { return h.session.Status().Talking }, time.Second, 5*time.Millisecond)
	// The first chunk is held by the player, the rest are queued.
	require.Eventually(t, func() bool { return len(conn.incoming) == 0 }, time.Second, 5*time.Millisecond)

	conn.incoming <- Message{Interrupted: true}
	require.Eventually(t, func() bool { return !h.session.Status().Talking }, time.Second, 5*time.Millisecond)

	close(h.player.gate)
	assert.Never(t, func() bool { return h.player.played() > 1 }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestSession_ConnectionLost(t *testing.T) {
	h := newHarness()
	defer h.session.Stop()

	require.NoError(t, h.session.Start(Options{}))
	conn := h.waitActive(t)

	close(conn.lost)
	require.Eventually(t, func() bool { return h.state() == StateError }, time.Second, 5*time.Millisecond)
	assert.Equal(t, MsgConnectionLost, h.session.Status().Error)
	require.Eventually(t, func() bool { return !h.mic.isRunning() }, time.Second, 5*time.Millisecond)
	assert.True(t, conn.isClosed())

	// Tapping retries.
	require.NoError(t, h.session.Start(Options{}))
	h.waitActive(t)
	assert.Equal(t, 2, h.connector.count())
	assert.Empty(t, h.session.Status().Error)
}

func TestSession_MicrophoneUnavailable(t *testing.T) {
	h := newHarness()
	h.mic.err = ErrMicUnavailable

	require.NoError(t, h.session.Start(Options{}))
	require.Eventually(t, func() bool { return h.state() == StateError }, time.Second, 5*time.Millisecond)
	assert.Equal(t, MsgUnavailable, h.session.Status().Error)
	assert.Zero(t, h.connector.count())
}

func TestSession_ConnectFailureReleasesMicrophone(t *testing.T) {
	h := newHarness()
	h.connector.err = errors.New("dial failed")

	require.NoError(t, h.session.Start(Options{}))
	require.Eventually(t, func() bool { return h.state() == StateError }, time.Second, 5*time.Millisecond)
	assert.Equal(t, MsgUnavailable, h.session.Status().Error)
	require.Eventually(t, func() bool { return !h.mic.isRunning() }, time.Second, 5*time.Millisecond)
}

func TestSession_OfflineConnector(t *testing.T) {
	h := newHarness()
	h.session.connector = Offline{Err: ErrNoAPIKey}

	require.NoError(t, h.session.Start(Options{}))
	require.Eventually(t, func() bool { return h.state() == StateError }, time.Second, 5*time.Millisecond)
	assert.Equal(t, MsgUnavailable, h.session.Status().Error)
}

func TestSession_StopReleasesEverything(t *testing.T) {
	h := newHarness()

	var mu sync.Mutex
	var states []State
	h.session.OnStatus(func(st Status) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, st.State)
	})

	require.NoError(t, h.session.Start(Options{}))
	conn := h.waitActive(t)

	h.session.Stop()
	assert.Equal(t, StateIdle, h.state())
	assert.True(t, conn.isClosed())
	assert.False(t, h.mic.isRunning())
	assert.Equal(t, 1, h.mic.stops)

	mu.Lock()
	assert.Equal(t, []State{StateConnecting, StateActive, StateIdle}, states)
	mu.Unlock()

	// Stopping twice is harmless.
	h.session.Stop()
	assert.Equal(t, StateIdle, h.state())
}

func TestSession_StatusIsPublished(t *testing.T) {
	eventBus := bus.NewEventBus()
	got := make(chan string, 8)
	eventBus.Subscribe(bus.EventTypeLiveStatus, func(e bus.Event) {
		got <- e.Data["state"].(string)
	})

	h := newHarness()
	h.session.eventBus = eventBus
	defer h.session.Stop()

	require.NoError(t, h.session.Start(Options{}))
	h.waitActive(t)

	seen := map[string]bool{}
	require.Eventually(t, func() bool {
		for {
			select {
			case s := <-got:
				seen[s] = true
			default:
				return seen["connecting"] && seen["active"]
			}
		}
	}, time.Second, 5*time.Millisecond)
}

func TestVoiceFor(t *testing.T) {
	assert.Equal(t, "Puck", VoiceFor("male"))
	assert.Equal(t, "Kore", VoiceFor("female"))
	assert.Equal(t, "Kore", VoiceFor(""))
}

func TestInstruction(t *testing.T) {
	assert.Contains(t, Instruction("Asha"), "assistant for Asha, an AAC user")
	assert.Contains(t, Instruction(""), "assistant for the user")
}

func TestPCM16(t *testing.T) {
	pcm := EncodePCM16([]float32{0, 1, -1, 2, -2})
	assert.Equal(t, []byte{0x00, 0x00, 0xff, 0x7f, 0x01, 0x80, 0xff, 0x7f, 0x01, 0x80}, pcm)

	samples := DecodePCM16(append(pcm, 0x42))
	require.Len(t, samples, 5)
	assert.Zero(t, samples[0])
	assert.InDelta(t, 1, samples[1], 0.001)
	assert.InDelta(t, -1, samples[2], 0.001)
}
