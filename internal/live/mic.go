package live

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioMic captures from the default input device.
type PortAudioMic struct {
	mu          sync.Mutex
	stream      *portaudio.Stream
	running     bool
	loopDone    chan struct{}
	initialized bool
}

// NewPortAudioMic creates a microphone. PortAudio is initialized on
// first use.
func NewPortAudioMic() *PortAudioMic {
	return &PortAudioMic{}
}

// Start opens a mono input stream and delivers frames-sized chunks.
// Chunks are dropped when the reader falls behind.
func (m *PortAudioMic) Start(ctx context.Context, sampleRate, frames int) (<-chan []float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil, fmt.Errorf("%w: capture already running", ErrMicUnavailable)
	}
	if !m.initialized {
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("%w: initialize PortAudio: %w", ErrMicUnavailable, err)
		}
		m.initialized = true
	}

	buffer := make([]float32, frames)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frames, buffer)
	if err != nil {
		return nil, fmt.Errorf("%w: open input stream: %w", ErrMicUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start input stream: %w", ErrMicUnavailable, err)
	}

	out := make(chan []float32, 32)
	m.stream = stream
	m.running = true
	m.loopDone = make(chan struct{})
	go m.captureLoop(ctx, stream, buffer, out, m.loopDone)
	return out, nil
}

func (m *PortAudioMic) captureLoop(ctx context.Context, stream *portaudio.Stream, buffer []float32, out chan<- []float32, done chan struct{}) {
	defer close(done)
	defer close(out)
	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			if !m.isRunning() {
				return
			}
			continue
		}
		samples := make([]float32, len(buffer))
		copy(samples, buffer)
		select {
		case out <- samples:
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (m *PortAudioMic) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stop stops capture and closes the stream.
func (m *PortAudioMic) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	stream := m.stream
	done := m.loopDone
	m.stream = nil
	m.mu.Unlock()

	stopErr := stream.Stop()
	<-done
	if err := stream.Close(); err != nil {
		return fmt.Errorf("close input stream: %w", err)
	}
	if stopErr != nil {
		return fmt.Errorf("stop input stream: %w", stopErr)
	}
	return nil
}

// Close stops capture and releases PortAudio.
func (m *PortAudioMic) Close() error {
	if err := m.Stop(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil
	}
	m.initialized = false
	return portaudio.Terminate()
}
