package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Access is the outcome of the frontend's last camera request.
type Access string

const (
	AccessUnknown     Access = ""
	AccessGranted     Access = "granted"
	AccessDenied      Access = "denied"
	AccessUnavailable Access = "unavailable"
)

// BridgeCamera is a Camera whose frames are captured in the webview and
// pushed in through ProcessFrame. The frontend reports the result of its
// device request with SetAccess before the session opens the camera.
type BridgeCamera struct {
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	access Access
	facing FacingMode
	stream *bridgeStream
}

// NewBridgeCamera creates a camera with no access reported yet.
func NewBridgeCamera(logger zerolog.Logger) *BridgeCamera {
	return &BridgeCamera{
		logger: logger.With().Str("component", "camera").Logger(),
		now:    time.Now,
	}
}

// SetAccess records whether the frontend obtained a camera.
func (c *BridgeCamera) SetAccess(a Access) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = a
}

// Open returns a stream when access was granted.
func (c *BridgeCamera) Open(ctx context.Context, facing FacingMode) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.access {
	case AccessGranted:
	case AccessDenied:
		return nil, ErrPermissionDenied
	default:
		return nil, ErrCameraNotAvailable
	}

	if c.stream != nil {
		c.stream.closeLocked()
	}
	s := &bridgeStream{owner: c, frames: make(chan Frame, 1)}
	c.stream = s
	c.facing = facing

	c.logger.Info().Str("facing", string(facing)).Msg("Camera opened")
	return s, nil
}

// Facing returns the facing mode of the open stream.
func (c *BridgeCamera) Facing() FacingMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facing
}

// Active reports whether a stream is open.
func (c *BridgeCamera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// ProcessFrame handles an incoming camera frame from the frontend.
// imageBase64 is base64-encoded JPEG image data. Frames arriving while the
// previous one is still queued replace it.
func (c *BridgeCamera) ProcessFrame(imageBase64 string, width, height int, timestampMs int64) error {
	data, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if timestampMs <= 0 {
		timestampMs = c.now().UnixMilli()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return nil
	}

	f := Frame{Data: data, Width: width, Height: height, Format: "jpeg", TimestampMs: timestampMs}
	select {
	case c.stream.frames <- f:
	default:
		select {
		case <-c.stream.frames:
		default:
		}
		c.stream.frames <- f
	}
	return nil
}

type bridgeStream struct {
	owner  *BridgeCamera
	frames chan Frame
	closed bool
}

func (s *bridgeStream) Frames() <-chan Frame { return s.frames }

func (s *bridgeStream) Close() error {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *bridgeStream) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
	if s.owner.stream == s {
		s.owner.stream = nil
		s.owner.logger.Info().Msg("Camera released")
	}
}
