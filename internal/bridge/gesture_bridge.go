package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/vision"
)

// startTimeout bounds opening the camera and loading the classifier.
const startTimeout = 20 * time.Second

// CameraStatus describes the camera session.
type CameraStatus struct {
	Running  bool   `json:"running"`
	Facing   string `json:"facing"`
	Delegate string `json:"delegate"`
}

// StartResult tells the frontend why the camera did not start.
type StartResult struct {
	OK    bool   `json:"ok"`
	Kind  string `json:"kind,omitempty"` // permission, unavailable, model, active
	Error string `json:"error,omitempty"`
}

// GestureBridge exposes the gesture camera to the frontend. The webview
// owns the physical camera and pushes frames through ProcessFrame.
type GestureBridge struct {
	binding
	session *vision.Session
	camera  *vision.BridgeCamera
	logger  zerolog.Logger
}

// NewGestureBridge creates a new gesture bridge
func NewGestureBridge(session *vision.Session, camera *vision.BridgeCamera, logger zerolog.Logger) *GestureBridge {
	return &GestureBridge{
		session: session,
		camera:  camera,
		logger:  logger.With().Str("component", "gesture-bridge").Logger(),
	}
}

// Bind sets the Wails runtime context and streams session updates.
func (b *GestureBridge) Bind(ctx context.Context) {
	b.bind(ctx)
	b.session.OnUpdate(func(u vision.Update) {
		b.emit(EventGestureUpdate, u)
	})
}

// SetCameraAccess records the outcome of the webview's camera permission
// request: "granted", "denied" or "unavailable".
func (b *GestureBridge) SetCameraAccess(access string) {
	b.camera.SetAccess(vision.Access(access))
}

// StartCamera starts recognition with the configured camera.
func (b *GestureBridge) StartCamera() StartResult {
	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	return startResult(b.session.Start(ctx))
}

// StopCamera stops recognition and releases the camera.
func (b *GestureBridge) StopCamera() {
	b.session.Stop()
}

// SwitchCamera restarts recognition on the other camera, or on facing
// when it is "user" or "environment".
func (b *GestureBridge) SwitchCamera(facing string) StartResult {
	next := vision.FacingMode(facing)
	switch next {
	case vision.FacingUser, vision.FacingEnvironment:
	default:
		next = vision.FacingUser
		if b.session.Facing() == vision.FacingUser {
			next = vision.FacingEnvironment
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	return startResult(b.session.SwitchFacing(ctx, next))
}

// ProcessFrame receives a base64 encoded frame from the webview.
func (b *GestureBridge) ProcessFrame(imageBase64 string, width, height int, timestampMs int64) error {
	return b.camera.ProcessFrame(imageBase64, width, height, timestampMs)
}

// GetStatus returns the session state.
func (b *GestureBridge) GetStatus() CameraStatus {
	return CameraStatus{
		Running:  b.session.Running(),
		Facing:   string(b.session.Facing()),
		Delegate: string(b.session.Delegate()),
	}
}

func startResult(err error) StartResult {
	if err == nil {
		return StartResult{OK: true}
	}
	kind := "unknown"
	switch {
	case errors.Is(err, vision.ErrPermissionDenied):
		kind = "permission"
	case errors.Is(err, vision.ErrCameraNotAvailable):
		kind = "unavailable"
	case errors.Is(err, vision.ErrModelUnavailable):
		kind = "model"
	case errors.Is(err, vision.ErrSessionActive):
		kind = "active"
	}
	return StartResult{Kind: kind, Error: err.Error()}
}
