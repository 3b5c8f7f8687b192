// Package vision runs the camera session that feeds gesture recognition.
package vision

import (
	"context"
	"errors"

	"github.com/normanking/voicelink/internal/gesture"
)

// Common errors
var (
	ErrCameraNotAvailable = errors.New("camera not available")
	ErrPermissionDenied   = errors.New("camera permission denied")
	ErrModelUnavailable   = errors.New("gesture model unavailable")
	ErrSessionActive      = errors.New("camera session already running")
	ErrNotConnected       = errors.New("classifier not connected")
)

// FacingMode selects which camera to use.
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Delegate is the compute backend a classifier runs on.
type Delegate string

const (
	DelegateGPU Delegate = "GPU"
	DelegateCPU Delegate = "CPU"
)

// Frame is a single captured camera image.
type Frame struct {
	Data        []byte `json:"data"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"` // jpeg, png
	TimestampMs int64  `json:"timestampMs"`
}

// Camera opens a frame stream for a facing mode.
type Camera interface {
	Open(ctx context.Context, facing FacingMode) (Stream, error)
}

// Stream is an open camera. Close releases the device.
type Stream interface {
	Frames() <-chan Frame
	Close() error
}

// Classifier recognizes a hand gesture in one frame. It reports the best
// label and the landmarks of at most one hand.
type Classifier interface {
	Classify(ctx context.Context, frame Frame) (gesture.Classification, error)
	Close() error
}

// ClassifierOptions configures classifier creation.
type ClassifierOptions struct {
	ModelAsset string   `json:"model_asset"`
	Delegate   Delegate `json:"delegate"`
	NumHands   int      `json:"num_hands"`
}

// ClassifierFactory creates classifiers.
type ClassifierFactory interface {
	NewClassifier(ctx context.Context, opts ClassifierOptions) (Classifier, error)
}

// PhraseHandler acts on confirmed gesture phrases.
type PhraseHandler interface {
	// HandlePhrase is called once per emitted phrase event
	HandlePhrase(ev gesture.PhraseEvent)
	// Silence stops any speech started by HandlePhrase
	Silence()
}

// Update is what the session reports after each processed frame.
type Update struct {
	Result   gesture.Result         `json:"result"`
	Sample   gesture.Sample         `json:"sample"`
	Overlay  gesture.Overlay        `json:"overlay"`
	Raw      gesture.Classification `json:"raw"`
	Delegate Delegate               `json:"delegate"`
}
