// Package gesture turns per-frame hand classifications into spoken phrases.
//
// A frame's classifier label may be overridden by DetectHeuristic, which
// recognizes a few poses the classifier does not know. Stabilizer then
// requires the label to be held before it emits a PhraseEvent, and rate
// limits repeats of the same label.
package gesture

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NumLandmarks is the number of points in a hand skeleton.
const NumLandmarks = 21

// Landmark indices.
const (
	Wrist = iota
	ThumbCMC
	ThumbMCP
	ThumbIP
	ThumbTip
	IndexMCP
	IndexPIP
	IndexDIP
	IndexTip
	MiddleMCP
	MiddlePIP
	MiddleDIP
	MiddleTip
	RingMCP
	RingPIP
	RingDIP
	RingTip
	PinkyMCP
	PinkyPIP
	PinkyDIP
	PinkyTip
)

// Landmark is a point in normalized image space. X and Y are in [0,1];
// Z is relative depth.
type Landmark struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Vec returns the landmark as a vector.
func (l Landmark) Vec() mgl64.Vec3 {
	return mgl64.Vec3{l.X, l.Y, l.Z}
}

// HandLandmarks is the skeleton of a single detected hand.
type HandLandmarks []Landmark

// Valid reports whether the skeleton has all 21 finite points.
func (h HandLandmarks) Valid() bool {
	if len(h) != NumLandmarks {
		return false
	}
	for _, l := range h {
		for _, v := range [3]float64{l.X, l.Y, l.Z} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Distance is the 3-D Euclidean distance between two landmarks.
func (h HandLandmarks) Distance(a, b int) float64 {
	return h[a].Vec().Sub(h[b].Vec()).Len()
}
