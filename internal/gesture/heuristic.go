package gesture

// Heuristic detector tuning.
const (
	// ExtensionRatio is how much farther from the wrist a fingertip must be
	// than its base joint for the finger to count as extended.
	ExtensionRatio = 1.2

	// PinchThreshold is the maximum thumb-to-index tip distance for OK_Sign.
	PinchThreshold = 0.06

	// HeuristicConfidence replaces the classifier score when a heuristic
	// gesture is detected.
	HeuristicConfidence = 0.85
)

// Labels produced by the heuristic detector.
const (
	LabelRock   = "Rock"
	LabelCallMe = "Call_Me"
	LabelOKSign = "OK_Sign"
)

// finger names a tip and the joint it is compared against.
type finger struct {
	tip, base int
}

var (
	thumb  = finger{ThumbTip, ThumbMCP}
	index  = finger{IndexTip, IndexPIP}
	middle = finger{MiddleTip, MiddlePIP}
	ring   = finger{RingTip, RingPIP}
	pinky  = finger{PinkyTip, PinkyPIP}
)

func (h HandLandmarks) extended(f finger) bool {
	return h.Distance(Wrist, f.tip) > ExtensionRatio*h.Distance(Wrist, f.base)
}

// DetectHeuristic recognizes Rock, Call_Me and OK_Sign from raw landmarks.
// Rules are checked in that order and the first match wins. Missing or
// malformed landmarks yield no gesture.
func DetectHeuristic(h HandLandmarks) (string, bool) {
	if !h.Valid() {
		return "", false
	}

	thumbUp := h.extended(thumb)
	indexUp := h.extended(index)
	middleUp := h.extended(middle)
	ringUp := h.extended(ring)
	pinkyUp := h.extended(pinky)

	if indexUp && pinkyUp && !middleUp && !ringUp {
		return LabelRock, true
	}

	if thumbUp && pinkyUp && !indexUp && !middleUp && !ringUp {
		return LabelCallMe, true
	}

	if h.Distance(ThumbTip, IndexTip) < PinchThreshold && middleUp && ringUp && pinkyUp {
		return LabelOKSign, true
	}

	return "", false
}

// Classification is one frame of classifier output.
type Classification struct {
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Landmarks  HandLandmarks `json:"landmarks,omitempty"`
}

// Resolve produces the sample fed to the stabilizer: the heuristic result
// when one fires, otherwise the classifier's own label and score. A frame
// without a complete hand skeleton is no gesture, whatever its label.
func Resolve(c Classification, timestampMs int64) Sample {
	if !c.Landmarks.Valid() {
		return Sample{Label: NoGesture, TimestampMs: timestampMs}
	}
	if label, ok := DetectHeuristic(c.Landmarks); ok {
		return Sample{Label: label, Confidence: HeuristicConfidence, TimestampMs: timestampMs}
	}
	return Sample{Label: c.Label, Confidence: c.Confidence, TimestampMs: timestampMs}
}
