package analysis

// Point is a landmark position normalized to the frame, (0,0) top-left and
// (1,1) bottom-right.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FaceLandmarks is the subset of face-mesh output the classifier needs.
// It is produced by the external landmark engine.
type FaceLandmarks struct {
	FaceDetected bool  `json:"face_detected"`
	FrameWidth   int   `json:"frame_width"`
	FrameHeight  int   `json:"frame_height"`
	NoseTip      Point `json:"nose_tip"`
	MouthLeft    Point `json:"mouth_left"`
	MouthRight   Point `json:"mouth_right"`
	UpperLip     Point `json:"upper_lip"`
	LowerLip     Point `json:"lower_lip"`
}

// ClassifierConfig holds the visual thresholds.
type ClassifierConfig struct {
	// GazeThreshold is the horizontal offset, as a fraction of frame width,
	// beyond which the candidate is looking away.
	GazeThreshold float64
	// PostureThreshold is the vertical offset, as a fraction of frame height,
	// beyond which posture is poor. Observed values ranged 0.2-0.45; keep tunable.
	PostureThreshold float64
	// SmileThreshold is the normalized vertical offset of the mouth corners
	// relative to the lip center below which a frame reads as a smile.
	SmileThreshold float64
}

func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		GazeThreshold:    0.2,
		PostureThreshold: 0.2,
		SmileThreshold:   -0.005,
	}
}

// Classifier turns landmark data into frame observations. It is stateless
// and safe for concurrent use.
type Classifier struct {
	cfg ClassifierConfig
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// DegradedFrame is substituted whenever a frame cannot be decoded or no face
// is found.
func DegradedFrame() ClassifiedFrame {
	return ClassifiedFrame{
		Observation: FrameObservation{FaceDetected: false, Sentiment: SentimentNeutral},
		Attention:   AttentionError,
	}
}

// Classify never fails: frames without a usable face come back degraded.
func (c *Classifier) Classify(lm FaceLandmarks) ClassifiedFrame {
	if !lm.FaceDetected || lm.FrameWidth <= 0 || lm.FrameHeight <= 0 {
		return DegradedFrame()
	}

	pos := &Offset{
		DX: int(lm.NoseTip.X*float64(lm.FrameWidth)) - lm.FrameWidth/2,
		DY: int(lm.NoseTip.Y*float64(lm.FrameHeight)) - lm.FrameHeight/2,
	}
	obs := FrameObservation{
		FaceDetected: true,
		FacePosition: pos,
		Sentiment:    c.sentiment(lm),
	}
	return ClassifiedFrame{
		Observation: obs,
		Attention:   c.attention(*pos, lm.FrameWidth, lm.FrameHeight),
	}
}

func (c *Classifier) attention(pos Offset, width, height int) AttentionStatus {
	switch {
	case abs(pos.DX) > c.cfg.GazeThreshold*float64(width):
		return AttentionLookingAway
	case abs(pos.DY) > c.cfg.PostureThreshold*float64(height):
		return AttentionPoorPosture
	default:
		return AttentionCentered
	}
}

// sentiment reads a smile from the mouth corners sitting higher (smaller y)
// than the center of the lips.
func (c *Classifier) sentiment(lm FaceLandmarks) Sentiment {
	corners := (lm.MouthLeft.Y + lm.MouthRight.Y) / 2
	lips := (lm.UpperLip.Y + lm.LowerLip.Y) / 2
	if corners-lips < c.cfg.SmileThreshold {
		return SentimentPositive
	}
	return SentimentNeutral
}

func abs(v int) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}
