// Package analysis holds the pure scoring and classification logic for
// interview sessions: filler detection, speech quality, per-frame visual
// classification, sentiment timelines and the fused report.
package analysis

import "time"

// Sentiment is the per-frame visual sentiment label.
type Sentiment string

const (
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
)

// sentimentOrder is the fixed enumeration order used to break ties
// when picking the dominant sentiment.
var sentimentOrder = []Sentiment{SentimentNeutral, SentimentPositive}

// AttentionStatus is the per-frame gaze/posture classification.
type AttentionStatus string

const (
	AttentionCentered    AttentionStatus = "centered"
	AttentionLookingAway AttentionStatus = "looking away"
	AttentionPoorPosture AttentionStatus = "poor posture"
	AttentionError       AttentionStatus = "error"
)

// MetricsStatus tags how complete a metrics object is.
type MetricsStatus string

const (
	StatusPending MetricsStatus = "pending" // collaborator has not run yet
	StatusPartial MetricsStatus = "partial" // some inputs were lost to backend failures
	StatusFinal   MetricsStatus = "final"
)

// WordObservation is one recognized spoken word. Offsets are in seconds.
type WordObservation struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Duration returns the spoken length of the word, never negative.
func (w WordObservation) Duration() float64 {
	if d := w.End - w.Start; d > 0 {
		return d
	}
	return 0
}

// Transcript is what the transcription collaborator returns for one audio
// fragment. Word offsets are relative to the start of the fragment.
type Transcript struct {
	Words           []WordObservation `json:"words"`
	DurationSeconds float64           `json:"duration"`
}

// Offset is a face position in pixels relative to the frame center.
type Offset struct {
	DX int `json:"x"`
	DY int `json:"y"`
}

// FrameObservation is the classified outcome of one processed video frame.
type FrameObservation struct {
	FaceDetected bool      `json:"face_detected"`
	FacePosition *Offset   `json:"face_position,omitempty"`
	Sentiment    Sentiment `json:"sentiment"`
}

// ClassifiedFrame pairs a frame observation with its derived attention status.
type ClassifiedFrame struct {
	Observation FrameObservation
	Attention   AttentionStatus
}

// Segment is a contiguous run of frames sharing one sentiment label.
type Segment struct {
	Sentiment      Sentiment `json:"sentiment"`
	StartFrame     int       `json:"start_frame"`
	EndFrame       int       `json:"end_frame"`
	DurationFrames int       `json:"duration"`
}

// SpeechMetrics summarises the word stream of a session.
type SpeechMetrics struct {
	Status               MetricsStatus `json:"status"`
	WordsPerMinute       float64       `json:"words_per_minute"`
	FillerCount          int           `json:"filler_word_count"`
	FillerWords          []FillerMatch `json:"filler_words"`
	WeightedConfidence   float64       `json:"confidence"`
	IntelligibilityScore float64       `json:"speech_intelligibility"`
	RawTranscript        string        `json:"transcript"`
	WordCount            int           `json:"word_count"`
}

// VisualMetrics summarises the frame stream of a session. Percentages are 0-100.
type VisualMetrics struct {
	Status               MetricsStatus `json:"status"`
	EyeContactPercentage float64       `json:"eye_contact_percentage"`
	AttentionScore       float64       `json:"attention_score"`
	PostureScore         float64       `json:"posture_score"`
	SentimentScore       float64       `json:"sentiment_score"`
	DominantSentiment    Sentiment     `json:"dominant_sentiment"`
	ExpressionChanges    int           `json:"expression_changes"`
	SentimentTimeline    []Segment     `json:"sentiment_timeline"`
	FrameCount           int           `json:"frame_count"`
}

type HighlightType string

const (
	HighlightObservation HighlightType = "observation"
	HighlightStrength    HighlightType = "strength"
)

type HighlightCategory string

const (
	CategorySpeech HighlightCategory = "speech"
	CategoryVisual HighlightCategory = "visual"
)

type Highlight struct {
	Type     HighlightType     `json:"type"`
	Category HighlightCategory `json:"category"`
	Message  string            `json:"message"`
}

// CompositeReport is the fused view over speech and visual metrics.
type CompositeReport struct {
	OverallConfidence  float64     `json:"overall_confidence"`
	OverallEngagement  float64     `json:"overall_engagement"`
	CommunicationScore float64     `json:"communication_score"`
	Highlights         []Highlight `json:"highlights"`
}

// Report is the final, immutable outcome of a finalized session.
type Report struct {
	SessionID   string          `json:"session_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Speech      SpeechMetrics   `json:"speech_analysis"`
	Visual      VisualMetrics   `json:"visual_analysis"`
	Composite   CompositeReport `json:"overall_metrics"`
}
