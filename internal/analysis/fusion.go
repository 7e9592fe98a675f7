package analysis

import (
	"fmt"
	"math"
)

// VisualCounters are the running per-session frame tallies.
type VisualCounters struct {
	Frames      int
	Centered    int
	GoodPosture int // every frame not classified as poor posture, including errors
	Positive    int
}

// Fold adds one classified frame to the counters.
func (c *VisualCounters) Fold(f ClassifiedFrame) {
	c.Frames++
	if f.Attention == AttentionCentered {
		c.Centered++
	}
	if f.Attention != AttentionPoorPosture {
		c.GoodPosture++
	}
	if f.Observation.Sentiment == SentimentPositive {
		c.Positive++
	}
}

// BuildVisualMetrics derives visual metrics from the counters and the
// ordered per-frame sentiment labels.
func BuildVisualMetrics(c VisualCounters, labels []Sentiment) VisualMetrics {
	timeline := BuildTimeline(labels)
	m := VisualMetrics{
		Status:            StatusFinal,
		DominantSentiment: DominantSentiment(labels),
		SentimentTimeline: timeline,
		FrameCount:        c.Frames,
	}
	if len(timeline) > 1 {
		m.ExpressionChanges = len(timeline) - 1
	}
	if c.Frames == 0 {
		return m
	}

	frames := float64(c.Frames)
	m.AttentionScore = float64(c.Centered) / frames
	m.EyeContactPercentage = m.AttentionScore * 100
	m.PostureScore = float64(c.GoodPosture) / frames * 100
	m.SentimentScore = float64(c.Positive) / frames * 100
	return m
}

// EmptyVisualMetrics is the zero-valued fallback when the visual backend
// produced nothing usable.
func EmptyVisualMetrics(status MetricsStatus) VisualMetrics {
	return VisualMetrics{
		Status:            status,
		DominantSentiment: SentimentNeutral,
		SentimentTimeline: []Segment{},
	}
}

// HighlightRule is a pure predicate over the two metrics objects.
type HighlightRule func(speech SpeechMetrics, visual VisualMetrics) (Highlight, bool)

// DefaultHighlightRules are evaluated independently; any number may fire.
var DefaultHighlightRules = []HighlightRule{
	func(s SpeechMetrics, _ VisualMetrics) (Highlight, bool) {
		return Highlight{
			Type:     HighlightObservation,
			Category: CategorySpeech,
			Message:  fmt.Sprintf("Used %d filler words", s.FillerCount),
		}, s.FillerCount > 0
	},
	func(_ SpeechMetrics, v VisualMetrics) (Highlight, bool) {
		return Highlight{
			Type:     HighlightStrength,
			Category: CategoryVisual,
			Message:  "Good eye contact maintained",
		}, v.EyeContactPercentage > 60
	},
	func(_ SpeechMetrics, v VisualMetrics) (Highlight, bool) {
		return Highlight{
			Type:     HighlightStrength,
			Category: CategoryVisual,
			Message:  "Steady, upright posture",
		}, v.FrameCount > 0 && v.PostureScore >= 80
	},
	func(s SpeechMetrics, _ VisualMetrics) (Highlight, bool) {
		return Highlight{
			Type:     HighlightObservation,
			Category: CategorySpeech,
			Message:  fmt.Sprintf("Speaking quickly (%.0f words per minute)", s.WordsPerMinute),
		}, s.WordsPerMinute > 170
	},
	func(s SpeechMetrics, _ VisualMetrics) (Highlight, bool) {
		return Highlight{
			Type:     HighlightObservation,
			Category: CategorySpeech,
			Message:  fmt.Sprintf("Speaking slowly (%.0f words per minute)", s.WordsPerMinute),
		}, s.WordsPerMinute > 0 && s.WordsPerMinute < 100
	},
}

// GenerateHighlights evaluates every rule in order.
func GenerateHighlights(speech SpeechMetrics, visual VisualMetrics, rules []HighlightRule) []Highlight {
	highlights := []Highlight{}
	for _, rule := range rules {
		if h, ok := rule(speech, visual); ok {
			highlights = append(highlights, h)
		}
	}
	return highlights
}

// Fuse combines finalized speech and visual metrics into the composite report.
func Fuse(speech SpeechMetrics, visual VisualMetrics) CompositeReport {
	return CompositeReport{
		OverallConfidence: speech.WeightedConfidence,
		// Attention and eye contact share a numerator; the average is intentional.
		OverallEngagement: (visual.AttentionScore + visual.EyeContactPercentage/100) / 2,
		CommunicationScore: 0.4*speech.IntelligibilityScore +
			0.3*(1-math.Min(float64(speech.FillerCount)/50, 1)) +
			0.3*(visual.PostureScore/100),
		Highlights: GenerateHighlights(speech, visual, DefaultHighlightRules),
	}
}

// Validate reports an error if any number in the report is not finite.
func (r *Report) Validate() error {
	values := map[string]float64{
		"words_per_minute":       r.Speech.WordsPerMinute,
		"weighted_confidence":    r.Speech.WeightedConfidence,
		"intelligibility_score":  r.Speech.IntelligibilityScore,
		"eye_contact_percentage": r.Visual.EyeContactPercentage,
		"posture_score":          r.Visual.PostureScore,
		"sentiment_score":        r.Visual.SentimentScore,
		"overall_confidence":     r.Composite.OverallConfidence,
		"overall_engagement":     r.Composite.OverallEngagement,
		"communication_score":    r.Composite.CommunicationScore,
	}
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not a finite number", name)
		}
	}
	return nil
}
