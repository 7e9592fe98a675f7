package analysis

// ReportAnalysis is the flat "analysis" object consumed by the
// finalize-session caller.
type ReportAnalysis struct {
	WordsPerMinute       float64       `json:"words_per_minute"`
	FillerCount          int           `json:"filler_count"`
	FillerWords          []FillerMatch `json:"filler_words"`
	WeightedConfidence   float64       `json:"weighted_confidence"`
	IntelligibilityScore float64       `json:"intelligibility_score"`
	RawTranscript        string        `json:"raw_transcript"`
	WordCount            int           `json:"word_count"`
	EyeContact           float64       `json:"eye_contact"`
	Sentiment            float64       `json:"sentiment"`
	Posture              float64       `json:"posture"`
}

// ReportEnvelope is the wire shape of a final report.
type ReportEnvelope struct {
	Message           string          `json:"message"`
	SessionID         string          `json:"session_id"`
	Analysis          ReportAnalysis  `json:"analysis"`
	Overall           CompositeReport `json:"overall_metrics"`
	DominantSentiment Sentiment       `json:"dominant_sentiment"`
	SentimentTimeline []Segment       `json:"sentiment_timeline"`
	SpeechStatus      MetricsStatus   `json:"speech_status"`
	VisualStatus      MetricsStatus   `json:"visual_status"`
}

func (r *Report) Envelope() ReportEnvelope {
	return ReportEnvelope{
		Message:   "Session analysis complete",
		SessionID: r.SessionID,
		Analysis: ReportAnalysis{
			WordsPerMinute:       r.Speech.WordsPerMinute,
			FillerCount:          r.Speech.FillerCount,
			FillerWords:          r.Speech.FillerWords,
			WeightedConfidence:   r.Speech.WeightedConfidence,
			IntelligibilityScore: r.Speech.IntelligibilityScore,
			RawTranscript:        r.Speech.RawTranscript,
			WordCount:            r.Speech.WordCount,
			EyeContact:           r.Visual.EyeContactPercentage,
			Sentiment:            r.Visual.SentimentScore,
			Posture:              r.Visual.PostureScore,
		},
		Overall:           r.Composite,
		DominantSentiment: r.Visual.DominantSentiment,
		SentimentTimeline: r.Visual.SentimentTimeline,
		SpeechStatus:      r.Speech.Status,
		VisualStatus:      r.Visual.Status,
	}
}
