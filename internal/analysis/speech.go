package analysis

import (
	"math"
	"strings"
)

// ScorerConfig holds the speech scoring thresholds.
type ScorerConfig struct {
	// LowConfidenceThreshold is τ: words below it get the dampened penalty.
	LowConfidenceThreshold float64
	// PenaltyDampening is d, the weight of the extra (1-confidence) penalty.
	PenaltyDampening float64
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		LowConfidenceThreshold: 0.6,
		PenaltyDampening:       0.5,
	}
}

// fillerRateBands maps fillers-per-minute upper bounds to scores. Rates
// above the last band decay exponentially, floored at minFillerRateScore.
var fillerRateBands = []struct {
	maxPerMinute float64
	score        float64
}{
	{1, 1.0},
	{2, 0.8},
	{4, 0.6},
}

const minFillerRateScore = 0.2

// Scorer turns a session's word sequence into SpeechMetrics.
type Scorer struct {
	cfg     ScorerConfig
	lexicon *Lexicon
}

func NewScorer(cfg ScorerConfig, lexicon *Lexicon) *Scorer {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	return &Scorer{cfg: cfg, lexicon: lexicon}
}

// Lexicon returns the filler lexicon the scorer matches against.
func (s *Scorer) Lexicon() *Lexicon { return s.lexicon }

// Score recomputes every speech metric from the full word sequence.
// audioSeconds is the total audio duration the words were taken from.
func (s *Scorer) Score(words []WordObservation, audioSeconds float64) SpeechMetrics {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}

	fillers := s.lexicon.Match(texts)
	if fillers == nil {
		fillers = []FillerMatch{}
	}
	confidence := s.WeightedConfidence(words)
	rate := FillerRateScore(len(fillers), audioSeconds/60)

	return SpeechMetrics{
		Status:               StatusFinal,
		WordsPerMinute:       WordsPerMinute(len(words), audioSeconds),
		FillerCount:          len(fillers),
		FillerWords:          fillers,
		WeightedConfidence:   confidence,
		IntelligibilityScore: IntelligibilityScore(confidence, rate),
		RawTranscript:        strings.Join(texts, " "),
		WordCount:            len(words),
	}
}

// EmptySpeechMetrics is the zero-valued fallback when the transcription
// backend produced nothing usable. It must not be confused with a session
// where nobody spoke, which scores full confidence.
func EmptySpeechMetrics(status MetricsStatus) SpeechMetrics {
	return SpeechMetrics{
		Status:      status,
		FillerWords: []FillerMatch{},
	}
}

// WeightedConfidence is the duration-weighted mean word confidence, with a
// dampened extra penalty for words below the low-confidence threshold.
// With no spoken duration there is no evidence of poor speech, so it is 1.
func (s *Scorer) WeightedConfidence(words []WordObservation) float64 {
	var total float64
	for _, w := range words {
		total += w.Duration()
	}
	if total == 0 {
		return 1.0
	}

	var score float64
	for _, w := range words {
		weight := w.Duration() / total
		c := w.Confidence
		if c < s.cfg.LowConfidenceThreshold {
			score += (c - (1-c)*s.cfg.PenaltyDampening) * weight
		} else {
			score += c * weight
		}
	}
	return score
}

// FillerRateScore bands the filler rate into a score in [0.2, 1.0].
func FillerRateScore(fillerCount int, durationMinutes float64) float64 {
	perMinute := 1.0
	if durationMinutes > 0 {
		perMinute = float64(fillerCount) / durationMinutes
	}
	for _, band := range fillerRateBands {
		if perMinute <= band.maxPerMinute {
			return band.score
		}
	}
	return math.Max(minFillerRateScore, math.Exp(-perMinute/10))
}

func IntelligibilityScore(weightedConfidence, fillerRateScore float64) float64 {
	return 0.6*weightedConfidence + 0.4*fillerRateScore
}

func WordsPerMinute(wordCount int, audioSeconds float64) float64 {
	if audioSeconds <= 0 {
		return 0
	}
	return float64(wordCount) / (audioSeconds / 60)
}
