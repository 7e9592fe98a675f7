package analysis

// BuildTimeline run-length encodes per-frame sentiment labels. The segments
// partition [0, len(labels)) with no gaps or overlaps.
func BuildTimeline(labels []Sentiment) []Segment {
	segments := []Segment{}
	if len(labels) == 0 {
		return segments
	}

	start := 0
	for i := 1; i < len(labels); i++ {
		if labels[i] != labels[i-1] {
			segments = append(segments, newSegment(labels[start], start, i-1))
			start = i
		}
	}
	return append(segments, newSegment(labels[start], start, len(labels)-1))
}

func newSegment(s Sentiment, start, end int) Segment {
	return Segment{Sentiment: s, StartFrame: start, EndFrame: end, DurationFrames: end - start + 1}
}

// DominantSentiment returns the most frequent label. Ties go to the label
// that comes first in the neutral, positive enumeration.
func DominantSentiment(labels []Sentiment) Sentiment {
	counts := make(map[Sentiment]int, len(sentimentOrder))
	for _, l := range labels {
		counts[l]++
	}
	dominant := sentimentOrder[0]
	for _, s := range sentimentOrder[1:] {
		if counts[s] > counts[dominant] {
			dominant = s
		}
	}
	return dominant
}
