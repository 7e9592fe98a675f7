package media

import (
	"context"

	"github.com/DavidYu75/intreview/internal/analysis"
)

// Unavailable stands in for a sidecar that is not configured. Every call
// fails with ErrBackendUnavailable so sessions degrade instead of failing.
type Unavailable struct{}

func (Unavailable) DecodeFrame(context.Context, []byte) (analysis.FaceLandmarks, error) {
	return analysis.FaceLandmarks{}, ErrBackendUnavailable
}

func (Unavailable) Transcribe(context.Context, []byte) (analysis.Transcript, error) {
	return analysis.Transcript{}, ErrBackendUnavailable
}
