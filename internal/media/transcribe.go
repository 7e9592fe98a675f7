package media

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/DavidYu75/intreview/internal/analysis"
)

// TranscriptionClient calls the speech-to-text sidecar. Word offsets in the
// returned transcript are relative to the start of the fragment.
type TranscriptionClient struct {
	url    string
	client *http.Client
}

func NewTranscriptionClient(baseURL string) *TranscriptionClient {
	return &TranscriptionClient{
		url:    strings.TrimRight(baseURL, "/"),
		client: NewPooledHTTPClient(8, 30*time.Second),
	}
}

// WithHTTPClient replaces the default pooled client.
func (c *TranscriptionClient) WithHTTPClient(hc *http.Client) *TranscriptionClient {
	c.client = hc
	return c
}

// Transcribe posts one audio fragment to /transcribe.
func (c *TranscriptionClient) Transcribe(ctx context.Context, audio []byte) (analysis.Transcript, error) {
	var tr analysis.Transcript
	if len(audio) == 0 {
		return tr, ErrUndecodable
	}
	err := postBinary(ctx, c.client, c.url+"/transcribe", audio, &tr)
	return tr, err
}
