package media

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/DavidYu75/intreview/internal/analysis"
)

// LandmarkClient calls the face-mesh sidecar for one image at a time.
type LandmarkClient struct {
	url    string
	client *http.Client
}

func NewLandmarkClient(baseURL string) *LandmarkClient {
	return &LandmarkClient{
		url:    strings.TrimRight(baseURL, "/"),
		client: NewPooledHTTPClient(16, 5*time.Second),
	}
}

// WithHTTPClient replaces the default pooled client.
func (c *LandmarkClient) WithHTTPClient(hc *http.Client) *LandmarkClient {
	c.client = hc
	return c
}

// DecodeFrame posts an encoded image to /landmarks.
func (c *LandmarkClient) DecodeFrame(ctx context.Context, image []byte) (analysis.FaceLandmarks, error) {
	var lm analysis.FaceLandmarks
	if len(image) == 0 {
		return lm, ErrUndecodable
	}
	err := postBinary(ctx, c.client, c.url+"/landmarks", image, &lm)
	return lm, err
}
