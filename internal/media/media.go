// Package media holds the HTTP clients for the face-landmark and
// transcription sidecars. Both turn raw bytes into observations the
// analysis package understands; neither parses codecs in-process.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrUndecodable means the sidecar rejected the payload itself.
	ErrUndecodable = errors.New("media: payload could not be decoded")
	// ErrBackendUnavailable means the sidecar could not be reached or failed.
	ErrBackendUnavailable = errors.New("media: backend unavailable")
)

// NewPooledHTTPClient creates an http.Client with connection pooling and tuned transport.
func NewPooledHTTPClient(poolSize int, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          poolSize,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// postBinary sends payload to url and decodes a JSON response into out.
// 400 and 422 responses map to ErrUndecodable, everything else that is not
// a 200 maps to ErrBackendUnavailable.
func postBinary(ctx context.Context, client *http.Client, url string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s", ErrUndecodable, bytes.TrimSpace(body))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, bytes.TrimSpace(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrBackendUnavailable, err)
	}
	return nil
}
