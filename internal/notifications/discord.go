package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Discord is a simple Discord webhook notifier used for operator alerts.
type Discord struct {
	webhookURL string
	logger     *log.Logger
	client     *http.Client
}

// NewDiscord creates a new Discord notifier. If webhookURL is empty,
// notifications are silently skipped.
func NewDiscord(webhookURL string, logger *log.Logger) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		logger:     logger,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled returns true if the webhook is configured.
func (d *Discord) Enabled() bool {
	return d != nil && d.webhookURL != ""
}

type discordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// send posts a message to the webhook asynchronously.
// Errors are logged but don't affect caller.
func (d *Discord) send(ctx context.Context, msg discordMessage) {
	if !d.Enabled() {
		return
	}

	go func() {
		body, err := json.Marshal(msg)
		if err != nil {
			d.logger.Printf("discord: failed to marshal message: %v", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
		if err != nil {
			d.logger.Printf("discord: failed to create request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			d.logger.Printf("discord: failed to send webhook: %v", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			d.logger.Printf("discord: webhook returned status %d", resp.StatusCode)
		}
	}()
}

// NotifySessionFailed alerts operators that a session could not produce a report.
func (d *Discord) NotifySessionFailed(ctx context.Context, sessionID string, err error) {
	d.send(ctx, discordMessage{
		Embeds: []discordEmbed{{
			Title:       "Session finalize failed",
			Description: fmt.Sprintf("```%v```", err),
			Color:       0xFF0000, // Red
			Fields: []embedField{
				{Name: "Session", Value: fmt.Sprintf("`%s`", sessionID), Inline: true},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

// NotifyBackendDown alerts operators that a media sidecar is unreachable.
func (d *Discord) NotifyBackendDown(ctx context.Context, modality string, sessionID string) {
	d.send(ctx, discordMessage{
		Embeds: []discordEmbed{{
			Title:       fmt.Sprintf("%s backend unavailable", modality),
			Description: "The sidecar could not be reached; this session will report partial metrics.",
			Color:       0xFFA500, // Orange
			Fields: []embedField{
				{Name: "Session", Value: fmt.Sprintf("`%s`", sessionID), Inline: true},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	})
}
