package notifications

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNsConfig holds configuration for Apple Push Notification service
type APNsConfig struct {
	KeyPath    string // Path to .p8 key file
	KeyID      string // Key ID from Apple Developer Portal
	TeamID     string // Team ID from Apple Developer Portal
	BundleID   string // App bundle ID
	Production bool   // Use production environment
}

// APNsClient sends push notifications via Apple Push Notification service.
// A nil *APNsClient is valid and sends nothing.
type APNsClient struct {
	client   *apns2.Client
	bundleID string
	logger   *log.Logger
	mu       sync.Mutex
}

// NewAPNsClient creates a new APNs client. It returns nil, nil when the
// configuration is incomplete.
func NewAPNsClient(cfg APNsConfig, logger *log.Logger) (*APNsClient, error) {
	if cfg.KeyPath == "" || cfg.KeyID == "" || cfg.TeamID == "" || cfg.BundleID == "" {
		logger.Println("APNs: missing configuration, push notifications disabled")
		return nil, nil
	}

	keyBytes, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read APNs key file: %w", err)
	}

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode APNs key PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs key: %w", err)
	}

	ecdsaKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("APNs key is not an ECDSA private key")
	}

	authToken := &token.Token{
		AuthKey: ecdsaKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	var client *apns2.Client
	if cfg.Production {
		client = apns2.NewTokenClient(authToken).Production()
	} else {
		client = apns2.NewTokenClient(authToken).Development()
	}

	logger.Printf("APNs: client initialized (production=%v, bundle=%s)", cfg.Production, cfg.BundleID)

	return &APNsClient{
		client:   client,
		bundleID: cfg.BundleID,
		logger:   logger,
	}, nil
}

// ReportNotification is the data for a "report ready" push.
type ReportNotification struct {
	SessionID          string
	CommunicationScore float64
	FillerCount        int
}

func reportReadyPayload(n ReportNotification) *payload.Payload {
	body := fmt.Sprintf("Communication score %.0f/100.", n.CommunicationScore*100)
	if n.FillerCount > 0 {
		body += fmt.Sprintf(" %d filler words flagged.", n.FillerCount)
	}
	return payload.NewPayload().
		AlertTitle("Your interview report is ready").
		AlertBody(body).
		Sound("default").
		Custom("session_id", n.SessionID)
}

// SendReportReady tells the device that a session report can be viewed.
func (c *APNsClient) SendReportReady(deviceToken string, n ReportNotification) error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       c.bundleID,
		Payload:     reportReadyPayload(n),
		Expiration:  time.Now().Add(24 * time.Hour),
	}

	res, err := c.client.Push(notification)
	if err != nil {
		c.logger.Printf("APNs: failed to send notification: %v", err)
		return err
	}

	if res.StatusCode != 200 {
		c.logger.Printf("APNs: notification rejected (status=%d, reason=%s)", res.StatusCode, res.Reason)
		return fmt.Errorf("APNs rejected notification: %s", res.Reason)
	}

	c.logger.Printf("APNs: report notification sent for session %s", n.SessionID)
	return nil
}
