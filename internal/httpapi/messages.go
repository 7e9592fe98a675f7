package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DavidYu75/intreview/internal/analysis"
	"github.com/DavidYu75/intreview/internal/store"
)

// Inbound message types on the interview stream.
const (
	typeVideo      = "video"
	typeAudio      = "audio"
	typeEndSession = "end_session"
)

// Outbound message types.
const (
	typeVideoFeedback  = "video_feedback"
	typeAudioFeedback  = "audio_feedback"
	typeSessionSummary = "session_summary"
	typeError          = "error"
)

var errUnknownMessageType = errors.New("unknown message type")

type wireMessage struct {
	Type  string `json:"type"`
	Frame string `json:"frame,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// clientMessage is one of videoMessage, audioMessage or endSessionMessage.
type clientMessage interface {
	clientMessage()
}

// videoMessage carries one encoded frame. Frame is nil when the payload was
// not valid base64; the frame is then classified as degraded.
type videoMessage struct {
	Frame []byte
}

// audioMessage carries one audio fragment. Audio is nil when the payload was
// not valid base64; the fragment is then skipped.
type audioMessage struct {
	Audio []byte
}

type endSessionMessage struct{}

func (videoMessage) clientMessage()      {}
func (audioMessage) clientMessage()      {}
func (endSessionMessage) clientMessage() {}

// decodeClientMessage parses one inbound frame. Only a malformed envelope
// or an unknown type is an error; bad media payloads decode to empty media.
func decodeClientMessage(raw []byte) (clientMessage, error) {
	var m wireMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	switch m.Type {
	case typeVideo:
		frame, err := store.DecodeChunkPayload(m.Frame)
		if err != nil {
			frame = nil
		}
		return videoMessage{Frame: frame}, nil
	case typeAudio:
		audio, err := store.DecodeChunkPayload(m.Audio)
		if err != nil {
			audio = nil
		}
		return audioMessage{Audio: audio}, nil
	case typeEndSession:
		return endSessionMessage{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownMessageType, m.Type)
	}
}

type feedback struct {
	FaceDetected    bool             `json:"face_detected"`
	AttentionStatus string           `json:"attention_status"`
	Sentiment       string           `json:"sentiment"`
	FacePosition    *analysis.Offset `json:"face_position,omitempty"`
	WordsReceived   *int             `json:"words_received,omitempty"`
}

func feedbackFromFrame(f analysis.ClassifiedFrame) feedback {
	return feedback{
		FaceDetected:    f.Observation.FaceDetected,
		AttentionStatus: string(f.Attention),
		Sentiment:       string(f.Observation.Sentiment),
		FacePosition:    f.Observation.FacePosition,
	}
}

type feedbackMessage struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	Feedback  feedback `json:"feedback"`
}

type videoMetrics struct {
	EyeContactScore float64 `json:"eye_contact_score"`
	PostureScore    float64 `json:"posture_score"`
	SentimentScore  float64 `json:"sentiment_score"`
	FrameCount      int     `json:"frame_count"`
}

type summaryData struct {
	VideoMetrics videoMetrics             `json:"video_metrics"`
	Report       *analysis.ReportEnvelope `json:"report,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

type summaryMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Data      summaryData `json:"data"`
}

func newSummary(sessionID string, report *analysis.Report, visual analysis.VisualMetrics) summaryMessage {
	msg := summaryMessage{
		Type:      typeSessionSummary,
		SessionID: sessionID,
		Data: summaryData{
			VideoMetrics: videoMetrics{
				EyeContactScore: visual.EyeContactPercentage,
				PostureScore:    visual.PostureScore,
				SentimentScore:  visual.SentimentScore,
				FrameCount:      visual.FrameCount,
			},
		},
	}
	if report != nil {
		env := report.Envelope()
		msg.Data.Report = &env
	}
	return msg
}

type errorMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}
