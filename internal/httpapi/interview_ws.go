package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DavidYu75/intreview/internal/eventlog"
	"github.com/DavidYu75/intreview/internal/session"
	"github.com/DavidYu75/intreview/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Close codes sent when a stream cannot be attached to a session.
const (
	closeSessionNotFound = 4004
	closeAlreadyAttached = 4009
)

const writeTimeout = 10 * time.Second

// handleInterviewWS streams video frames and audio fragments into a session
// and answers each with feedback. The session is finalized when the client
// sends end_session or the connection drops, whichever comes first.
func (r *Router) handleInterviewWS(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	if !r.sessions.AddConn() {
		http.Error(w, `{"error": "server is shutting down"}`, http.StatusServiceUnavailable)
		return
	}
	defer r.sessions.DoneConn()

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("interview_ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess, err := r.sessions.Get(id, ownerID(req))
	if err != nil {
		r.logger.Printf("interview_ws: rejecting stream for unknown session %s", id)
		closeWith(conn, closeSessionNotFound, "Invalid session ID")
		return
	}
	if !sess.Attach() {
		r.logger.Printf("interview_ws: session %s already has a live stream", id)
		closeWith(conn, closeAlreadyAttached, "Session already connected")
		return
	}
	defer sess.Detach()

	ctx := req.Context()
	r.eventLog.LogAsync(id, eventlog.EventConnOpened, map[string]any{"remote_addr": req.RemoteAddr})
	r.logger.Printf("interview_ws: stream opened for session %s", id)

	ws := &interviewStream{
		router: r,
		conn:   conn,
		sess:   sess,
	}

	defer func() {
		// a dropped connection ends the session the same way end_session does
		// Finalize logs its own failures.
		_, _ = sess.Finalize(ctx)
		r.eventLog.LogAsync(id, eventlog.EventConnClosed, map[string]any{
			"messages": ws.received,
		})
	}()

	conn.SetReadLimit(r.cfg.MaxMessageBytes)
	ws.run(ctx)
}

type interviewStream struct {
	router   *Router
	conn     *websocket.Conn
	sess     *session.Session
	received int
}

func (s *interviewStream) run(ctx context.Context) {
	logger := s.router.logger
	id := s.sess.ID()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Printf("interview_ws: connection closed for session %s", id)
			} else {
				logger.Printf("interview_ws: read error for session %s: %v", id, err)
			}
			return
		}
		s.received++

		msg, err := decodeClientMessage(raw)
		if err != nil {
			logger.Printf("interview_ws: bad message for session %s: %v", id, err)
			if !s.send(errorMessage{Type: typeError, SessionID: id, Error: err.Error()}) {
				return
			}
			continue
		}

		var reply any
		switch m := msg.(type) {
		case videoMessage:
			frame, ok := s.sess.IngestFrame(ctx, m.Frame)
			if ok {
				s.router.recordChunk(ctx, id, m.Frame, store.ChunkVideo)
			}
			reply = feedbackMessage{Type: typeVideoFeedback, SessionID: id, Feedback: feedbackFromFrame(frame)}

		case audioMessage:
			n, ok := s.sess.IngestAudio(ctx, m.Audio)
			if ok {
				s.router.recordChunk(ctx, id, m.Audio, store.ChunkAudio)
			}
			fb := feedbackFromFrame(s.sess.LastFrame())
			fb.WordsReceived = &n
			reply = feedbackMessage{Type: typeAudioFeedback, SessionID: id, Feedback: fb}

		case endSessionMessage:
			report, err := s.sess.Finalize(ctx)
			summary := newSummary(id, report, lastKnownVisual(s.sess, report))
			if err != nil {
				summary.Data.Error = "session failed"
			}
			reply = summary
		}

		if !s.send(reply) {
			return
		}
	}
}

func (s *interviewStream) send(v any) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(v); err != nil {
		s.router.logger.Printf("interview_ws: write failed for session %s: %v", s.sess.ID(), err)
		return false
	}
	return true
}

// recordChunk archives a raw payload for later replay. Storage failures
// never interrupt the live stream.
func (r *Router) recordChunk(ctx context.Context, sessionID string, payload []byte, kind store.ChunkKind) {
	if r.store == nil {
		return
	}
	payload, ok := archivedPayload(payload, kind)
	if !ok {
		return
	}
	if _, err := r.store.StoreChunk(ctx, sessionID, payload, kind, nowUTC()); err != nil {
		r.logger.Printf("interview_ws: failed to store %s chunk for %s: %v", kind, sessionID, err)
	}
}

// archivedPayload returns the bytes to archive for an ingested payload.
// An undecodable video frame still counts as a degraded frame, so it is kept
// as an empty marker chunk that replays to the same degraded frame. Empty
// audio contributes nothing and is not archived.
func archivedPayload(payload []byte, kind store.ChunkKind) ([]byte, bool) {
	if len(payload) > 0 {
		return payload, true
	}
	if kind != store.ChunkVideo {
		return nil, false
	}
	// bytea is NOT NULL
	return []byte{}, true
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
